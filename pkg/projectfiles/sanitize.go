package projectfiles

import (
	"path"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9._-]`)

// SanitizeFileName lower-cases name and replaces every character outside
// [a-z0-9._-] with an underscore. The extension is kept.
func SanitizeFileName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	ext := path.Ext(name)
	if ext == "." || strings.Contains(ext, "\\") {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)

	stem = strings.Trim(unsafeNameChars.ReplaceAllString(stem, "_"), ".")
	if ext != "" {
		ext = "." + unsafeNameChars.ReplaceAllString(ext[1:], "_")
	}
	if stem == "" {
		stem = "file"
	}

	if len(ext) > MaxFileNameLength/2 {
		ext = ext[:MaxFileNameLength/2]
	}
	if len(stem)+len(ext) > MaxFileNameLength {
		stem = stem[:MaxFileNameLength-len(ext)]
	}
	return stem + ext
}

// FileExtension returns the lower-case extension of name without the dot.
func FileExtension(name string) string {
	ext := path.Ext(SanitizeFileName(name))
	return strings.TrimPrefix(ext, ".")
}
