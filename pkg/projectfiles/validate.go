package projectfiles

import (
	"mime"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileSize is the largest object accepted for a single signed PUT (5 GiB).
const DefaultMaxFileSize int64 = 5 << 30

// DefaultAllowedMimeTypes is the upload allow-list used when none is configured.
// Entries ending in "/*" admit a whole MIME family.
var DefaultAllowedMimeTypes = []string{
	"image/*",
	"video/*",
	"audio/*",
	"text/*",
	"application/pdf",
	"application/json",
	"application/zip",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/octet-stream",
}

// UploadPolicy bounds what RequestUpload accepts.
type UploadPolicy struct {
	MaxFileSize      int64
	AllowedMimeTypes []string
}

// DefaultUploadPolicy returns the policy used when none is configured.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxFileSize:      DefaultMaxFileSize,
		AllowedMimeTypes: DefaultAllowedMimeTypes,
	}
}

// NormalizeMimeType returns the lower-case media type of contentType without
// parameters, so "Text/Plain; charset=utf-8" becomes "text/plain". Values
// that do not parse are trimmed and lower-cased.
func NormalizeMimeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// AllowsMimeType reports whether contentType is on the allow-list.
func (p UploadPolicy) AllowsMimeType(contentType string) bool {
	if _, _, err := mime.ParseMediaType(contentType); err != nil {
		return false
	}
	mediaType := NormalizeMimeType(contentType)
	if len(p.AllowedMimeTypes) == 0 {
		return true
	}
	for _, allowed := range p.AllowedMimeTypes {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if family, ok := strings.CutSuffix(allowed, "/*"); ok {
			if strings.HasPrefix(mediaType, family+"/") {
				return true
			}
			continue
		}
		if mediaType == allowed {
			return true
		}
	}
	return false
}

type validator struct {
	fields []FieldError
}

func (v *validator) add(field, message string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Message: "invalid request", Fields: v.fields}
}

func (v *validator) projectName(name string) {
	switch n := utf8.RuneCountInString(strings.TrimSpace(name)); {
	case n == 0:
		v.add("name", "is required")
	case n > MaxProjectNameLength:
		v.add("name", "must be at most 100 characters")
	}
}

func (v *validator) projectDescription(description string) {
	if utf8.RuneCountInString(description) > MaxProjectDescriptionLength {
		v.add("description", "must be at most 500 characters")
	}
}

func (v *validator) identifier(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required")
		return
	}
	if strings.Contains(value, "#") || strings.Contains(value, "/") {
		v.add(field, "must not contain '#' or '/'")
	}
}

// validateCreateProject checks a CreateProjectRequest.
func validateCreateProject(req CreateProjectRequest) error {
	var v validator
	v.identifier("ownerId", req.OwnerID)
	if req.ProjectID != "" {
		v.identifier("projectId", req.ProjectID)
	}
	v.projectName(req.Name)
	v.projectDescription(req.Description)
	return v.err()
}

// validateUpdateProject checks an UpdateProjectRequest.
func validateUpdateProject(req UpdateProjectRequest) error {
	var v validator
	if req.Name == nil && req.Description == nil && req.Status == nil {
		v.add("body", "at least one of name, description or status is required")
	}
	if req.Name != nil {
		v.projectName(*req.Name)
	}
	if req.Description != nil {
		v.projectDescription(*req.Description)
	}
	if req.Status != nil && !req.Status.Valid() {
		v.add("status", "must be one of active, archived, deleted")
	}
	return v.err()
}

// validateUpload checks a RequestUploadRequest against policy.
func validateUpload(req RequestUploadRequest, policy UploadPolicy) error {
	var v validator
	if strings.TrimSpace(req.FileName) == "" {
		v.add("fileName", "is required")
	} else if len(req.FileName) > 1024 {
		v.add("fileName", "must be at most 1024 bytes")
	}
	if strings.TrimSpace(req.ContentType) == "" {
		v.add("contentType", "is required")
	} else if !policy.AllowsMimeType(req.ContentType) {
		v.add("contentType", "type is not allowed")
	}
	if req.Size < 0 {
		v.add("size", "must not be negative")
	} else if policy.MaxFileSize > 0 && req.Size > policy.MaxFileSize {
		v.add("size", "exceeds the maximum upload size")
	}
	return v.err()
}
