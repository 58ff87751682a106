package projectfiles

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestUploadPolicy_AllowsMimeType(t *testing.T) {
	policy := DefaultUploadPolicy()

	assert.True(t, policy.AllowsMimeType("image/png"))
	assert.True(t, policy.AllowsMimeType("IMAGE/JPEG"))
	assert.True(t, policy.AllowsMimeType("text/plain; charset=utf-8"))
	assert.True(t, policy.AllowsMimeType("application/pdf"))
	assert.False(t, policy.AllowsMimeType("application/x-msdownload"))
	assert.False(t, policy.AllowsMimeType("not a mime type"))

	open := UploadPolicy{}
	assert.True(t, open.AllowsMimeType("application/x-anything"))
}

func TestNormalizeMimeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"image/png", "image/png"},
		{"Image/PNG", "image/png"},
		{"text/plain; charset=utf-8", "text/plain"},
		{" application/JSON ", "application/json"},
		{"image", "image"},
		{"", ""},
		{"Not A Mime", "not a mime"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMimeType(tt.in), tt.in)
	}
}

func TestValidateCreateProject(t *testing.T) {
	require.NoError(t, validateCreateProject(CreateProjectRequest{OwnerID: "u1", Name: "Photos"}))

	err := validateCreateProject(CreateProjectRequest{Name: "  "})
	assert.ElementsMatch(t, []string{"ownerId", "name"}, fieldNames(t, err))

	err = validateCreateProject(CreateProjectRequest{
		OwnerID:     "u1",
		Name:        strings.Repeat("n", MaxProjectNameLength+1),
		Description: strings.Repeat("d", MaxProjectDescriptionLength+1),
	})
	assert.ElementsMatch(t, []string{"name", "description"}, fieldNames(t, err))

	err = validateCreateProject(CreateProjectRequest{OwnerID: "u#1", ProjectID: "a/b", Name: "x"})
	assert.ElementsMatch(t, []string{"ownerId", "projectId"}, fieldNames(t, err))
}

func TestValidateCreateProject_CountsRunes(t *testing.T) {
	name := strings.Repeat("é", MaxProjectNameLength)
	assert.NoError(t, validateCreateProject(CreateProjectRequest{OwnerID: "u1", Name: name}))
}

func TestValidateUpdateProject(t *testing.T) {
	err := validateUpdateProject(UpdateProjectRequest{})
	assert.Equal(t, []string{"body"}, fieldNames(t, err))

	bad := ProjectStatus("gone")
	err = validateUpdateProject(UpdateProjectRequest{Status: &bad})
	assert.Equal(t, []string{"status"}, fieldNames(t, err))

	name := "renamed"
	assert.NoError(t, validateUpdateProject(UpdateProjectRequest{Name: &name}))
}

func TestValidateUpload(t *testing.T) {
	policy := UploadPolicy{MaxFileSize: 100, AllowedMimeTypes: []string{"image/*"}}

	assert.NoError(t, validateUpload(RequestUploadRequest{FileName: "a.png", ContentType: "image/png", Size: 100}, policy))

	err := validateUpload(RequestUploadRequest{}, policy)
	assert.ElementsMatch(t, []string{"fileName", "contentType"}, fieldNames(t, err))

	err = validateUpload(RequestUploadRequest{FileName: "a.exe", ContentType: "application/x-msdownload", Size: 101}, policy)
	assert.ElementsMatch(t, []string{"contentType", "size"}, fieldNames(t, err))

	err = validateUpload(RequestUploadRequest{FileName: "a.png", ContentType: "image/png", Size: -1}, policy)
	assert.Equal(t, []string{"size"}, fieldNames(t, err))
}
