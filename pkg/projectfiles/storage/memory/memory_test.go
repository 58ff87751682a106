package memory

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/project-files/pkg/projectfiles"
)

func TestBackend_PutHeadDelete(t *testing.T) {
	backend := New()
	ctx := context.Background()

	_, err := backend.Head(ctx, "p/f/a.txt")
	assert.ErrorIs(t, err, projectfiles.ErrObjectNotFound)

	backend.Put(ctx, "p/f/a.txt", "text/plain", []byte("hello"))
	meta, err := backend.Head(ctx, "p/f/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", meta.ETag)

	require.NoError(t, backend.Delete(ctx, "p/f/a.txt"))
	require.NoError(t, backend.Delete(ctx, "p/f/a.txt"))
	assert.Equal(t, 0, backend.Len())
}

func TestBackend_PresignUpload(t *testing.T) {
	backend := New()
	before := time.Now().UTC()

	req, err := backend.PresignUpload(context.Background(), projectfiles.PresignUploadInput{
		Key:           "p/f/a.png",
		ContentType:   "image/png",
		ContentLength: 42,
		Metadata:      map[string]string{"file-id": "f"},
		Expires:       15 * time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, int64(900), req.ExpiresIn)
	assert.WithinDuration(t, before.Add(15*time.Minute), req.ExpiresAt, 5*time.Second)
	assert.Equal(t, "image/png", req.Headers["Content-Type"])
	assert.Equal(t, "42", req.Headers["Content-Length"])
	assert.Equal(t, "f", req.Headers["X-Amz-Meta-file-id"])

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "memory", u.Scheme)
	assert.Equal(t, "/p/f/a.png", u.Path)
	assert.Equal(t, "PUT", u.Query().Get("method"))
	assert.Equal(t, strconv.FormatInt(req.ExpiresAt.Unix(), 10), u.Query().Get("expires"))
}

func TestBackend_PresignDownloadDefaultTTL(t *testing.T) {
	backend := New()

	req, err := backend.PresignDownload(context.Background(), projectfiles.PresignDownloadInput{
		Key:      "p/f/a.png",
		Filename: "My Photo.png",
	})
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, int64(projectfiles.DefaultPresignTTL/time.Second), req.ExpiresIn)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "My Photo.png", u.Query().Get("filename"))
}
