package projectfiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore records the last presign input and returns canned errors
type stubStore struct {
	upload   PresignUploadInput
	download PresignDownloadInput
	headErr  error
	delErr   error
}

func (s *stubStore) PresignUpload(ctx context.Context, in PresignUploadInput) (*PresignedRequest, error) {
	s.upload = in
	return &PresignedRequest{URL: "https://example.test/" + in.Key, Method: "PUT", ExpiresIn: int64(in.Expires / time.Second)}, nil
}

func (s *stubStore) PresignDownload(ctx context.Context, in PresignDownloadInput) (*PresignedRequest, error) {
	s.download = in
	return &PresignedRequest{URL: "https://example.test/" + in.Key, Method: "GET", ExpiresIn: int64(in.Expires / time.Second)}, nil
}

func (s *stubStore) Head(ctx context.Context, key string) (*ObjectMeta, error) {
	if s.headErr != nil {
		return nil, s.headErr
	}
	return &ObjectMeta{Key: key}, nil
}

func (s *stubStore) Delete(ctx context.Context, key string) error {
	return s.delErr
}

func TestDeriveKey(t *testing.T) {
	assert.Equal(t, "p1/f1/my_file.txt", DeriveKey("p1", "f1", "My File.txt"))
	assert.Equal(t, "p1/f1/file", DeriveKey("p1", "f1", ""))
}

func TestNewTransferService_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultPresignTTL, NewTransferService(&stubStore{}, 0).TTL())
	assert.Equal(t, time.Minute, NewTransferService(&stubStore{}, time.Minute).TTL())
}

func TestIssueUploadURL(t *testing.T) {
	store := &stubStore{}
	svc := NewTransferService(store, 30*time.Minute)

	req, err := svc.IssueUploadURL(context.Background(), "p1", "f1", "Résumé Final.pdf", "application/pdf", 1234)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), req.ExpiresIn)

	in := store.upload
	assert.Equal(t, "p1/f1/r_sum__final.pdf", in.Key)
	assert.Equal(t, "application/pdf", in.ContentType)
	assert.Equal(t, int64(1234), in.ContentLength)
	assert.Equal(t, 30*time.Minute, in.Expires)
	assert.Equal(t, "p1", in.Metadata[MetaProjectID])
	assert.Equal(t, "f1", in.Metadata[MetaFileID])
	assert.Equal(t, "R%C3%A9sum%C3%A9+Final.pdf", in.Metadata[MetaOriginalName])
}

func TestIssueDownloadURL(t *testing.T) {
	store := &stubStore{}
	svc := NewTransferService(store, 0)

	_, err := svc.IssueDownloadURL(context.Background(), "p1/f1/a.txt", "A.txt")
	require.NoError(t, err)
	assert.Equal(t, "A.txt", store.download.Filename)
	assert.Equal(t, DefaultPresignTTL, store.download.Expires)
}

func TestExists(t *testing.T) {
	ctx := context.Background()

	exists, err := NewTransferService(&stubStore{}, 0).Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = NewTransferService(&stubStore{headErr: ErrObjectNotFound}, 0).Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	boom := errors.New("boom")
	_, err = NewTransferService(&stubStore{headErr: boom}, 0).Exists(ctx, "k")
	assert.ErrorIs(t, err, boom)
	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, NewTransferService(&stubStore{delErr: ErrObjectNotFound}, 0).Delete(ctx, "k"))

	boom := errors.New("boom")
	err := NewTransferService(&stubStore{delErr: boom}, 0).Delete(ctx, "k")
	assert.ErrorIs(t, err, boom)
}
