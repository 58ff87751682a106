package projectfiles

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// DefaultPresignTTL is the lifetime of signed URLs when none is configured.
const DefaultPresignTTL = time.Hour

// Object metadata keys attached to uploads for traceability.
const (
	MetaProjectID    = "project-id"
	MetaFileID       = "file-id"
	MetaOriginalName = "original-name"
)

// TransferService derives storage keys and mints signed URLs against an ObjectStore.
type TransferService struct {
	store ObjectStore
	ttl   time.Duration
}

// NewTransferService creates a transfer service. A non-positive ttl selects DefaultPresignTTL.
func NewTransferService(store ObjectStore, ttl time.Duration) *TransferService {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &TransferService{store: store, ttl: ttl}
}

// TTL returns the configured signed URL lifetime.
func (s *TransferService) TTL() time.Duration {
	return s.ttl
}

// DeriveKey returns the storage key {project}/{file}/{sanitized-name}.
func DeriveKey(projectID, fileID, name string) string {
	return projectID + "/" + fileID + "/" + SanitizeFileName(name)
}

// IssueUploadURL returns a signed PUT for the derived key of the file.
// A non-positive size leaves the content length unsigned.
func (s *TransferService) IssueUploadURL(ctx context.Context, projectID, fileID, name, contentType string, size int64) (*PresignedRequest, error) {
	key := DeriveKey(projectID, fileID, name)
	req, err := s.store.PresignUpload(ctx, PresignUploadInput{
		Key:           key,
		ContentType:   contentType,
		ContentLength: size,
		Metadata: map[string]string{
			MetaProjectID:    projectID,
			MetaFileID:       fileID,
			MetaOriginalName: url.QueryEscape(name),
		},
		Expires: s.ttl,
	})
	if err != nil {
		return nil, &StorageError{Key: key, Op: "presign_upload", Err: err}
	}
	return req, nil
}

// IssueDownloadURL returns a signed GET for key. When originalName is set the
// response is served as an attachment under that name.
func (s *TransferService) IssueDownloadURL(ctx context.Context, key, originalName string) (*PresignedRequest, error) {
	req, err := s.store.PresignDownload(ctx, PresignDownloadInput{
		Key:      key,
		Filename: originalName,
		Expires:  s.ttl,
	})
	if err != nil {
		return nil, &StorageError{Key: key, Op: "presign_download", Err: err}
	}
	return req, nil
}

// Exists checks the object store with a HEAD request. Not-found is
// reported as false; any other failure is returned.
func (s *TransferService) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.store.Head(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	return false, &StorageError{Key: key, Op: "head", Err: err}
}

// Delete removes the object at key. Deleting an absent object is not an error.
func (s *TransferService) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return &StorageError{Key: key, Op: "delete", Err: err}
	}
	return nil
}
