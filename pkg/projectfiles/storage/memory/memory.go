package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tendant/project-files/pkg/projectfiles"
)

type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of projectfiles.ObjectStore.
// Signed requests carry memory:// URLs that no client can follow; tests
// simulate the upload with Put.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Put stores an object as if a client had completed a signed upload
func (b *Backend) Put(ctx context.Context, objectKey, contentType string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = object{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		metadata:    map[string]string{},
		updatedAt:   time.Now().UTC(),
	}
}

func (b *Backend) PresignUpload(ctx context.Context, in projectfiles.PresignUploadInput) (*projectfiles.PresignedRequest, error) {
	req := signed("PUT", in.Key, in.Expires, nil)
	if in.ContentType != "" {
		req.Headers["Content-Type"] = in.ContentType
	}
	if in.ContentLength > 0 {
		req.Headers["Content-Length"] = strconv.FormatInt(in.ContentLength, 10)
	}
	for k, v := range in.Metadata {
		req.Headers["X-Amz-Meta-"+k] = v
	}
	return req, nil
}

func (b *Backend) PresignDownload(ctx context.Context, in projectfiles.PresignDownloadInput) (*projectfiles.PresignedRequest, error) {
	var extra url.Values
	if in.Filename != "" {
		extra = url.Values{"filename": {in.Filename}}
	}
	return signed("GET", in.Key, in.Expires, extra), nil
}

// Head retrieves metadata for an object in memory
func (b *Backend) Head(ctx context.Context, objectKey string) (*projectfiles.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, projectfiles.ErrObjectNotFound
	}

	sum := md5.Sum(obj.data)
	meta := &projectfiles.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
		ETag:        hex.EncodeToString(sum[:]),
		Metadata:    make(map[string]string, len(obj.metadata)),
	}
	for k, v := range obj.metadata {
		meta.Metadata[k] = v
	}
	return meta, nil
}

// Delete deletes an object; absent keys are ignored like S3 does
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, objectKey)
	return nil
}

// Len returns the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func signed(method, objectKey string, expires time.Duration, extra url.Values) *projectfiles.PresignedRequest {
	if expires <= 0 {
		expires = projectfiles.DefaultPresignTTL
	}
	expiresAt := time.Now().UTC().Add(expires)

	query := url.Values{}
	for k, v := range extra {
		query[k] = v
	}
	query.Set("method", method)
	query.Set("expires", strconv.FormatInt(expiresAt.Unix(), 10))

	u := url.URL{Scheme: "memory", Path: "/" + objectKey, RawQuery: query.Encode()}
	return &projectfiles.PresignedRequest{
		URL:       u.String(),
		Method:    method,
		Headers:   map[string]string{},
		ExpiresIn: int64(expires / time.Second),
		ExpiresAt: expiresAt,
	}
}
