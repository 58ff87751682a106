package projectfiles

import (
	"context"
	"time"
)

// Key identifies a row in the metadata table.
type Key struct {
	PK string `json:"pk" dynamodbav:"PK"`
	SK string `json:"sk" dynamodbav:"SK"`
}

// FilterOp is a comparison applied to a string attribute.
type FilterOp int

const (
	FilterEquals FilterOp = iota
	FilterNotEquals
	FilterBeginsWith
)

// Filter is a condition on a single string attribute.
type Filter struct {
	Attribute string
	Op        FilterOp
	Value     string
}

// Query selects rows of one partition in sort-key order.
type Query struct {
	PartitionKey  string
	SortKeyPrefix string

	// Filters are applied after the key-range scan and do not reduce the
	// number of rows read.
	Filters []Filter

	// Limit bounds the number of rows scanned, not returned. Zero means no limit.
	Limit int

	// StartKey resumes a previous query after the given key.
	StartKey *Key
}

// ItemUpdate describes a partial update of an existing row.
type ItemUpdate struct {
	// Set overwrites attributes.
	Set map[string]any

	// Add atomically increments numeric attributes.
	Add map[string]int64

	// Conditions must all hold on the stored row.
	Conditions []Filter
}

// Table defines the interface for the single-table metadata store
type Table interface {
	// GetItem loads the row at key into out. Returns ErrItemNotFound when absent.
	GetItem(ctx context.Context, key Key, out any) error

	// PutItemIfAbsent writes item only if no row with the same key exists.
	// Returns ErrConditionFailed otherwise.
	PutItemIfAbsent(ctx context.Context, item any) error

	// UpdateItem applies update to an existing row and, when out is non-nil,
	// loads the updated row into it. Returns ErrConditionFailed when the row
	// is absent or a condition does not hold.
	UpdateItem(ctx context.Context, key Key, update ItemUpdate, out any) error

	// Query loads matching rows into out (a pointer to a slice) and returns
	// the key to resume from, or nil when the partition is exhausted.
	Query(ctx context.Context, q Query, out any) (*Key, error)

	// DeleteItem removes the row at key. Deleting an absent row is not an error.
	DeleteItem(ctx context.Context, key Key) error
}

// PresignUploadInput contains parameters for a signed upload request
type PresignUploadInput struct {
	Key           string
	ContentType   string
	ContentLength int64
	Metadata      map[string]string
	Expires       time.Duration
}

// PresignDownloadInput contains parameters for a signed download request
type PresignDownloadInput struct {
	Key string

	// Filename forces an attachment Content-Disposition when set.
	Filename string
	Expires  time.Duration
}

// ObjectStore defines the interface for object storage backends
type ObjectStore interface {
	// PresignUpload returns a signed PUT request for objectKey
	PresignUpload(ctx context.Context, input PresignUploadInput) (*PresignedRequest, error)

	// PresignDownload returns a signed GET request for objectKey
	PresignDownload(ctx context.Context, input PresignDownloadInput) (*PresignedRequest, error)

	// Head retrieves object metadata. Returns ErrObjectNotFound when absent.
	Head(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// Delete deletes an object. Deleting an absent object is not an error.
	Delete(ctx context.Context, objectKey string) error
}

// EventSink defines the interface for lifecycle event handling
type EventSink interface {
	ProjectCreated(ctx context.Context, project *Project) error
	ProjectUpdated(ctx context.Context, project *Project) error
	ProjectDeleted(ctx context.Context, ownerID, projectID string) error

	// FileUploadRequested is fired once the pending row exists
	FileUploadRequested(ctx context.Context, file *File) error
	FileUploaded(ctx context.Context, file *File) error
	FileDeleted(ctx context.Context, file *File, hard bool) error
}
