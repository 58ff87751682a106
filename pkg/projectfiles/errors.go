package projectfiles

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrProjectNotFound indicates a project is absent or soft-deleted
	ErrProjectNotFound = errors.New("project not found")

	// ErrFileNotFound indicates a file is absent or soft-deleted
	ErrFileNotFound = errors.New("file not found")

	// ErrProjectAlreadyExists indicates a project identity collision on create
	ErrProjectAlreadyExists = errors.New("project already exists")

	// ErrFileAlreadyExists indicates a file identity collision on create
	ErrFileAlreadyExists = errors.New("file already exists")

	// ErrObjectNotUploaded indicates confirm was called before the object reached storage
	ErrObjectNotUploaded = errors.New("file has not been uploaded")

	// ErrItemNotFound is returned by Table implementations for absent rows
	ErrItemNotFound = errors.New("item not found")

	// ErrConditionFailed is returned by Table implementations when a conditional write fails
	ErrConditionFailed = errors.New("conditional check failed")

	// ErrObjectNotFound is returned by ObjectStore implementations for absent objects
	ErrObjectNotFound = errors.New("object not found")

	// ErrThrottled indicates a collaborator rejected the request due to load
	ErrThrottled = errors.New("request throttled")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed, missing or oversized input.
type ValidationError struct {
	Message string
	Fields  []FieldError
	Err     error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ProjectError represents an error related to project operations
type ProjectError struct {
	OwnerID   string
	ProjectID string
	Op        string
	Err       error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("project operation %s failed for project %s (owner %s): %v", e.Op, e.ProjectID, e.OwnerID, e.Err)
}

func (e *ProjectError) Unwrap() error {
	return e.Err
}

// FileError represents an error related to file operations
type FileError struct {
	ProjectID string
	FileID    string
	Op        string
	Err       error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s in project %s: %v", e.Op, e.FileID, e.ProjectID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// StorageError represents a failure of the object store
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TableError represents a failure of the metadata table
type TableError struct {
	Key Key
	Op  string
	Err error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table operation %s failed for %s/%s: %v", e.Op, e.Key.PK, e.Key.SK, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}
