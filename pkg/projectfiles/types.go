package projectfiles

import (
	"time"
)

// ProjectStatus is the domain type for project lifecycle states.
type ProjectStatus string

// Project status constants (typed).
const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
	ProjectStatusDeleted  ProjectStatus = "deleted"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusArchived, ProjectStatusDeleted:
		return true
	}
	return false
}

// FileStatus is the domain type for file lifecycle states.
type FileStatus string

// File status constants (typed).
const (
	FileStatusPending  FileStatus = "pending"
	FileStatusUploaded FileStatus = "uploaded"
	FileStatusDeleted  FileStatus = "deleted"
)

// Valid reports whether s is a known file status.
func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusPending, FileStatusUploaded, FileStatusDeleted:
		return true
	}
	return false
}

// Entity type markers stored on every row.
const (
	EntityTypeProject = "project"
	EntityTypeFile    = "file"
)

// Key prefixes of the single-table layout.
//
//	Project: PK=USER#{owner}      SK=PROJECT#{project}
//	File:    PK=PROJECT#{project} SK=FILE#{file}
const (
	userKeyPrefix    = "USER#"
	projectKeyPrefix = "PROJECT#"
	fileKeyPrefix    = "FILE#"
)

// Attribute names used in filters and updates.
const (
	AttrStatus      = "status"
	AttrMimeType    = "mimeType"
	AttrName        = "name"
	AttrDescription = "description"
	AttrUpdatedAt   = "updatedAt"
	AttrFileCount   = "fileCount"
	AttrTotalSize   = "totalSize"
)

// Field limits.
const (
	MaxProjectNameLength        = 100
	MaxProjectDescriptionLength = 500
	MaxFileNameLength           = 255
)

// Project is a user-owned container of files.
type Project struct {
	PK          string        `json:"-" dynamodbav:"PK"`
	SK          string        `json:"-" dynamodbav:"SK"`
	EntityType  string        `json:"-" dynamodbav:"entityType"`
	OwnerID     string        `json:"ownerId" dynamodbav:"ownerId"`
	ProjectID   string        `json:"projectId" dynamodbav:"projectId"`
	Name        string        `json:"name" dynamodbav:"name"`
	Description string        `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Status      ProjectStatus `json:"status" dynamodbav:"status"`
	FileCount   int64         `json:"fileCount" dynamodbav:"fileCount"`
	TotalSize   int64         `json:"totalSize" dynamodbav:"totalSize"`
	CreatedAt   time.Time     `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt" dynamodbav:"updatedAt"`
}

// File is the metadata row of a stored object.
type File struct {
	PK           string     `json:"-" dynamodbav:"PK"`
	SK           string     `json:"-" dynamodbav:"SK"`
	EntityType   string     `json:"-" dynamodbav:"entityType"`
	ProjectID    string     `json:"projectId" dynamodbav:"projectId"`
	FileID       string     `json:"fileId" dynamodbav:"fileId"`
	Name         string     `json:"name" dynamodbav:"name"`
	OriginalName string     `json:"originalName" dynamodbav:"originalName"`
	MimeType     string     `json:"mimeType" dynamodbav:"mimeType"`
	Extension    string     `json:"extension" dynamodbav:"extension"`
	Size         int64      `json:"size" dynamodbav:"size"`
	StorageKey   string     `json:"storageKey" dynamodbav:"storageKey"`
	UploadedBy   string     `json:"uploadedBy" dynamodbav:"uploadedBy"`
	UploadedAt   time.Time  `json:"uploadedAt" dynamodbav:"uploadedAt"`
	UpdatedAt    time.Time  `json:"updatedAt" dynamodbav:"updatedAt"`
	Status       FileStatus `json:"status" dynamodbav:"status"`
}

// ProjectKey returns the table key of a project row.
func ProjectKey(ownerID, projectID string) Key {
	return Key{PK: userKeyPrefix + ownerID, SK: projectKeyPrefix + projectID}
}

// FileKey returns the table key of a file row.
func FileKey(projectID, fileID string) Key {
	return Key{PK: projectKeyPrefix + projectID, SK: fileKeyPrefix + fileID}
}

// ListProjectsOptions controls project listing. A nil Status excludes deleted rows.
type ListProjectsOptions struct {
	Status *ProjectStatus
	Limit  int
	Cursor string
}

// ListFilesOptions controls file listing. FileType is either a full MIME type
// ("image/png") or a MIME family ("image").
type ListFilesOptions struct {
	FileType string
	Status   *FileStatus
	Limit    int
	Cursor   string
}

// ProjectPage is one page of a project listing. Cursor is empty on the last page.
type ProjectPage struct {
	Items  []*Project `json:"items"`
	Cursor string     `json:"lastKey,omitempty"`
}

// FilePage is one page of a file listing. Cursor is empty on the last page.
type FilePage struct {
	Items  []*File `json:"items"`
	Cursor string  `json:"lastKey,omitempty"`
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// PresignedRequest is a time-limited request the client performs directly
// against the object store.
type PresignedRequest struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresIn int64             `json:"expiresIn"`
	ExpiresAt time.Time         `json:"expiresAt"`
}
