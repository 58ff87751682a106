package projectfiles

// CreateProjectRequest contains parameters for creating a project.
// ProjectID defaults to a random UUID.
type CreateProjectRequest struct {
	OwnerID     string
	ProjectID   string
	Name        string
	Description string
}

// UpdateProjectRequest contains the fields to change; nil fields are left as is.
type UpdateProjectRequest struct {
	Name        *string
	Description *string
	Status      *ProjectStatus
}

// CreateFileMetadataRequest contains parameters for creating a pending file row
type CreateFileMetadataRequest struct {
	ProjectID  string
	FileID     string
	FileName   string
	MimeType   string
	Size       int64
	StorageKey string
	UploadedBy string
}

// RequestUploadRequest is the client's description of a file it intends to upload
type RequestUploadRequest struct {
	FileName    string
	ContentType string
	Size        int64
}

// UploadTicket is returned by RequestUpload: the pending row plus the signed request
type UploadTicket struct {
	File   *File             `json:"file"`
	Upload *PresignedRequest `json:"upload"`
}

// DownloadTicket is returned by DownloadFile
type DownloadTicket struct {
	File     *File             `json:"file"`
	Download *PresignedRequest `json:"download"`
}
