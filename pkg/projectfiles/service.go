package projectfiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Service orchestrates the metadata and transfer services for request handlers.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	metadata *MetadataService
	transfer *TransferService

	table      Table
	store      ObjectStore
	presignTTL time.Duration
	policy     UploadPolicy
	eventSink  EventSink
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*Service)

// WithTable sets the metadata table
func WithTable(table Table) Option {
	return func(s *Service) {
		s.table = table
	}
}

// WithObjectStore sets the object store
func WithObjectStore(store ObjectStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithPresignTTL sets the lifetime of signed URLs
func WithPresignTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.presignTTL = ttl
	}
}

// WithUploadPolicy sets the upload size and MIME type limits
func WithUploadPolicy(policy UploadPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (*Service, error) {
	s := &Service{
		policy:    DefaultUploadPolicy(),
		eventSink: NewNoopEventSink(),
		logger:    slog.Default(),
	}

	for _, option := range options {
		option(s)
	}

	if s.table == nil {
		return nil, fmt.Errorf("table is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	s.metadata = NewMetadataService(s.table)
	s.transfer = NewTransferService(s.store, s.presignTTL)
	return s, nil
}

// Metadata exposes the underlying metadata service.
func (s *Service) Metadata() *MetadataService {
	return s.metadata
}

// Transfer exposes the underlying transfer service.
func (s *Service) Transfer() *TransferService {
	return s.transfer
}

// Project operations

func (s *Service) CreateProject(ctx context.Context, ownerID, name, description string) (*Project, error) {
	project, err := s.metadata.CreateProject(ctx, CreateProjectRequest{
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	if err := s.eventSink.ProjectCreated(ctx, project); err != nil {
		s.logger.WarnContext(ctx, "project created event failed", "project_id", project.ProjectID, "err", err)
	}
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, ownerID, projectID string) (*Project, error) {
	return s.metadata.GetProject(ctx, ownerID, projectID)
}

func (s *Service) ListProjects(ctx context.Context, ownerID string, opts ListProjectsOptions) (*ProjectPage, error) {
	return s.metadata.ListProjects(ctx, ownerID, opts)
}

func (s *Service) UpdateProject(ctx context.Context, ownerID, projectID string, req UpdateProjectRequest) (*Project, error) {
	project, err := s.metadata.UpdateProject(ctx, ownerID, projectID, req)
	if err != nil {
		return nil, err
	}

	if err := s.eventSink.ProjectUpdated(ctx, project); err != nil {
		s.logger.WarnContext(ctx, "project updated event failed", "project_id", projectID, "err", err)
	}
	return project, nil
}

// DeleteProject soft-deletes a project. Its files are left untouched.
func (s *Service) DeleteProject(ctx context.Context, ownerID, projectID string) error {
	if err := s.metadata.SoftDeleteProject(ctx, ownerID, projectID); err != nil {
		return err
	}

	if err := s.eventSink.ProjectDeleted(ctx, ownerID, projectID); err != nil {
		s.logger.WarnContext(ctx, "project deleted event failed", "project_id", projectID, "err", err)
	}
	return nil
}

// File operations

func (s *Service) ListFiles(ctx context.Context, ownerID, projectID string, opts ListFilesOptions) (*FilePage, error) {
	if _, err := s.metadata.GetProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.metadata.ListFiles(ctx, projectID, opts)
}

// RequestUpload creates a pending file row and returns a signed upload
// request for it. The row exists before any bytes do; a client that never
// uploads leaves it pending.
func (s *Service) RequestUpload(ctx context.Context, ownerID, projectID string, req RequestUploadRequest) (*UploadTicket, error) {
	if err := validateUpload(req, s.policy); err != nil {
		return nil, err
	}
	if _, err := s.metadata.GetProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	fileID := s.metadata.newID()
	file, err := s.metadata.CreateFileMetadata(ctx, CreateFileMetadataRequest{
		ProjectID:  projectID,
		FileID:     fileID,
		FileName:   req.FileName,
		MimeType:   req.ContentType,
		Size:       req.Size,
		StorageKey: DeriveKey(projectID, fileID, req.FileName),
		UploadedBy: ownerID,
	})
	if err != nil {
		return nil, err
	}

	upload, err := s.transfer.IssueUploadURL(ctx, projectID, fileID, req.FileName, req.ContentType, req.Size)
	if err != nil {
		return nil, &FileError{ProjectID: projectID, FileID: fileID, Op: "request_upload", Err: err}
	}

	if err := s.eventSink.FileUploadRequested(ctx, file); err != nil {
		s.logger.WarnContext(ctx, "upload requested event failed", "file_id", fileID, "err", err)
	}
	return &UploadTicket{File: file, Upload: upload}, nil
}

// DownloadFile returns a signed download request for a live file.
func (s *Service) DownloadFile(ctx context.Context, ownerID, projectID, fileID string) (*DownloadTicket, error) {
	file, err := s.GetFileMetadata(ctx, ownerID, projectID, fileID)
	if err != nil {
		return nil, err
	}

	download, err := s.transfer.IssueDownloadURL(ctx, file.StorageKey, file.OriginalName)
	if err != nil {
		return nil, &FileError{ProjectID: projectID, FileID: fileID, Op: "download", Err: err}
	}
	return &DownloadTicket{File: file, Download: download}, nil
}

// GetFileMetadata returns the row of a live file in a live project.
func (s *Service) GetFileMetadata(ctx context.Context, ownerID, projectID, fileID string) (*File, error) {
	if _, err := s.metadata.GetProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.metadata.GetFile(ctx, projectID, fileID)
}

// ConfirmUpload verifies the object is present and marks the file uploaded.
// If the object is absent the file stays pending and ErrObjectNotUploaded is
// returned. Confirming an uploaded file overwrites the status again and
// re-applies the counter delta.
func (s *Service) ConfirmUpload(ctx context.Context, ownerID, projectID, fileID string) (*File, error) {
	file, err := s.GetFileMetadata(ctx, ownerID, projectID, fileID)
	if err != nil {
		return nil, err
	}

	exists, err := s.transfer.Exists(ctx, file.StorageKey)
	if err != nil {
		return nil, &FileError{ProjectID: projectID, FileID: fileID, Op: "confirm", Err: err}
	}
	if !exists {
		return nil, &FileError{ProjectID: projectID, FileID: fileID, Op: "confirm", Err: ErrObjectNotUploaded}
	}

	file, err = s.metadata.UpdateFileStatus(ctx, projectID, fileID, FileStatusUploaded)
	if err != nil {
		return nil, err
	}

	s.adjustCounters(ctx, "confirm", ownerID, projectID, 1, file.Size)

	if err := s.eventSink.FileUploaded(ctx, file); err != nil {
		s.logger.WarnContext(ctx, "file uploaded event failed", "file_id", fileID, "err", err)
	}
	return file, nil
}

// DeleteFile soft-deletes a live file, or with hard set removes the object
// and the row. Hard delete also purges rows that were already soft-deleted.
func (s *Service) DeleteFile(ctx context.Context, ownerID, projectID, fileID string, hard bool) error {
	if _, err := s.metadata.GetProject(ctx, ownerID, projectID); err != nil {
		return err
	}

	var (
		file *File
		err  error
	)
	if hard {
		file, err = s.metadata.GetFileRow(ctx, projectID, fileID)
	} else {
		file, err = s.metadata.GetFile(ctx, projectID, fileID)
	}
	if err != nil {
		return err
	}
	wasLive := file.Status != FileStatusDeleted

	if hard {
		if err := s.transfer.Delete(ctx, file.StorageKey); err != nil {
			return &FileError{ProjectID: projectID, FileID: fileID, Op: "hard_delete", Err: err}
		}
		if err := s.metadata.HardDeleteFile(ctx, projectID, fileID); err != nil {
			return err
		}
	} else {
		if _, err := s.metadata.SoftDeleteFile(ctx, projectID, fileID); err != nil {
			return err
		}
	}

	if wasLive {
		s.adjustCounters(ctx, "delete", ownerID, projectID, -1, -file.Size)
	}

	if err := s.eventSink.FileDeleted(ctx, file, hard); err != nil {
		s.logger.WarnContext(ctx, "file deleted event failed", "file_id", fileID, "err", err)
	}
	return nil
}

// adjustCounters applies a counter delta on a best-effort basis. Failures are
// logged and counted but never returned, so bookkeeping cannot block the
// primary action.
func (s *Service) adjustCounters(ctx context.Context, op, ownerID, projectID string, fileCountDelta, sizeDelta int64) {
	err := s.metadata.AdjustProjectCounters(ctx, ownerID, projectID, fileCountDelta, sizeDelta)
	if err == nil {
		return
	}
	counterAdjustFailures.WithLabelValues(op).Inc()
	level := slog.LevelWarn
	if errors.Is(err, ErrProjectNotFound) {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "project counter adjustment failed",
		"op", op,
		"owner_id", ownerID,
		"project_id", projectID,
		"file_count_delta", fileCountDelta,
		"size_delta", sizeDelta,
		"err", err,
	)
}
