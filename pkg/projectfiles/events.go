package projectfiles

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ProjectCreated(ctx context.Context, project *Project) error { return nil }

func (n *NoopEventSink) ProjectUpdated(ctx context.Context, project *Project) error { return nil }

func (n *NoopEventSink) ProjectDeleted(ctx context.Context, ownerID, projectID string) error {
	return nil
}

func (n *NoopEventSink) FileUploadRequested(ctx context.Context, file *File) error { return nil }

func (n *NoopEventSink) FileUploaded(ctx context.Context, file *File) error { return nil }

func (n *NoopEventSink) FileDeleted(ctx context.Context, file *File, hard bool) error { return nil }

// LogEventSink writes every lifecycle event to a structured logger
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates an event sink that logs at INFO level
func NewLogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger.With("component", "events")}
}

func (l *LogEventSink) ProjectCreated(ctx context.Context, project *Project) error {
	l.logger.InfoContext(ctx, "project created", "owner_id", project.OwnerID, "project_id", project.ProjectID)
	return nil
}

func (l *LogEventSink) ProjectUpdated(ctx context.Context, project *Project) error {
	l.logger.InfoContext(ctx, "project updated", "owner_id", project.OwnerID, "project_id", project.ProjectID, "status", project.Status)
	return nil
}

func (l *LogEventSink) ProjectDeleted(ctx context.Context, ownerID, projectID string) error {
	l.logger.InfoContext(ctx, "project deleted", "owner_id", ownerID, "project_id", projectID)
	return nil
}

func (l *LogEventSink) FileUploadRequested(ctx context.Context, file *File) error {
	l.logger.InfoContext(ctx, "file upload requested",
		"project_id", file.ProjectID,
		"file_id", file.FileID,
		"storage_key", file.StorageKey,
		"size", file.Size,
	)
	return nil
}

func (l *LogEventSink) FileUploaded(ctx context.Context, file *File) error {
	l.logger.InfoContext(ctx, "file uploaded", "project_id", file.ProjectID, "file_id", file.FileID, "size", file.Size)
	return nil
}

func (l *LogEventSink) FileDeleted(ctx context.Context, file *File, hard bool) error {
	l.logger.InfoContext(ctx, "file deleted", "project_id", file.ProjectID, "file_id", file.FileID, "hard", hard)
	return nil
}
