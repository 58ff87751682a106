package projectfiles

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MetadataService owns every read and write of project and file rows.
//
// Ordinary reads only ever return live rows: a soft-deleted project or file
// is reported as not found. GetProjectRow and GetFileRow give administrative
// access to rows regardless of status.
type MetadataService struct {
	table Table
	now   func() time.Time
	newID func() string
}

// NewMetadataService creates a metadata service over table.
func NewMetadataService(table Table) *MetadataService {
	return &MetadataService{
		table: table,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Project operations

func (s *MetadataService) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	if err := validateCreateProject(req); err != nil {
		return nil, err
	}
	if req.ProjectID == "" {
		req.ProjectID = s.newID()
	}

	now := s.now()
	key := ProjectKey(req.OwnerID, req.ProjectID)
	project := &Project{
		PK:          key.PK,
		SK:          key.SK,
		EntityType:  EntityTypeProject,
		OwnerID:     req.OwnerID,
		ProjectID:   req.ProjectID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      ProjectStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.table.PutItemIfAbsent(ctx, project); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			err = ErrProjectAlreadyExists
		} else {
			err = &TableError{Key: key, Op: "put", Err: err}
		}
		return nil, &ProjectError{OwnerID: req.OwnerID, ProjectID: req.ProjectID, Op: "create", Err: err}
	}
	return project, nil
}

// GetProject returns a live project.
func (s *MetadataService) GetProject(ctx context.Context, ownerID, projectID string) (*Project, error) {
	project, err := s.GetProjectRow(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status == ProjectStatusDeleted {
		return nil, &ProjectError{OwnerID: ownerID, ProjectID: projectID, Op: "get", Err: ErrProjectNotFound}
	}
	return project, nil
}

// GetProjectRow returns the stored project row, including soft-deleted ones.
func (s *MetadataService) GetProjectRow(ctx context.Context, ownerID, projectID string) (*Project, error) {
	key := ProjectKey(ownerID, projectID)
	var project Project
	if err := s.table.GetItem(ctx, key, &project); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			err = ErrProjectNotFound
		} else {
			err = &TableError{Key: key, Op: "get", Err: err}
		}
		return nil, &ProjectError{OwnerID: ownerID, ProjectID: projectID, Op: "get", Err: err}
	}
	return &project, nil
}

// ListProjects lists an owner's projects. Without an explicit status filter
// deleted projects are excluded.
func (s *MetadataService) ListProjects(ctx context.Context, ownerID string, opts ListProjectsOptions) (*ProjectPage, error) {
	pk := userKeyPrefix + ownerID
	filter := Filter{Attribute: AttrStatus, Op: FilterNotEquals, Value: string(ProjectStatusDeleted)}
	if opts.Status != nil {
		filter = Filter{Attribute: AttrStatus, Op: FilterEquals, Value: string(*opts.Status)}
	}

	items := []*Project{}
	next, err := s.table.Query(ctx, Query{
		PartitionKey:  pk,
		SortKeyPrefix: projectKeyPrefix,
		Filters:       []Filter{filter},
		Limit:         opts.Limit,
		StartKey:      DecodeCursor(opts.Cursor, pk, projectKeyPrefix),
	}, &items)
	if err != nil {
		return nil, &TableError{Key: Key{PK: pk}, Op: "query", Err: err}
	}
	if items == nil {
		items = []*Project{}
	}
	return &ProjectPage{Items: items, Cursor: EncodeCursor(next)}, nil
}

// UpdateProject applies a partial update to a live project and bumps updatedAt.
func (s *MetadataService) UpdateProject(ctx context.Context, ownerID, projectID string, req UpdateProjectRequest) (*Project, error) {
	if err := validateUpdateProject(req); err != nil {
		return nil, err
	}

	set := map[string]any{AttrUpdatedAt: s.now()}
	if req.Name != nil {
		set[AttrName] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		set[AttrDescription] = *req.Description
	}
	if req.Status != nil {
		set[AttrStatus] = *req.Status
	}

	key := ProjectKey(ownerID, projectID)
	var project Project
	err := s.table.UpdateItem(ctx, key, ItemUpdate{
		Set:        set,
		Conditions: []Filter{{Attribute: AttrStatus, Op: FilterNotEquals, Value: string(ProjectStatusDeleted)}},
	}, &project)
	if err != nil {
		if errors.Is(err, ErrConditionFailed) {
			err = ErrProjectNotFound
		} else {
			err = &TableError{Key: key, Op: "update", Err: err}
		}
		return nil, &ProjectError{OwnerID: ownerID, ProjectID: projectID, Op: "update", Err: err}
	}
	return &project, nil
}

// AdjustProjectCounters atomically adds the deltas to the project's counters.
// There is no idempotency key: repeated calls apply repeatedly and the
// counters may go negative.
func (s *MetadataService) AdjustProjectCounters(ctx context.Context, ownerID, projectID string, fileCountDelta, sizeDelta int64) error {
	key := ProjectKey(ownerID, projectID)
	err := s.table.UpdateItem(ctx, key, ItemUpdate{
		Add: map[string]int64{
			AttrFileCount: fileCountDelta,
			AttrTotalSize: sizeDelta,
		},
	}, nil)
	if err != nil {
		if errors.Is(err, ErrConditionFailed) {
			err = ErrProjectNotFound
		} else {
			err = &TableError{Key: key, Op: "add", Err: err}
		}
		return &ProjectError{OwnerID: ownerID, ProjectID: projectID, Op: "adjust_counters", Err: err}
	}
	return nil
}

// SoftDeleteProject marks a live project as deleted.
func (s *MetadataService) SoftDeleteProject(ctx context.Context, ownerID, projectID string) error {
	status := ProjectStatusDeleted
	_, err := s.UpdateProject(ctx, ownerID, projectID, UpdateProjectRequest{Status: &status})
	return err
}

// File operations

// CreateFileMetadata writes a pending file row. The MIME type is stored
// normalized so listings can filter on it.
func (s *MetadataService) CreateFileMetadata(ctx context.Context, req CreateFileMetadataRequest) (*File, error) {
	if req.FileID == "" {
		req.FileID = s.newID()
	}

	now := s.now()
	key := FileKey(req.ProjectID, req.FileID)
	file := &File{
		PK:           key.PK,
		SK:           key.SK,
		EntityType:   EntityTypeFile,
		ProjectID:    req.ProjectID,
		FileID:       req.FileID,
		Name:         SanitizeFileName(req.FileName),
		OriginalName: req.FileName,
		MimeType:     NormalizeMimeType(req.MimeType),
		Extension:    FileExtension(req.FileName),
		Size:         req.Size,
		StorageKey:   req.StorageKey,
		UploadedBy:   req.UploadedBy,
		UploadedAt:   now,
		UpdatedAt:    now,
		Status:       FileStatusPending,
	}

	if err := s.table.PutItemIfAbsent(ctx, file); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			err = ErrFileAlreadyExists
		} else {
			err = &TableError{Key: key, Op: "put", Err: err}
		}
		return nil, &FileError{ProjectID: req.ProjectID, FileID: req.FileID, Op: "create", Err: err}
	}
	return file, nil
}

// GetFile returns a live file.
func (s *MetadataService) GetFile(ctx context.Context, projectID, fileID string) (*File, error) {
	file, err := s.GetFileRow(ctx, projectID, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status == FileStatusDeleted {
		return nil, &FileError{ProjectID: projectID, FileID: fileID, Op: "get", Err: ErrFileNotFound}
	}
	return file, nil
}

// GetFileRow returns the stored file row, including soft-deleted ones.
func (s *MetadataService) GetFileRow(ctx context.Context, projectID, fileID string) (*File, error) {
	key := FileKey(projectID, fileID)
	var file File
	if err := s.table.GetItem(ctx, key, &file); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			err = ErrFileNotFound
		} else {
			err = &TableError{Key: key, Op: "get", Err: err}
		}
		return nil, &FileError{ProjectID: projectID, FileID: fileID, Op: "get", Err: err}
	}
	return &file, nil
}

// ListFiles lists a project's files. Without an explicit status filter
// deleted files are excluded.
func (s *MetadataService) ListFiles(ctx context.Context, projectID string, opts ListFilesOptions) (*FilePage, error) {
	pk := projectKeyPrefix + projectID
	filters := []Filter{{Attribute: AttrStatus, Op: FilterNotEquals, Value: string(FileStatusDeleted)}}
	if opts.Status != nil {
		filters[0] = Filter{Attribute: AttrStatus, Op: FilterEquals, Value: string(*opts.Status)}
	}
	if fileType := NormalizeMimeType(opts.FileType); fileType != "" {
		if strings.Contains(fileType, "/") {
			filters = append(filters, Filter{Attribute: AttrMimeType, Op: FilterEquals, Value: fileType})
		} else {
			filters = append(filters, Filter{Attribute: AttrMimeType, Op: FilterBeginsWith, Value: fileType + "/"})
		}
	}

	items := []*File{}
	next, err := s.table.Query(ctx, Query{
		PartitionKey:  pk,
		SortKeyPrefix: fileKeyPrefix,
		Filters:       filters,
		Limit:         opts.Limit,
		StartKey:      DecodeCursor(opts.Cursor, pk, fileKeyPrefix),
	}, &items)
	if err != nil {
		return nil, &TableError{Key: Key{PK: pk}, Op: "query", Err: err}
	}
	if items == nil {
		items = []*File{}
	}
	return &FilePage{Items: items, Cursor: EncodeCursor(next)}, nil
}

// UpdateFileStatus overwrites the status of an existing file row. No
// transition rules are enforced.
func (s *MetadataService) UpdateFileStatus(ctx context.Context, projectID, fileID string, status FileStatus) (*File, error) {
	if !status.Valid() {
		return nil, &ValidationError{
			Message: "invalid request",
			Fields:  []FieldError{{Field: "status", Message: "must be one of pending, uploaded, deleted"}},
		}
	}

	key := FileKey(projectID, fileID)
	var file File
	err := s.table.UpdateItem(ctx, key, ItemUpdate{
		Set: map[string]any{
			AttrStatus:    status,
			AttrUpdatedAt: s.now(),
		},
	}, &file)
	if err != nil {
		if errors.Is(err, ErrConditionFailed) {
			err = ErrFileNotFound
		} else {
			err = &TableError{Key: key, Op: "update", Err: err}
		}
		return nil, &FileError{ProjectID: projectID, FileID: fileID, Op: "update_status", Err: err}
	}
	return &file, nil
}

// SoftDeleteFile marks a file row as deleted.
func (s *MetadataService) SoftDeleteFile(ctx context.Context, projectID, fileID string) (*File, error) {
	return s.UpdateFileStatus(ctx, projectID, fileID, FileStatusDeleted)
}

// HardDeleteFile removes a file row.
func (s *MetadataService) HardDeleteFile(ctx context.Context, projectID, fileID string) error {
	key := FileKey(projectID, fileID)
	if err := s.table.DeleteItem(ctx, key); err != nil {
		return &FileError{ProjectID: projectID, FileID: fileID, Op: "hard_delete", Err: &TableError{Key: key, Op: "delete", Err: err}}
	}
	return nil
}
