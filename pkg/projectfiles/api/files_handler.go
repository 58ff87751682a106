package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// FilesHandler serves the file endpoints of a project
type FilesHandler struct {
	service *projectfiles.Service
	rs      Responder
}

func NewFilesHandler(service *projectfiles.Service, rs Responder) *FilesHandler {
	return &FilesHandler{service: service, rs: rs}
}

// Routes returns the router for file endpoints, mounted under a project
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListFiles)
	r.Post("/", h.RequestUpload)
	r.Get("/{fileID}", h.DownloadFile)
	r.Get("/{fileID}/metadata", h.GetFileMetadata)
	r.Post("/{fileID}/confirm", h.ConfirmUpload)
	r.Delete("/{fileID}", h.DeleteFile)
	return r
}

// RequestUploadBody is the body of POST /projects/{projectID}/files
type RequestUploadBody struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := projectfiles.ListFilesOptions{
		FileType: query.Get("fileType"),
		Limit:    parseLimit(r),
		Cursor:   query.Get("lastKey"),
	}
	if raw := query.Get("status"); raw != "" {
		status := projectfiles.FileStatus(raw)
		if !status.Valid() {
			h.rs.Error(w, r, invalidParam("status", "must be one of pending, uploaded, deleted"))
			return
		}
		opts.Status = &status
	}

	page, err := h.service.ListFiles(r.Context(), callerID(r), chi.URLParam(r, "projectID"), opts)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, page)
}

func (h *FilesHandler) RequestUpload(w http.ResponseWriter, r *http.Request) {
	var body RequestUploadBody
	if err := decodeBody(r, &body); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	ticket, err := h.service.RequestUpload(r.Context(), callerID(r), chi.URLParam(r, "projectID"), projectfiles.RequestUploadRequest{
		FileName:    body.FileName,
		ContentType: body.ContentType,
		Size:        body.Size,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusCreated, ticket)
}

func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.DownloadFile(r.Context(), callerID(r), chi.URLParam(r, "projectID"), chi.URLParam(r, "fileID"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, ticket)
}

func (h *FilesHandler) GetFileMetadata(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.GetFileMetadata(r.Context(), callerID(r), chi.URLParam(r, "projectID"), chi.URLParam(r, "fileID"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, file)
}

func (h *FilesHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.ConfirmUpload(r.Context(), callerID(r), chi.URLParam(r, "projectID"), chi.URLParam(r, "fileID"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, file)
}

// DeleteFile soft-deletes by default; ?hard=true removes the object and row.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	hard := false
	if raw := r.URL.Query().Get("hard"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.rs.Error(w, r, invalidParam("hard", "must be true or false"))
			return
		}
		hard = parsed
	}

	fileID := chi.URLParam(r, "fileID")
	if err := h.service.DeleteFile(r.Context(), callerID(r), chi.URLParam(r, "projectID"), fileID, hard); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, map[string]any{
		"fileId":  fileID,
		"deleted": true,
		"hard":    hard,
	})
}
