package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// ProjectsHandler serves the project endpoints
type ProjectsHandler struct {
	service *projectfiles.Service
	rs      Responder
}

func NewProjectsHandler(service *projectfiles.Service, rs Responder) *ProjectsHandler {
	return &ProjectsHandler{service: service, rs: rs}
}

// Routes returns the router for project endpoints
func (h *ProjectsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListProjects)
	r.Post("/", h.CreateProject)
	r.Get("/{projectID}", h.GetProject)
	r.Patch("/{projectID}", h.UpdateProject)
	r.Delete("/{projectID}", h.DeleteProject)
	return r
}

// CreateProjectBody is the body of POST /projects
type CreateProjectBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateProjectBody is the body of PATCH /projects/{projectID}
type UpdateProjectBody struct {
	Name        *string                     `json:"name"`
	Description *string                     `json:"description"`
	Status      *projectfiles.ProjectStatus `json:"status"`
}

func (h *ProjectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	opts := projectfiles.ListProjectsOptions{
		Limit:  parseLimit(r),
		Cursor: r.URL.Query().Get("lastKey"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := projectfiles.ProjectStatus(raw)
		if !status.Valid() {
			h.rs.Error(w, r, invalidParam("status", "must be one of active, archived, deleted"))
			return
		}
		opts.Status = &status
	}

	page, err := h.service.ListProjects(r.Context(), callerID(r), opts)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, page)
}

func (h *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var body CreateProjectBody
	if err := decodeBody(r, &body); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	project, err := h.service.CreateProject(r.Context(), callerID(r), body.Name, body.Description)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusCreated, project)
}

func (h *ProjectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.service.GetProject(r.Context(), callerID(r), chi.URLParam(r, "projectID"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, project)
}

func (h *ProjectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var body UpdateProjectBody
	if err := decodeBody(r, &body); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	project, err := h.service.UpdateProject(r.Context(), callerID(r), chi.URLParam(r, "projectID"), projectfiles.UpdateProjectRequest{
		Name:        body.Name,
		Description: body.Description,
		Status:      body.Status,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, project)
}

func (h *ProjectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := h.service.DeleteProject(r.Context(), callerID(r), projectID); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, r, http.StatusOK, map[string]any{
		"projectId": projectID,
		"deleted":   true,
	})
}
