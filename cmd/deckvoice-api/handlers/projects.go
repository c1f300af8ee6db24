package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/deckvoice/deckvoice/internal/observability"
	"github.com/deckvoice/deckvoice/internal/pipeline"
	"github.com/deckvoice/deckvoice/internal/storage"
)

// ProjectHandler handles project-mode requests. Only mounted when the
// service runs with a database.
type ProjectHandler struct {
	logger   *observability.Logger
	projects *storage.ProjectRepository
	runs     *storage.RunRepository
	service  *pipeline.Service
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(logger *observability.Logger, projects *storage.ProjectRepository, runs *storage.RunRepository, service *pipeline.Service) *ProjectHandler {
	return &ProjectHandler{
		logger:   logger,
		projects: projects,
		runs:     runs,
		service:  service,
	}
}

// CreateProjectDTO is the project creation request.
type CreateProjectDTO struct {
	Name string `json:"name"`
}

// SaveRunDTO asks to archive a session run under a project.
type SaveRunDTO struct {
	RunID    string `json:"run_id"`
	Filename string `json:"filename"`
}

// Create handles POST /projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "name is required", "")
		return
	}

	project := &storage.Project{Name: req.Name}
	if err := h.projects.Create(r.Context(), project); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create project")
		h.writeError(w, http.StatusInternalServerError, "could not create project", "")
		return
	}
	h.writeJSON(w, http.StatusCreated, project)
}

// List handles GET /projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list projects")
		h.writeError(w, http.StatusInternalServerError, "could not list projects", "")
		return
	}
	if projects == nil {
		projects = []*storage.Project{}
	}
	h.writeJSON(w, http.StatusOK, projects)
}

// Delete handles DELETE /projects/{projectId}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	err := h.projects.Delete(r.Context(), projectID)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "project not found", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to delete project")
		h.writeError(w, http.StatusInternalServerError, "could not delete project", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveRun handles POST /projects/{projectId}/runs: snapshots a session run
// into the project.
func (h *ProjectHandler) SaveRun(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req SaveRunDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	runID, err := uuid.Parse(req.RunID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid run_id", err.Error())
		return
	}

	if _, err := h.projects.GetByID(r.Context(), projectID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "project not found", "")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to look up project")
		h.writeError(w, http.StatusInternalServerError, "could not save run", "")
		return
	}

	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "run not found in session", "")
		return
	}

	saved := &storage.SavedRun{
		ProjectID:     projectID,
		Filename:      req.Filename,
		Configuration: run.Config,
		Slides:        run.Slides,
	}
	if err := h.runs.Save(r.Context(), saved); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save run")
		h.writeError(w, http.StatusInternalServerError, "could not save run", "")
		return
	}
	h.writeJSON(w, http.StatusCreated, saved)
}

// ListRuns handles GET /projects/{projectId}/runs.
func (h *ProjectHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	runs, err := h.runs.ListByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list saved runs")
		h.writeError(w, http.StatusInternalServerError, "could not list runs", "")
		return
	}
	if runs == nil {
		runs = []*storage.SavedRun{}
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /projects/{projectId}/runs/{savedRunId}.
func (h *ProjectHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	savedRunID, err := uuid.Parse(chi.URLParam(r, "savedRunId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid saved run id", err.Error())
		return
	}

	saved, err := h.runs.GetByID(r.Context(), savedRunID)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "saved run not found", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load saved run")
		h.writeError(w, http.StatusInternalServerError, "could not load run", "")
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

func (h *ProjectHandler) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return uuid.Nil, false
	}
	return projectID, true
}

func (h *ProjectHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *ProjectHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
