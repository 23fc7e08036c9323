// Package handler provides the HTTP handlers for the import pipeline.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/csvflow/csvflow/internal/auth"
	"github.com/csvflow/csvflow/internal/core"
	"github.com/csvflow/csvflow/internal/enrich"
	"github.com/csvflow/csvflow/internal/importsvc"
)

// ImportHandler serves the import job endpoints.
type ImportHandler struct {
	svc       *importsvc.Service
	suggester enrich.Suggester
	logger    *slog.Logger
}

// NewImportHandler creates the handler backed by the intake service and the
// suggestion collaborator.
func NewImportHandler(svc *importsvc.Service, suggester enrich.Suggester, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, suggester: suggester, logger: logger}
}

type createJobRequest struct {
	ImporterID  string     `json:"importer_id"`
	FileName    string     `json:"file_name"`
	FilePath    string     `json:"file_path,omitempty"`
	Data        []core.Row `json:"data"`
	InvalidData []core.Row `json:"invalid_data"`
}

type processByKeyRequest struct {
	ImporterKey string         `json:"importer_key"`
	ValidData   []core.Row     `json:"validData"`
	InvalidData []core.Row     `json:"invalidData"`
	User        map[string]any `json:"user,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Create handles POST /api/v1/imports (authenticated, file-based path).
func (h *ImportHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job, err := h.svc.CreateJob(r.Context(), userID, importsvc.CreateJobInput{
		ImporterID:  req.ImporterID,
		FileName:    req.FileName,
		FilePath:    req.FilePath,
		Data:        req.Data,
		InvalidData: req.InvalidData,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, job)
}

// List handles GET /api/v1/imports.
func (h *ImportHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	jobs, err := h.svc.ListJobs(r.Context(), userID, skip, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, jobs)
}

// Get handles GET /api/v1/imports/{jobID}.
func (h *ImportHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	job, err := h.svc.GetJob(r.Context(), userID, chi.URLParam(r, "jobID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

// ProcessByKey handles POST /api/v1/imports/key/process (unauthenticated,
// importer-key-scoped path).
func (h *ImportHandler) ProcessByKey(w http.ResponseWriter, r *http.Request) {
	var req processByKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.ProcessByKey(r.Context(), importsvc.ProcessByKeyInput{
		Key:         req.ImporterKey,
		ValidData:   req.ValidData,
		InvalidData: req.InvalidData,
		User:        req.User,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// SuggestFixes handles POST /api/v1/imports/key/suggest-fixes, a passthrough
// to the rate-limited suggestion collaborator.
func (h *ImportHandler) SuggestFixes(w http.ResponseWriter, r *http.Request) {
	var req enrich.SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.suggester.SuggestFixes(r.Context(), req)
	if err != nil {
		if errors.Is(err, enrich.ErrRateLimited) {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *ImportHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors to status codes. Not-found covers foreign
// ownership too, so enumeration through the API stays impossible.
func (h *ImportHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrFileMissing):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
