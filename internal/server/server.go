// Package server exposes the run submission and status HTTP surface.
//
// Routes:
//
//	POST /runs               → submit resume + intent, returns {runId}
//	GET  /runs/{id}          → run status
//	GET  /runs/{id}/results  → persisted result rows of a delivered run
//	GET  /providers          → provider health
//	POST /providers/reset    → clear the scraping provider's blocked state
//	GET  /health             → liveness probe with queue depth
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/provider"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/store"
)

const maxUploadBytes = 10 << 20

var allowedResumeExts = map[string]bool{
	".pdf": true,
	".txt": true,
}

// RunStore is the persistence surface the handler needs.
type RunStore interface {
	CreateRun(ctx context.Context, run *matching.JobMatchRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*matching.JobMatchRun, error)
	ListResults(ctx context.Context, runID uuid.UUID) ([]store.RunResult, error)
}

// Enqueuer hands accepted runs to the pipeline worker and reports the
// backlog waiting for it.
type Enqueuer interface {
	Enqueue(ctx context.Context, runID uuid.UUID) error
	Depth(ctx context.Context) (int64, error)
}

// Resettable clears a provider's sticky blocked state.
type Resettable interface {
	Reset()
}

// Handler holds shared dependencies for the HTTP surface.
type Handler struct {
	runs      RunStore
	queue     Enqueuer
	uploadDir string
	logger    *zap.Logger

	providers  []provider.JobProvider
	resettable Resettable
}

func NewHandler(runs RunStore, queue Enqueuer, uploadDir string, logger *zap.Logger) *Handler {
	return &Handler{
		runs:      runs,
		queue:     queue,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// SetProviders exposes the live provider instances on the admin routes. The
// reset endpoint only works against the running service because the breaker
// state lives in this process.
func (h *Handler) SetProviders(providers []provider.JobProvider, resettable Resettable) {
	h.providers = providers
	h.resettable = resettable
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/runs", h.handleRuns)
	mux.HandleFunc("/runs/", h.handleRunByID)
	mux.HandleFunc("/providers", h.handleProviders)
	mux.HandleFunc("/providers/reset", h.handleProviderReset)
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type providerStatus struct {
		Name    string `json:"name"`
		Healthy bool   `json:"healthy"`
		Message string `json:"message"`
	}

	statuses := make([]providerStatus, 0, len(h.providers))
	for _, p := range h.providers {
		status := p.GetStatus()
		statuses = append(statuses, providerStatus{
			Name:    p.Name(),
			Healthy: status.Healthy,
			Message: status.Message,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"providers": statuses})
}

func (h *Handler) handleProviderReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.resettable == nil {
		jsonError(w, "no resettable provider configured", http.StatusNotFound)
		return
	}

	h.resettable.Reset()
	h.logger.Info("scraping provider reset via admin endpoint")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if depth, err := h.queue.Depth(r.Context()); err != nil {
		h.logger.Warn("queue depth unavailable", zap.Error(err))
	} else {
		resp["queueDepth"] = depth
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.submitRun(w, r)
}

// submitRun validates the multipart submission, stores the resume upload,
// creates the run in the queued state, and enqueues it.
func (h *Handler) submitRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	userID := strings.TrimSpace(r.Header.Get("x-user-id"))
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusBadRequest)
		return
	}

	intentText := strings.TrimSpace(r.FormValue("intent_text"))
	if intentText == "" {
		jsonError(w, "intent_text is required", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" || !strings.Contains(email, "@") {
		jsonError(w, "a valid email is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("resume")
	if err != nil {
		jsonError(w, "resume file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedResumeExts[ext] {
		jsonError(w, fmt.Sprintf("unsupported resume format %q, use .pdf or .txt", ext), http.StatusBadRequest)
		return
	}

	runID := uuid.New()
	resumePath := filepath.Join(h.uploadDir, runID.String()+ext)
	if err := saveUpload(file, resumePath); err != nil {
		h.logger.Error("failed to store resume upload", zap.Error(err))
		jsonError(w, "could not store resume upload", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	run := &matching.JobMatchRun{
		ID:          runID,
		UserID:      userID,
		IntentText:  intentText,
		Preferences: strings.TrimSpace(r.FormValue("preferences")),
		ResumePath:  resumePath,
		Email:       email,
		Status:      matching.RunQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.runs.CreateRun(r.Context(), run); err != nil {
		h.logger.Error("failed to create run", zap.Error(err))
		jsonError(w, "could not create run", http.StatusInternalServerError)
		return
	}

	if err := h.queue.Enqueue(r.Context(), runID); err != nil {
		// The run row exists; the scheduler requeues stranded runs.
		h.logger.Error("failed to enqueue run", zap.String("run_id", runID.String()), zap.Error(err))
	}

	h.logger.Info("run submitted",
		zap.String("run_id", runID.String()),
		zap.String("user_id", userID),
	)

	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID.String()})
}

func (h *Handler) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse /runs/{id} or /runs/{id}/results
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 && !(len(parts) == 3 && parts[2] == "results") {
		jsonError(w, "not found", http.StatusNotFound)
		return
	}

	runID, err := uuid.Parse(parts[1])
	if err != nil {
		jsonError(w, "invalid run id", http.StatusBadRequest)
		return
	}

	if len(parts) == 3 {
		h.getResults(w, r, runID)
		return
	}
	h.getStatus(w, r, runID)
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request, runID uuid.UUID) {
	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			jsonError(w, "run not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load run", zap.Error(err))
		jsonError(w, "could not load run", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"status":    run.Status,
		"jobsFound": run.JobsFound,
	}
	if run.Error != "" {
		resp["errorMessage"] = run.Error
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getResults(w http.ResponseWriter, r *http.Request, runID uuid.UUID) {
	if _, err := h.runs.GetRun(r.Context(), runID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			jsonError(w, "run not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load run", zap.Error(err))
		jsonError(w, "could not load run", http.StatusInternalServerError)
		return
	}

	results, err := h.runs.ListResults(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to load results", zap.Error(err))
		jsonError(w, "could not load results", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
