package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/apresai/talkinghead/internal/history"
	"github.com/apresai/talkinghead/internal/orchestrator"
	"github.com/apresai/talkinghead/internal/tts"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds the JSON request body. Scripts are limited separately.
const maxBodyBytes = 1 << 20

type handlers struct {
	orch    *orchestrator.Orchestrator
	log     *slog.Logger
	service string
	version string
	ffmpeg  bool
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

func statusFor(err error) int {
	var ve *orchestrator.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrBusy):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"service":          h.service,
		"version":          h.version,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"ffmpeg_available": h.ffmpeg,
		"stats":            h.orch.Stats(),
	})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Stats())
}

func (h *handlers) jobs(w http.ResponseWriter, r *http.Request) {
	active := h.orch.DescribeActiveJobs()
	byID := make(map[string]orchestrator.JobInfo, len(active))
	for _, j := range active {
		byID[j.SessionID] = j
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_jobs": byID,
		"count":       len(active),
	})
}

type generateResponse struct {
	Success bool `json:"success"`
	*orchestrator.Result
}

func (h *handlers) generateVideo(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Request body too large or unreadable")
		return
	}

	job, err := h.orch.Admit(r.Context(), payload)
	if err != nil {
		status := statusFor(err)
		h.log.WarnContext(r.Context(), "Request rejected", "status", status, "error", err)
		writeError(w, status, orchestrator.PublicMessage(err))
		return
	}

	res, err := h.orch.Run(r.Context(), job)
	if err != nil {
		writeError(w, statusFor(err), orchestrator.PublicMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Success: true, Result: res})
}

func (h *handlers) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	rec, err := h.orch.JobStatus(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "Job lookup failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "job": rec})
}

func (h *handlers) cleanupVoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "voiceId")
	err := h.orch.CleanupVoice(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Voice deleted", "voice_id": id})
		return
	}

	h.log.WarnContext(r.Context(), "Voice cleanup failed", "voice_id", id, "error", err)
	var apiErr *tts.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400:
		writeError(w, apiErr.StatusCode, "Failed to delete voice")
	case errors.Is(err, tts.ErrCloningUnsupported):
		writeError(w, http.StatusNotImplemented, "Voice cloning is not supported by the configured TTS provider")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to delete voice")
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Endpoint not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
