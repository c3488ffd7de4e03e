package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/openclassifieds/gatekeeper/internal/admission"
	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
)

// SubmitAPI handles the public submission and job status endpoints
type SubmitAPI struct {
	controller *admission.Controller
	logger     *logging.Logger
}

// NewSubmitAPI creates a new submission API handler
func NewSubmitAPI(controller *admission.Controller, logger *logging.Logger) *SubmitAPI {
	return &SubmitAPI{controller: controller, logger: logger}
}

// RegisterRoutes registers submission routes on the given mux
func (api *SubmitAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/submissions", corsMiddleware(api.handleSubmit))
	mux.HandleFunc("/api/jobs/", corsMiddleware(api.handleJobStatus))
	mux.HandleFunc("/api/system/stats", corsMiddleware(api.handleStats))
}

func (api *SubmitAPI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var sub models.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	sub.SourceAddr = clientAddr(r)

	outcome, err := api.controller.Admit(r.Context(), &sub)
	if err != nil {
		if errors.Is(err, admission.ErrInvalidSubmission) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		api.logger.Error("admission failed", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if outcome.Status == admission.StatusRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(outcome.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, outcome)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (api *SubmitAPI) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job ID required"})
		return
	}

	result, err := api.controller.JobStatus(r.Context(), jobID)
	if err != nil {
		api.logger.Error("job status lookup failed",
			logging.WithField("job_id", jobID), logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (api *SubmitAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	mode, depth := api.controller.CurrentMode(r.Context())
	immediateMax, queuedMax := api.controller.Capacity()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":          mode,
		"queue_depth":   depth,
		"immediate_max": immediateMax,
		"queued_max":    queuedMax,
	})
}

// clientAddr prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
