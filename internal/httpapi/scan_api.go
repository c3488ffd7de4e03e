package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/openclassifieds/gatekeeper/internal/auth"
	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/scan"
)

// ScanAPI handles admin-triggered scans and report retrieval
type ScanAPI struct {
	orchestrator   *scan.Orchestrator
	authMiddleware *auth.Middleware
	logger         *logging.Logger
}

// NewScanAPI creates a new scan API handler
func NewScanAPI(orchestrator *scan.Orchestrator, authMiddleware *auth.Middleware, logger *logging.Logger) *ScanAPI {
	return &ScanAPI{orchestrator: orchestrator, authMiddleware: authMiddleware, logger: logger}
}

// RegisterRoutes registers scan routes on the given mux
func (api *ScanAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/scans", corsMiddleware(api.authMiddleware.RequireAuth(api.handleRunScan)))
	mux.HandleFunc("/api/scans/latest", corsMiddleware(api.authMiddleware.RequireAuth(api.handleLatestReport)))
}

type runScanRequest struct {
	Mode   string      `json:"mode"`
	Params scan.Params `json:"params"`
}

func (api *ScanAPI) handleRunScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req runScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Mode == "" {
		req.Mode = string(scan.ModeIncremental)
	}

	actor := auth.GetActor(r.Context())
	api.logger.Info("admin scan requested",
		logging.WithField("admin", actor.ID),
		logging.WithField("mode", req.Mode))

	report, err := api.orchestrator.Run(r.Context(), scan.Mode(req.Mode), req.Params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (api *ScanAPI) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	report, err := api.orchestrator.Latest(r.Context())
	if err != nil {
		api.logger.Error("failed to load latest report", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scan report available"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
