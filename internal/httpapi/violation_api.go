package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/openclassifieds/gatekeeper/internal/auth"
	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
	"github.com/openclassifieds/gatekeeper/internal/notify"
)

// ViolationResolver closes out pending violations
type ViolationResolver interface {
	Resolve(ctx context.Context, violationID string, action models.Action, admin, reason string) (*models.ViolationRecord, error)
	ListPending(ctx context.Context, limit int) ([]models.ViolationRecord, error)
}

// Notifier delivers the owner notification for a resolution
type Notifier interface {
	Notify(ctx context.Context, violation *models.ViolationRecord, action models.Action, adminEmail string) (notify.Disposition, error)
}

// ViolationAPI handles the admin enforcement endpoints
type ViolationAPI struct {
	resolver       ViolationResolver
	notifier       Notifier
	adminEmail     string
	authMiddleware *auth.Middleware
	logger         *logging.Logger
}

// NewViolationAPI creates a new violation API handler
func NewViolationAPI(resolver ViolationResolver, notifier Notifier, adminEmail string, authMiddleware *auth.Middleware, logger *logging.Logger) *ViolationAPI {
	return &ViolationAPI{
		resolver:       resolver,
		notifier:       notifier,
		adminEmail:     adminEmail,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

// RegisterRoutes registers violation routes on the given mux
func (api *ViolationAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/violations", corsMiddleware(api.authMiddleware.RequireAuth(api.handleListPending)))
	mux.HandleFunc("/api/violations/", corsMiddleware(api.authMiddleware.RequireAuth(api.handleViolation)))
}

func (api *ViolationAPI) handleListPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	pending, err := api.resolver.ListPending(r.Context(), 100)
	if err != nil {
		api.logger.Error("failed to list pending violations", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if pending == nil {
		pending = []models.ViolationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"violations": pending})
}

func (api *ViolationAPI) handleViolation(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/violations/")
	parts := strings.Split(rest, "/")
	if len(parts) == 2 && parts[1] == "resolve" {
		api.handleResolve(w, r, parts[0])
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

type resolveRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type resolveResponse struct {
	Success      bool                    `json:"success"`
	Violation    *models.ViolationRecord `json:"violation"`
	Notification string                  `json:"notification"`
}

func (api *ViolationAPI) handleResolve(w http.ResponseWriter, r *http.Request, violationID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if violationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "violation ID required"})
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	action := models.Action(req.Action)
	if !models.IsValidAction(action) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action: " + req.Action})
		return
	}

	actor := auth.GetActor(r.Context())
	resolved, err := api.resolver.Resolve(r.Context(), violationID, action, actor.ID, req.Reason)
	if err != nil {
		api.logger.Error("failed to resolve violation",
			logging.WithField("violation_id", violationID),
			logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if resolved == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "violation not found or already resolved"})
		return
	}

	// Notification failure does not roll back the resolution; the audit log
	// records the failed attempt for a later manual retry.
	disposition, err := api.notifier.Notify(r.Context(), resolved, action, api.adminEmail)
	if err != nil {
		api.logger.Error("notification error after resolution",
			logging.WithField("violation_id", violationID),
			logging.WithField("error", err.Error()))
		disposition = notify.DispositionFailed
	}

	api.logger.Info("violation resolved",
		logging.WithField("violation_id", violationID),
		logging.WithField("action", action),
		logging.WithField("admin", actor.ID),
		logging.WithField("reason", req.Reason))

	writeJSON(w, http.StatusOK, resolveResponse{
		Success:      true,
		Violation:    resolved,
		Notification: string(disposition),
	})
}
