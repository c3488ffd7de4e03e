// Package httpapi exposes the submission, scan, and enforcement endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/admission"
	"github.com/openclassifieds/gatekeeper/internal/auth"
	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/scan"
)

type Server struct {
	controller     *admission.Controller
	orchestrator   *scan.Orchestrator
	resolver       ViolationResolver
	notifier       Notifier
	adminEmail     string
	authMiddleware *auth.Middleware
	logger         *logging.Logger
	server         *http.Server
}

func New(controller *admission.Controller, orchestrator *scan.Orchestrator, resolver ViolationResolver, notifier Notifier, adminEmail string, authMiddleware *auth.Middleware, logger *logging.Logger) *Server {
	return &Server{
		controller:     controller,
		orchestrator:   orchestrator,
		resolver:       resolver,
		notifier:       notifier,
		adminEmail:     adminEmail,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// Submission routes (public)
	submitAPI := NewSubmitAPI(s.controller, s.logger)
	submitAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Scan routes (admin); absent in degraded mode without a database
	if s.orchestrator != nil {
		scanAPI := NewScanAPI(s.orchestrator, s.authMiddleware, s.logger)
		scanAPI.RegisterRoutes(mux, s.corsMiddleware)
	}

	// Violation resolution routes (admin)
	if s.resolver != nil && s.notifier != nil {
		violationAPI := NewViolationAPI(s.resolver, s.notifier, s.adminEmail, s.authMiddleware, s.logger)
		violationAPI.RegisterRoutes(mux, s.corsMiddleware)
	}

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already out; nothing useful left to do.
		return
	}
}
