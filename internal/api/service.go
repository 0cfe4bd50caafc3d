// Package api exposes the ledger core over HTTP: one route per core
// operation, bearer-token principal resolution, and a uniform error
// envelope derived from the core error taxonomy.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lohithgsk/medledger/internal/approval"
	"github.com/lohithgsk/medledger/internal/consent"
	"github.com/lohithgsk/medledger/internal/records"
	"github.com/lohithgsk/medledger/pkg/config"
	"github.com/lohithgsk/medledger/pkg/events"
	"github.com/lohithgsk/medledger/pkg/logger"
	"github.com/lohithgsk/medledger/pkg/monitoring"
	"github.com/lohithgsk/medledger/pkg/types"
)

// Service is the HTTP front end over the three core components
type Service struct {
	config   *config.Config
	logger   *logger.Logger
	consent  *consent.Registry
	approval *approval.Workflow
	records  *records.Registry
	eventLog *events.Log
	tokens   *TokenValidator
	metrics  *monitoring.MetricsCollector
	limiter  *RateLimiter
	server   *http.Server
}

// New creates the API service around already-wired core components
func New(cfg *config.Config, log *logger.Logger, consentReg *consent.Registry, workflow *approval.Workflow, recordReg *records.Registry, eventLog *events.Log) *Service {
	var limiter *RateLimiter
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter = NewRateLimiter(cfg.Server.RateLimitPerMinute, time.Minute)
	}

	return &Service{
		config:   cfg,
		logger:   log,
		consent:  consentReg,
		approval: workflow,
		records:  recordReg,
		eventLog: eventLog,
		tokens:   NewTokenValidator(cfg.JWT.SecretKey, 24*time.Hour),
		metrics:  monitoring.NewMetricsCollector("medledger-api"),
		limiter:  limiter,
	}
}

// Router builds the full middleware chain and route table
func (s *Service) Router() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.setupRoutes(router)

	var handler http.Handler = router
	handler = s.rateLimitMiddleware(handler)
	handler = s.authMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.metrics.HTTPMiddleware(handler)
	handler = s.requestIDMiddleware(handler)
	handler = s.securityHeadersMiddleware(handler)
	return handler
}

// Start starts the HTTP server
func (s *Service) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	s.logger.WithField("addr", addr).Info("Starting medledger API")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server
func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping medledger API")
	return s.server.Shutdown(ctx)
}

// callerPrincipal returns the authenticated principal set by the auth
// middleware.
func (s *Service) callerPrincipal(r *http.Request) types.Principal {
	principal, _ := r.Context().Value(principalContextKey).(types.Principal)
	return principal
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response envelope
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.writeJSONResponse(w, statusCode, response)
}

// writeCoreError maps a core error onto an HTTP status by its kind
func (s *Service) writeCoreError(w http.ResponseWriter, err error) {
	s.metrics.RecordCoreError(string(types.ErrorTypeOf(err)))

	statusCode := http.StatusInternalServerError
	switch types.ErrorTypeOf(err) {
	case types.ErrorTypeValidation:
		statusCode = http.StatusBadRequest
	case types.ErrorTypeAuthorization:
		statusCode = http.StatusForbidden
	case types.ErrorTypeNotFound:
		statusCode = http.StatusNotFound
	case types.ErrorTypeConflict:
		statusCode = http.StatusConflict
	case types.ErrorTypeInvalidState:
		statusCode = http.StatusUnprocessableEntity
	}

	response := map[string]interface{}{
		"error":  err.Error(),
		"status": statusCode,
	}
	if le, ok := err.(*types.LedgerError); ok {
		response["error"] = le.Message
		response["code"] = le.Code
		if le.Details != nil {
			response["details"] = le.Details
		}
	}
	s.writeJSONResponse(w, statusCode, response)
}
