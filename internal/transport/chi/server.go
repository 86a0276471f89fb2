package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	logpkg "github.com/kailas-cloud/eslayer/internal/logger"
	healthuc "github.com/kailas-cloud/eslayer/internal/usecase/health"
	resourcesuc "github.com/kailas-cloud/eslayer/internal/usecase/resources"
)

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeInvalidSchema      = "invalid_schema"
	CodeProvisioningFailed = "provisioning_failed"
	CodeBackendUnavailable = "backend_unavailable"
	CodeInternalError      = "internal_error"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TargetResponse describes where a resource's documents live.
type TargetResponse struct {
	Resource string `json:"resource"`
	Source   string `json:"source"`
	Index    string `json:"index"`
	Type     string `json:"type,omitempty"`
	Shared   bool   `json:"shared"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Missing []string          `json:"missing_indexes,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the admin API.
type Server struct {
	resources     *resourcesuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an admin API server.
func NewServer(resources *resourcesuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		resources: resources,
		health:    health,
		logger:    logger,
	}
	// Unavailability is checked first: provisioning errors may wrap it.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnavailable, http.StatusServiceUnavailable, CodeBackendUnavailable),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, CodeInvalidSchema),
		sentinelHandler(domain.ErrProvisioning, http.StatusBadGateway, CodeProvisioningFailed),
	}
	return s
}

// Mount registers the admin routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1/resources", func(r chi.Router) {
		r.Get("/", s.ListResources)
		r.Get("/{name}", s.GetResource)
		r.Get("/{name}/mapping", s.GetMapping)
		r.Post("/{name}/index", s.EnsureIndex)
	})
}

// ListResources handles GET /v1/resources.
func (s *Server) ListResources(w http.ResponseWriter, _ *http.Request) {
	targets := s.resources.List()
	items := make([]TargetResponse, len(targets))
	for i, t := range targets {
		items[i] = targetToResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetResource handles GET /v1/resources/{name}.
func (s *Server) GetResource(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resourceName(w, r)
	if !ok {
		return
	}
	t, err := s.resources.Resolve(name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, targetToResponse(t))
}

// GetMapping handles GET /v1/resources/{name}/mapping.
func (s *Server) GetMapping(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resourceName(w, r)
	if !ok {
		return
	}
	raw, err := s.resources.Mapping(name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// EnsureIndex handles POST /v1/resources/{name}/index.
func (s *Server) EnsureIndex(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resourceName(w, r)
	if !ok {
		return
	}
	if err := s.resources.Ensure(r.Context(), name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	t, err := s.resources.Resolve(name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, targetToResponse(t))
}

// HealthCheck handles GET /healthz. Missing indexes degrade the report but
// keep 200, since they are created on first write.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Missing: report.Missing,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func targetToResponse(t resource.Target) TargetResponse {
	return TargetResponse{
		Resource: t.Resource,
		Source:   t.Source,
		Index:    t.Index,
		Type:     t.Type,
		Shared:   t.Shared,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnavailable,
		domain.ErrNotFound,
		domain.ErrInvalidSchema,
		domain.ErrProvisioning,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.String("resource", chi.URLParam(r, "name")), zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
