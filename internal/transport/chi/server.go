package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/domain"
	domusage "github.com/kailas-cloud/panelscope/internal/domain/usage"
	healthuc "github.com/kailas-cloud/panelscope/internal/usecase/health"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the retrieval, insight and admin endpoints.
type Server struct {
	resolver      Resolver
	insights      InsightGenerator
	reloader      Reloader
	health        HealthChecker
	usage         UsageReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	resolver Resolver,
	insights InsightGenerator,
	reloader Reloader,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		resolver: resolver,
		insights: insights,
		reloader: reloader,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		filterErrorHandler,
		sentinelHandler(domain.ErrInvalidIntent, http.StatusBadRequest, ErrorCodeInvalidIntent),
		sentinelHandler(domain.ErrReloadFailure, http.StatusServiceUnavailable, ErrorCodeReloadFailed),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, ErrorCodeStoreUnavailable),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, ErrorCodeEmbeddingQuota),
		sentinelHandler(domain.ErrEmbeddingFailure, http.StatusBadGateway, ErrorCodeEmbeddingFailure),
	}
	return s
}

// WithUsage enables GET /v1/usage.
func (s *Server) WithUsage(u UsageReporter) *Server {
	s.usage = u
	return s
}

// Routes mounts the endpoints on r.
func (s *Server) Routes(r gochi.Router) {
	r.Post("/v1/resolve", s.Resolve)
	r.Post("/v1/insights", s.Insights)
	if s.usage != nil {
		r.Get("/v1/usage", s.Usage)
	}
	r.Post("/admin/reload", s.Reload)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Resolve handles POST /v1/resolve.
func (s *Server) Resolve(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := intentFromDTO(req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	set, err := s.resolver.Resolve(r.Context(), in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveToDTO(set))
}

// Insights handles POST /v1/insights.
func (s *Server) Insights(w http.ResponseWriter, r *http.Request) {
	var req InsightsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MinCharts < 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "min_charts must not be negative")
		return
	}
	in, err := intentFromDTO(req.Intent)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	// Charts describe every matching panel; the limit bounds only the returned page.
	population, page, err := s.resolver.ResolvePopulation(r.Context(), in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	specs, err := s.insights.Generate(r.Context(), population.Records, in, req.MinCharts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InsightsResponse{
		Result: resolveToDTO(page),
		Charts: chartsToDTO(specs),
	})
}

// Reload handles POST /admin/reload.
func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	h, err := s.reloader.Reload(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{
		Version: h.Version,
		ID:      h.ID.String(),
		BuiltAt: h.BuiltAt,
	})
}

// Usage handles GET /v1/usage?period=day|month.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, usageToDTO(s.usage.Report(r.Context(), period)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidFilterField,
		domain.ErrInvalidFilterValue,
		domain.ErrInvalidIntent,
		domain.ErrReloadFailure,
		domain.ErrStoreUnavailable,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingFailure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// filterErrorHandler reports the rejected field and value of a structured condition.
func filterErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var fe *domain.FilterError
	if !errors.As(err, &fe) {
		return false
	}
	code := ErrorCodeInvalidFilterValue
	if errors.Is(fe.Err, domain.ErrInvalidFilterField) {
		code = ErrorCodeInvalidFilterField
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    code,
		Message: fe.Error(),
		Field:   fe.Field,
		Value:   fe.Value,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger
	if id := middleware.GetReqID(r.Context()); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}
