package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// panelRouter mirrors the public routes. Requests carrying "X-Reject" are
// refused before routing, the way bearer auth refuses them.
func panelRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Reject") != "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/v1/resolve", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"records":[]}`))
	})
	r.Post("/v1/insights", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	r.Post("/admin/reload", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Get("/health", func(http.ResponseWriter, *http.Request) {})
	return r
}

func serve(h http.Handler, method, path string, reject bool) {
	req := httptest.NewRequest(method, path, http.NoBody)
	if reject {
		req.Header.Set("X-Reject", "1")
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestMiddleware_CountsByRoute(t *testing.T) {
	h := panelRouter()

	tests := []struct {
		name   string
		method string
		path   string
		reject bool
		route  string
		status string
	}{
		{"resolve ok", "POST", "/v1/resolve", false, "/v1/resolve", "200"},
		{"insights invalid intent", "POST", "/v1/insights", false, "/v1/insights", "422"},
		{"reload failure", "POST", "/admin/reload", false, "/admin/reload", "503"},
		{"health writes nothing", "GET", "/health", false, "/health", "200"},
		{"reload rejected before routing", "POST", "/admin/reload", true, "/admin/reload", "401"},
		{"unknown path", "GET", "/v1/panels/123", false, unmatchedRoute, "404"},
		{"unknown path rejected", "GET", "/v1/panels/123", true, unmatchedRoute, "401"},
		{"wrong method", "GET", "/v1/resolve", false, unmatchedRoute, "405"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			counter := httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status)
			before := testutil.ToFloat64(counter)

			serve(h, tc.method, tc.path, tc.reject)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("requests_total{%s %s %s} grew by %v, want 1", tc.method, tc.route, tc.status, got)
			}
		})
	}
}

func TestMiddleware_ObservesDuration(t *testing.T) {
	serve(panelRouter(), "POST", "/v1/resolve", false)

	if n := testutil.CollectAndCount(httpRequestDuration); n == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	var during float64
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/insights", func(http.ResponseWriter, *http.Request) {
		during = testutil.ToFloat64(httpRequestsInFlight)
	})

	before := testutil.ToFloat64(httpRequestsInFlight)
	serve(r, "POST", "/v1/insights", false)

	if during != before+1 {
		t.Errorf("in flight while serving = %v, want %v", during, before+1)
	}
	if after := testutil.ToFloat64(httpRequestsInFlight); after != before {
		t.Errorf("in flight after = %v, want %v", after, before)
	}
}

func TestMiddleware_WithoutRouter(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	counter := httpRequestsTotal.WithLabelValues("GET", unmatchedRoute, "418")
	before := testutil.ToFloat64(counter)

	serve(h, "GET", "/bare", false)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("unrouted request counted %v times under %q, want 1", got, unmatchedRoute)
	}
}
