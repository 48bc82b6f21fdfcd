package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_SessionObserver(t *testing.T) {
	m := New()

	m.Transition("collecting_network", "validating_network")
	m.Transition("collecting_network", "validating_network")
	m.Validation("network", false)
	m.Validation("network", true)
	m.Validation("disk", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionTransitions.WithLabelValues("collecting_network", "validating_network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("network", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("network", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("disk", "pass")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.RecordsSaved.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RecordsSaved))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsSaved))
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v0/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v0/sessions/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v0/sessions/{id}", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "preinstall_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
