package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := HTTPRequestsTotal.WithLabelValues("/api/sessions/{id}", http.MethodGet, "Not Found")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions/def", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestObserveHelpers(t *testing.T) {
	requests := LLMRequestsTotal.WithLabelValues("stub", "ok")
	before := testutil.ToFloat64(requests)
	ObserveLLMRequest("stub", "ok", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(requests))

	batches := EvaluationsTotal.WithLabelValues("completed")
	candidates := testutil.ToFloat64(CandidatesEvaluatedTotal)
	ObserveEvaluation("completed", []float64{86.67, 50})
	assert.Equal(t, 1.0, testutil.ToFloat64(batches))
	assert.Equal(t, candidates+2, testutil.ToFloat64(CandidatesEvaluatedTotal))

	PassFailed("detailed")
	assert.Equal(t, 1.0, testutil.ToFloat64(PassFailuresTotal.WithLabelValues("detailed")))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()

	Register(reg)
	Register(reg)

	ObserveLLMRequest("stub", "ok", time.Millisecond)
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["screener_llm_requests_total"])
}
