// Package metrics holds the Prometheus collectors for the HTTP API, the
// language model backends and evaluation batches.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screener_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route", "method"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_llm_requests_total",
			Help: "Total number of language model requests by provider and status",
		},
		[]string{"provider", "status"},
	)
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screener_llm_request_duration_seconds",
			Help:    "Language model request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"provider"},
	)
	LLMRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_llm_retries_total",
			Help: "Total number of retried language model requests",
		},
		[]string{"provider"},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_evaluations_total",
			Help: "Total number of evaluation batches by final state",
		},
		[]string{"state"},
	)
	CandidatesEvaluatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screener_candidates_evaluated_total",
			Help: "Total number of candidates scored",
		},
	)
	PassFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_pass_failures_total",
			Help: "Scoring passes that fell back to default scores",
		},
		[]string{"pass"},
	)
	OverallScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screener_overall_score",
			Help:    "Distribution of overall candidate scores (0-100)",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

var registerOnce sync.Once

// Register adds all collectors to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			LLMRequestsTotal,
			LLMRequestDuration,
			LLMRetriesTotal,
			EvaluationsTotal,
			CandidatesEvaluatedTotal,
			PassFailuresTotal,
			OverallScoreHistogram,
		)
	})
}

// HTTPMiddleware records Prometheus metrics for each request.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveLLMRequest records one language model call.
func ObserveLLMRequest(provider, status string, d time.Duration) {
	LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	LLMRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveEvaluation records the final state of a batch and its scores.
func ObserveEvaluation(state string, overallScores []float64) {
	EvaluationsTotal.WithLabelValues(state).Inc()
	for _, s := range overallScores {
		CandidatesEvaluatedTotal.Inc()
		if s >= 0 && s <= 100 {
			OverallScoreHistogram.Observe(s)
		}
	}
}

// PassFailed counts a scoring pass that fell back to defaults.
func PassFailed(pass string) {
	PassFailuresTotal.WithLabelValues(pass).Inc()
}
