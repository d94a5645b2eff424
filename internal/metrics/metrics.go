// Copyright 2025 TSBot authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus instrumentation for the pipeline's
// stages, generalized from the teacher's per-subsystem metric groups
// (pkg/observability/metrics.go) down to this system's own stages:
// routing, caching, reranking, SQL generation, and the supervisor's
// terminal-node and panic counts. The stage-duration histogram is fed
// only through ObserveStage, which nothing in this module calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram/gauge this system records. A nil
// *Metrics is safe to call methods on — every recorder no-ops — so
// instrumentation can be wired unconditionally and disabled by simply
// not constructing one.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheSize   prometheus.Gauge

	routerConfidence  prometheus.Histogram
	routerFallbacks   prometheus.Counter
	routerUnmatched   prometheus.Counter

	rerankFallbacks prometheus.Counter

	sqlAttempts   *prometheus.HistogramVec
	sqlValidation *prometheus.CounterVec

	supervisorRequests *prometheus.CounterVec
	supervisorPanics   prometheus.Counter
}

// New builds a Metrics instance registered against a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of an individual pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"stage"})

	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache", Name: "hits_total", Help: "Semantic cache hits.",
	})
	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache", Name: "misses_total", Help: "Semantic cache misses.",
	})
	m.cacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "cache", Name: "entries", Help: "Current semantic cache entry count.",
	})

	m.routerConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "router", Name: "confidence", Help: "Best-intent cosine score per request.",
		Buckets: prometheus.LinearBuckets(0, 0.05, 21),
	})
	m.routerFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "router", Name: "planner_fallbacks_total", Help: "Requests routed via the LLM planner fallback.",
	})
	m.routerUnmatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "router", Name: "unmatched_total", Help: "Requests where no route met the confidence threshold.",
	})

	m.rerankFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "rerank", Name: "ce_fallbacks_total", Help: "Rerank passes that fell back from the cross-encoder to retrieval+metadata scoring.",
	})

	m.sqlAttempts = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "sql", Name: "attempts", Help: "Attempts consumed per SQL-engine request.",
		Buckets: []float64{1, 2, 3},
	}, []string{"outcome"})
	m.sqlValidation = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sql", Name: "validation_total", Help: "SQL validation outcomes.",
	}, []string{"result"})

	m.supervisorRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "supervisor", Name: "requests_total", Help: "Supervisor requests by terminal node.",
	}, []string{"node"})
	m.supervisorPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "supervisor", Name: "panics_total", Help: "Node panics recovered at the supervisor boundary.",
	})

	m.registry.MustRegister(
		m.stageDuration, m.cacheHits, m.cacheMisses, m.cacheSize,
		m.routerConfidence, m.routerFallbacks, m.routerUnmatched,
		m.rerankFallbacks, m.sqlAttempts, m.sqlValidation,
		m.supervisorRequests, m.supervisorPanics,
	)
	return m
}

// ObserveStage records how long a named pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCacheHit/RecordCacheMiss track semantic-cache outcomes.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// SetCacheSize reports the cache's current entry count.
func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(n))
}

// RecordRouterDecision logs the winning intent's confidence and whether
// the planner fallback or an unmatched outcome occurred.
func (m *Metrics) RecordRouterDecision(confidence float64, matched, usedPlanner bool) {
	if m == nil {
		return
	}
	m.routerConfidence.Observe(confidence)
	if usedPlanner {
		m.routerFallbacks.Inc()
	}
	if !matched {
		m.routerUnmatched.Inc()
	}
}

// RecordRerankFallback counts a rerank pass that used the
// retrieval+metadata fallback instead of the cross-encoder.
func (m *Metrics) RecordRerankFallback() {
	if m == nil {
		return
	}
	m.rerankFallbacks.Inc()
}

// RecordSQLAttempts logs how many retry attempts an SQL-engine request
// consumed and its outcome ("success" or "exhausted").
func (m *Metrics) RecordSQLAttempts(attempts int, outcome string) {
	if m == nil {
		return
	}
	m.sqlAttempts.WithLabelValues(outcome).Observe(float64(attempts))
}

// RecordSQLValidation logs a validation outcome ("accepted", "rejected").
func (m *Metrics) RecordSQLValidation(result string) {
	if m == nil {
		return
	}
	m.sqlValidation.WithLabelValues(result).Inc()
}

// RecordSupervisorRequest logs the graph's terminal node for one request.
func (m *Metrics) RecordSupervisorRequest(node string) {
	if m == nil {
		return
	}
	m.supervisorRequests.WithLabelValues(node).Inc()
}

// RecordSupervisorPanic logs a node panic recovered at the top level.
func (m *Metrics) RecordSupervisorPanic() {
	if m == nil {
		return
	}
	m.supervisorPanics.Inc()
}

// Handler exposes the registry over HTTP for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
