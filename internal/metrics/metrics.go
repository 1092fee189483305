// Package metrics exposes prometheus counters for request routing, best-effort
// cache writes and lifecycle transitions. A nil *Recorder is valid and records
// nothing, so components can be built without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "offline_edge"

// Recorder groups the collectors registered for one process.
type Recorder struct {
	requests      *prometheus.CounterVec
	writeFailures *prometheus.CounterVec
	precached     prometheus.Counter
	evictions     *prometheus.CounterVec
	activations   *prometheus.CounterVec
}

// NewRecorder registers all collectors on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Intercepted requests by strategy class and response source.",
		}, []string{"class", "source"}),
		writeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_write_failures_total",
			Help:      "Best-effort cache writes that failed and were discarded.",
		}, []string{"namespace"}),
		precached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "precached_entries_total",
			Help:      "Manifest entries stored during activation.",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "namespace_evictions_total",
			Help:      "Stale namespaces deleted at cutover, by result.",
		}, []string{"result"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Activate attempts by result.",
		}, []string{"result"}),
	}

	collectors := []prometheus.Collector{r.requests, r.writeFailures, r.precached, r.evictions, r.activations}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Request counts one intercepted request.
func (r *Recorder) Request(class, source string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(class, source).Inc()
}

// WriteFailed counts a discarded best-effort write.
func (r *Recorder) WriteFailed(ns string) {
	if r == nil {
		return
	}
	r.writeFailures.WithLabelValues(ns).Inc()
}

// Precached adds n stored manifest entries.
func (r *Recorder) Precached(n int) {
	if r == nil {
		return
	}
	r.precached.Add(float64(n))
}

// Eviction counts one cutover deletion attempt.
func (r *Recorder) Eviction(ok bool) {
	if r == nil {
		return
	}
	r.evictions.WithLabelValues(resultLabel(ok)).Inc()
}

// Activation counts one Activate attempt.
func (r *Recorder) Activation(ok bool) {
	if r == nil {
		return
	}
	r.activations.WithLabelValues(resultLabel(ok)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
