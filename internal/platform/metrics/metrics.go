// Package metrics owns the Prometheus collectors exported by the scoring engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the engine collectors. A nil *Registry is valid and records
// nothing, which keeps constructors usable in tests without wiring.
type Registry struct {
	reg *prometheus.Registry

	RecordCacheHits      prometheus.Counter
	RecordCacheMisses    prometheus.Counter
	ExhibitFetchFailures prometheus.Counter
	StaleLoadsDiscarded  prometheus.Counter
	SessionWrites        *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RecordCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onsetscore_record_cache_hits_total",
			Help: "Participant record-set lookups served from cache.",
		}),
		RecordCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onsetscore_record_cache_misses_total",
			Help: "Participant record-set lookups that required a fetch.",
		}),
		ExhibitFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onsetscore_exhibit_fetch_failures_total",
			Help: "Exhibit fetches that failed and were skipped.",
		}),
		StaleLoadsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onsetscore_stale_loads_discarded_total",
			Help: "Asynchronous loads dropped because navigation moved on.",
		}),
		SessionWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onsetscore_session_writes_total",
			Help: "Durable session writes by trigger and result.",
		}, []string{"trigger", "result"}),
	}
	r.reg.MustRegister(
		r.RecordCacheHits,
		r.RecordCacheMisses,
		r.ExhibitFetchFailures,
		r.StaleLoadsDiscarded,
		r.SessionWrites,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Registry) CacheHit() {
	if r != nil {
		r.RecordCacheHits.Inc()
	}
}

func (r *Registry) CacheMiss() {
	if r != nil {
		r.RecordCacheMisses.Inc()
	}
}

func (r *Registry) ExhibitFailed() {
	if r != nil {
		r.ExhibitFetchFailures.Inc()
	}
}

func (r *Registry) StaleDiscarded() {
	if r != nil {
		r.StaleLoadsDiscarded.Inc()
	}
}

func (r *Registry) SessionWrite(trigger string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.SessionWrites.WithLabelValues(trigger, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
