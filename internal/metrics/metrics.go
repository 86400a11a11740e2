// Package metrics exposes the Prometheus instruments recorded by SOPHIA.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	MessagesTotal          *prometheus.CounterVec
	EscalationsTotal       *prometheus.CounterVec
	RetrievalFallbacks     prometheus.Counter
	HandleMessageDuration  prometheus.Histogram
	TenantCacheLookupTotal *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sophia_messages_total",
			Help: "Chat messages handled, by detected intent",
		}, []string{"intent"}),
		EscalationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sophia_escalations_total",
			Help: "Escalations raised to VictorIA",
		}, []string{"severity", "degraded"}),
		RetrievalFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "sophia_retrieval_fallbacks_total",
			Help: "Remote knowledge searches that fell back to the local corpus",
		}),
		HandleMessageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sophia_handle_message_duration_seconds",
			Help:    "Time spent handling one chat message",
			Buckets: prometheus.DefBuckets,
		}),
		TenantCacheLookupTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sophia_tenant_cache_lookups_total",
			Help: "Tenant agent cache lookups, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) Message(intent string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(intent).Inc()
}

func (m *Metrics) Escalation(severity string, degraded bool) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(severity, strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) RetrievalFallback() {
	if m == nil {
		return
	}
	m.RetrievalFallbacks.Inc()
}

func (m *Metrics) ObserveHandle(start time.Time) {
	if m == nil {
		return
	}
	m.HandleMessageDuration.Observe(time.Since(start).Seconds())
}

// TenantLookup records a tenant cache hit, miss or load failure.
func (m *Metrics) TenantLookup(result string) {
	if m == nil {
		return
	}
	m.TenantCacheLookupTotal.WithLabelValues(result).Inc()
}
