// Package metrics holds the Prometheus collectors of the client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Replay results used as the "result" label.
const (
	ResultApplied = "applied"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// SyncMetrics records sync queue activity.
type SyncMetrics struct {
	pending  prometheus.Gauge
	replayed *prometheus.CounterVec
	flushes  prometheus.Counter
}

// NewSyncMetrics registers the sync queue metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subman_sync_pending_operations",
		Help: "Operations waiting in the sync queue.",
	})
	replayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subman_sync_replayed_total",
		Help: "Replayed sync operations by kind and result.",
	}, []string{"kind", "result"})
	flushes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subman_sync_flushes_total",
		Help: "Completed sync queue passes.",
	})
	reg.MustRegister(pending, replayed, flushes)
	return &SyncMetrics{
		pending:  pending,
		replayed: replayed,
		flushes:  flushes,
	}
}

// SetPending reports the current queue length.
func (m *SyncMetrics) SetPending(n int) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}

// ObserveReplay counts one replayed operation.
func (m *SyncMetrics) ObserveReplay(kind, result string) {
	if m == nil || m.replayed == nil {
		return
	}
	m.replayed.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

// IncFlush counts one finished pass.
func (m *SyncMetrics) IncFlush() {
	if m == nil || m.flushes == nil {
		return
	}
	m.flushes.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
