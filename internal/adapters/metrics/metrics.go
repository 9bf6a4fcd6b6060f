// Package metrics exports cache lookup counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
)

var _ ports.CacheMetrics = (*CacheMetrics)(nil)

// CacheMetrics counts cache lookups by kind and result.
type CacheMetrics struct {
	lookups *prometheus.CounterVec
}

// NewCacheMetrics registers the cache counters on reg.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	return &CacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pack",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total cache lookups by cache kind and result",
		}, []string{"kind", "result"}),
	}
}

// ObserveLookup records one lookup of the given kind.
func (m *CacheMetrics) ObserveLookup(kind domain.CacheKind, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(kind.String(), result).Inc()
}
