package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics publishes configuration load outcomes for one component.
// Every series carries a constant component label, so components share the
// config_* names:
//
//	config_load_timestamp_seconds{component}
//	config_fallbacks_total{component,field}
//	config_fallback_active{component}
//
// Registration uses the default registry; build one per component name.
type ConfigMetrics struct {
	loadedAt  prometheus.Gauge
	fallbacks *prometheus.CounterVec
	degraded  prometheus.Gauge
}

func NewConfigMetrics(component string) *ConfigMetrics {
	labels := prometheus.Labels{"component": component}
	return &ConfigMetrics{
		loadedAt: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "config_load_timestamp_seconds",
			Help:        "Unix time of the last configuration load",
			ConstLabels: labels,
		}),
		fallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "config_fallbacks_total",
			Help:        "Configuration values rejected by validation and replaced by their default",
			ConstLabels: labels,
		}, []string{"field"}),
		degraded: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "config_fallback_active",
			Help:        "1 while the loaded configuration contains at least one fallback",
			ConstLabels: labels,
		}),
	}
}

// Fallback counts one rejected value of field.
func (m *ConfigMetrics) Fallback(field string) {
	m.fallbacks.WithLabelValues(field).Inc()
}

// Loaded stamps a finished load.
func (m *ConfigMetrics) Loaded(withFallbacks bool) {
	m.loadedAt.SetToCurrentTime()
	if withFallbacks {
		m.degraded.Set(1)
		return
	}
	m.degraded.Set(0)
}
