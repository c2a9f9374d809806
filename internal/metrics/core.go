// Package metrics exposes the prometheus collectors for the alert-folding
// state machine and for SitesManager.Reload, using a constructor-struct
// pattern rather than package-level vars.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Core holds every collector the core state machine and the site tree loader
// touch. One instance is built at startup and threaded into SitesManager,
// SiteManager, ServiceManager and IncidentManager by constructor injection.
type Core struct {
	IncidentsOpened *prometheus.CounterVec
	IncidentsClosed *prometheus.CounterVec
	AlertsProcessed *prometheus.CounterVec
	TimersArmed     *prometheus.CounterVec
	TimersFired     *prometheus.CounterVec
	MonitoringDown  *prometheus.GaugeVec

	ReloadTotal         *prometheus.CounterVec
	ReloadDuration      prometheus.Histogram
	ReloadPhaseDuration *prometheus.HistogramVec
	ReloadErrors        *prometheus.CounterVec
	ReloadLastSuccess   prometheus.Gauge
	ReloadSites         prometheus.Gauge
}

// New registers and returns the core collector set under namespace.
func New(namespace string) *Core {
	return &Core{
		IncidentsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_opened_total",
			Help:      "Incidents opened, by site and service.",
		}, []string{"site", "service"}),

		IncidentsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_closed_total",
			Help:      "Incidents expired (closed), by site and service.",
		}, []string{"site", "service"}),

		AlertsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_processed_total",
			Help:      "Alerts folded into an incident, by site and service.",
		}, []string{"site", "service"}),

		TimersArmed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_armed_total",
			Help:      "Deferred callbacks scheduled, by kind (alert_resolve, group, monitoring_down).",
		}, []string{"kind"}),

		TimersFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_fired_total",
			Help:      "Deferred callbacks that ran to completion, by kind.",
		}, []string{"kind"}),

		MonitoringDown: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitoring_down",
			Help:      "1 if a site has received no ingestion payload within monitoring_down_timeout, else 0.",
		}, []string{"site"}),

		ReloadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reload_total",
			Help:      "SitesManager.Reload attempts, by status (success, error).",
		}, []string{"status"}),

		ReloadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reload_duration_seconds",
			Help:      "Duration of SitesManager.Reload.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		ReloadPhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reload_phase_duration_seconds",
			Help:      "Duration of a reload phase (scan, parse, commit).",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"phase"}),

		ReloadErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reload_errors_total",
			Help:      "Reload errors, by type (scan_failed, parse_failed, validation_failed, duplicate_token).",
		}, []string{"type"}),

		ReloadLastSuccess: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reload_last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful reload.",
		}),

		ReloadSites: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reload_sites",
			Help:      "Number of sites known after the last reload.",
		}),
	}
}
