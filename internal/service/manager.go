// Package service implements ServiceManager: the per-service
// component filter and the at-most-one current incident it owns.
package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/evilham/prometheus-adlermanager/internal/alertmodel"
	"github.com/evilham/prometheus-adlermanager/internal/audit"
	"github.com/evilham/prometheus-adlermanager/internal/incident"
	"github.com/evilham/prometheus-adlermanager/internal/metrics"
	"github.com/evilham/prometheus-adlermanager/internal/realtime"
	"github.com/evilham/prometheus-adlermanager/internal/severity"
	"github.com/evilham/prometheus-adlermanager/pkg/clock"
)

// Component is one declared component of a service.
type Component struct {
	Label string
}

// ComponentStatus pairs a declared component with its current severity, the
// shape the status page template collaborator renders.
type ComponentStatus struct {
	Component Component
	Status    severity.Severity
}

// Config carries everything a ServiceManager needs to build incidents.
type Config struct {
	GroupTimeout        time.Duration
	AlertResolveTimeout time.Duration
	Clock               clock.Clock
	Logger              *slog.Logger
	Sink                audit.Sink
	Metrics             *metrics.Core
	Publisher           *realtime.EventPublisher
	Site                string
}

// Manager is one service within a site: a component allow-list plus at most
// one live incident.
type Manager struct {
	cfg   Config
	label string

	mu              sync.Mutex
	componentLabels map[string]Component
	componentOrder  []string
	currentIncident *incident.Manager
}

// New creates a ServiceManager for label, with the given ordered components.
func New(label string, components []Component, cfg Config) *Manager {
	m := &Manager{
		cfg:             cfg,
		label:           label,
		componentLabels: make(map[string]Component, len(components)),
	}
	for _, c := range components {
		m.componentLabels[c.Label] = c
		m.componentOrder = append(m.componentOrder, c.Label)
	}
	return m
}

// Label returns the service's label.
func (m *Manager) Label() string { return m.label }

// ProcessAlerts filters alerts to this service and its declared components,
// lazily opens an incident for the first unfiltered alert, and forwards the
// filtered batch.
func (m *Manager) ProcessAlerts(alerts []alertmodel.Alert, timestamp time.Time) {
	filtered := m.filter(alerts)
	if len(filtered) == 0 {
		return
	}

	m.mu.Lock()
	if m.currentIncident == nil {
		m.currentIncident = incident.New(timestamp, incident.Config{
			GroupTimeout:        m.cfg.GroupTimeout,
			AlertResolveTimeout: m.cfg.AlertResolveTimeout,
			Clock:               m.cfg.Clock,
			Logger:              m.cfg.Logger,
			Sink:                m.cfg.Sink,
			Metrics:             m.cfg.Metrics,
			Publisher:           m.cfg.Publisher,
			Site:                m.cfg.Site,
			Service:             m.label,
		})
		m.currentIncident.OnExpire(m.clearIncident)
	}
	current := m.currentIncident
	m.mu.Unlock()

	current.ProcessAlerts(filtered, timestamp)
}

// ProcessHeartbeats forwards heartbeats to the current incident, if any.
func (m *Manager) ProcessHeartbeats(heartbeats []alertmodel.Alert, timestamp time.Time) {
	m.mu.Lock()
	current := m.currentIncident
	m.mu.Unlock()
	if current != nil {
		current.ProcessHeartbeats(heartbeats, timestamp)
	}
}

// MonitoringDown forwards a monitoring-down notice to the current incident,
// if any.
func (m *Manager) MonitoringDown(timestamp time.Time) {
	m.mu.Lock()
	current := m.currentIncident
	m.mu.Unlock()
	if current != nil {
		current.MonitoringDown(timestamp)
	}
}

// Status is the max severity over the current incident's active alerts, or
// OK if there is none.
func (m *Manager) Status() severity.Severity {
	m.mu.Lock()
	current := m.currentIncident
	m.mu.Unlock()
	if current == nil {
		return severity.OK
	}
	return current.Status()
}

// Components returns every declared component with its current status, in
// declaration order.
func (m *Manager) Components() []ComponentStatus {
	m.mu.Lock()
	current := m.currentIncident
	m.mu.Unlock()

	out := make([]ComponentStatus, 0, len(m.componentOrder))
	for _, label := range m.componentOrder {
		c := m.componentLabels[label]
		status := severity.OK
		if current != nil {
			status = current.ComponentStatus(label)
		}
		out = append(out, ComponentStatus{Component: c, Status: status})
	}
	return out
}

// Stop cancels the current incident's timers, if any, without running its
// expire notification (used when the service itself is dropped on reload).
func (m *Manager) Stop() {
	m.mu.Lock()
	current := m.currentIncident
	m.mu.Unlock()
	if current != nil {
		current.Stop()
	}
}

// clearIncident is the IncidentManager.OnExpire callback: it nulls out
// current_incident once the group timer has fired with nothing left to
// re-arm it, so the next alert for this service opens a fresh incident. An
// incident whose alerts have all resolved stays current until then.
func (m *Manager) clearIncident() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentIncident = nil
}

// filter keeps only alerts addressed to this service and one of its declared
// components.
func (m *Manager) filter(alerts []alertmodel.Alert) []alertmodel.Alert {
	var out []alertmodel.Alert
	for _, a := range alerts {
		if a.Service() != m.label {
			continue
		}
		if _, ok := m.componentLabels[a.Component()]; !ok {
			continue
		}
		out = append(out, a)
	}
	return out
}
