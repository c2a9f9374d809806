// Package incident implements the per-service live incident state machine:
// the component-keyed active-alert set, the per-alert resolve timer, and the
// incident-wide group timeout.
package incident

import (
	"log/slog"
	"sync"
	"time"

	"github.com/evilham/prometheus-adlermanager/internal/alertmodel"
	"github.com/evilham/prometheus-adlermanager/internal/audit"
	"github.com/evilham/prometheus-adlermanager/internal/metrics"
	"github.com/evilham/prometheus-adlermanager/internal/realtime"
	"github.com/evilham/prometheus-adlermanager/internal/severity"
	"github.com/evilham/prometheus-adlermanager/pkg/clock"
)

// DefaultGroupTimeout and DefaultAlertResolveTimeout are the built-in
// defaults, overridden by GROUP_INCIDENTS_MINUTES / ALERT_RESOLVE_MINUTES.
const (
	DefaultGroupTimeout        = 60 * time.Minute
	DefaultAlertResolveTimeout = 5 * time.Minute

	// identityLayout is the incident naming format: minute granularity, UTC.
	identityLayout = "2006-01-02-1504Z"
)

// Config holds the parameters IncidentManager needs beyond the clock.
type Config struct {
	GroupTimeout        time.Duration
	AlertResolveTimeout time.Duration
	Clock               clock.Clock
	Logger              *slog.Logger
	Sink                audit.Sink
	Metrics             *metrics.Core
	Publisher           *realtime.EventPublisher
	Site                string
	Service             string
}

func (c *Config) setDefaults() {
	if c.GroupTimeout <= 0 {
		c.GroupTimeout = DefaultGroupTimeout
	}
	if c.AlertResolveTimeout <= 0 {
		c.AlertResolveTimeout = DefaultAlertResolveTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Sink == nil {
		c.Sink = audit.Noop{}
	}
}

// Manager is one live incident for one service. It is born Open and
// transitions to Expired exactly once, notifying its parent ServiceManager
// through the one-shot callback registered with OnExpire.
type Manager struct {
	cfg Config

	mu sync.Mutex

	id             string
	activeAlerts   map[string]alertmodel.Alert
	alertTimers    map[string]clock.Timer
	groupTimer     clock.Timer
	monitoringDown bool
	lastAlert      time.Time

	expireOnce sync.Once
	onExpire   func()
}

// New creates an incident, identified by the minute it was opened, and arms
// its group timer immediately (an IncidentManager is born Open, never Idle).
func New(now time.Time, cfg Config) *Manager {
	cfg.setDefaults()
	m := &Manager{
		cfg:          cfg,
		id:           now.UTC().Format(identityLayout),
		activeAlerts: make(map[string]alertmodel.Alert),
		alertTimers:  make(map[string]clock.Timer),
		lastAlert:    now,
	}
	m.groupTimer = cfg.Clock.AfterFunc(cfg.GroupTimeout, m.expire)
	if cfg.Metrics != nil {
		cfg.Metrics.IncidentsOpened.WithLabelValues(cfg.Site, cfg.Service).Inc()
	}
	m.publish(realtime.EventTypeIncidentOpened, severity.OK)
	return m
}

// ID returns the incident's identity timestamp.
func (m *Manager) ID() string { return m.id }

// OnExpire registers the callback fired exactly once when the incident
// expires. It must be
// called before any alerts are processed; calling it more than once only
// keeps the last callback.
func (m *Manager) OnExpire(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = f
}

// ProcessAlerts folds a batch of alerts (already filtered to this service by
// ServiceManager) into the incident, re-arming the group timer and each
// touched component's resolve timer.
func (m *Manager) ProcessAlerts(alerts []alertmodel.Alert, timestamp time.Time) {
	if len(alerts) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.groupTimer != nil {
		m.groupTimer.Cancel()
	}
	m.groupTimer = m.cfg.Clock.AfterFunc(m.cfg.GroupTimeout, m.expire)
	m.lastAlert = timestamp

	var newComponents []string
	for _, a := range alerts {
		c := a.Component()
		if c == "" {
			continue
		}

		if t, exists := m.alertTimers[c]; exists {
			t.Cancel()
		} else {
			newComponents = append(newComponents, c)
		}

		existing, hasExisting := m.activeAlerts[c]
		if !hasExisting || a.Status == severity.OK || a.Status >= existing.Status {
			m.activeAlerts[c] = a
		}

		m.alertTimers[c] = m.cfg.Clock.AfterFunc(m.cfg.AlertResolveTimeout, func(component string) func() {
			return func() { m.expireAlert(component) }
		}(c))
	}

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.AlertsProcessed.WithLabelValues(m.cfg.Site, m.cfg.Service).Add(float64(len(alerts)))
	}

	if len(newComponents) > 0 {
		m.logEvent("New", "components", newComponents)
		m.publish(realtime.EventTypeIncidentUpdated, m.statusLocked())
	}
}

// ProcessHeartbeats clears a monitoring-down state observed while this
// incident was open.
func (m *Manager) ProcessHeartbeats(heartbeats []alertmodel.Alert, timestamp time.Time) {
	if len(heartbeats) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.monitoringDown {
		return
	}

	m.monitoringDown = false
	if m.groupTimer != nil {
		m.groupTimer.Cancel()
	}
	m.groupTimer = m.cfg.Clock.AfterFunc(m.cfg.GroupTimeout, m.expire)

	m.logEvent("[Meta]MonitoringUp")
}

// MonitoringDown records that the upstream observer has gone dark. It does
// not touch the group timer: the incident must simply not be declared
// expired while monitoring is down.
func (m *Manager) MonitoringDown(timestamp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.monitoringDown = true
	m.logEvent("[Meta]MonitoringDown")
}

// ComponentStatus returns the active severity for one component, or OK if
// it has no active alert.
func (m *Manager) ComponentStatus(component string) severity.Severity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.activeAlerts[component]; ok {
		return a.Status
	}
	return severity.OK
}

// Status returns the max severity over every active alert in the incident.
func (m *Manager) Status() severity.Severity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// statusLocked is Status's body for callers that already hold m.mu.
func (m *Manager) statusLocked() severity.Severity {
	s := severity.OK
	for _, a := range m.activeAlerts {
		s = severity.Max(s, a.Status)
	}
	return s
}

// ActiveAlerts returns a snapshot copy of the component->alert map.
func (m *Manager) ActiveAlerts() map[string]alertmodel.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]alertmodel.Alert, len(m.activeAlerts))
	for k, v := range m.activeAlerts {
		out[k] = v
	}
	return out
}

// IsMonitoringDown reports the incident's view of the site's monitoring state.
func (m *Manager) IsMonitoringDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoringDown
}

// Stop cancels every outstanding timer without firing expired, for when the
// owning service is dropped out from under a live incident on reload.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupTimer != nil {
		m.groupTimer.Cancel()
	}
	for _, t := range m.alertTimers {
		t.Cancel()
	}
}

// expireAlert removes one component's active alert once its resolve timer
// fires. A cancelled or superseded timer that
// still manages to fire here finds its component already replaced or gone
// and is a no-op — cancellation races are absorbed silently.
func (m *Manager) expireAlert(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.activeAlerts[component]
	if !ok {
		return
	}
	delete(m.activeAlerts, component)
	delete(m.alertTimers, component)
	m.logEvent("Resolved", "component", component, "status", a.Status.String())
	m.publish(realtime.EventTypeIncidentUpdated, m.statusLocked())
}

// expire is the group timer callback. While monitoring is down the incident
// is not declared expired and the fired timer is not re-armed here: the
// incident stays open until ProcessAlerts or ProcessHeartbeats arms a fresh
// group timer, which expires it if monitoring is up when it fires.
func (m *Manager) expire() {
	m.mu.Lock()
	down := m.monitoringDown
	m.mu.Unlock()
	if down {
		return
	}

	m.expireOnce.Do(func() {
		m.logEvent("Expired")
		if m.cfg.Metrics != nil {
			m.cfg.Metrics.IncidentsClosed.WithLabelValues(m.cfg.Site, m.cfg.Service).Inc()
		}
		m.publish(realtime.EventTypeIncidentResolved, severity.OK)
		if m.onExpire != nil {
			m.onExpire()
		}
	})
}

// publish forwards an incident lifecycle event to the event bus, if one is
// configured. Callers that already hold m.mu must pass a status obtained
// from statusLocked rather than Status, which would deadlock.
func (m *Manager) publish(eventType string, status severity.Severity) {
	if m.cfg.Publisher == nil {
		return
	}
	if err := m.cfg.Publisher.PublishIncidentEvent(eventType, m.cfg.Site, m.cfg.Service, m.id, status); err != nil {
		m.cfg.Logger.Warn("incident: failed to publish event", "event", eventType, "error", err)
	}
}

// logEvent emits a structured log line and forwards the event to the audit
// sink; log_event has no persistence contract of its own beyond
// what the sink chooses to do with it.
func (m *Manager) logEvent(eventType string, kv ...any) {
	args := append([]any{"incident", m.id, "site", m.cfg.Site, "service", m.cfg.Service, "event", eventType}, kv...)
	m.cfg.Logger.Info("incident event", args...)
	m.cfg.Sink.Record(audit.Event{
		Time:    m.cfg.Clock.Now(),
		Site:    m.cfg.Site,
		Service: m.cfg.Service,
		Incident: m.id,
		Type:    eventType,
	})
}
