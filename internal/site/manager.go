package site

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/evilham/prometheus-adlermanager/internal/alertmodel"
	"github.com/evilham/prometheus-adlermanager/internal/audit"
	"github.com/evilham/prometheus-adlermanager/internal/metrics"
	"github.com/evilham/prometheus-adlermanager/internal/realtime"
	"github.com/evilham/prometheus-adlermanager/internal/service"
	"github.com/evilham/prometheus-adlermanager/internal/severity"
	"github.com/evilham/prometheus-adlermanager/pkg/clock"
)

// DefaultMonitoringDownTimeout is the built-in default, overridden by
// MONITORING_DOWN_MINUTES.
const DefaultMonitoringDownTimeout = 2 * time.Minute

var definitionValidate = validator.New()

// Definition is the parsed shape of a site's site.yml.
type Definition struct {
	Title    string       `yaml:"title" validate:"required"`
	Services []ServiceDef `yaml:"services" validate:"dive"`
	SSHUsers []string     `yaml:"ssh_users"`
}

// Validate rejects a site.yml with no title or whose services/components are
// missing labels, before it's handed to New or Reconcile.
func (d Definition) Validate() error {
	return definitionValidate.Struct(d)
}

// ServiceDef is one entry of Definition.Services.
type ServiceDef struct {
	Label      string         `yaml:"label" validate:"required"`
	Components []ComponentDef `yaml:"components" validate:"dive"`
}

// ComponentDef is one entry of ServiceDef.Components.
type ComponentDef struct {
	Label string `yaml:"label" validate:"required"`
}

// Config carries the parameters a SiteManager needs beyond its Definition.
type Config struct {
	MonitoringDownTimeout time.Duration
	GroupTimeout          time.Duration
	AlertResolveTimeout   time.Duration
	Clock                 clock.Clock
	Logger                *slog.Logger
	Sink                  audit.Sink
	Metrics               *metrics.Core
	Publisher             *realtime.EventPublisher
}

func (c *Config) setDefaults() {
	if c.MonitoringDownTimeout <= 0 {
		c.MonitoringDownTimeout = DefaultMonitoringDownTimeout
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

// ServiceStatus pairs a service with its aggregated status, the shape the
// status page template collaborator renders.
type ServiceStatus struct {
	Label      string
	Components []service.ComponentStatus
	Status     severity.Severity
}

// Manager is one site: its declared services, its monitoring-down watchdog,
// its bearer token set and its operator override.
type Manager struct {
	cfg  Config
	name string

	mu               sync.Mutex
	title            string
	serviceManagers  map[string]*service.Manager
	serviceOrder     []string
	sshUsers         map[string]struct{}
	tokens           []string
	siteConfig       Override
	monitoringIsDown bool
	downTimer        clock.Timer
	lastUpdated      time.Time
}

// New constructs a SiteManager, hydrates its operator override from
// dir/config.yaml, and arms its monitoring-down timer immediately, before
// any ingress.
func New(name string, def Definition, tokens []string, dir string, cfg Config) *Manager {
	cfg.setDefaults()
	m := &Manager{
		cfg:             cfg,
		name:            name,
		title:           def.Title,
		serviceManagers: make(map[string]*service.Manager, len(def.Services)),
		sshUsers:        make(map[string]struct{}, len(def.SSHUsers)),
		tokens:          tokens,
	}
	if siteCfg, err := LoadConfig(dir); err != nil {
		cfg.Logger.Warn("site: failed to load config.yaml, starting with no override", "site", name, "error", err)
	} else {
		m.siteConfig = siteCfg
	}
	for _, u := range def.SSHUsers {
		m.sshUsers[u] = struct{}{}
	}
	for _, sd := range def.Services {
		components := make([]service.Component, 0, len(sd.Components))
		for _, cd := range sd.Components {
			components = append(components, service.Component{Label: cd.Label})
		}
		sm := service.New(sd.Label, components, service.Config{
			GroupTimeout:        cfg.GroupTimeout,
			AlertResolveTimeout: cfg.AlertResolveTimeout,
			Clock:               cfg.Clock,
			Logger:              cfg.Logger,
			Sink:                cfg.Sink,
			Metrics:             cfg.Metrics,
			Publisher:           cfg.Publisher,
			Site:                name,
		})
		m.serviceManagers[sd.Label] = sm
		m.serviceOrder = append(m.serviceOrder, sd.Label)
	}
	m.armDownTimer()
	return m
}

// Reconcile applies a freshly-parsed site.yml to an existing SiteManager:
// services named in def that don't exist yet are created, services no
// longer named are stopped and dropped, and ones that persist are left
// untouched so their live incident survives the reload. The operator
// override is re-read from dir/config.yaml so an out-of-band edit (or one
// made while this process wasn't running) takes effect on reload.
func (m *Manager) Reconcile(def Definition, dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.title = def.Title

	if siteCfg, err := LoadConfig(dir); err != nil {
		m.cfg.Logger.Warn("site: failed to reload config.yaml, keeping previous override", "site", m.name, "error", err)
	} else {
		m.siteConfig = siteCfg
	}

	sshUsers := make(map[string]struct{}, len(def.SSHUsers))
	for _, u := range def.SSHUsers {
		sshUsers[u] = struct{}{}
	}
	m.sshUsers = sshUsers

	wanted := make(map[string]struct{}, len(def.Services))
	order := make([]string, 0, len(def.Services))
	for _, sd := range def.Services {
		wanted[sd.Label] = struct{}{}
		order = append(order, sd.Label)
		if _, exists := m.serviceManagers[sd.Label]; exists {
			continue
		}
		components := make([]service.Component, 0, len(sd.Components))
		for _, cd := range sd.Components {
			components = append(components, service.Component{Label: cd.Label})
		}
		m.serviceManagers[sd.Label] = service.New(sd.Label, components, service.Config{
			GroupTimeout:        m.cfg.GroupTimeout,
			AlertResolveTimeout: m.cfg.AlertResolveTimeout,
			Clock:               m.cfg.Clock,
			Logger:              m.cfg.Logger,
			Sink:                m.cfg.Sink,
			Metrics:             m.cfg.Metrics,
			Publisher:           m.cfg.Publisher,
			Site:                m.name,
		})
	}

	for label, sm := range m.serviceManagers {
		if _, ok := wanted[label]; !ok {
			sm.Stop()
			delete(m.serviceManagers, label)
		}
	}
	m.serviceOrder = order
}

// Name returns the site's directory name (its stable identity across reload).
func (m *Manager) Name() string { return m.name }

// Title returns the site's display title.
func (m *Manager) Title() string { return m.title }

// Tokens returns the site's bearer tokens.
func (m *Manager) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.tokens))
	copy(out, m.tokens)
	return out
}

// SetTokens replaces the site's bearer tokens (used by SitesManager.Reload).
func (m *Manager) SetTokens(tokens []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
}

// HasSSHUser reports whether username is listed in this site's ssh_users.
func (m *Manager) HasSSHUser(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sshUsers[username]
	return ok
}

// SiteConfig returns the current operator override.
func (m *Manager) SiteConfig() Override {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.siteConfig
}

// SetSiteConfig installs a new operator override in memory. Persistence to
// config.yaml is the caller's responsibility (internal/sshadmin), keeping
// disk I/O out of the core state machine's lock.
func (m *Manager) SetSiteConfig(c Override) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.siteConfig = c
}

// ProcessAlerts imports and dispatches a raw ingestion batch.
func (m *Manager) ProcessAlerts(raw []alertmodel.Raw, now time.Time) {
	m.mu.Lock()
	wasDown := m.monitoringIsDown
	m.lastUpdated = now
	m.monitoringIsDown = false
	if m.downTimer != nil {
		m.downTimer.Cancel()
	}
	m.downTimer = m.cfg.Clock.AfterFunc(m.cfg.MonitoringDownTimeout, m.fireMonitoringDown)
	services := m.serviceManagersSnapshot()
	m.mu.Unlock()

	if wasDown {
		if m.cfg.Metrics != nil {
			m.cfg.Metrics.MonitoringDown.WithLabelValues(m.name).Set(0)
		}
		m.publishMonitoringUp()
	}

	var heartbeats, serviceAlerts []alertmodel.Alert
	for _, r := range raw {
		if err := r.Validate(); err != nil {
			m.cfg.Logger.Warn("dropping malformed alert", "site", m.name, "error", err)
			continue
		}
		if r.Labels[alertmodel.LabelSite] != m.name {
			continue
		}
		if r.Labels[alertmodel.LabelService] == "" || r.Labels[alertmodel.LabelComponent] == "" {
			continue
		}
		a := alertmodel.Import(r, now)
		if a.IsHeartbeat() {
			heartbeats = append(heartbeats, a)
		} else {
			serviceAlerts = append(serviceAlerts, a)
		}
	}

	for _, sm := range services {
		sm.ProcessHeartbeats(heartbeats, now)
		sm.ProcessAlerts(serviceAlerts, now)
	}

	m.publishStatus()
}

// fireMonitoringDown is the down timer callback.
func (m *Manager) fireMonitoringDown() {
	m.mu.Lock()
	m.monitoringIsDown = true
	last := m.lastUpdated
	services := m.serviceManagersSnapshot()
	m.mu.Unlock()

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.MonitoringDown.WithLabelValues(m.name).Set(1)
	}
	m.cfg.Logger.Warn("monitoring down", "site", m.name)

	for _, sm := range services {
		sm.MonitoringDown(last)
	}

	m.publishMonitoringDown()
	m.publishStatus()
}

// publishStatus broadcasts the site's recomputed overall status.
func (m *Manager) publishStatus() {
	if m.cfg.Publisher == nil {
		return
	}
	if err := m.cfg.Publisher.PublishSiteStatus(m.name, m.Status()); err != nil {
		m.cfg.Logger.Warn("site: failed to publish status", "site", m.name, "error", err)
	}
}

// publishMonitoringDown broadcasts the watchdog tripping.
func (m *Manager) publishMonitoringDown() {
	if m.cfg.Publisher == nil {
		return
	}
	if err := m.cfg.Publisher.PublishMonitoringDown(m.name); err != nil {
		m.cfg.Logger.Warn("site: failed to publish monitoring_down", "site", m.name, "error", err)
	}
}

// publishMonitoringUp broadcasts the watchdog clearing on fresh ingress.
func (m *Manager) publishMonitoringUp() {
	if m.cfg.Publisher == nil {
		return
	}
	if err := m.cfg.Publisher.PublishMonitoringUp(m.name); err != nil {
		m.cfg.Logger.Warn("site: failed to publish monitoring_up", "site", m.name, "error", err)
	}
}

func (m *Manager) armDownTimer() {
	m.downTimer = m.cfg.Clock.AfterFunc(m.cfg.MonitoringDownTimeout, m.fireMonitoringDown)
}

// Stop cancels the site's timers; called when its directory disappears on
// reload.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.downTimer != nil {
		m.downTimer.Cancel()
	}
	services := m.serviceManagersSnapshot()
	m.mu.Unlock()

	for _, sm := range services {
		sm.Stop()
	}
}

// Status is ERROR while monitoring is down, else the max over services.
func (m *Manager) Status() severity.Severity {
	m.mu.Lock()
	down := m.monitoringIsDown
	services := m.serviceManagersSnapshot()
	m.mu.Unlock()

	if down {
		return severity.ERROR
	}
	s := severity.OK
	for _, sm := range services {
		s = severity.Max(s, sm.Status())
	}
	return s
}

// IsMonitoringDown reports whether the site's watchdog has tripped.
func (m *Manager) IsMonitoringDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoringIsDown
}

// Services returns every declared service with its aggregated status, in
// declaration order.
func (m *Manager) Services() []ServiceStatus {
	m.mu.Lock()
	order := append([]string(nil), m.serviceOrder...)
	services := m.serviceManagersSnapshot()
	m.mu.Unlock()

	out := make([]ServiceStatus, 0, len(order))
	for _, label := range order {
		sm := services[label]
		out = append(out, ServiceStatus{
			Label:      label,
			Components: sm.Components(),
			Status:     sm.Status(),
		})
	}
	return out
}

// serviceManagersSnapshot must be called with mu held.
func (m *Manager) serviceManagersSnapshot() map[string]*service.Manager {
	out := make(map[string]*service.Manager, len(m.serviceManagers))
	for k, v := range m.serviceManagers {
		out[k] = v
	}
	return out
}
