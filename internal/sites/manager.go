// Package sites implements SitesManager: the on-disk site
// tree loader, its reload reconciliation, and the derived token and
// user->sites indexes.
package sites

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evilham/prometheus-adlermanager/internal/alertmodel"
	"github.com/evilham/prometheus-adlermanager/internal/audit"
	"github.com/evilham/prometheus-adlermanager/internal/metrics"
	"github.com/evilham/prometheus-adlermanager/internal/realtime"
	"github.com/evilham/prometheus-adlermanager/internal/site"
	"github.com/evilham/prometheus-adlermanager/pkg/clock"
	"gopkg.in/yaml.v3"
)

// LastUpdatedLayout is the persistence timestamp format:
// "%Y-%m-%dT%H:%M:%S%z".
const LastUpdatedLayout = "2006-01-02T15:04:05-0700"

// siteDefFile, tokensFile and lastUpdatedFile are the fixed filenames
// inside each site directory.
const (
	siteDefFile     = "site.yml"
	tokensFile      = "tokens.txt"
	lastUpdatedFile = "last_updated.txt"
)

// Config carries the shared parameters every SiteManager built by this
// loader is constructed with.
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
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the full site tree rooted at <data_dir>/sites.
type Manager struct {
	cfg     Config
	dataDir string

	mu      sync.RWMutex
	bySite  map[string]*site.Manager
	byToken map[string]*site.Manager
}

// New loads the tree rooted at dataDir/sites and returns a Manager. A
// missing sites directory is treated as an empty tree, not an error.
func New(dataDir string, cfg Config) (*Manager, error) {
	cfg.setDefaults()
	m := &Manager{
		cfg:     cfg,
		dataDir: dataDir,
		bySite:  make(map[string]*site.Manager),
		byToken: make(map[string]*site.Manager),
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) sitesDir() string {
	return filepath.Join(m.dataDir, "sites")
}

// Reload re-reads the tree, reusing existing SiteManagers keyed by directory
// name and reconciling their service lists in place, creating SiteManagers
// for new directories, and stopping+dropping ones whose directory vanished.
// It rebuilds the token index and rejects any reload that would introduce a
// duplicate token across sites.
func (m *Manager) Reload() error {
	start := m.cfg.Clock.Now()
	entries, err := os.ReadDir(m.sitesDir())
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			m.reportReloadError("scan_failed")
			return fmt.Errorf("sites: scan %s: %w", m.sitesDir(), err)
		}
	}

	seen := make(map[string]struct{}, len(entries))
	newTokens := make(map[string]*site.Manager)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		seen[name] = struct{}{}
		dir := filepath.Join(m.sitesDir(), name)

		def, err := loadDefinition(dir)
		if err != nil {
			m.cfg.Logger.Error("sites: skipping site with unparseable site.yml", "site", name, "error", err)
			m.reportReloadError("parse_failed")
			continue
		}
		if err := def.Validate(); err != nil {
			m.cfg.Logger.Error("sites: skipping site with invalid site.yml", "site", name, "error", err)
			m.reportReloadError("validation_failed")
			continue
		}

		tokens, warnMissing := loadTokens(dir)
		if warnMissing {
			m.cfg.Logger.Warn("sites: tokens.txt missing, site will never ingest", "site", name)
		}

		for _, t := range tokens {
			if other, dup := newTokens[t]; dup {
				m.reportReloadError("duplicate_token")
				return fmt.Errorf("sites: token collision between %q and %q", other.Name(), name)
			}
		}

		sm, exists := m.bySite[name]
		if exists {
			sm.Reconcile(def, dir)
			sm.SetTokens(tokens)
		} else {
			sm = site.New(name, def, tokens, dir, site.Config{
				MonitoringDownTimeout: m.cfg.MonitoringDownTimeout,
				GroupTimeout:          m.cfg.GroupTimeout,
				AlertResolveTimeout:   m.cfg.AlertResolveTimeout,
				Clock:                 m.cfg.Clock,
				Logger:                m.cfg.Logger.With("site", name),
				Sink:                  m.cfg.Sink,
				Metrics:               m.cfg.Metrics,
				Publisher:             m.cfg.Publisher,
			})
			m.bySite[name] = sm
		}

		for _, t := range tokens {
			newTokens[t] = sm
		}
	}

	for name, sm := range m.bySite {
		if _, ok := seen[name]; !ok {
			sm.Stop()
			delete(m.bySite, name)
		}
	}

	m.byToken = newTokens

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ReloadTotal.WithLabelValues("success").Inc()
		m.cfg.Metrics.ReloadDuration.Observe(m.cfg.Clock.Now().Sub(start).Seconds())
		m.cfg.Metrics.ReloadLastSuccess.Set(float64(m.cfg.Clock.Now().Unix()))
		m.cfg.Metrics.ReloadSites.Set(float64(len(m.bySite)))
	}
	return nil
}

func (m *Manager) reportReloadError(kind string) {
	if m.cfg.Metrics == nil {
		return
	}
	m.cfg.Metrics.ReloadTotal.WithLabelValues("error").Inc()
	m.cfg.Metrics.ReloadErrors.WithLabelValues(kind).Inc()
}

// Clock returns the clock every SiteManager under this tree was built with,
// so collaborators like the ingestion handler can timestamp hand-offs
// consistently with the state machine (and substitute a fake clock in tests).
func (m *Manager) Clock() clock.Clock {
	return m.cfg.Clock
}

// Lookup resolves a site by its directory name (used by the status page
// collaborator, keyed on the request Host).
func (m *Manager) Lookup(name string) (*site.Manager, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.bySite[name]
	return sm, ok
}

// Authenticate resolves a bearer token to the site it belongs to.
func (m *Manager) Authenticate(token string) (*site.Manager, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.byToken[token]
	return sm, ok
}

// UserSites returns, in name order, every site whose ssh_users contains
// username.
func (m *Manager) UserSites(username string) []*site.Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*site.Manager
	for _, sm := range m.bySite {
		if sm.HasSSHUser(username) {
			out = append(out, sm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Sites returns every known site, in name order.
func (m *Manager) Sites() []*site.Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*site.Manager, 0, len(m.bySite))
	for _, sm := range m.bySite {
		out = append(out, sm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ProcessAlerts dispatches an ingestion batch to one site and persists its
// last_updated.txt.
func (m *Manager) ProcessAlerts(sm *site.Manager, raw []alertmodel.Raw, now time.Time) error {
	sm.ProcessAlerts(raw, now)
	return writeLastUpdated(filepath.Join(m.sitesDir(), sm.Name()), now)
}

// PersistSiteConfig writes cfg to sm's config.yaml and swaps it into memory,
// the write path the SSH admin shell's set_site_config command drives.
func (m *Manager) PersistSiteConfig(sm *site.Manager, cfg site.Override) error {
	if err := site.SaveConfig(filepath.Join(m.sitesDir(), sm.Name()), cfg); err != nil {
		return err
	}
	sm.SetSiteConfig(cfg)
	return nil
}

func loadDefinition(dir string) (site.Definition, error) {
	data, err := os.ReadFile(filepath.Join(dir, siteDefFile))
	if err != nil {
		return site.Definition{}, err
	}
	var def site.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return site.Definition{}, err
	}
	return def, nil
}

// loadTokens reads one bearer token per line from tokens.txt. A missing file
// is not fatal; warnMissing distinguishes that case from an empty
// existing file.
func loadTokens(dir string) (tokens []string, warnMissing bool) {
	f, err := os.Open(filepath.Join(dir, tokensFile))
	if err != nil {
		return nil, true
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	return tokens, false
}

func writeLastUpdated(dir string, t time.Time) error {
	return os.WriteFile(filepath.Join(dir, lastUpdatedFile), []byte(t.Format(LastUpdatedLayout)+"\n"), 0640)
}
