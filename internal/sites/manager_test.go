package sites

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evilham/prometheus-adlermanager/internal/site"
	"github.com/evilham/prometheus-adlermanager/pkg/clock"
)

const siteAYML = `
title: Site A
ssh_users:
  - alice
services:
  - label: API
    components:
      - label: web
`

const siteBYML = `
title: Site B
services:
  - label: Core
    components:
      - label: worker
`

func writeSite(t *testing.T, sitesDir, name, yml, tokens string) {
	t.Helper()
	dir := filepath.Join(sitesDir, name)
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yml"), []byte(yml), 0640))
	if tokens != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tokens.txt"), []byte(tokens), 0640))
	}
}

func TestNew_EmptyTreeWhenSitesDirMissing(t *testing.T) {
	dataDir := t.TempDir()
	m, err := New(dataDir, Config{})
	require.NoError(t, err)
	assert.Empty(t, m.Sites())
}

func TestNew_LoadsSitesAndTokenIndex(t *testing.T) {
	dataDir := t.TempDir()
	sitesDir := filepath.Join(dataDir, "sites")
	writeSite(t, sitesDir, "site-a", siteAYML, "token-a\n")
	writeSite(t, sitesDir, "site-b", siteBYML, "token-b\n")

	m, err := New(dataDir, Config{})
	require.NoError(t, err)

	sitesList := m.Sites()
	require.Len(t, sitesList, 2)
	assert.Equal(t, "site-a", sitesList[0].Name())
	assert.Equal(t, "site-b", sitesList[1].Name())

	sm, ok := m.Authenticate("token-a")
	require.True(t, ok)
	assert.Equal(t, "site-a", sm.Name())

	_, ok = m.Authenticate("unknown-token")
	assert.False(t, ok)
}

func TestUserSites_FiltersBySSHUsers(t *testing.T) {
	dataDir := t.TempDir()
	sitesDir := filepath.Join(dataDir, "sites")
	writeSite(t, sitesDir, "site-a", siteAYML, "token-a\n")
	writeSite(t, sitesDir, "site-b", siteBYML, "token-b\n")

	m, err := New(dataDir, Config{})
	require.NoError(t, err)

	require.Len(t, m.UserSites("alice"), 1)
	assert.Equal(t, "site-a", m.UserSites("alice")[0].Name())
	assert.Empty(t, m.UserSites("bob"))
}

func TestReload_AddsAndDropsSite(t *testing.T) {
	dataDir := t.TempDir()
	sitesDir := filepath.Join(dataDir, "sites")
	writeSite(t, sitesDir, "site-a", siteAYML, "token-a\n")

	m, err := New(dataDir, Config{})
	require.NoError(t, err)
	require.Len(t, m.Sites(), 1)

	writeSite(t, sitesDir, "site-b", siteBYML, "token-b\n")
	require.NoError(t, os.RemoveAll(filepath.Join(sitesDir, "site-a")))

	require.NoError(t, m.Reload())
	sitesList := m.Sites()
	require.Len(t, sitesList, 1)
	assert.Equal(t, "site-b", sitesList[0].Name())

	_, ok := m.Lookup("site-a")
	assert.False(t, ok, "dropped site directories must be removed from the tree")
}

func TestReload_RejectsDuplicateToken(t *testing.T) {
	dataDir := t.TempDir()
	sitesDir := filepath.Join(dataDir, "sites")
	writeSite(t, sitesDir, "site-a", siteAYML, "shared-token\n")
	writeSite(t, sitesDir, "site-b", siteBYML, "shared-token\n")

	_, err := New(dataDir, Config{})
	assert.Error(t, err, "two sites claiming the same ingestion token must fail the load")
}

func TestReload_MissingTokensFileIsNotFatal(t *testing.T) {
	dataDir := t.TempDir()
	sitesDir := filepath.Join(dataDir, "sites")
	writeSite(t, sitesDir, "site-a", siteAYML, "")

	m, err := New(dataDir, Config{})
	require.NoError(t, err)
	sm, ok := m.Lookup("site-a")
	require.True(t, ok)
	assert.Empty(t, sm.Tokens())
}

func TestProcessAlerts_WritesLastUpdated(t *testing.T) {
	dataDir := t.TempDir()
	sitesDir := filepath.Join(dataDir, "sites")
	writeSite(t, sitesDir, "site-a", siteAYML, "token-a\n")

	fc := clock.NewFake(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	m, err := New(dataDir, Config{Clock: fc})
	require.NoError(t, err)

	sm, ok := m.Lookup("site-a")
	require.True(t, ok)

	require.NoError(t, m.ProcessAlerts(sm, nil, fc.Now()))
	data, err := os.ReadFile(filepath.Join(sitesDir, "site-a", "last_updated.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04T12:00:00+0000\n", string(data))
}

func TestPersistSiteConfig_WritesConfigYAMLAndUpdatesMemory(t *testing.T) {
	dataDir := t.TempDir()
	sitesDir := filepath.Join(dataDir, "sites")
	writeSite(t, sitesDir, "site-a", siteAYML, "token-a\n")

	m, err := New(dataDir, Config{})
	require.NoError(t, err)
	sm, ok := m.Lookup("site-a")
	require.True(t, ok)

	cfg := site.Override{Message: "down for maintenance", ForceState: true}
	require.NoError(t, m.PersistSiteConfig(sm, cfg))

	assert.Equal(t, cfg, sm.SiteConfig())

	onDisk, err := site.LoadConfig(filepath.Join(sitesDir, "site-a"))
	require.NoError(t, err)
	assert.Equal(t, cfg, onDisk)
}
