package sshadmin

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/term"

	"github.com/evilham/prometheus-adlermanager/internal/sites"
)

// silentReader never yields input, so term.Terminal.Write calls made by
// command handlers that don't drive ReadLine never block on a reader.
type silentReader struct{}

func (silentReader) Read(p []byte) (int, error) { return 0, io.EOF }

// recordingTerminal pairs a discard Read side with a buffer that captures
// everything commands write, letting tests assert on shell output without a
// real network connection.
type recordingTerminal struct {
	silentReader
	out bytes.Buffer
}

func (t *recordingTerminal) Write(p []byte) (int, error) { return t.out.Write(p) }

func newSession(t *testing.T, username string, sm *sites.Manager) (*Session, *recordingTerminal) {
	t.Helper()
	rt := &recordingTerminal{}
	sess := &Session{
		Username: username,
		Sites:    sm,
		term:     term.NewTerminal(rt, ""),
	}
	return sess, rt
}

func newTestSitesManager(t *testing.T, siteYML string) *sites.Manager {
	t.Helper()
	dataDir := t.TempDir()
	siteDir := filepath.Join(dataDir, "sites", "status.example.org")
	require.NoError(t, os.MkdirAll(siteDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "site.yml"), []byte(siteYML), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "tokens.txt"), []byte("secret-token\n"), 0640))

	sm, err := sites.New(dataDir, sites.Config{})
	require.NoError(t, err)
	return sm
}

const testSiteYML = `
title: Example status
ssh_users:
  - alice
services:
  - label: API
    components:
      - label: web
`

func TestCmdWhoami(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)
	sess, rt := newSession(t, "alice", sm)

	require.NoError(t, cmdWhoami(sess, nil))
	require.Contains(t, rt.out.String(), "alice")
}

func TestCmdListSites_OnlyAccessibleSites(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)

	sess, rt := newSession(t, "bob", sm)
	require.NoError(t, cmdListSites(sess, nil))
	require.NotContains(t, rt.out.String(), "status.example.org")
}

func TestCmdListSites_IncludesAccessibleSite(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)

	sess, rt := newSession(t, "alice", sm)
	require.NoError(t, cmdListSites(sess, nil))
	require.Contains(t, rt.out.String(), "status.example.org")
}

func TestUserSite_DeniesUnauthorizedUser(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)
	sess, _ := newSession(t, "bob", sm)

	_, ok := sess.userSite("status.example.org")
	require.False(t, ok, "bob is not listed in ssh_users and must not resolve the site")
}

func TestUserSite_GrantsAuthorizedUser(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)
	sess, _ := newSession(t, "alice", sm)

	got, ok := sess.userSite("status.example.org")
	require.True(t, ok)
	require.Equal(t, "status.example.org", got.Name())
}

func TestCmdGetSiteConfig_UnknownSite(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)
	sess, rt := newSession(t, "alice", sm)

	require.NoError(t, cmdGetSiteConfig(sess, []string{"no-such-site"}))
	require.Contains(t, rt.out.String(), "unknown or unaccessible site")
}

func TestCmdGetSiteConfig_RequiresExactlyOneArg(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)
	sess, _ := newSession(t, "alice", sm)

	require.Error(t, cmdGetSiteConfig(sess, nil))
}

func TestCmdHelp_UnknownCommand(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)
	sess, rt := newSession(t, "alice", sm)

	require.NoError(t, cmdHelp(sess, []string{"no_such_command"}))
	require.Contains(t, rt.out.String(), "No such command")
}

func TestCmdHelp_KnownCommandShowsUsage(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)
	sess, rt := newSession(t, "alice", sm)

	require.NoError(t, cmdHelp(sess, []string{"whoami"}))
	require.Contains(t, rt.out.String(), "Usage: whoami")
}

func TestCmdExit_ReturnsSentinel(t *testing.T) {
	sm := newTestSitesManager(t, testSiteYML)
	sess, _ := newSession(t, "alice", sm)

	require.ErrorIs(t, cmdExit(sess, nil), errExit)
}
