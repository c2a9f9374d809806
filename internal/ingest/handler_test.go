package ingest

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evilham/prometheus-adlermanager/internal/sites"
	"github.com/evilham/prometheus-adlermanager/pkg/clock"
)

const testSiteYML = `
title: Example status
services:
  - label: API
    components:
      - label: web
`

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	dataDir := t.TempDir()
	siteDir := filepath.Join(dataDir, "sites", "status.example.org")
	require.NoError(t, os.MkdirAll(siteDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "site.yml"), []byte(testSiteYML), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "tokens.txt"), []byte("secret-token\n"), 0640))

	sm, err := sites.New(dataDir, sites.Config{Clock: clock.NewFake(time.Now())})
	require.NoError(t, err)

	var authenticated string
	h := &Handler{
		Sites: sm,
		SiteNamer: func(r *http.Request) (string, bool) {
			return authenticated, authenticated != ""
		},
		Clock:  clock.NewFake(time.Now()),
		Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	return h, "status.example.org"
}

func authAs(h *Handler, name string) {
	h.SiteNamer = func(r *http.Request) (string, bool) { return name, name != "" }
}

func TestServeHTTP_NoAuthenticatedSiteReturns401(t *testing.T) {
	h, _ := newTestHandler(t)
	authAs(h, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader("[]"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServeHTTP_UnknownSiteReturns401(t *testing.T) {
	h, _ := newTestHandler(t)
	authAs(h, "no-such-site")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader("[]"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServeHTTP_InvalidJSONReturns400(t *testing.T) {
	h, site := newTestHandler(t)
	authAs(h, site)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeHTTP_BodyTooLargeReturns400(t *testing.T) {
	h, site := newTestHandler(t)
	authAs(h, site)

	oversized := bytes.Repeat([]byte("a"), MaxBodyBytes+10)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", bytes.NewReader(oversized))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeHTTP_ValidBatchReturns200(t *testing.T) {
	h, site := newTestHandler(t)
	authAs(h, site)

	body := `[{"labels":{"adlermanager":"status.example.org","service":"API","component":"web","severity":"warning"}}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
