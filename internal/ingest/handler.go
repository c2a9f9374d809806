// Package ingest implements the alert ingestion endpoint:
// JSON body parsing and hand-off to SitesManager before processing
// completes. Bearer-token authentication happens upstream in
// internal/api/middleware.Auth, which resolves the token to a site name and
// attaches it to the request context.
package ingest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/evilham/prometheus-adlermanager/internal/alertmodel"
	"github.com/evilham/prometheus-adlermanager/internal/apierrors"
	"github.com/evilham/prometheus-adlermanager/internal/sites"
	"github.com/evilham/prometheus-adlermanager/pkg/clock"
)

// MaxBodyBytes bounds the ingestion body size; upstream alert batches are
// small.
const MaxBodyBytes = 4 << 20

// SiteNamer reads the site name middleware.Auth attached to the request.
type SiteNamer func(r *http.Request) (string, bool)

// Handler serves POST /api/v1/alerts.
type Handler struct {
	Sites     *sites.Manager
	SiteNamer SiteNamer
	Clock     clock.Clock
	Logger    *slog.Logger
}

// ServeHTTP implements the ingestion contract: 200 on hand-off, 400 on
// unparseable body, 401 if no authenticated site is attached to the
// request, 500 on internal failure. Processing itself runs on its own
// goroutine, started just before the status is written, so a slow or failing
// fold never delays or changes the HTTP status.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, ok := h.SiteNamer(r)
	if !ok {
		apierrors.WriteRequest(w, r, http.StatusUnauthorized, "missing_token", "no authenticated site for this request")
		return
	}

	sm, ok := h.Sites.Lookup(name)
	if !ok {
		apierrors.WriteRequest(w, r, http.StatusUnauthorized, "unknown_token", "token does not match any site")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		apierrors.WriteRequest(w, r, http.StatusInternalServerError, "read_failed", "could not read request body")
		return
	}
	if len(body) > MaxBodyBytes {
		apierrors.WriteRequest(w, r, http.StatusBadRequest, "body_too_large", "request body exceeds the ingestion size limit")
		return
	}

	var raw []alertmodel.Raw
	if err := json.Unmarshal(body, &raw); err != nil {
		apierrors.WriteRequest(w, r, http.StatusBadRequest, "invalid_json", "body must be a JSON array of alert objects")
		return
	}

	now := h.Clock.Now()
	logger := h.Logger
	go func() {
		if err := h.Sites.ProcessAlerts(sm, raw, now); err != nil {
			logger.Error("ingest: processing failed after hand-off", "site", sm.Name(), "error", err)
		}
	}()

	w.WriteHeader(http.StatusOK)
}
