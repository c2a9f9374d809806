// Package webstatus renders the read-only per-site status page
// and serves the operator-supplied static asset directory. Site lookup is
// done per request from the Host header rather than a startup-built routing
// table, since sites.Manager.Reload can add or remove sites at any time.
package webstatus

import (
	"bytes"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/evilham/prometheus-adlermanager/internal/apierrors"
	"github.com/evilham/prometheus-adlermanager/internal/site"
	"github.com/evilham/prometheus-adlermanager/internal/sites"
)

// SiteLookup is the subset of *sites.Manager the status page needs.
type SiteLookup interface {
	Lookup(name string) (*site.Manager, bool)
}

var _ SiteLookup = (*sites.Manager)(nil)

// Handler serves GET /: 200 with rendered HTML, 404 if the Host doesn't
// match a known site, 400 if the Host header can't be parsed, 500 if the
// template fails to render.
type Handler struct {
	Sites  SiteLookup
	Engine *Engine
	Logger *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if h, _, err := net.SplitHostPort(r.Host); err == nil {
		host = h
	} else if host == "" {
		apierrors.WriteRequest(w, r, http.StatusBadRequest, "invalid_host", "could not decode Host header")
		return
	}

	sm, ok := h.Sites.Lookup(host)
	if !ok {
		apierrors.WriteRequest(w, r, http.StatusNotFound, "unknown_site", "no site matches this host")
		return
	}

	var buf bytes.Buffer
	if err := h.Engine.Render(&buf, viewFromSite(sm)); err != nil {
		h.Logger.Error("status page render failed", "site", sm.Name(), "error", err)
		apierrors.WriteRequest(w, r, http.StatusInternalServerError, "render_failed", "failed to render status page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// View is the data handed to the status page template.
type View struct {
	Site           string
	Title          string
	Status         string
	StatusTag      string
	MonitoringDown bool
	Services       []ServiceView
	Override       OverrideView
	GeneratedAt    time.Time
}

// ServiceView is one service row on the status page.
type ServiceView struct {
	Label      string
	Status     string
	StatusTag  string
	Components []ComponentView
}

// ComponentView is one component row nested under a service.
type ComponentView struct {
	Label     string
	Status    string
	StatusTag string
}

// OverrideView surfaces the operator-set message/forced state (site.Override).
type OverrideView struct {
	Forced bool
	Title  string
	Body   string
}

func viewFromSite(sm *site.Manager) View {
	status := sm.Status()
	override := sm.SiteConfig()

	services := sm.Services()
	svcViews := make([]ServiceView, 0, len(services))
	for _, svc := range services {
		comps := make([]ComponentView, 0, len(svc.Components))
		for _, c := range svc.Components {
			comps = append(comps, ComponentView{
				Label:     c.Component.Label,
				Status:    c.Status.String(),
				StatusTag: c.Status.Tag(),
			})
		}
		svcViews = append(svcViews, ServiceView{
			Label:      svc.Label,
			Status:     svc.Status.String(),
			StatusTag:  svc.Status.Tag(),
			Components: comps,
		})
	}

	return View{
		Site:           sm.Name(),
		Title:          sm.Title(),
		Status:         status.String(),
		StatusTag:      status.Tag(),
		MonitoringDown: sm.IsMonitoringDown(),
		Services:       svcViews,
		Override: OverrideView{
			Forced: override.StateIsForced(),
			Title:  override.Title(),
			Body:   override.Body(),
		},
		GeneratedAt: time.Now(),
	}
}
