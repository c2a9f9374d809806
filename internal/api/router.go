// Package api assembles the HTTP surface: the ingestion endpoint, the
// per-site status page, static assets and metrics, wrapped in an ordered
// middleware stack.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evilham/prometheus-adlermanager/internal/api/middleware"
	"github.com/evilham/prometheus-adlermanager/internal/ingest"
	"github.com/evilham/prometheus-adlermanager/internal/realtime"
	"github.com/evilham/prometheus-adlermanager/internal/sites"
	"github.com/evilham/prometheus-adlermanager/internal/webstatus"
)

// Config holds everything NewRouter needs to wire the service's routes.
type Config struct {
	Sites  *sites.Manager
	Bus    realtime.EventBus
	Engine *webstatus.Engine

	WebStaticDir string
	Logger       *slog.Logger

	EnableRateLimit    bool
	RateLimitPerMinute int
	RateLimitBurst     int

	EnableCORS bool
	CORSConfig middleware.CORSConfig

	EnableCompression bool
}

// DefaultConfig fills in sane defaults around the required collaborators.
func DefaultConfig(sitesManager *sites.Manager, bus realtime.EventBus, engine *webstatus.Engine, webStaticDir string, logger *slog.Logger) Config {
	return Config{
		Sites:              sitesManager,
		Bus:                bus,
		Engine:             engine,
		WebStaticDir:       webStaticDir,
		Logger:             logger,
		EnableRateLimit:    true,
		RateLimitPerMinute: 120,
		RateLimitBurst:     30,
		EnableCORS:         true,
		CORSConfig:         middleware.DefaultCORSConfig(),
		EnableCompression:  true,
	}
}

// NewRouter builds the router. The middleware stack is applied in order:
//  1. RequestID (always)
//  2. Logging (always)
//  3. Metrics (always)
//  4. CORS (if enabled)
//  5. Compression (if enabled)
//  6. Route-specific: Auth, RateLimit (if enabled), ContentType on the ingestion route
func NewRouter(cfg Config) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(cfg.Logger))
	router.Use(middleware.Metrics)

	if cfg.EnableCORS {
		router.Use(middleware.CORS(cfg.CORSConfig))
	}
	if cfg.EnableCompression {
		router.Use(middleware.Compression)
	}

	ingestHandler := &ingest.Handler{
		Sites:     cfg.Sites,
		SiteNamer: middleware.SiteFromRequest,
		Clock:     cfg.Sites.Clock(),
		Logger:    cfg.Logger,
	}

	alerts := router.Path("/api/v1/alerts").Subrouter()
	alerts.Use(middleware.Auth(cfg.Sites))
	if cfg.EnableRateLimit {
		alerts.Use(middleware.RateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst))
	}
	alerts.Use(middleware.ContentType)
	alerts.Methods(http.MethodPost).Handler(ingestHandler)

	statusHandler := &webstatus.Handler{Sites: cfg.Sites, Engine: cfg.Engine, Logger: cfg.Logger}
	router.Path("/").Methods(http.MethodGet).Handler(statusHandler)

	router.PathPrefix("/static/").Methods(http.MethodGet).Handler(webstatus.StaticHandler(cfg.WebStaticDir))

	router.Path("/metrics").Methods(http.MethodGet).Handler(promhttp.Handler())

	router.Path("/ws").Methods(http.MethodGet).Handler(&realtime.Handler{Bus: cfg.Bus, Logger: cfg.Logger})

	return router
}
