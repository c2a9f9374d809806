package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evilham/prometheus-adlermanager/internal/api"
	"github.com/evilham/prometheus-adlermanager/internal/audit"
	"github.com/evilham/prometheus-adlermanager/internal/config"
	"github.com/evilham/prometheus-adlermanager/internal/metrics"
	"github.com/evilham/prometheus-adlermanager/internal/realtime"
	"github.com/evilham/prometheus-adlermanager/internal/sites"
	"github.com/evilham/prometheus-adlermanager/internal/sshadmin"
	"github.com/evilham/prometheus-adlermanager/internal/webstatus"
	"github.com/evilham/prometheus-adlermanager/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status-page daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Output:     outputFor(cfg.LogFile),
		Filename:   cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
	log.Info("starting "+serviceName, "version", serviceVersion, "data_dir", cfg.DataDir)

	coreMetrics := metrics.New("adlermanager")
	realtimeMetrics := realtime.NewRealtimeMetrics("adlermanager")

	sink, closeSink, err := auditSink(cfg.AuditDBPath, log)
	if err != nil {
		return err
	}
	defer closeSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := realtime.NewEventBus(log, realtimeMetrics)
	if err := eventBus.Start(ctx); err != nil {
		return err
	}
	defer eventBus.Stop(context.Background())

	publisher := realtime.NewEventPublisher(eventBus, log, realtimeMetrics)

	sitesManager, err := sites.New(cfg.DataDir, sites.Config{
		MonitoringDownTimeout: cfg.MonitoringDownTimeout,
		GroupTimeout:          cfg.GroupTimeout,
		AlertResolveTimeout:   cfg.AlertResolveTimeout,
		Logger:                log,
		Sink:                  sink,
		Metrics:               coreMetrics,
		Publisher:             publisher,
	})
	if err != nil {
		return err
	}

	engine := &webstatus.Engine{}

	routerCfg := api.DefaultConfig(sitesManager, eventBus, engine, cfg.WebStaticDir, log)
	router := api.NewRouter(routerCfg)

	httpServer := &http.Server{
		Addr:    cfg.WebEndpoint,
		Handler: router,
	}

	signalHandler := NewSignalHandler(sitesManager, log)
	signalHandler.Start()
	defer signalHandler.Stop()

	var sshServer *sshadmin.Server
	if cfg.SSHEnabled {
		sshServer = &sshadmin.Server{
			Addr:    cfg.SSHEndpoint,
			KeysDir: cfg.SSHKeysDir,
			Sites:   sitesManager,
			Logger:  log,
		}
		if err := sshServer.Listen(); err != nil {
			return err
		}
		go func() {
			if err := sshServer.Serve(ctx); err != nil {
				log.Error("sshadmin: server stopped", "error", err)
			}
		}()
		log.Info("ssh admin shell listening", "addr", cfg.SSHEndpoint)
	}

	serverErrs := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.WebEndpoint)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
			return
		}
		serverErrs <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrs:
		if err != nil {
			return err
		}
	case <-quit:
		log.Info("shutting down")
	}

	cancel()
	if sshServer != nil {
		sshServer.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced shutdown", "error", err)
	}

	log.Info("stopped cleanly")
	return nil
}

func auditSink(path string, log *slog.Logger) (audit.Sink, func() error, error) {
	if path == "" {
		return audit.Noop{}, func() error { return nil }, nil
	}
	sink, err := audit.OpenSQLiteSink(path, log)
	if err != nil {
		return nil, nil, err
	}
	return sink, sink.Close, nil
}

func outputFor(filename string) string {
	if filename == "" {
		return "stdout"
	}
	return "file"
}
