package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/evilham/prometheus-adlermanager/internal/sites"
)

// SignalHandler listens for SIGHUP and triggers sites.Manager.Reload(),
// debounced so a burst of signals (e.g. a script touching several site
// directories) only triggers one reload pass.
type SignalHandler struct {
	sites  *sites.Manager
	logger *slog.Logger

	lastReloadTime atomic.Value // time.Time
	debounceWindow time.Duration

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	sigChan    chan os.Signal
	reloadChan chan struct{}
}

// NewSignalHandler builds a handler bound to sitesManager.
func NewSignalHandler(sitesManager *sites.Manager, logger *slog.Logger) *SignalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SignalHandler{
		sites:          sitesManager,
		logger:         logger,
		debounceWindow: time.Second,
		ctx:            ctx,
		cancel:         cancel,
		sigChan:        make(chan os.Signal, 1),
		reloadChan:     make(chan struct{}, 10),
	}
}

// Start begins listening for SIGHUP.
func (h *SignalHandler) Start() {
	signal.Notify(h.sigChan, syscall.SIGHUP)

	h.wg.Add(2)
	go h.signalListener()
	go h.reloadWorker()

	h.logger.Info("signal handler started", "signals", []string{"SIGHUP"})
}

// Stop stops signal handling and waits for in-flight reloads to finish.
func (h *SignalHandler) Stop() {
	signal.Stop(h.sigChan)
	close(h.sigChan)
	h.cancel()
	h.wg.Wait()
	h.logger.Info("signal handler stopped")
}

func (h *SignalHandler) signalListener() {
	defer h.wg.Done()
	for {
		select {
		case sig, ok := <-h.sigChan:
			if !ok {
				return
			}
			h.logger.Info("received signal", "signal", sig.String())
			select {
			case h.reloadChan <- struct{}{}:
			default:
				h.logger.Warn("reload queue full, skipping request")
			}
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *SignalHandler) reloadWorker() {
	defer h.wg.Done()
	for {
		select {
		case <-h.reloadChan:
			if h.shouldDebounce() {
				h.logger.Debug("reload debounced")
				continue
			}
			h.lastReloadTime.Store(time.Now())
			h.executeReload()
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *SignalHandler) shouldDebounce() bool {
	v := h.lastReloadTime.Load()
	if v == nil {
		return false
	}
	return time.Since(v.(time.Time)) < h.debounceWindow
}

func (h *SignalHandler) executeReload() {
	start := time.Now()
	if err := h.sites.Reload(); err != nil {
		h.logger.Error("site tree reload failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	h.logger.Info("site tree reloaded", "duration_ms", time.Since(start).Milliseconds())
}
