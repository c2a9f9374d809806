package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evilham/prometheus-adlermanager/internal/audit"
	"github.com/evilham/prometheus-adlermanager/internal/config"
	"github.com/evilham/prometheus-adlermanager/internal/sites"
)

// reloadCheckCmd loads the site tree once and reports any site.yml or
// tokens.txt problem without binding a port.
var reloadCheckCmd = &cobra.Command{
	Use:   "reload-check",
	Short: "Load the site tree and report errors without starting the server",
	RunE:  runReloadCheck,
}

func runReloadCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sitesManager, err := sites.New(cfg.DataDir, sites.Config{
		MonitoringDownTimeout: cfg.MonitoringDownTimeout,
		GroupTimeout:          cfg.GroupTimeout,
		AlertResolveTimeout:   cfg.AlertResolveTimeout,
		Sink:                  audit.Noop{},
	})
	if err != nil {
		return fmt.Errorf("reload-check: %w", err)
	}

	loaded := sitesManager.Sites()
	fmt.Printf("loaded %d site(s) from %s\n", len(loaded), cfg.DataDir)
	for _, sm := range loaded {
		fmt.Printf("  %s: %q\n", sm.Name(), sm.Title())
	}
	return nil
}
