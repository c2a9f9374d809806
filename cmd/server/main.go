// Command server runs the prometheus-adlermanager status-page daemon:
// ingestion endpoint, per-site status pages, SSH admin shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	serviceName    = "prometheus-adlermanager"
	serviceVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:     "server",
	Short:   "Per-site status-page backend",
	Long:    serviceName + " ingests AlertManager-compatible webhook alerts, folds them into a hierarchical site/service/component/incident state machine, and serves read-only status pages plus a token-authenticated ingestion endpoint.",
	Version: serviceVersion,
}

func main() {
	rootCmd.AddCommand(serveCmd, reloadCheckCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
