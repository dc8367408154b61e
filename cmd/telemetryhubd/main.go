// Command telemetryhubd is the root CLI binary: produce, work, inspect,
// and serve subcommands over one named queue, grounded on
// ChuLiYu-raft-recovery/internal/cli/cli.go's BuildCLI layout and
// ChuLiYu-raft-recovery/cmd/queue/main.go's ldflags-injected version
// pattern.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"telemetryhub/internal/cliutil"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configFile string
	var logLevel string

	root := &cobra.Command{
		Use:     "telemetryhubd",
		Short:   "telemetryhubd runs the telemetry task scheduler's producer, worker, and inspector",
		Version: cliutil.String(),
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "INI config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.SetVersionTemplate("{{.Version}}\n")

	root.AddCommand(buildProduceCmd(&configFile, &logLevel))
	root.AddCommand(buildWorkCmd(&configFile, &logLevel))
	root.AddCommand(buildInspectCmd(&configFile, &logLevel))
	root.AddCommand(buildServeCmd(&configFile, &logLevel))

	return root
}
