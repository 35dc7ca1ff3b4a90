// Upnp-discover finds UPnP devices on the local network with SSDP.
//
// It sends M-SEARCH requests from every IPv4 interface, collects the
// responses, fetches device descriptions and can serve the resulting
// inventory over HTTP.
//
// Usage:
//
//	upnp-discover [command] [flags]
//
// Running without arguments performs a single scan.
// See 'upnp-discover --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/upnpdiscover/internal/config"
	"github.com/muurk/upnpdiscover/internal/logging"
	"github.com/muurk/upnpdiscover/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath   string
	logLevel     string
	outputFormat string
)

// cfg is loaded before any command runs
var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "upnp-discover",
	Short: "UPnP Device Discovery Utility",
	Long: `Discover UPnP devices on the local network using SSDP.

A scan sends M-SEARCH requests for ssdp:all and upnp:rootdevice from every
IPv4 interface and collects the responses. Device descriptions are fetched
on demand and cached for the life of the process.

If no command is specified, a single scan is performed.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runScan,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the per-user config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); also "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", formatTable, "Output format (table, json, yaml)")

	addScanFlags(rootCmd)
	addDevicesFlag(rootCmd)

	rootCmd.AddCommand(versionCmd)
}

// setup loads the config file and starts logging. The log level comes from
// --log-level, then the environment, then the config file.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	level := logLevel
	if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		level = cfg.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}

	outputFormat, err = parseFormat(outputFormat)
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "upnp-discover %s (commit: %s)\n", version.Version, version.Commit)
	},
}
