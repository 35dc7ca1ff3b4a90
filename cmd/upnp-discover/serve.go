package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/upnpdiscover/internal/config"
	"github.com/muurk/upnpdiscover/internal/discovery"
	"github.com/muurk/upnpdiscover/internal/metrics"
	"github.com/muurk/upnpdiscover/internal/server"
	"github.com/muurk/upnpdiscover/internal/ui"
)

// Serve flags
var (
	serveListen    string
	serveRefresh   time.Duration
	serveAdvertise bool
	serveInstance  string
	serveCert      string
	serveKey       string
	serveMetrics   bool
	serveCORS      []string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(peersCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the device inventory over HTTP",
	Long: `Keep an inventory of UPnP devices and serve it over HTTP.

The network is rescanned every --refresh interval. Clients of /ws receive
the inventory as JSON after every refresh. With --advertise the API is
announced over mDNS so that 'upnp-discover peers' can find it.

Endpoints:
  GET  /api/v1/health
  GET  /api/v1/entries[?st=TARGET]
  GET  /api/v1/devices[?match=KEY:VALUE...]
  GET  /api/v1/description?location=URL
  POST /api/v1/scan
  GET  /ws
  GET  /metrics`,
	Example: `  # Serve on the default port
  upnp-discover serve

  # Rescan every 5 minutes and announce over mDNS
  upnp-discover serve --refresh 5m --advertise

  # Serve over TLS
  upnp-discover serve --listen :8443 --cert cert.pem --key key.pem`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (default from config, :8900)")
	serveCmd.Flags().DurationVar(&serveRefresh, "refresh", server.DefaultRefreshInterval, "Interval between background scans")
	serveCmd.Flags().BoolVar(&serveAdvertise, "advertise", false, "Announce the API over mDNS")
	serveCmd.Flags().StringVar(&serveInstance, "instance", "", "mDNS instance name (default is the hostname)")
	serveCmd.Flags().StringVar(&serveCert, "cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&serveKey, "key", "", "Path to TLS private key file")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().StringSliceVar(&serveCORS, "cors-origin", nil, "Browser origin allowed to call the API (repeatable, * for any)")
	serveCmd.MarkFlagsRequiredTogether("cert", "key")
	addScanFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Server.Listen = serveListen
	}
	if flags.Changed("refresh") {
		cfg.Server.RefreshInterval = config.Duration(serveRefresh)
	}
	if flags.Changed("advertise") {
		cfg.Server.Advertise = serveAdvertise
	}
	if flags.Changed("instance") {
		cfg.Server.Instance = serveInstance
	}
	if flags.Changed("cert") {
		cfg.Server.CertFile, cfg.Server.KeyFile = serveCert, serveKey
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigins = serveCORS
	}
	applyScanFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var collector *metrics.Collector
	if serveMetrics {
		collector = metrics.New()
	}

	scannerConfig := cfg.ScannerConfig()
	scannerConfig.Metrics = collector
	scanner := discovery.NewScanner(scannerConfig)

	serverConfig := cfg.ServerConfig(collector)
	srv, err := server.New(&serverConfig, scanner)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr, err := srv.Listen()
	if err != nil {
		return err
	}

	scheme := "http"
	if cfg.Server.CertFile != "" {
		scheme = "https"
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("Inventory Server", "upnp-discover serve",
		ui.Param{Key: "Listen", Value: fmt.Sprintf("%s://%s", scheme, addr)},
		ui.Param{Key: "Refresh", Value: cfg.Server.RefreshInterval.String()},
		ui.Param{Key: "Advertise", Value: strconv.FormatBool(cfg.Server.Advertise)},
		ui.Param{Key: "Metrics", Value: strconv.FormatBool(serveMetrics)},
		ui.Param{Key: "Server ID", Value: srv.ID()},
	)

	return srv.Start(cmd.Context())
}

// Peers flags
var peersTimeout time.Duration

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List inventory servers announced over mDNS",
	Long: `Browse mDNS for inventory servers started with 'serve --advertise' and
list their API addresses.`,
	Args: cobra.NoArgs,
	RunE: runPeers,
}

func init() {
	peersCmd.Flags().DurationVar(&peersTimeout, "wait", server.DefaultBrowseTimeout, "How long to listen for announcements")
}

func runPeers(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var peers []*server.Peer
	browse := func(ctx context.Context) error {
		var err error
		peers, err = server.BrowsePeers(ctx, peersTimeout)
		return err
	}

	var err error
	if outputFormat == formatTable {
		err = ui.RunWithSpinner(cmd.Context(), out, "Browsing for inventory servers...", peersTimeout, browse)
	} else {
		err = browse(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}

	if outputFormat == formatTable && len(peers) == 0 {
		ui.NewPrinter(out).PrintWarning("No inventory servers found",
			ui.Param{Key: "Service", Value: server.ServiceType},
			ui.Param{Key: "Waited", Value: peersTimeout.String()},
		)
		return nil
	}

	if peers == nil {
		peers = []*server.Peer{}
	}
	return writeValue(out, outputFormat, peers, func() string {
		rows := make([][]string, 0, len(peers))
		for _, p := range peers {
			rows = append(rows, []string{p.Instance, p.BaseURL(), p.Hostname, p.Metadata["version"]})
		}
		return ui.Table([]string{"INSTANCE", "API", "HOST", "VERSION"}, rows)
	})
}
