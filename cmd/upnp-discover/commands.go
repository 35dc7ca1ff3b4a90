package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/upnpdiscover/internal/config"
	"github.com/muurk/upnpdiscover/internal/description"
	"github.com/muurk/upnpdiscover/internal/discovery"
	"github.com/muurk/upnpdiscover/internal/search"
	"github.com/muurk/upnpdiscover/internal/ssdp"
	"github.com/muurk/upnpdiscover/internal/ui"
)

// Scan flags, shared by every command that scans
var (
	scanTimeout    time.Duration
	scanInterfaces []string
	showDevices    bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listenCmd)

	for _, cmd := range []*cobra.Command{scanCmd, findCmd} {
		addScanFlags(cmd)
		addDevicesFlag(cmd)
	}
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&scanTimeout, "timeout", ssdp.DefaultTimeout, "How long to wait for responses")
	cmd.Flags().StringSliceVar(&scanInterfaces, "interface", nil, "Only scan from these interfaces (repeatable)")
}

func addDevicesFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&showDevices, "devices", false, "Fetch descriptions and list one device per location")
}

// applyScanFlags copies the scan flags the user set over the config
func applyScanFlags(cmd *cobra.Command, c *config.Config) {
	if cmd.Flags().Changed("timeout") {
		c.Scan.Timeout = config.Duration(scanTimeout)
	}
	if cmd.Flags().Changed("interface") {
		c.Scan.Interfaces = scanInterfaces
	}
}

var scanTroubleshooting = []string{
	"Check that the devices are powered on and on the same network",
	"Make sure a firewall is not dropping UDP traffic on port 1900",
	"Try increasing --timeout for slow devices",
	"Use --interface to scan from a specific network interface",
}

// scanCmd runs a single scan
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the network for UPnP devices",
	Long: `Send SSDP M-SEARCH requests from every IPv4 interface and list the
responses.

Each response is one entry. A device usually answers with several entries,
one per device and service type it implements. Use --devices to fetch the
description documents and list one device per location instead.`,
	Example: `  # Scan with the default 2 second window
  upnp-discover scan

  # Summarise devices from their descriptions
  upnp-discover scan --devices

  # Scan only from eth0, as JSON
  upnp-discover scan --interface eth0 --format json`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	applyScanFlags(cmd, cfg)
	scanner := discovery.NewScanner(cfg.ScannerConfig())

	if err := runScanPass(cmd, scanner, "upnp-discover scan"); err != nil {
		return err
	}

	entries := scanner.Entries().Snapshot(nil)
	ssdp.SortByLocation(entries)
	return writeResults(cmd, scanner, entries)
}

// runScanPass prints the header and runs one forced scan behind a spinner
func runScanPass(cmd *cobra.Command, scanner *discovery.Scanner, command string, params ...ui.Param) error {
	out := cmd.OutOrStdout()
	timeout := cfg.Scan.Timeout.Std()

	if outputFormat != formatTable {
		return scanner.Refresh(cmd.Context())
	}

	interfaces := "all"
	if len(cfg.Scan.Interfaces) > 0 {
		interfaces = strings.Join(cfg.Scan.Interfaces, ", ")
	}
	printer := ui.NewPrinter(out)
	printer.PrintHeader("SSDP Scan", command, append([]ui.Param{
		{Key: "Targets", Value: strings.Join(ssdp.DefaultTargets, ", ")},
		{Key: "Interfaces", Value: interfaces},
		{Key: "Timeout", Value: timeout.String()},
	}, params...)...)

	err := ui.RunWithSpinner(cmd.Context(), out, "Scanning for UPnP devices...", timeout, scanner.Refresh)
	if err != nil {
		printer.PrintError("Scan failed", err, scanTroubleshooting...)
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// writeResults prints entries, or the devices behind them with --devices
func writeResults(cmd *cobra.Command, scanner *discovery.Scanner, entries []*ssdp.Entry) error {
	out := cmd.OutOrStdout()

	if outputFormat == formatTable && len(entries) == 0 {
		printer := ui.NewPrinter(out)
		printer.PrintWarning("No devices found",
			ui.Param{Key: "Timeout", Value: cfg.Scan.Timeout.String()},
		)
		return nil
	}

	if showDevices {
		devices := scanner.Devices(cmd.Context(), entries)
		return writeValue(out, outputFormat, devices, func() string {
			return ui.DeviceTable(devices)
		})
	}

	if entries == nil {
		entries = []*ssdp.Entry{}
	}
	return writeValue(out, outputFormat, entries, func() string {
		return ui.EntryTable(entries, time.Now())
	})
}

// Find flags
var (
	findTarget string
	findMatch  []string
)

// findCmd queries the inventory
var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find devices by search target or description fields",
	Long: `Scan and keep the entries that match a query.

--st keeps the entries whose ST header equals the target.

--match keeps the entries whose description has matching device fields.
Each --match is KEY=VALUE (or KEY:VALUE). Every key must match; repeating
a key accepts any of its values.`,
	Example: `  # Media servers only
  upnp-discover find --st urn:schemas-upnp-org:device:MediaServer:1

  # Sonos players in the kitchen or the lounge
  upnp-discover find --match manufacturer="Sonos, Inc." \
      --match friendlyName=Kitchen --match friendlyName=Lounge --devices`,
	Args: cobra.NoArgs,
	RunE: runFind,
}

func init() {
	findCmd.Flags().StringVar(&findTarget, "st", "", "Search target to keep")
	findCmd.Flags().StringArrayVar(&findMatch, "match", nil, "Description field to match, KEY=VALUE (repeatable)")
	findCmd.MarkFlagsMutuallyExclusive("st", "match")
	findCmd.MarkFlagsOneRequired("st", "match")
}

func runFind(cmd *cobra.Command, args []string) error {
	match, err := discovery.ParseMatch(findMatch)
	if err != nil {
		return err
	}

	applyScanFlags(cmd, cfg)
	scanner := discovery.NewScanner(cfg.ScannerConfig())

	query := ui.Param{Key: "Search target", Value: findTarget}
	if len(match) > 0 {
		query = ui.Param{Key: "Match", Value: match.String()}
	}
	if err := runScanPass(cmd, scanner, "upnp-discover find", query); err != nil {
		return err
	}

	var entries []*ssdp.Entry
	if len(match) > 0 {
		entries, err = scanner.FindByDescription(cmd.Context(), match)
	} else {
		entries, err = scanner.FindBySearchTarget(cmd.Context(), findTarget)
	}
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}

	ssdp.SortByLocation(entries)
	return writeResults(cmd, scanner, entries)
}

// Describe flags
var describeTimeout time.Duration

// describeCmd fetches one description document
var describeCmd = &cobra.Command{
	Use:   "describe <location>",
	Short: "Fetch and print a device description",
	Long: `Fetch the description document at a LOCATION URL and print it.

The XML document is shown as a nested outline, or as JSON or YAML with
--format. Namespace prefixes are stripped from element names and
attributes appear as @name keys.`,
	Example: `  upnp-discover describe http://192.168.1.20:1400/xml/device_description.xml

  upnp-discover describe http://192.168.1.20:1400/xml/device_description.xml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

func init() {
	describeCmd.Flags().DurationVar(&describeTimeout, "timeout", description.DefaultTimeout, "HTTP request timeout")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	location := args[0]
	out := cmd.OutOrStdout()

	timeout := cfg.Description.Timeout.Std()
	if cmd.Flags().Changed("timeout") {
		timeout = describeTimeout
	}

	d, err := description.NewFetcher(timeout).Fetch(cmd.Context(), location)
	if err != nil {
		if outputFormat == formatTable {
			tips := []string{"Check that the URL is reachable from this host"}
			if hint := description.GetTroubleshootingHint(err); hint != "" {
				tips = append([]string{hint}, tips...)
			}
			ui.NewPrinter(out).PrintError("Description fetch failed", err, tips...)
		}
		return fmt.Errorf("failed to fetch description: %w", err)
	}

	if outputFormat != formatTable {
		return writeValue(out, outputFormat, d, nil)
	}

	printer := ui.NewPrinter(out)
	if name := d.DeviceField("friendlyName"); name != "" {
		printer.PrintHeader(name, location,
			ui.Param{Key: "Manufacturer", Value: d.DeviceField("manufacturer")},
			ui.Param{Key: "Model", Value: d.DeviceField("modelName")},
			ui.Param{Key: "Type", Value: ui.ShortType(d.DeviceField("deviceType"))},
		)
	}
	printer.Println(ui.DescriptionTree(d))
	return nil
}

// Search and listen flags
var (
	searchTarget       string
	searchRetries      int
	searchResponseTime time.Duration
	searchInterface    string
	verbose            bool
)

// searchCmd runs the single-socket search
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search from one socket and print responses as they arrive",
	Long: `Send an M-SEARCH from a single socket, repeating it a few times since
multicast datagrams can be lost, and print each device once as its first
response arrives.

Each line starts with the time since the search began and the request
number. A line with only a request number marks a retry; request 0 marks
the end of the search.`,
	Example: `  upnp-discover search

  # Every device and service, with the raw responses
  upnp-discover search --target ssdp:all --verbose`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

// listenCmd prints the datagrams sent to the SSDP group
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print SSDP announcements until interrupted",
	Long: `Join the SSDP multicast group on every interface and print each datagram
received, mostly NOTIFY announcements and other hosts' searches.

Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	searchCmd.Flags().StringVarP(&searchTarget, "target", "t", "", "Search target (default from config, upnp:rootdevice)")
	searchCmd.Flags().IntVar(&searchRetries, "retries", search.DefaultRetries, "Number of requests sent")
	searchCmd.Flags().DurationVar(&searchResponseTime, "response-time", search.DefaultResponseTime, "Reply window requested from devices")
	searchCmd.Flags().StringVar(&searchInterface, "interface", "", "Send from this interface instead of the default route")
	searchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the raw datagrams")

	listenCmd.Flags().StringSliceVar(&scanInterfaces, "interface", nil, "Only join the group on these interfaces (repeatable)")
	listenCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the raw datagrams")
}

func outputMode() search.Mode {
	if verbose {
		return search.Verbose
	}
	return search.Plain
}

func runSearch(cmd *cobra.Command, args []string) error {
	s := cfg.Searcher()
	if cmd.Flags().Changed("target") {
		s.Target = searchTarget
	}
	if cmd.Flags().Changed("retries") {
		s.Retries = searchRetries
	}
	if cmd.Flags().Changed("response-time") {
		s.ResponseTime = searchResponseTime
	}
	s.Interface = searchInterface

	out := cmd.OutOrStdout()
	mode := outputMode()
	base := time.Now()

	err := s.Search(cmd.Context(), func(r search.Response) {
		fmt.Fprint(out, search.Format(r, base, mode))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return nil
}

func runListen(cmd *cobra.Command, args []string) error {
	l := search.NewListener()
	l.BufferSize = cfg.Search.Buffer
	l.Interfaces = cfg.Scan.Interfaces
	if cmd.Flags().Changed("interface") {
		l.Interfaces = scanInterfaces
	}

	out := cmd.OutOrStdout()
	mode := outputMode()
	base := time.Now()

	err := l.Listen(cmd.Context(), func(r search.Response) {
		fmt.Fprint(out, search.Format(r, base, mode))
	})
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}
	return nil
}
