// Package ui provides terminal UI components for the upnp-discover CLI.
//
// Output is rendered with Lipgloss, and Bubble Tea drives the one piece
// of animation: the spinner shown while a network scan is in flight. The
// components follow a "run once and exit" pattern. They render output but
// never need user interaction, apart from Confirm.
//
// # Components
//
//   - Header: command banner showing the operation name and parameters
//   - Result: success, warning and failure boxes with details and tips
//   - Table, EntryTable, DeviceTable: bordered tables for scan results
//   - DescriptionTree: an indented outline of a device description
//   - RunWithSpinner: spinner and progress bar around a blocking scan
//
// # Usage
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("SSDP Scan", "upnp-discover scan",
//	    ui.Param{Key: "Targets", Value: "upnp:rootdevice"},
//	    ui.Param{Key: "Timeout", Value: "2s"},
//	)
//
//	err := ui.RunWithSpinner(ctx, os.Stdout, "Scanning", 2*time.Second, scanner.Refresh)
//	if err != nil {
//	    p.PrintError("Scan failed", err, "Check that multicast is allowed on this network")
//	    return err
//	}
//	p.Println(ui.EntryTable(scanner.Entries().Snapshot(nil), time.Now()))
//
// RunWithSpinner only animates when its writer is a terminal, so the
// same code produces clean output when piped.
package ui
