// Package discovery keeps an inventory of the UPnP devices on the local
// network.
//
// A Scanner owns two caches. The EntryCache holds the SSDP entries seen by
// successive scans and rescans at most once per MinInterval (59 seconds by
// default) unless a refresh is forced. The description cache holds each
// device's description document, fetched once per location.
//
// # Queries
//
//	scanner := discovery.NewScanner(discovery.Config{})
//
//	// Every entry
//	entries, err := scanner.All(ctx)
//
//	// Entries advertising a search target
//	roots, err := scanner.FindBySearchTarget(ctx, "upnp:rootdevice")
//
//	// Entries whose description matches, one per location
//	match := discovery.Match{"manufacturer": {"Sonos, Inc."}}
//	speakers, err := scanner.FindByDescription(ctx, match)
//
// Queries return an error only when the scan itself cannot run, such as
// when interface enumeration fails or a response overflows the receive
// buffer. Unreachable devices and broken descriptions are logged and
// leave the result set smaller.
//
// # Thread Safety
//
// Scanner and EntryCache are safe for concurrent use. Concurrent queries
// that need a scan wait for a single pass.
package discovery
