// Package server exposes a discovery.Scanner as an HTTP inventory service.
//
// The server rescans the network every refresh interval and answers
// queries from the cached inventory. Every query goes through the scanner,
// so a stale cache is refreshed on demand too.
//
// # Endpoints
//
//	GET  /api/v1/health                      inventory state, never scans
//	GET  /api/v1/entries[?st=target]         cached SSDP entries
//	GET  /api/v1/devices[?match=key:value]   device summaries, match repeatable
//	GET  /api/v1/description?location=url    description of a known location
//	POST /api/v1/scan                        force a scan, returns a Snapshot
//	GET  /ws                                 Snapshot on connect and after each refresh
//	GET  /metrics                            Prometheus metrics (when a collector is set)
//
// Only locations present in the inventory can be described, so the API
// cannot be used to fetch arbitrary URLs.
//
// Browsers may call the API from the origins in Config.CORSOrigins. With
// no origins configured, cross-origin requests get no CORS headers and
// preflight requests are rejected.
//
// # mDNS
//
// With Advertise set the API is announced as ServiceType. TXT records carry
// the API path, the instance id, the version and whether TLS is on.
// BrowsePeers lists the servers announcing themselves on the network.
//
// # Usage Example
//
//	scanner := discovery.NewScanner(cfg.ScannerConfig())
//	srv, err := server.New(&server.Config{
//	    Listen:          ":8900",
//	    RefreshInterval: time.Minute,
//	    Advertise:       true,
//	}, scanner)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Start handles SIGINT and SIGTERM:
//  1. Withdraw the mDNS advertisement
//  2. Close WebSocket clients
//  3. Stop accepting requests and wait for in-flight ones
//  4. Stop the refresh loop
package server
