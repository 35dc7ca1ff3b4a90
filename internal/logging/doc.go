// Package logging provides structured logging for upnp-discover.
//
// This package wraps a package-global zap logger with convenience functions.
// Logging is silent unless a level is configured, so that command output on
// stdout stays machine-readable.
//
// # Log Levels
//
//   - Debug: datagram dumps, skipped sockets, cache hits
//   - Info: scans, refreshes, served HTTP requests
//   - Warn: description fetch failures, dropped sockets
//   - Error: server failures
//
// # Configuration
//
// The level comes from the --log-level flag, the log_level config key, or the
// UPNP_LOG_LEVEL environment variable, in that order:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Logs are written to stderr in console format.
//
// # Structured Logging
//
//	logging.Warn("Description fetch failed",
//	    zap.String("location", location),
//	    zap.Error(err),
//	)
package logging
