// Package config provides user configuration management for upnpdiscover.
//
// The configuration is a YAML file holding scan, description, search and
// server settings. Every field has a default, so the file only needs the
// values a user wants to change. Command-line flags override the file.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/upnpdiscover/config.yaml or $HOME/.config/upnpdiscover/config.yaml
//   - macOS: $HOME/.config/upnpdiscover/config.yaml
//   - Windows: %LOCALAPPDATA%\upnpdiscover\config.yaml
//
// # Example
//
//	version: 1
//	log_level: info
//	scan:
//	  timeout: 2s
//	  mx: 2
//	  ttl: 2
//	  interfaces: [eth0]
//	server:
//	  listen: ":8900"
//	  advertise: true
//
// # Validation
//
// Values are checked with go-playground/validator struct tags when the file
// is loaded and before it is saved. An invalid file is a load error.
package config
