package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/muurk/upnpdiscover/internal/description"
	"github.com/muurk/upnpdiscover/internal/discovery"
	"github.com/muurk/upnpdiscover/internal/metrics"
	"github.com/muurk/upnpdiscover/internal/search"
	"github.com/muurk/upnpdiscover/internal/server"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Config represents the entire user configuration file.
type Config struct {
	Version     int               `yaml:"version" validate:"eq=1"`
	LogLevel    string            `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	Scan        ScanConfig        `yaml:"scan"`
	Description DescriptionConfig `yaml:"description"`
	Search      SearchConfig      `yaml:"search"`
	Server      ServerConfig      `yaml:"server"`
}

// ScanConfig controls the multi-interface discovery pass.
type ScanConfig struct {
	Timeout       Duration `yaml:"timeout" validate:"gt=0"`                     // Receive window after the requests
	MX            int      `yaml:"mx" validate:"min=1,max=5"`                   // Reply delay suggested to devices, seconds
	TTL           int      `yaml:"ttl" validate:"min=1,max=255"`                // Multicast hop limit
	ReceiveBuffer int      `yaml:"receive_buffer" validate:"min=512,max=65536"` // Bytes per datagram
	MinInterval   Duration `yaml:"min_interval" validate:"gte=0"`               // Reuse window for cached scans
	Interfaces    []string `yaml:"interfaces,omitempty" validate:"dive,min=1"`  // Restrict to these interfaces
}

// DescriptionConfig controls description document fetches.
type DescriptionConfig struct {
	Timeout     Duration `yaml:"timeout" validate:"gt=0"`
	Concurrency int      `yaml:"concurrency" validate:"min=1,max=64"`
}

// SearchConfig controls the single-socket search command.
type SearchConfig struct {
	Target       string   `yaml:"target" validate:"required"`
	Retries      int      `yaml:"retries" validate:"min=1,max=10"`
	ResponseTime Duration `yaml:"response_time" validate:"gt=0"`
	Buffer       int      `yaml:"buffer" validate:"min=512,max=65536"`
}

// ServerConfig controls the inventory HTTP server.
type ServerConfig struct {
	Listen          string   `yaml:"listen" validate:"required,hostname_port"`
	RefreshInterval Duration `yaml:"refresh_interval" validate:"gt=0"`
	Advertise       bool     `yaml:"advertise"`                            // Announce the API over mDNS
	Instance        string   `yaml:"instance,omitempty" validate:"max=63"` // mDNS instance name, defaults to the hostname
	CertFile        string   `yaml:"cert_file,omitempty" validate:"required_with=KeyFile"`
	KeyFile         string   `yaml:"key_file,omitempty" validate:"required_with=CertFile"`
	CORSOrigins     []string `yaml:"cors_origins,omitempty" validate:"dive,required"` // Browser origins allowed to call the API
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Scan: ScanConfig{
			Timeout:       Duration(ssdp.DefaultTimeout),
			MX:            ssdp.DefaultMX,
			TTL:           ssdp.DefaultTTL,
			ReceiveBuffer: ssdp.DefaultReceiveBufferSize,
			MinInterval:   Duration(discovery.DefaultMinInterval),
		},
		Description: DescriptionConfig{
			Timeout:     Duration(description.DefaultTimeout),
			Concurrency: discovery.DefaultConcurrency,
		},
		Search: SearchConfig{
			Target:       ssdp.TargetRootDevice,
			Retries:      search.DefaultRetries,
			ResponseTime: Duration(search.DefaultResponseTime),
			Buffer:       ssdp.DefaultReceiveBufferSize,
		},
		Server: ServerConfig{
			Listen:          ":8900",
			RefreshInterval: Duration(time.Minute),
		},
	}
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SSDPOptions returns the scan options described by the config.
func (c *Config) SSDPOptions() ssdp.Options {
	return ssdp.Options{
		Timeout:           c.Scan.Timeout.Std(),
		MX:                c.Scan.MX,
		TTL:               c.Scan.TTL,
		ReceiveBufferSize: c.Scan.ReceiveBuffer,
		Interfaces:        c.Scan.Interfaces,
	}
}

// ScannerConfig returns the inventory scanner settings described by the
// config.
func (c *Config) ScannerConfig() discovery.Config {
	return discovery.Config{
		SSDP:               c.SSDPOptions(),
		MinInterval:        c.Scan.MinInterval.Std(),
		DescriptionTimeout: c.Description.Timeout.Std(),
		Concurrency:        c.Description.Concurrency,
	}
}

// Searcher returns a search.Searcher configured from the config.
func (c *Config) Searcher() *search.Searcher {
	s := search.NewSearcher()
	s.Target = c.Search.Target
	s.Retries = c.Search.Retries
	s.ResponseTime = c.Search.ResponseTime.Std()
	s.BufferSize = c.Search.Buffer
	s.TTL = c.Scan.TTL
	return s
}

// ServerConfig returns the inventory server settings described by the
// config.
func (c *Config) ServerConfig(m *metrics.Collector) server.Config {
	return server.Config{
		Listen:          c.Server.Listen,
		RefreshInterval: c.Server.RefreshInterval.Std(),
		Advertise:       c.Server.Advertise,
		Instance:        c.Server.Instance,
		CertPath:        c.Server.CertFile,
		KeyPath:         c.Server.KeyFile,
		CORSOrigins:     c.Server.CORSOrigins,
		Metrics:         m,
	}
}

// Duration is a time.Duration written as a string such as "2s" or "1m30s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML writes d in time.Duration notation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts "2s" style strings and bare integers as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}

	var seconds int64
	if value.Tag == "!!int" {
		if err := value.Decode(&seconds); err != nil {
			return err
		}
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}
