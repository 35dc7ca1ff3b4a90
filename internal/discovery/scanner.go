package discovery

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/muurk/upnpdiscover/internal/description"
	"github.com/muurk/upnpdiscover/internal/metrics"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

// DefaultConcurrency is the number of descriptions fetched in parallel
const DefaultConcurrency = 8

// Config configures a Scanner. Zero values select the defaults.
type Config struct {
	// SSDP configures each scan pass
	SSDP ssdp.Options

	// MinInterval is how long a scan is reused by queries
	MinInterval time.Duration

	// DescriptionTimeout bounds each description request
	DescriptionTimeout time.Duration

	// Concurrency limits parallel description fetches
	Concurrency int

	// Metrics records scans and fetches, may be nil
	Metrics *metrics.Collector

	// Scan overrides the discovery pass
	Scan ScanFunc

	// Descriptions overrides the description cache
	Descriptions *description.Cache
}

// Scanner answers inventory queries from an entry cache and a description
// cache. It is safe for concurrent use.
type Scanner struct {
	entries      *EntryCache
	descriptions *description.Cache
	concurrency  int
}

// NewScanner creates a Scanner with empty caches
func NewScanner(cfg Config) *Scanner {
	scan := cfg.Scan
	if scan == nil {
		opts := cfg.SSDP
		scan = func(ctx context.Context) ([]*ssdp.Entry, error) {
			return ssdp.Scan(ctx, opts)
		}
	}

	entries := NewEntryCache(scan)
	entries.Metrics = cfg.Metrics
	if cfg.MinInterval > 0 {
		entries.MinInterval = cfg.MinInterval
	}

	descriptions := cfg.Descriptions
	if descriptions == nil {
		descriptions = description.NewCache(
			description.WithTimeout(cfg.DescriptionTimeout),
			description.WithMetrics(cfg.Metrics),
		)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Scanner{
		entries:      entries,
		descriptions: descriptions,
		concurrency:  concurrency,
	}
}

// Entries returns the underlying entry cache
func (s *Scanner) Entries() *EntryCache {
	return s.entries
}

// Descriptions returns the underlying description cache
func (s *Scanner) Descriptions() *description.Cache {
	return s.descriptions
}

// All returns every unexpired entry, scanning first if the last scan is
// too old
func (s *Scanner) All(ctx context.Context) ([]*ssdp.Entry, error) {
	return s.entries.All(ctx)
}

// FindBySearchTarget returns the unexpired entries advertising target
func (s *Scanner) FindBySearchTarget(ctx context.Context, target string) ([]*ssdp.Entry, error) {
	return s.entries.FindBySearchTarget(ctx, target)
}

// FindByDescription returns the entries whose description's device element
// satisfies match. At most one entry is returned per location.
func (s *Scanner) FindByDescription(ctx context.Context, match Match) ([]*ssdp.Entry, error) {
	entries, err := s.entries.All(ctx)
	if err != nil {
		return nil, err
	}

	docs := s.describeAll(ctx, entries)

	seen := make(map[string]bool)
	var found []*ssdp.Entry
	for _, e := range entries {
		location := e.Location()
		if seen[location] {
			continue
		}
		if match.Matches(docs[location].Device()) {
			seen[location] = true
			found = append(found, e)
		}
	}
	return found, nil
}

// Refresh forces a scan regardless of the last scan time
func (s *Scanner) Refresh(ctx context.Context) error {
	return s.entries.Refresh(ctx, true)
}

// Describe returns the description at location. Failures yield an empty
// description.
func (s *Scanner) Describe(ctx context.Context, location string) description.Description {
	return s.descriptions.Describe(ctx, location)
}

// Devices summarises entries, one Device per location. Entries without a
// location are skipped.
func (s *Scanner) Devices(ctx context.Context, entries []*ssdp.Entry) []*Device {
	docs := s.describeAll(ctx, entries)

	seen := make(map[string]bool)
	devices := make([]*Device, 0, len(entries))
	for _, e := range entries {
		location := e.Location()
		if location == description.NoLocation || seen[location] {
			continue
		}
		seen[location] = true
		devices = append(devices, NewDevice(e, docs[location]))
	}
	return devices
}

// ListDevices returns the devices matching match, or every device when
// match is empty
func (s *Scanner) ListDevices(ctx context.Context, match Match) ([]*Device, error) {
	var (
		entries []*ssdp.Entry
		err     error
	)
	if len(match) == 0 {
		entries, err = s.All(ctx)
	} else {
		entries, err = s.FindByDescription(ctx, match)
	}
	if err != nil {
		return nil, err
	}
	return s.Devices(ctx, entries), nil
}

// describeAll fetches the descriptions of every distinct location in
// parallel
func (s *Scanner) describeAll(ctx context.Context, entries []*ssdp.Entry) map[string]description.Description {
	locations := make([]string, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		if l := e.Location(); !seen[l] {
			seen[l] = true
			locations = append(locations, l)
		}
	}

	results := make([]description.Description, len(locations))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, location := range locations {
		g.Go(func() error {
			results[i] = s.descriptions.Describe(ctx, location)
			return nil
		})
	}
	_ = g.Wait()

	docs := make(map[string]description.Description, len(locations))
	for i, location := range locations {
		docs[location] = results[i]
	}
	return docs
}
