package discovery

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/upnpdiscover/internal/logging"
	"github.com/muurk/upnpdiscover/internal/metrics"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

// DefaultMinInterval is how long a scan result is reused before another
// scan is run
const DefaultMinInterval = 59 * time.Second

// ScanFunc runs one discovery pass
type ScanFunc func(ctx context.Context) ([]*ssdp.Entry, error)

// EntryCache accumulates the entries seen by successive scans.
//
// Entries are kept until they expire. A new entry is merged only when no
// cached entry has exactly the same headers, so a device that changes any
// header value (a boot counter, for instance) is held twice until the older
// entry expires.
type EntryCache struct {
	// MinInterval is how long a scan is reused by queries
	MinInterval time.Duration

	// Now is the clock used for expiry and throttling
	Now func() time.Time

	// Metrics records scans, may be nil
	Metrics *metrics.Collector

	scan ScanFunc

	// scanMu serializes scans; mu guards the fields below
	scanMu   sync.Mutex
	mu       sync.Mutex
	entries  []*ssdp.Entry
	lastScan time.Time
}

// NewEntryCache creates an empty cache filled by scan
func NewEntryCache(scan ScanFunc) *EntryCache {
	return &EntryCache{
		MinInterval: DefaultMinInterval,
		Now:         time.Now,
		scan:        scan,
	}
}

func (c *EntryCache) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Scan runs a discovery pass unconditionally and merges its entries. On
// error the cache is left unchanged.
func (c *EntryCache) Scan(ctx context.Context) error {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()
	return c.scanLocked(ctx)
}

func (c *EntryCache) scanLocked(ctx context.Context) error {
	start := time.Now()
	found, err := c.scan(ctx)
	c.Metrics.ObserveScan(time.Since(start), len(found), err)
	if err != nil {
		logging.Warn("Scan failed", zap.Error(err))
		return err
	}

	now := c.now()

	c.mu.Lock()
	merged := live(c.entries, now)
	added := 0
	for _, entry := range found {
		if slices.ContainsFunc(merged, entry.Equal) {
			continue
		}
		merged = append(merged, entry)
		added++
	}
	ssdp.SortByLocation(merged)
	c.entries = merged
	c.lastScan = now
	size := len(merged)
	c.mu.Unlock()

	c.Metrics.SetCachedEntries(size)
	logging.Debug("Scan merged",
		zap.Int("responses", len(found)),
		zap.Int("added", added),
		zap.Int("cached", size),
	)
	return nil
}

// Refresh scans when the cache has never been filled, when the last scan is
// older than MinInterval, or when force is set.
func (c *EntryCache) Refresh(ctx context.Context, force bool) error {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	if !force && !c.stale() {
		return nil
	}
	return c.scanLocked(ctx)
}

func (c *EntryCache) stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastScan.IsZero() || c.now().Sub(c.lastScan) > c.MinInterval
}

// All refreshes the cache if needed and returns the unexpired entries
// sorted by location
func (c *EntryCache) All(ctx context.Context) ([]*ssdp.Entry, error) {
	return c.Filter(ctx, nil)
}

// FindBySearchTarget refreshes the cache if needed and returns the
// unexpired entries whose ST equals target
func (c *EntryCache) FindBySearchTarget(ctx context.Context, target string) ([]*ssdp.Entry, error) {
	return c.Filter(ctx, func(e *ssdp.Entry) bool {
		return e.SearchTarget() == target
	})
}

// Filter refreshes the cache if needed and returns the unexpired entries
// accepted by keep. A nil keep accepts every entry.
func (c *EntryCache) Filter(ctx context.Context, keep func(*ssdp.Entry) bool) ([]*ssdp.Entry, error) {
	if err := c.Refresh(ctx, false); err != nil {
		return nil, err
	}
	return c.Snapshot(keep), nil
}

// Snapshot returns the unexpired entries accepted by keep without scanning
func (c *EntryCache) Snapshot(keep func(*ssdp.Entry) bool) []*ssdp.Entry {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*ssdp.Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.IsExpired(now) {
			continue
		}
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// LastScan returns the time of the last successful scan, or the zero time
func (c *EntryCache) LastScan() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastScan
}

// Len returns the number of cached entries, including expired ones not yet
// dropped
func (c *EntryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func live(entries []*ssdp.Entry, now time.Time) []*ssdp.Entry {
	out := make([]*ssdp.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.IsExpired(now) {
			out = append(out, e)
		}
	}
	return out
}
