package description

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/muurk/upnpdiscover/internal/logging"
	"github.com/muurk/upnpdiscover/internal/metrics"
	"github.com/muurk/upnpdiscover/internal/version"
)

const (
	// DefaultTimeout bounds each HTTP request for a description
	DefaultTimeout = 5 * time.Second

	// NoLocation is the key of the empty description served for entries
	// without a LOCATION header
	NoLocation = ""

	// maxDocumentSize caps how much of a description body is read
	maxDocumentSize = 1 << 20
)

// Fetcher retrieves description documents over HTTP
type Fetcher struct {
	Client *http.Client
}

// NewFetcher creates a Fetcher whose requests time out after timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{Client: &http.Client{Timeout: timeout}}
}

// Fetch downloads and parses the description at location. An empty body
// is requested once more before giving up, since some devices return an
// empty document on the first request.
func (f *Fetcher) Fetch(ctx context.Context, location string) (Description, error) {
	u, err := url.Parse(location)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{Type: ErrTypeLocation, Message: "not an http URL", Location: location, Err: err}
	}

	body, err := f.get(ctx, location)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		logging.Debug("Empty description, retrying once", zap.String("location", location))
		if body, err = f.get(ctx, location); err != nil {
			return nil, err
		}
	}

	d, err := Parse(body)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Location = location
		}
		return nil, err
	}
	return d, nil
}

func (f *Fetcher) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &FetchError{Type: ErrTypeLocation, Message: "failed to create request", Location: location, Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, ClassifyNetworkError(err, location)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewHTTPError(resp.StatusCode, location)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, ClassifyNetworkError(err, location)
	}
	return body, nil
}

// Cache memoizes description documents by location for the life of the
// cache. Failed fetches are memoized as empty descriptions. Concurrent
// requests for the same location share one fetch. It is safe for
// concurrent use.
//
// Returned descriptions are shared and must not be modified.
type Cache struct {
	fetcher *Fetcher
	metrics *metrics.Collector

	mu    sync.Mutex
	docs  map[string]Description
	group singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		c.fetcher = NewFetcher(timeout)
	}
}

// WithHTTPClient sets the HTTP client used for fetches
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		c.fetcher = &Fetcher{Client: client}
	}
}

// WithMetrics records fetches on m
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache creates an empty description cache
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		fetcher: NewFetcher(DefaultTimeout),
		docs:    map[string]Description{NoLocation: {}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe returns the description at location, fetching it on first use.
// It never fails: an unreachable or malformed document is logged and
// remembered as an empty description. A fetch interrupted by ctx is not
// remembered.
func (c *Cache) Describe(ctx context.Context, location string) Description {
	if d, ok := c.Lookup(location); ok {
		return d
	}

	v, _, _ := c.group.Do(location, func() (any, error) {
		if d, ok := c.Lookup(location); ok {
			return d, nil
		}

		start := time.Now()
		d, err := c.fetcher.Fetch(ctx, location)
		c.metrics.ObserveDescriptionFetch(outcome(err), time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				logging.Debug("Description fetch cancelled",
					zap.String("location", location),
					zap.Error(err),
				)
				return Description{}, nil
			}
			logging.Warn("Error fetching description",
				zap.String("location", location),
				zap.Error(err),
			)
			d = Description{}
		}

		c.mu.Lock()
		c.docs[location] = d
		n := len(c.docs)
		c.mu.Unlock()
		c.metrics.SetCachedDescriptions(n)

		return d, nil
	})
	return v.(Description)
}

// Lookup returns a memoized description without fetching
func (c *Cache) Lookup(location string) (Description, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[location]
	return d, ok
}

// Len returns the number of memoized locations, including NoLocation
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if t, ok := errorType(err); ok {
		return t.Label()
	}
	return "network"
}
