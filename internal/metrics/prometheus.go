// Package metrics provides Prometheus collectors for discovery scans, the
// entry and description caches, and the inventory HTTP API.
//
// All methods are safe to call on a nil *Collector, so components can take
// an optional collector without checking for it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all upnpdiscover metrics
	namespace = "upnpdiscover"

	// Subsystems
	subsystemScan        = "scan"
	subsystemCache       = "cache"
	subsystemDescription = "description"
	subsystemAPI         = "api"
)

// Collector holds all Prometheus metric collectors
type Collector struct {
	// Scan metrics
	scansTotal        *prometheus.CounterVec
	scanDuration      prometheus.Histogram
	scanResponses     prometheus.Counter
	cachedEntries     prometheus.Gauge
	lastScanTimestamp prometheus.Gauge

	// Description metrics
	fetchesTotal       *prometheus.CounterVec
	fetchDuration      prometheus.Histogram
	cachedDescriptions prometheus.Gauge

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Collector with its own registry
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{registry: registry}
	c.initScanMetrics()
	c.initDescriptionMetrics()
	c.initAPIMetrics()

	registry.MustRegister(
		c.scansTotal,
		c.scanDuration,
		c.scanResponses,
		c.cachedEntries,
		c.lastScanTimestamp,
		c.fetchesTotal,
		c.fetchDuration,
		c.cachedDescriptions,
		c.httpRequests,
		c.httpDuration,
	)

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return c
}

func (c *Collector) initScanMetrics() {
	c.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of SSDP scan passes by status",
		},
		[]string{"status"},
	)

	c.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of SSDP scan passes in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 30},
		},
	)

	c.scanResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "entries_total",
			Help:      "Total number of unique entries returned by scan passes",
		},
	)

	c.cachedEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemCache,
			Name:      "entries",
			Help:      "Number of entries currently held in the entry cache",
		},
	)

	c.lastScanTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemCache,
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix time of the last successful scan",
		},
	)
}

func (c *Collector) initDescriptionMetrics() {
	c.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDescription,
			Name:      "fetches_total",
			Help:      "Total number of description fetches by outcome",
		},
		[]string{"outcome"},
	)

	c.fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDescription,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of description fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.cachedDescriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemDescription,
			Name:      "cached",
			Help:      "Number of memoized description documents",
		},
	)
}

func (c *Collector) initAPIMetrics() {
	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "code"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// ObserveScan records a finished scan pass
func (c *Collector) ObserveScan(duration time.Duration, entries int, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.scansTotal.WithLabelValues(status).Inc()
	c.scanDuration.Observe(duration.Seconds())
	if err == nil {
		c.scanResponses.Add(float64(entries))
		c.lastScanTimestamp.Set(float64(time.Now().Unix()))
	}
}

// SetCachedEntries records the size of the entry cache
func (c *Collector) SetCachedEntries(n int) {
	if c == nil {
		return
	}
	c.cachedEntries.Set(float64(n))
}

// ObserveDescriptionFetch records a description fetch. outcome is "ok" or
// an error label.
func (c *Collector) ObserveDescriptionFetch(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.fetchesTotal.WithLabelValues(outcome).Inc()
	c.fetchDuration.Observe(duration.Seconds())
}

// SetCachedDescriptions records the size of the description cache
func (c *Collector) SetCachedDescriptions(n int) {
	if c == nil {
		return
	}
	c.cachedDescriptions.Set(float64(n))
}

// ObserveHTTPRequest records a served API request
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry returns the registry holding all collectors
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns an HTTP handler exposing the registry
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
