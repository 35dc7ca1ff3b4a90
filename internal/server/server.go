package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/upnpdiscover/internal/discovery"
	"github.com/muurk/upnpdiscover/internal/logging"
	"github.com/muurk/upnpdiscover/internal/metrics"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

const (
	// DefaultRefreshInterval is how often the inventory is rescanned
	DefaultRefreshInterval = time.Minute

	shutdownTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Listen          string        // host:port for the HTTP API
	RefreshInterval time.Duration // Background scan period
	Advertise       bool          // Announce the API over mDNS
	Instance        string        // mDNS instance name (empty = hostname)
	CertPath        string        // TLS certificate (optional)
	KeyPath         string        // TLS private key (optional)
	CORSOrigins     []string      // Origins allowed to call the API from a browser
	Metrics         *metrics.Collector
}

// Server serves the device inventory kept by a discovery.Scanner
type Server struct {
	config     *Config
	scanner    *discovery.Scanner
	metrics    *metrics.Collector
	router     *mux.Router
	httpServer *http.Server
	tlsConfig  *tls.Config
	listener   net.Listener
	hub        *hub
	advertiser *zeroconf.Server
	id         string
	startTime  time.Time
	wg         sync.WaitGroup
}

// Snapshot is the inventory as pushed to WebSocket clients and returned by
// a forced scan
type Snapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	LastScan  time.Time     `json:"last_scan"`
	Count     int           `json:"count"`
	Entries   []*ssdp.Entry `json:"entries"`
}

// New creates a new Server instance
func New(config *Config, scanner *discovery.Scanner) (*Server, error) {
	if scanner == nil {
		return nil, errors.New("server requires a scanner")
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	s := &Server{
		config:    config,
		scanner:   scanner,
		metrics:   config.Metrics,
		router:    mux.NewRouter(),
		tlsConfig: tlsConfig,
		hub:       newHub(),
		id:        uuid.NewString(),
		startTime: time.Now(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// ID returns the random instance id advertised by this server
func (s *Server) ID() string {
	return s.id
}

// Listen opens the API listener. It is called by Start when needed.
func (s *Server) Listen() (net.Addr, error) {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	if s.tlsConfig != nil {
		logging.Info("TLS Configuration",
			zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
		)
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener
	return listener.Addr(), nil
}

// Addr returns the listening address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start starts the server and blocks until ctx is done, a shutdown signal
// arrives, or serving fails
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the API, the refresh loop and the mDNS advertisement until ctx
// is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}

	logging.Info("Starting inventory server",
		zap.String("addr", s.listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
		zap.Duration("refresh_interval", s.config.RefreshInterval),
		zap.String("id", s.id),
	)

	if s.config.Advertise {
		if err := s.advertise(s.listener.Addr()); err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshLoop(loopCtx)
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping server...")
		cancelLoop()
		return s.Shutdown(context.Background())
	case err := <-errChan:
		cancelLoop()
		_ = s.Shutdown(context.Background())
		return err
	}
}

// refreshLoop scans once at startup, then every RefreshInterval
func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	_ = s.refresh(ctx, false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.refresh(ctx, false)
		}
	}
}

// refresh updates the inventory and pushes a snapshot to WebSocket clients
func (s *Server) refresh(ctx context.Context, force bool) error {
	if err := s.scanner.Entries().Refresh(ctx, force); err != nil {
		if ctx.Err() == nil {
			logging.Warn("Inventory refresh failed", zap.Error(err))
		}
		return err
	}
	s.hub.broadcast(s.snapshot())
	return nil
}

func (s *Server) snapshot() Snapshot {
	cache := s.scanner.Entries()
	entries := cache.Snapshot(nil)
	return Snapshot{
		Timestamp: time.Now().UTC(),
		LastScan:  cache.LastScan(),
		Count:     len(entries),
		Entries:   entries,
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.advertiser != nil {
		s.advertiser.Shutdown()
		s.advertiser = nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by http.Server
	s.hub.close()

	var err error
	if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(shutdownErr))
		err = fmt.Errorf("server shutdown failed: %w", shutdownErr)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Background refresh did not stop before the shutdown timeout")
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of connected WebSocket clients
func (s *Server) GetActiveConnections() int {
	return s.hub.count()
}
