package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/upnpdiscover/internal/logging"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

const (
	// DefaultRetries is how many times the request is sent
	DefaultRetries = 3

	// DefaultResponseTime is the reply window given to devices
	DefaultResponseTime = 2 * time.Second
)

// Searcher actively searches for devices from a single socket. The request
// is repeated Retries times because multicast datagrams may be lost; each
// device is reported once, on the first response seen.
type Searcher struct {
	// Target is the search target requested
	Target string

	// ResponseTime is the reply window sent as MX and waited for after each
	// request
	ResponseTime time.Duration

	// Retries is the number of requests sent
	Retries int

	// BufferSize is the receive buffer. A datagram that fills it aborts the
	// search with ssdp.ErrBufferTooSmall.
	BufferSize int

	// TTL is the multicast hop limit
	TTL int

	// Interface sends the requests from the named interface instead of the
	// system default
	Interface string

	// Destination overrides the multicast group
	Destination *net.UDPAddr

	// unit is the rounding step of the receive window
	unit time.Duration
}

// NewSearcher creates a Searcher for upnp:rootdevice with default settings
func NewSearcher() *Searcher {
	return &Searcher{
		Target:       ssdp.TargetRootDevice,
		ResponseTime: DefaultResponseTime,
		Retries:      DefaultRetries,
		BufferSize:   ssdp.DefaultReceiveBufferSize,
		TTL:          ssdp.DefaultTTL,
	}
}

func (s *Searcher) settings() Searcher {
	c := *s
	if c.Target == "" {
		c.Target = ssdp.TargetRootDevice
	}
	if c.ResponseTime <= 0 {
		c.ResponseTime = DefaultResponseTime
	}
	if c.BufferSize <= 0 {
		c.BufferSize = ssdp.DefaultReceiveBufferSize
	}
	if c.TTL <= 0 {
		c.TTL = ssdp.DefaultTTL
	}
	if c.Destination == nil {
		c.Destination = ssdp.MulticastGroup
	}
	if c.unit <= 0 {
		c.unit = time.Second
	}
	return c
}

// receiveWindow returns how long to wait for the next datagram when elapsed
// has passed since the last request
func receiveWindow(responseTime, elapsed, unit time.Duration) time.Duration {
	return (responseTime - elapsed).Round(unit) + unit
}

// mx converts the response time to whole seconds, at least 1
func mx(responseTime time.Duration) int {
	return max(1, int(responseTime.Round(time.Second)/time.Second))
}

// Search sends the request and calls handle for every new device and for
// every retry marker, ending with a marker for request 0. It returns when
// the last window has passed, when ctx is done, or on a receive error.
// Retries of zero or less search nothing.
func (s *Searcher) Search(ctx context.Context, handle func(Response)) error {
	cfg := s.settings()
	if cfg.Retries <= 0 {
		return nil
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return fmt.Errorf("failed to open search socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	p := ipv4.NewPacketConn(conn)
	if err := p.SetMulticastTTL(cfg.TTL); err != nil {
		logging.Debug("Failed to set multicast TTL", zap.Error(err))
	}
	if cfg.Interface != "" {
		ifi, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return &ssdp.PlatformError{Op: "interface " + cfg.Interface, Err: err}
		}
		if err := p.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("failed to select interface %s: %w", cfg.Interface, err)
		}
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	payload := ssdp.BuildRequest(cfg.Target, mx(cfg.ResponseTime))
	send := func() (time.Time, error) {
		if _, err := conn.WriteToUDP(payload, cfg.Destination); err != nil {
			return time.Time{}, fmt.Errorf("failed to send search request: %w", err)
		}
		return time.Now(), nil
	}

	sent, err := send()
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	buf := make([]byte, cfg.BufferSize)
	request := 1
	remaining := cfg.Retries

	for {
		window := receiveWindow(cfg.ResponseTime, time.Since(sent), cfg.unit)

		var (
			n    int
			from *net.UDPAddr
		)
		if window > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(window))
			n, from, err = conn.ReadFromUDP(buf)
		} else {
			err = os.ErrDeadlineExceeded
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !errors.Is(err, os.ErrDeadlineExceeded) {
				return fmt.Errorf("failed to receive search response: %w", err)
			}

			remaining--
			if remaining <= 0 {
				handle(marker(0, time.Now()))
				return nil
			}
			if sent, err = send(); err != nil {
				return err
			}
			request++
			handle(marker(request, sent))
			continue
		}

		received := time.Now()
		if n >= cfg.BufferSize {
			return fmt.Errorf("%w: datagram from %s filled %d byte buffer", ssdp.ErrBufferTooSmall, from, cfg.BufferSize)
		}
		if !utf8.Valid(buf[:n]) {
			logging.Debug("Skipping malformed datagram", zap.Stringer("from", from))
			continue
		}
		logging.LogDatagram(from, "", buf[:n])

		resp := NewResponse(request, from, string(buf[:n]), received)
		key := resp.DeviceKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		handle(resp)
	}
}
