package search

import (
	"context"
	"fmt"
	"net"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/upnpdiscover/internal/logging"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

// Listener passively receives the datagrams sent to the SSDP multicast
// group, mostly NOTIFY announcements and other hosts' M-SEARCH requests.
type Listener struct {
	// Group is the multicast group and port to listen on
	Group *net.UDPAddr

	// Interfaces restricts the group membership to the named interfaces.
	// By default the group is joined on every broadcast-capable interface.
	Interfaces []string

	// BufferSize is the receive buffer. A datagram that fills it stops the
	// listener with ssdp.ErrBufferTooSmall.
	BufferSize int

	// ready is called with the bound address once the socket is open
	ready func(net.Addr)
}

// NewListener creates a Listener for 239.255.255.250:1900
func NewListener() *Listener {
	return &Listener{
		Group:      ssdp.MulticastGroup,
		BufferSize: ssdp.DefaultReceiveBufferSize,
	}
}

// Listen calls handle for every datagram until ctx is done. Responses carry
// request number 0.
func (l *Listener) Listen(ctx context.Context, handle func(Response)) error {
	group := l.Group
	if group == nil {
		group = ssdp.MulticastGroup
	}
	bufferSize := l.BufferSize
	if bufferSize <= 0 {
		bufferSize = ssdp.DefaultReceiveBufferSize
	}

	// ListenMulticastUDP sets SO_REUSEADDR so other SSDP stacks on the host
	// keep working
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", group, err)
	}
	defer func() { _ = conn.Close() }()

	l.join(conn, group)

	logging.Info("Listening for SSDP datagrams", zap.Stringer("group", group))
	if l.ready != nil {
		l.ready(conn.LocalAddr())
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, bufferSize)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil
			}
			return fmt.Errorf("failed to receive datagram: %w", err)
		}
		if n >= bufferSize {
			return fmt.Errorf("%w: datagram from %s filled %d byte buffer", ssdp.ErrBufferTooSmall, from, bufferSize)
		}
		if !utf8.Valid(buf[:n]) {
			logging.Debug("Skipping malformed datagram", zap.Stringer("from", from))
			continue
		}
		logging.LogDatagram(from, "", buf[:n])

		handle(NewResponse(0, from, string(buf[:n]), time.Now()))
	}
}

// join adds group membership on the configured interfaces. Failures are
// logged; the membership made by ListenMulticastUDP on the default
// interface remains.
func (l *Listener) join(conn *net.UDPConn, group *net.UDPAddr) {
	addrs, err := ssdp.InterfaceAddresses(l.Interfaces...)
	if err != nil {
		logging.Warn("Failed to enumerate interfaces", zap.Error(err))
		return
	}

	p := ipv4.NewPacketConn(conn)
	joined := make(map[int]bool)
	for _, addr := range addrs {
		ifi := addr.Interface
		if ifi == nil || joined[ifi.Index] {
			continue
		}
		joined[ifi.Index] = true
		if err := p.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
			logging.Debug("Failed to join multicast group",
				zap.String("interface", ifi.Name),
				zap.Error(err),
			)
		}
	}
}
