package ssdp

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/upnpdiscover/internal/logging"
)

// Datagram is a raw response received during a scan pass
type Datagram struct {
	Text       string
	From       *net.UDPAddr
	Interface  string
	ReceivedAt time.Time
}

// ReadKind classifies the outcome of a single socket read
type ReadKind int

const (
	// ReadData means a valid UTF-8 datagram was received
	ReadData ReadKind = iota
	// ReadExpired means the scan deadline passed; the socket has no more data
	ReadExpired
	// ReadError means the socket failed and must be dropped
	ReadError
	// ReadOverflow means the datagram filled the whole receive buffer
	ReadOverflow
)

// String returns a human-readable name for the read kind
func (k ReadKind) String() string {
	switch k {
	case ReadData:
		return "data"
	case ReadExpired:
		return "expired"
	case ReadError:
		return "error"
	case ReadOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// ReadResult is the outcome of one read on one socket
type ReadResult struct {
	Kind     ReadKind
	Datagram Datagram
	Size     int
	Err      error

	sock *scanSocket
}

type scanSocket struct {
	conn  *net.UDPConn
	local LocalAddr
}

// SocketSet owns one UDP socket per local interface address for the
// duration of a scan pass. It is not safe for concurrent use.
type SocketSet struct {
	sockets    []*scanSocket
	bufferSize int
	dest       *net.UDPAddr
}

// OpenSocketSet opens one socket bound to an ephemeral port on each
// address. Addresses whose socket cannot be opened or configured are
// skipped. The returned set may be empty.
func OpenSocketSet(addrs []LocalAddr, ttl, bufferSize int, dest *net.UDPAddr) *SocketSet {
	if bufferSize <= 0 {
		bufferSize = DefaultReceiveBufferSize
	}
	if dest == nil {
		dest = MulticastGroup
	}

	s := &SocketSet{bufferSize: bufferSize, dest: dest}
	for _, addr := range addrs {
		sock, err := openSocket(addr, ttl)
		if err != nil {
			logging.Debug("Skipping interface",
				zap.String("interface", addr.String()),
				zap.Error(err),
			)
			continue
		}
		s.sockets = append(s.sockets, sock)
	}
	return s
}

func openSocket(addr LocalAddr, ttl int) (*scanSocket, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: addr.IP, Port: 0})
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(ttl); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if addr.Interface != nil {
		if err := pc.SetMulticastInterface(addr.Interface); err != nil {
			logging.Debug("Could not pin multicast interface",
				zap.String("interface", addr.Interface.Name),
				zap.Error(err),
			)
		}
	}

	return &scanSocket{conn: conn, local: addr}, nil
}

// Len returns the number of open sockets
func (s *SocketSet) Len() int {
	return len(s.sockets)
}

// Send writes every payload on every socket. A socket that fails to send
// is closed and removed from the set.
func (s *SocketSet) Send(payloads ...[]byte) {
	kept := s.sockets[:0]
	for _, sock := range s.sockets {
		if err := sock.send(s.dest, payloads); err != nil {
			logging.Warn("Dropping socket after send failure",
				zap.String("interface", sock.local.String()),
				zap.Error(err),
			)
			_ = sock.conn.Close()
			continue
		}
		kept = append(kept, sock)
	}
	clear(s.sockets[len(kept):])
	s.sockets = kept
}

func (sock *scanSocket) send(dest *net.UDPAddr, payloads [][]byte) error {
	for _, p := range payloads {
		if _, err := sock.conn.WriteToUDP(p, dest); err != nil {
			return err
		}
	}
	return nil
}

// Receive collects datagrams from every socket until deadline passes, no
// sockets remain, or ctx is done. Sockets that fail are closed and removed.
// A datagram filling the receive buffer aborts the pass with
// ErrBufferTooSmall. Datagrams collected so far are returned with any error.
func (s *SocketSet) Receive(ctx context.Context, deadline time.Time) ([]Datagram, error) {
	if len(s.sockets) == 0 {
		return nil, nil
	}

	results := make(chan ReadResult)
	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, sock := range s.sockets {
		_ = sock.conn.SetReadDeadline(deadline)
		wg.Add(1)
		go func(sock *scanSocket) {
			defer wg.Done()
			s.readLoop(sock, results, done)
		}(sock)
	}

	// Unblock any reader still waiting before returning
	defer func() {
		close(done)
		now := time.Now()
		for _, sock := range s.sockets {
			_ = sock.conn.SetReadDeadline(now)
		}
		wg.Wait()
	}()

	var datagrams []Datagram
	active := len(s.sockets)
	for active > 0 {
		select {
		case <-ctx.Done():
			return datagrams, ctx.Err()
		case r := <-results:
			switch r.Kind {
			case ReadData:
				datagrams = append(datagrams, r.Datagram)
			case ReadExpired:
				active--
			case ReadError:
				logging.Warn("Socket error while discovering SSDP devices",
					zap.String("interface", r.sock.local.String()),
					zap.Error(r.Err),
				)
				s.drop(r.sock)
				active--
			case ReadOverflow:
				return datagrams, bufferTooSmall(r.Size, s.bufferSize)
			}
		}
	}
	return datagrams, nil
}

// readLoop reads from one socket until it expires, fails or overflows.
// Every non-data result ends the loop.
func (s *SocketSet) readLoop(sock *scanSocket, results chan<- ReadResult, done <-chan struct{}) {
	buf := make([]byte, s.bufferSize)
	for {
		r := s.read(sock, buf)
		if r.Kind == ReadData && !utf8.ValidString(r.Datagram.Text) {
			logging.Debug("Ignoring invalid unicode response",
				zap.Stringer("from", r.Datagram.From),
			)
			continue
		}

		select {
		case results <- r:
		case <-done:
			return
		}
		if r.Kind != ReadData {
			return
		}
	}
}

func (s *SocketSet) read(sock *scanSocket, buf []byte) ReadResult {
	n, from, err := sock.conn.ReadFromUDP(buf)
	switch {
	case err != nil && isTimeout(err):
		return ReadResult{Kind: ReadExpired, sock: sock}
	case err != nil:
		return ReadResult{Kind: ReadError, Err: err, sock: sock}
	case n >= len(buf):
		return ReadResult{Kind: ReadOverflow, Size: n, sock: sock}
	}

	logging.LogDatagram(from, sock.local.Name(), buf[:n])
	return ReadResult{
		Kind: ReadData,
		Datagram: Datagram{
			Text:       string(buf[:n]),
			From:       from,
			Interface:  sock.local.Name(),
			ReceivedAt: time.Now(),
		},
		sock: sock,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (s *SocketSet) drop(sock *scanSocket) {
	for i, candidate := range s.sockets {
		if candidate == sock {
			_ = sock.conn.Close()
			s.sockets = append(s.sockets[:i], s.sockets[i+1:]...)
			return
		}
	}
}

// Close closes every remaining socket
func (s *SocketSet) Close() error {
	var errs []error
	for _, sock := range s.sockets {
		if err := sock.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.sockets = nil
	return errors.Join(errs...)
}
