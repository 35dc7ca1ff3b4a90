package ssdp

import (
	"context"
	"net"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/upnpdiscover/internal/logging"
)

// Options configures a scan pass. Zero values select the defaults.
type Options struct {
	// Timeout is the length of the receive window after the requests are sent
	Timeout time.Duration

	// MX is the reply delay suggested to devices, in seconds
	MX int

	// TTL is the multicast hop limit
	TTL int

	// ReceiveBufferSize is the receive buffer per socket. A datagram that
	// fills it fails the pass with ErrBufferTooSmall.
	ReceiveBufferSize int

	// Targets are the search targets requested on every socket
	Targets []string

	// Interfaces restricts enumeration to the named interfaces
	Interfaces []string

	// Destination overrides the multicast group the requests are sent to
	Destination *net.UDPAddr

	// Enumerate overrides interface enumeration
	Enumerate func() ([]LocalAddr, error)
}

// DefaultOptions returns the options used by a zero Options value
func DefaultOptions() Options {
	return Options{
		Timeout:           DefaultTimeout,
		MX:                DefaultMX,
		TTL:               DefaultTTL,
		ReceiveBufferSize: DefaultReceiveBufferSize,
		Targets:           slices.Clone(DefaultTargets),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MX <= 0 {
		o.MX = d.MX
	}
	if o.TTL <= 0 {
		o.TTL = d.TTL
	}
	if o.ReceiveBufferSize <= 0 {
		o.ReceiveBufferSize = d.ReceiveBufferSize
	}
	if len(o.Targets) == 0 {
		o.Targets = d.Targets
	}
	if o.Destination == nil {
		o.Destination = MulticastGroup
	}
	return o
}

func (o Options) addresses() ([]LocalAddr, error) {
	if o.Enumerate != nil {
		return o.Enumerate()
	}
	return InterfaceAddresses(o.Interfaces...)
}

// Receive runs one discovery pass and returns the raw datagrams observed.
// Every socket opened by the pass is closed before it returns.
func Receive(ctx context.Context, opts Options) ([]Datagram, error) {
	opts = opts.withDefaults()

	addrs, err := opts.addresses()
	if err != nil {
		return nil, err
	}

	set := OpenSocketSet(addrs, opts.TTL, opts.ReceiveBufferSize, opts.Destination)
	defer func() { _ = set.Close() }()

	payloads := make([][]byte, 0, len(opts.Targets))
	for _, target := range opts.Targets {
		payloads = append(payloads, BuildRequest(target, opts.MX))
	}
	set.Send(payloads...)

	logging.Debug("Scanning for SSDP devices",
		zap.Int("interfaces", len(addrs)),
		zap.Int("sockets", set.Len()),
		zap.Duration("timeout", opts.Timeout),
	)

	return set.Receive(ctx, time.Now().Add(opts.Timeout))
}

// Scan runs one discovery pass and returns the parsed entries, unique by
// search target and location and sorted by location.
func Scan(ctx context.Context, opts Options) ([]*Entry, error) {
	datagrams, err := Receive(ctx, opts)
	if err != nil {
		return nil, err
	}
	return Collect(datagrams), nil
}

type entryKey struct {
	st       string
	location string
}

// Collect parses datagrams into entries. For each search target and
// location pair the last response wins. Entries are sorted by location,
// entries without a location first.
func Collect(datagrams []Datagram) []*Entry {
	index := make(map[entryKey]int)
	var entries []*Entry

	for _, d := range datagrams {
		entry := ParseResponseAt(d.Text, d.ReceivedAt)
		key := entryKey{st: entry.SearchTarget(), location: entry.Location()}
		if i, ok := index[key]; ok {
			entries[i] = entry
			continue
		}
		index[key] = len(entries)
		entries = append(entries, entry)
	}

	SortByLocation(entries)
	return entries
}

// SortByLocation sorts entries by location, keeping the relative order of
// entries with the same location.
func SortByLocation(entries []*Entry) {
	slices.SortStableFunc(entries, func(a, b *Entry) int {
		return strings.Compare(a.Location(), b.Location())
	})
}
