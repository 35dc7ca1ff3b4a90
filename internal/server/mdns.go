package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/upnpdiscover/internal/logging"
	"github.com/muurk/upnpdiscover/internal/version"
)

const (
	// ServiceType is the mDNS service type of inventory servers
	ServiceType = "_upnp-inventory._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseTimeout is how long BrowsePeers listens for answers
	DefaultBrowseTimeout = 3 * time.Second
)

// Peer is an inventory server found over mDNS
type Peer struct {
	Instance string            `json:"instance" yaml:"instance"`
	Hostname string            `json:"hostname" yaml:"hostname"`
	IP       string            `json:"ip" yaml:"ip"`
	Port     int               `json:"port" yaml:"port"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// BaseURL returns the API root of the peer
func (p *Peer) BaseURL() string {
	scheme := "http"
	if p.Metadata["tls"] == "true" {
		scheme = "https"
	}
	path := p.Metadata["path"]
	if path == "" {
		path = "/api/v1"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(p.IP, fmt.Sprint(p.Port)), path)
}

// String returns a human-readable representation of the peer
func (p *Peer) String() string {
	return fmt.Sprintf("%s at %s", p.Instance, p.BaseURL())
}

// advertise registers the API port over mDNS
func (s *Server) advertise(addr net.Addr) error {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("cannot advertise non-TCP address %s", addr)
	}

	instance := s.config.Instance
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("cannot determine hostname: %w", err)
		}
		instance = hostname
	}

	srv, err := zeroconf.Register(instance, ServiceType, ServiceDomain, tcp.Port, s.txtRecords(), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	s.advertiser = srv

	logging.Info("Advertising inventory over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", tcp.Port),
	)
	return nil
}

func (s *Server) txtRecords() []string {
	return []string{
		"path=/api/v1",
		"id=" + s.id,
		"version=" + version.Version,
		fmt.Sprintf("tls=%t", s.tlsConfig != nil),
	}
}

// BrowsePeers lists the inventory servers answering on the local network
// within timeout
func BrowsePeers(ctx context.Context, timeout time.Duration) ([]*Peer, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var (
		mu    sync.Mutex
		peers []*Peer
		seen  = make(map[string]bool)
	)

	// The resolver keeps the channel open after ctx ends
	entries := make(chan *zeroconf.ServiceEntry, 16)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry := <-entries:
				peer := parsePeer(entry)
				if peer == nil {
					continue
				}
				mu.Lock()
				if key := peer.Instance + " " + peer.IP; !seen[key] {
					seen[key] = true
					peers = append(peers, peer)
				}
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Peer(nil), peers...), nil
}

// parsePeer converts a zeroconf service entry to a Peer. Entries without an
// address are dropped.
func parsePeer(entry *zeroconf.ServiceEntry) *Peer {
	if entry == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Peer{
		Instance: entry.Instance,
		Hostname: entry.HostName,
		IP:       ip,
		Port:     entry.Port,
		Metadata: metadata,
	}
}
