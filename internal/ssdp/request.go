package ssdp

import (
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// MulticastAddress is the SSDP IPv4 multicast group
	MulticastAddress = "239.255.255.250"

	// MulticastPort is the SSDP port
	MulticastPort = 1900

	// TargetAll asks every device and service to respond
	TargetAll = "ssdp:all"

	// TargetRootDevice asks root devices only. Some devices only answer this one.
	TargetRootDevice = "upnp:rootdevice"

	// DefaultTimeout bounds a single scan pass
	DefaultTimeout = 2 * time.Second

	// DefaultMX is the suggested maximum reply delay sent to devices, in seconds.
	// It is bound by the scan timeout.
	DefaultMX = 2

	// DefaultTTL is the multicast hop limit for search requests
	DefaultTTL = 2

	// DefaultReceiveBufferSize is the largest datagram accepted, exclusive
	DefaultReceiveBufferSize = 4096
)

// MulticastGroup is the destination of every M-SEARCH request
var MulticastGroup = &net.UDPAddr{IP: net.IPv4(239, 255, 255, 250), Port: MulticastPort}

// DefaultTargets are the search targets sent on every scan socket
var DefaultTargets = []string{TargetAll, TargetRootDevice}

// BuildRequest returns the M-SEARCH payload for target with the given MX.
func BuildRequest(target string, mx int) []byte {
	return []byte(strings.Join([]string{
		"M-SEARCH * HTTP/1.1",
		"ST: " + target,
		"MX: " + strconv.Itoa(mx),
		`MAN: "ssdp:discover"`,
		"HOST: " + MulticastAddress + ":" + strconv.Itoa(MulticastPort),
		"", "",
	}, "\r\n"))
}
