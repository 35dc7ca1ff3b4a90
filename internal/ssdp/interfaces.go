package ssdp

import (
	"net"
	"slices"
)

// LocalAddr is an IPv4 address bound to a local interface
type LocalAddr struct {
	IP net.IP

	// Interface is the owning interface. It is nil for addresses that were
	// not discovered through interface enumeration.
	Interface *net.Interface
}

// Name returns the interface name, or the address if there is no interface
func (a LocalAddr) Name() string {
	if a.Interface != nil {
		return a.Interface.Name
	}
	return a.IP.String()
}

// String returns the address with its interface name
func (a LocalAddr) String() string {
	if a.Interface != nil {
		return a.IP.String() + "%" + a.Interface.Name
	}
	return a.IP.String()
}

// InterfaceAddresses lists the local IPv4 addresses of interfaces that
// support broadcast, which is used as a proxy for multicast capability.
// When names is non-empty only interfaces with those names are considered.
// Addresses are returned in interface index order.
func InterfaceAddresses(names ...string) ([]LocalAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, &PlatformError{Op: "list interfaces", Err: err}
	}

	var result []LocalAddr
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagBroadcast == 0 {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, ifi.Name) {
			continue
		}

		addrs, err := ifi.Addrs()
		if err != nil {
			return nil, &PlatformError{Op: "addresses of " + ifi.Name, Err: err}
		}
		result = append(result, ipv4Addrs(ifi, addrs)...)
	}
	return result, nil
}

func ipv4Addrs(ifi *net.Interface, addrs []net.Addr) []LocalAddr {
	var result []LocalAddr
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil {
			result = append(result, LocalAddr{IP: ip4, Interface: ifi})
		}
	}
	return result
}
