package ssdp

import (
	"net"
	"testing"
)

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		target string
		mx     int
		want   string
	}{
		{
			target: TargetAll,
			mx:     2,
			want: "M-SEARCH * HTTP/1.1\r\n" +
				"ST: ssdp:all\r\n" +
				"MX: 2\r\n" +
				"MAN: \"ssdp:discover\"\r\n" +
				"HOST: 239.255.255.250:1900\r\n" +
				"\r\n",
		},
		{
			target: TargetRootDevice,
			mx:     5,
			want: "M-SEARCH * HTTP/1.1\r\n" +
				"ST: upnp:rootdevice\r\n" +
				"MX: 5\r\n" +
				"MAN: \"ssdp:discover\"\r\n" +
				"HOST: 239.255.255.250:1900\r\n" +
				"\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := string(BuildRequest(tt.target, tt.mx)); got != tt.want {
				t.Errorf("BuildRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildRequestParsesBack(t *testing.T) {
	headers := ParseHeaders(string(BuildRequest(TargetRootDevice, 3)))

	if headers["st"] != TargetRootDevice {
		t.Errorf("st = %q, want %q", headers["st"], TargetRootDevice)
	}
	if headers["man"] != `"ssdp:discover"` {
		t.Errorf("man = %q, want %q", headers["man"], `"ssdp:discover"`)
	}
}

func TestInterfaceAddressesAreIPv4(t *testing.T) {
	addrs, err := InterfaceAddresses()
	if err != nil {
		t.Skipf("interface enumeration unavailable: %v", err)
	}
	for _, a := range addrs {
		if a.IP.To4() == nil {
			t.Errorf("InterfaceAddresses() returned non-IPv4 address %v", a.IP)
		}
		if a.Interface == nil || a.Interface.Flags&net.FlagBroadcast == 0 {
			t.Errorf("InterfaceAddresses() returned %v from an interface without broadcast", a)
		}
	}
}

func TestInterfaceAddressesFilter(t *testing.T) {
	addrs, err := InterfaceAddresses("no-such-interface-name")
	if err != nil {
		t.Skipf("interface enumeration unavailable: %v", err)
	}
	if len(addrs) != 0 {
		t.Errorf("InterfaceAddresses(unknown) = %v, want none", addrs)
	}
}

func TestIPv4Addrs(t *testing.T) {
	ifi := &net.Interface{Name: "eth0", Flags: net.FlagBroadcast}
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPAddr{IP: net.ParseIP("10.0.0.2")},
	}

	got := ipv4Addrs(ifi, addrs)
	if len(got) != 2 {
		t.Fatalf("ipv4Addrs() returned %d addresses, want 2", len(got))
	}
	if got[0].String() != "192.168.1.10%eth0" {
		t.Errorf("got[0] = %v, want 192.168.1.10%%eth0", got[0])
	}
	if got[1].Name() != "eth0" {
		t.Errorf("got[1].Name() = %q, want eth0", got[1].Name())
	}
}
