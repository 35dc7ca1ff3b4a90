package discovery

import (
	"fmt"
	"net/url"
	"time"

	"github.com/muurk/upnpdiscover/internal/description"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

// Device summarises a discovered entry together with its description
type Device struct {
	// FriendlyName is the human-readable name (e.g., "Living Room NAS")
	FriendlyName string `json:"friendlyName" yaml:"friendlyName"`

	// Manufacturer is the vendor name from the description
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`

	// ModelName is the vendor's model name
	ModelName string `json:"modelName" yaml:"modelName"`

	// DeviceType is the UPnP device type URN
	// (e.g., "urn:schemas-upnp-org:device:MediaServer:1")
	DeviceType string `json:"deviceType" yaml:"deviceType"`

	// UDN is the unique device name (e.g., "uuid:4d696e69-444c-164e-9d41-b827eb1d2a3c")
	UDN string `json:"udn" yaml:"udn"`

	// Location is the description URL advertised in the SSDP response
	Location string `json:"location" yaml:"location"`

	// SearchTarget is the ST header of the entry the device was built from
	SearchTarget string `json:"st" yaml:"st"`

	// Server is the SERVER header (OS, UPnP version and product)
	Server string `json:"server,omitempty" yaml:"server,omitempty"`

	// Expires is when the advertisement expires, if it carried a max-age
	Expires *time.Time `json:"expires,omitempty" yaml:"expires,omitempty"`
}

// NewDevice builds a Device from an entry and its description. An empty
// description yields a Device with only the SSDP fields set.
func NewDevice(entry *ssdp.Entry, d description.Description) *Device {
	device := &Device{
		FriendlyName: d.DeviceField("friendlyName"),
		Manufacturer: d.DeviceField("manufacturer"),
		ModelName:    d.DeviceField("modelName"),
		DeviceType:   d.DeviceField("deviceType"),
		UDN:          d.DeviceField("UDN"),
		Location:     entry.Location(),
		SearchTarget: entry.SearchTarget(),
		Server:       entry.Server(),
	}
	if expires, ok := entry.Expires(); ok {
		device.Expires = &expires
	}
	return device
}

// Name returns the friendly name, falling back to the server header and
// then the host
func (d *Device) Name() string {
	switch {
	case d.FriendlyName != "":
		return d.FriendlyName
	case d.Server != "":
		return d.Server
	default:
		return d.Host()
	}
}

// Host returns the host:port of the description URL, or "" when the
// location is missing or unparsable
func (d *Device) Host() string {
	u, err := url.Parse(d.Location)
	if err != nil {
		return ""
	}
	return u.Host
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	if d.DeviceType == "" {
		return fmt.Sprintf("%s at %s", d.Name(), d.Location)
	}
	return fmt.Sprintf("%s (%s) at %s", d.Name(), d.DeviceType, d.Location)
}
