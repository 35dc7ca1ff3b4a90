package discovery

import (
	"testing"
	"time"

	"github.com/muurk/upnpdiscover/internal/description"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

func TestNewDevice(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entry := ssdp.NewEntryAt(map[string]string{
		"st":            "upnp:rootdevice",
		"location":      "http://192.168.1.20:49152/desc.xml",
		"server":        "Linux/5.10 UPnP/1.0 MiniDLNA/1.3.0",
		"cache-control": "max-age=1800",
	}, created)

	doc := description.Description{
		"device": map[string]any{
			"friendlyName": "Living Room NAS",
			"manufacturer": "Acme",
			"modelName":    map[string]any{"@lang": "en", "#text": "NAS-2000"},
			"deviceType":   "urn:schemas-upnp-org:device:MediaServer:1",
			"UDN":          "uuid:4d696e69-444c-164e-9d41-b827eb1d2a3c",
		},
	}

	device := NewDevice(entry, doc)

	if device.FriendlyName != "Living Room NAS" {
		t.Errorf("FriendlyName = %v, want Living Room NAS", device.FriendlyName)
	}
	if device.ModelName != "NAS-2000" {
		t.Errorf("ModelName = %v, want NAS-2000", device.ModelName)
	}
	if device.UDN != "uuid:4d696e69-444c-164e-9d41-b827eb1d2a3c" {
		t.Errorf("UDN = %v", device.UDN)
	}
	if device.SearchTarget != "upnp:rootdevice" {
		t.Errorf("SearchTarget = %v, want upnp:rootdevice", device.SearchTarget)
	}
	if device.Expires == nil || !device.Expires.Equal(created.Add(1800*time.Second)) {
		t.Errorf("Expires = %v, want %v", device.Expires, created.Add(1800*time.Second))
	}

	expected := "Living Room NAS (urn:schemas-upnp-org:device:MediaServer:1) at http://192.168.1.20:49152/desc.xml"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestNewDevice_EmptyDescription(t *testing.T) {
	entry := ssdp.NewEntry(map[string]string{
		"st":       "ssdp:all",
		"location": "http://10.0.0.5:80/desc.xml",
	})

	device := NewDevice(entry, description.Description{})

	if device.FriendlyName != "" || device.DeviceType != "" {
		t.Errorf("description fields should be empty, got %+v", device)
	}
	if device.Expires != nil {
		t.Errorf("Expires = %v, want nil", device.Expires)
	}
	if device.String() != "10.0.0.5:80 at http://10.0.0.5:80/desc.xml" {
		t.Errorf("Device.String() = %v", device.String())
	}
}

func TestDevice_Name(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		expected string
	}{
		{
			name:     "friendly name",
			device:   &Device{FriendlyName: "TV", Server: "Tizen", Location: "http://10.0.0.7:9197/dmr"},
			expected: "TV",
		},
		{
			name:     "server fallback",
			device:   &Device{Server: "Tizen", Location: "http://10.0.0.7:9197/dmr"},
			expected: "Tizen",
		},
		{
			name:     "host fallback",
			device:   &Device{Location: "http://10.0.0.7:9197/dmr"},
			expected: "10.0.0.7:9197",
		},
		{
			name:     "nothing",
			device:   &Device{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.Name(); got != tt.expected {
				t.Errorf("Device.Name() = %v, want %v", got, tt.expected)
			}
		})
	}
}
