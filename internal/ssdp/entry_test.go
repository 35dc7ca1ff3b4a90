package ssdp

import (
	"encoding/json"
	"testing"
	"time"
)

const rootDeviceResponse = "HTTP/1.1 200 OK\r\n" +
	"ST: upnp:rootdevice\r\n" +
	"LOCATION: http://10.0.0.5:80/desc.xml\r\n" +
	"CACHE-CONTROL: max-age=1800\r\n" +
	"\r\n"

func TestParseResponse(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entry := ParseResponseAt(rootDeviceResponse, created)

	if got := entry.SearchTarget(); got != "upnp:rootdevice" {
		t.Errorf("SearchTarget() = %q, want %q", got, "upnp:rootdevice")
	}
	if got := entry.Location(); got != "http://10.0.0.5:80/desc.xml" {
		t.Errorf("Location() = %q, want %q", got, "http://10.0.0.5:80/desc.xml")
	}

	expires, ok := entry.Expires()
	if !ok {
		t.Fatal("Expires() ok = false, want true")
	}
	if want := created.Add(1800 * time.Second); !expires.Equal(want) {
		t.Errorf("Expires() = %v, want %v", expires, want)
	}
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "status line is not a header",
			text: "HTTP/1.1 200 OK\r\nST: x\r\n\r\n",
			want: map[string]string{"st": "x"},
		},
		{
			name: "names are lower-cased",
			text: "HTTP/1.1 200 OK\r\nCache-Control: max-age=10\r\nUSN: uuid:abc::upnp:rootdevice\r\n",
			want: map[string]string{"cache-control": "max-age=10", "usn": "uuid:abc::upnp:rootdevice"},
		},
		{
			name: "spaces after colon are optional",
			text: "HTTP/1.1 200 OK\r\nEXT:\r\nSERVER:Linux UPnP/1.0\r\n",
			want: map[string]string{"ext": "", "server": "Linux UPnP/1.0"},
		},
		{
			name: "later duplicates win",
			text: "HTTP/1.1 200 OK\r\nST: first\r\nst: second\r\n",
			want: map[string]string{"st": "second"},
		},
		{
			name: "lines without carriage return are ignored",
			text: "HTTP/1.1 200 OK\nST: x\nLOCATION: y\n",
			want: map[string]string{},
		},
		{
			name: "empty input",
			text: "",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseHeaders(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseHeaders() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("ParseHeaders()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestEntryWithoutHeaders(t *testing.T) {
	entry := ParseResponse("garbage without headers")

	if got := entry.SearchTarget(); got != "" {
		t.Errorf("SearchTarget() = %q, want empty", got)
	}
	if _, ok := entry.Header("location"); ok {
		t.Error("Header(location) ok = true, want false")
	}
	if _, ok := entry.Expires(); ok {
		t.Error("Expires() ok = true, want false")
	}
}

func TestEntryExpiry(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		cacheControl string
		hasExpiry    bool
		maxAge       time.Duration
	}{
		{"max-age", "max-age=60", true, 60 * time.Second},
		{"spaces around equals", "max-age = 90", true, 90 * time.Second},
		{"with other directives", "no-cache, max-age=5", true, 5 * time.Second},
		{"no max-age", "no-cache", false, 0},
		{"upper case is not recognised", "MAX-AGE=60", false, 0},
		{"absent", "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{"st": "upnp:rootdevice"}
			if tt.cacheControl != "" {
				headers["cache-control"] = tt.cacheControl
			}
			entry := NewEntryAt(headers, created)

			expires, ok := entry.Expires()
			if ok != tt.hasExpiry {
				t.Fatalf("Expires() ok = %v, want %v", ok, tt.hasExpiry)
			}
			if !ok {
				if entry.IsExpired(created.Add(100 * 365 * 24 * time.Hour)) {
					t.Error("IsExpired() = true for entry without expiry")
				}
				return
			}
			if want := created.Add(tt.maxAge); !expires.Equal(want) {
				t.Errorf("Expires() = %v, want %v", expires, want)
			}
			if entry.IsExpired(expires) {
				t.Error("IsExpired(expires) = true, want false")
			}
			if !entry.IsExpired(expires.Add(time.Nanosecond)) {
				t.Error("IsExpired(after expires) = false, want true")
			}
		})
	}
}

func TestEntryEqual(t *testing.T) {
	a := NewEntryAt(map[string]string{"st": "x", "location": "http://a/"}, time.Unix(0, 0))
	b := NewEntryAt(map[string]string{"st": "x", "location": "http://a/"}, time.Unix(100, 0))
	c := NewEntryAt(map[string]string{"st": "x", "location": "http://a/", "bootid.upnp.org": "2"}, time.Unix(0, 0))

	if !a.Equal(b) {
		t.Error("entries with equal headers should be equal regardless of creation time")
	}
	if a.Equal(c) {
		t.Error("entries differing in any header should not be equal")
	}
	if a.Equal(nil) {
		t.Error("Equal(nil) = true, want false")
	}
}

func TestEntryIsImmutable(t *testing.T) {
	headers := map[string]string{"st": "x"}
	entry := NewEntry(headers)

	headers["st"] = "changed"
	if got := entry.SearchTarget(); got != "x" {
		t.Errorf("SearchTarget() = %q after mutating the input map, want %q", got, "x")
	}

	copied := entry.Headers()
	copied["st"] = "changed"
	if got := entry.SearchTarget(); got != "x" {
		t.Errorf("SearchTarget() = %q after mutating Headers(), want %q", got, "x")
	}
}

func TestEntryMarshalJSON(t *testing.T) {
	entry := ParseResponseAt(rootDeviceResponse, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded["st"] != "upnp:rootdevice" {
		t.Errorf("st = %v, want upnp:rootdevice", decoded["st"])
	}
	if decoded["expires"] != "2024-05-01T12:30:00Z" {
		t.Errorf("expires = %v, want 2024-05-01T12:30:00Z", decoded["expires"])
	}
}
