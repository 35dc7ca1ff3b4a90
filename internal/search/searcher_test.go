package search

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/upnpdiscover/internal/ssdp"
)

// fakeDevice answers every M-SEARCH it receives on loopback with replies
type fakeDevice struct {
	conn     *net.UDPConn
	replies  []string
	mu       sync.Mutex
	requests []string
}

func newFakeDevice(t *testing.T, replies ...string) *fakeDevice {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open fake device: %v", err)
	}
	d := &fakeDevice{conn: conn, replies: replies}
	t.Cleanup(func() { _ = conn.Close() })
	go d.serve()
	return d
}

func (d *fakeDevice) serve() {
	buf := make([]byte, 2048)
	for {
		n, from, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		d.mu.Lock()
		d.requests = append(d.requests, string(buf[:n]))
		d.mu.Unlock()
		for _, reply := range d.replies {
			_, _ = d.conn.WriteToUDP([]byte(reply), from)
		}
	}
}

func (d *fakeDevice) Addr() *net.UDPAddr {
	return d.conn.LocalAddr().(*net.UDPAddr)
}

func (d *fakeDevice) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}

func reply(uuid string) string {
	return "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"ST: upnp:rootdevice\r\n" +
		"USN: uuid:" + uuid + "::upnp:rootdevice\r\n" +
		"SERVER: Linux/5.10 UPnP/1.0 test/1.0\r\n" +
		"\r\n"
}

func testSearcher(dest *net.UDPAddr) *Searcher {
	s := NewSearcher()
	s.Destination = dest
	s.ResponseTime = 100 * time.Millisecond
	s.Retries = 2
	s.unit = 50 * time.Millisecond
	return s
}

func TestSearcher_ReportsEachDeviceOnce(t *testing.T) {
	device := newFakeDevice(t,
		reply("11111111-2222-3333-4444-555555555555"),
		reply("11111111-2222-3333-4444-555555555555"),
		reply("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"),
	)

	var got []Response
	err := testSearcher(device.Addr()).Search(context.Background(), func(r Response) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(got) != 4 {
		for _, r := range got {
			t.Logf("%q", Format(r, time.Time{}, Plain))
		}
		t.Fatalf("Search() delivered %d responses, want 4", len(got))
	}

	wantUUIDs := []string{"11111111-2222-3333-4444-555555555555", "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"}
	for i, want := range wantUUIDs {
		if id, _ := got[i].UUID(); id != want {
			t.Errorf("response %d uuid = %q, want %q", i, id, want)
		}
		if got[i].Request != 1 {
			t.Errorf("response %d Request = %d, want 1", i, got[i].Request)
		}
		if got[i].IP() != "127.0.0.1" {
			t.Errorf("response %d IP = %q, want 127.0.0.1", i, got[i].IP())
		}
	}

	if got[2].HasData() || got[2].Request != 2 {
		t.Errorf("third delivery = %+v, want retry marker 2", got[2])
	}
	if got[3].HasData() || got[3].Request != 0 {
		t.Errorf("last delivery = %+v, want end marker", got[3])
	}

	requests := device.Requests()
	if len(requests) != 2 {
		t.Fatalf("device saw %d requests, want 2", len(requests))
	}
	if !strings.Contains(requests[0], "ST: upnp:rootdevice\r\n") || !strings.Contains(requests[0], "MX: 1\r\n") {
		t.Errorf("request = %q", requests[0])
	}
}

func TestSearcher_SilentNetwork(t *testing.T) {
	device := newFakeDevice(t)

	var got []Response
	err := testSearcher(device.Addr()).Search(context.Background(), func(r Response) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(got) != 2 || got[0].Request != 2 || got[1].Request != 0 {
		t.Errorf("Search() delivered %+v, want markers 2 and 0", got)
	}
}

func TestSearcher_BufferTooSmall(t *testing.T) {
	device := newFakeDevice(t, reply("11111111-2222-3333-4444-555555555555"))

	s := testSearcher(device.Addr())
	s.BufferSize = 64

	err := s.Search(context.Background(), func(Response) {})
	if !errors.Is(err, ssdp.ErrBufferTooSmall) {
		t.Errorf("Search() error = %v, want ErrBufferTooSmall", err)
	}
}

func TestSearcher_SkipsInvalidUTF8(t *testing.T) {
	device := newFakeDevice(t, "HTTP/1.1 200 OK\r\nSERVER: \xff\xfe\r\n\r\n")

	var data int
	err := testSearcher(device.Addr()).Search(context.Background(), func(r Response) {
		if r.HasData() {
			data++
		}
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if data != 0 {
		t.Errorf("delivered %d responses, want 0", data)
	}
}

func TestSearcher_Cancelled(t *testing.T) {
	device := newFakeDevice(t)

	s := testSearcher(device.Addr())
	s.ResponseTime = 10 * time.Second
	s.unit = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.Search(ctx, func(Response) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Search() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Search() took %v after cancellation", elapsed)
	}
}

func TestSearcher_NoRetries(t *testing.T) {
	s := NewSearcher()
	s.Retries = 0

	called := false
	if err := s.Search(context.Background(), func(Response) { called = true }); err != nil {
		t.Errorf("Search() error = %v", err)
	}
	if called {
		t.Error("Search() with no retries should deliver nothing")
	}
}

func TestReceiveWindow(t *testing.T) {
	tests := []struct {
		responseTime time.Duration
		elapsed      time.Duration
		want         time.Duration
	}{
		{2 * time.Second, 0, 3 * time.Second},
		{2 * time.Second, 400 * time.Millisecond, 3 * time.Second},
		{2 * time.Second, 1600 * time.Millisecond, 1 * time.Second},
		{2 * time.Second, 2600 * time.Millisecond, 0},
		{2 * time.Second, 4 * time.Second, -1 * time.Second},
	}

	for _, tt := range tests {
		if got := receiveWindow(tt.responseTime, tt.elapsed, time.Second); got != tt.want {
			t.Errorf("receiveWindow(%v, %v) = %v, want %v", tt.responseTime, tt.elapsed, got, tt.want)
		}
	}
}

func TestMX(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{2 * time.Second, 2},
		{100 * time.Millisecond, 1},
		{0, 1},
		{5400 * time.Millisecond, 5},
	}
	for _, tt := range tests {
		if got := mx(tt.in); got != tt.want {
			t.Errorf("mx(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
