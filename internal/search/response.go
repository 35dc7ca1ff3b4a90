package search

import (
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/upnpdiscover/internal/ssdp"
)

// Response is one datagram seen by a Searcher or Listener, or a marker
// without data that reports a retry.
type Response struct {
	// Request is the request number the response answers. A marker carries
	// the number of the request just sent, or 0 when the search is over.
	Request int

	// Received is when the datagram arrived or the marker was produced
	Received time.Time

	// From is the sender, nil for markers
	From *net.UDPAddr

	// Text is the raw datagram, empty for markers
	Text string

	// Headers holds the parsed header lines with lower-cased names
	Headers map[string]string
}

// NewResponse parses a received datagram
func NewResponse(request int, from *net.UDPAddr, text string, received time.Time) Response {
	return Response{
		Request:  request,
		Received: received,
		From:     from,
		Text:     text,
		Headers:  ssdp.ParseHeaders(text),
	}
}

func marker(request int, received time.Time) Response {
	return Response{Request: request, Received: received}
}

// HasData reports whether r carries a datagram
func (r Response) HasData() bool {
	return r.Text != ""
}

// Method returns the request method of the datagram (NOTIFY or M-SEARCH),
// or "" for responses
func (r Response) Method() string {
	first, _, _ := strings.Cut(r.Text, "\n")
	method, _, found := strings.Cut(first, " * HTTP")
	if !found {
		return ""
	}
	return method
}

// UUID returns the device uuid embedded in the USN header. ok is false when
// there is no USN header.
func (r Response) UUID() (id string, ok bool) {
	usn, ok := r.Headers["usn"]
	if !ok {
		return "", false
	}
	_, rest, _ := strings.Cut(usn, "uuid:")
	id, _, _ = strings.Cut(rest, "::")
	return id, true
}

// Server returns the SERVER header
func (r Response) Server() (string, bool) {
	s, ok := r.Headers["server"]
	return s, ok
}

// IP returns the sender address, or "" for markers
func (r Response) IP() string {
	if r.From == nil {
		return ""
	}
	return r.From.IP.String()
}

// DeviceKey identifies the device that sent r: its address and uuid.
// Well-formed uuids are compared in canonical form.
func (r Response) DeviceKey() string {
	id, _ := r.UUID()
	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
	}
	return r.IP() + " " + id
}
