package ssdp

import (
	"encoding/json"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// headerPattern only recognises "name: value" lines terminated by a carriage
// return that follow a newline, so the status line is never a header.
var headerPattern = regexp.MustCompile(`\n(.*?): *(.*)\r`)

var maxAgePattern = regexp.MustCompile(`max-age *= *(\d+)`)

// Entry is a parsed SSDP response. It is immutable after construction.
type Entry struct {
	headers map[string]string
	created time.Time
	expires time.Time // zero when the entry never expires
}

// ParseHeaders extracts the headers of a response. Names are lower-cased and
// a later duplicate replaces an earlier one.
func ParseHeaders(text string) map[string]string {
	headers := make(map[string]string)
	for _, m := range headerPattern.FindAllStringSubmatch(text, -1) {
		headers[strings.ToLower(m[1])] = m[2]
	}
	return headers
}

// ParseResponse builds an Entry from a response received now. Responses
// without headers yield an Entry with an empty header map.
func ParseResponse(text string) *Entry {
	return ParseResponseAt(text, time.Now())
}

// ParseResponseAt builds an Entry from a response received at created.
func ParseResponseAt(text string, created time.Time) *Entry {
	return NewEntryAt(ParseHeaders(text), created)
}

// NewEntry wraps a header map created now. Header names must be lower case.
func NewEntry(headers map[string]string) *Entry {
	return NewEntryAt(headers, time.Now())
}

// NewEntryAt wraps a header map. The expiry is derived once, from the
// max-age directive of the cache-control header if there is one.
func NewEntryAt(headers map[string]string, created time.Time) *Entry {
	e := &Entry{
		headers: maps.Clone(headers),
		created: created,
	}
	if e.headers == nil {
		e.headers = make(map[string]string)
	}
	if age, ok := maxAge(e.headers["cache-control"]); ok {
		e.expires = created.Add(age)
	}
	return e
}

func maxAge(directive string) (time.Duration, bool) {
	m := maxAgePattern.FindStringSubmatch(directive)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || seconds > int64(time.Duration(1<<63-1)/time.Second) {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// Header returns the named header. name must be lower case.
func (e *Entry) Header(name string) (string, bool) {
	v, ok := e.headers[name]
	return v, ok
}

// Headers returns a copy of the header map
func (e *Entry) Headers() map[string]string {
	return maps.Clone(e.headers)
}

// SearchTarget returns the ST header, or "" when absent
func (e *Entry) SearchTarget() string {
	return e.headers["st"]
}

// Location returns the LOCATION header, or "" when absent
func (e *Entry) Location() string {
	return e.headers["location"]
}

// USN returns the unique service name, or "" when absent
func (e *Entry) USN() string {
	return e.headers["usn"]
}

// Server returns the SERVER header, or "" when absent
func (e *Entry) Server() string {
	return e.headers["server"]
}

// Created returns when the response was parsed
func (e *Entry) Created() time.Time {
	return e.created
}

// Expires returns the expiry time and whether the entry expires at all
func (e *Entry) Expires() (time.Time, bool) {
	return e.expires, !e.expires.IsZero()
}

// IsExpired reports whether the entry has an expiry that lies before now
func (e *Entry) IsExpired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Equal reports whether both entries carry exactly the same headers.
//
// Two responses from one device that differ in any header, such as a boot
// counter, are distinct entries.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return maps.Equal(e.headers, other.headers)
}

// String returns "location - st"
func (e *Entry) String() string {
	return e.Location() + " - " + e.SearchTarget()
}

type entryJSON struct {
	SearchTarget string            `json:"st,omitempty"`
	Location     string            `json:"location,omitempty"`
	Headers      map[string]string `json:"headers"`
	Created      time.Time         `json:"created"`
	Expires      *time.Time        `json:"expires,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (e *Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		SearchTarget: e.SearchTarget(),
		Location:     e.Location(),
		Headers:      e.headers,
		Created:      e.created,
	}
	if exp, ok := e.Expires(); ok {
		out.Expires = &exp
	}
	return json.Marshal(out)
}

// MarshalYAML implements yaml.Marshaler
func (e *Entry) MarshalYAML() (interface{}, error) {
	out := map[string]interface{}{
		"st":       e.SearchTarget(),
		"location": e.Location(),
		"headers":  e.headers,
		"created":  e.created,
	}
	if exp, ok := e.Expires(); ok {
		out["expires"] = exp
	}
	return out, nil
}
