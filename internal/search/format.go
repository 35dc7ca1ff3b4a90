package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects how a Response is rendered
type Mode int

const (
	// Plain prints one line per device
	Plain Mode = iota
	// Verbose prints the raw datagram after a short header line
	Verbose
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case Plain:
		return "plain"
	case Verbose:
		return "verbose"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

const zeroRelative = "0000.0000s"

// Format renders r with its arrival time relative to base.
//
// Plain:   <rel> <request>[ <method>][ <ip>][:<port>][ uuid:<uuid>][ <server>]\r\n
// Verbose: <rel> <request>[ <ip>][:<port>]\r\n<datagram>
//
// The relative time is 0000.0000s when base is zero or not before r.
func Format(r Response, base time.Time, mode Mode) string {
	var b strings.Builder

	b.WriteString(relative(r.Received, base))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.Request))

	if mode != Verbose && r.HasData() {
		if method := r.Method(); method != "" {
			b.WriteString(" " + method)
		}
	}

	if r.From != nil {
		b.WriteString(" " + r.From.IP.String())
		if r.From.Port != 0 {
			b.WriteString(":" + strconv.Itoa(r.From.Port))
		}
	}

	if !r.HasData() {
		b.WriteString("\r\n")
		return b.String()
	}

	if mode == Verbose {
		b.WriteString("\r\n")
		b.WriteString(r.Text)
		return b.String()
	}

	if id, ok := r.UUID(); ok {
		b.WriteString(" uuid:" + id)
	}
	if server, ok := r.Server(); ok {
		b.WriteString(" " + server)
	}
	b.WriteString("\r\n")
	return b.String()
}

func relative(t, base time.Time) string {
	if base.IsZero() {
		return zeroRelative
	}
	d := t.Sub(base)
	if d <= 0 {
		return zeroRelative
	}
	return fmt.Sprintf("%09.4fs", d.Seconds())
}
