// Package ssdp implements the active half of the Simple Service Discovery
// Protocol over IPv4 multicast.
//
// # Discovery Pass
//
// A pass works as follows:
//  1. Enumerate local IPv4 addresses on broadcast-capable interfaces
//  2. Open one UDP socket per address, bound to an ephemeral port
//  3. Send an M-SEARCH for "ssdp:all" and "upnp:rootdevice" on every socket
//  4. Read responses from all sockets until the deadline passes
//  5. Parse every response into an Entry and keep the last one per
//     (search target, location) pair
//
// Each socket is read by its own goroutine under a read deadline. Reads are
// reported as a ReadResult whose Kind tells data, expiry, socket failure and
// buffer overflow apart. A failing socket is dropped without affecting the
// rest of the pass. A datagram that fills the receive buffer fails the pass
// with ErrBufferTooSmall.
//
// # Usage Example
//
//	entries, err := ssdp.Scan(ctx, ssdp.Options{Timeout: 3 * time.Second})
//	if err != nil {
//	    return err
//	}
//	for _, e := range entries {
//	    fmt.Println(e.SearchTarget(), e.Location())
//	}
//
// # Entries
//
// An Entry wraps the lower-cased header map of one response. Only lines of
// the form "name: value\r" that follow a newline are headers; the status
// line is not. When a CACHE-CONTROL header carries max-age=N the entry
// expires N seconds after it was parsed.
//
// # Network Requirements
//
// Responses are unicast back to the sending socket, so a host firewall must
// allow inbound UDP to ephemeral ports for the duration of the pass.
package ssdp
