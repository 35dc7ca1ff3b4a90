// Package search provides the simple single-socket SSDP tools: an active
// Searcher that repeats its request and reports each device once, and a
// passive Listener for NOTIFY announcements.
//
// Both deliver Response values, rendered by Format in Plain or Verbose mode.
package search
