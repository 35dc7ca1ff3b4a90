package ssdp

import (
	"errors"
	"fmt"
)

// ErrBufferTooSmall is returned when a datagram fills the whole receive
// buffer. The datagram may have been truncated, which points at a sizing
// problem rather than network noise, so the scan pass is aborted.
var ErrBufferTooSmall = errors.New("receive buffer too small")

// PlatformError wraps a failure to inspect local network interfaces
type PlatformError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *PlatformError) Error() string {
	return fmt.Sprintf("interface enumeration failed (%s): %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *PlatformError) Unwrap() error {
	return e.Err
}

// IsPlatformError reports whether err is, or wraps, a PlatformError
func IsPlatformError(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe)
}

func bufferTooSmall(size, limit int) error {
	return fmt.Errorf("%w: datagram of %d bytes with a %d byte buffer", ErrBufferTooSmall, size, limit)
}
