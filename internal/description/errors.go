package description

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of a description fetch failure
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the device did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing listens at the location
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates the location host could not be resolved
	ErrTypeDNS
	// ErrTypeHTTP indicates a non-2xx status code
	ErrTypeHTTP
	// ErrTypeEmptyBody indicates the document was empty, even after a retry
	ErrTypeEmptyBody
	// ErrTypeParse indicates malformed XML
	ErrTypeParse
	// ErrTypeLocation indicates the location is not a usable URL
	ErrTypeLocation
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeEmptyBody:
		return "Empty Document"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeLocation:
		return "Invalid Location"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Label returns a short metric label for the error type
func (et ErrorType) Label() string {
	switch et {
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeConnectionRefused:
		return "refused"
	case ErrTypeDNS:
		return "dns"
	case ErrTypeHTTP:
		return "http"
	case ErrTypeEmptyBody:
		return "empty"
	case ErrTypeParse:
		return "parse"
	case ErrTypeLocation:
		return "location"
	default:
		return "network"
	}
}

// FetchError describes why a description document could not be obtained
type FetchError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Location   string    // Description URL
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Location != "" {
		msg += " (" + e.Location + ")"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error to a FetchError
func ClassifyNetworkError(err error, location string) *FetchError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &FetchError{Type: ErrTypeTimeout, Message: "request timed out", Location: location, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &FetchError{
			Type:     ErrTypeDNS,
			Message:  fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Location: location,
			Err:      err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &FetchError{Type: ErrTypeConnectionRefused, Message: "device refused connection", Location: location, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, location)
	}

	return &FetchError{Type: ErrTypeNetwork, Message: "network error occurred", Location: location, Err: err}
}

// NewHTTPError creates an error for a non-2xx response
func NewHTTPError(statusCode int, location string) *FetchError {
	return &FetchError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status %d", statusCode),
		StatusCode: statusCode,
		Location:   location,
	}
}

// NewParseError creates a parse error
func NewParseError(message string, err error) *FetchError {
	return &FetchError{Type: ErrTypeParse, Message: message, Err: err}
}

func errorType(err error) (ErrorType, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Type, true
	}
	return 0, false
}

// IsNetworkError checks if an error is a transport failure
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused || t == ErrTypeDNS)
}

// IsHTTPError checks if an error is an HTTP status error
func IsHTTPError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeHTTP
}

// IsParseError checks if an error is a parse or empty document error
func IsParseError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeParse || t == ErrTypeEmptyBody)
}

// GetTroubleshootingHint returns user-friendly advice for a fetch error
func GetTroubleshootingHint(err error) string {
	t, ok := errorType(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch t {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not serve its description in time.",
			"Troubleshooting:",
			"  • Check that the device is still powered on",
			"  • Try increasing the description timeout",
		}, "\n")
	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"Troubleshooting:",
			"  • The advertised LOCATION may be stale; rescan with --force",
			"  • A host firewall may block the description port",
		}, "\n")
	case ErrTypeDNS:
		return "The LOCATION host name could not be resolved. Check your DNS settings."
	case ErrTypeHTTP:
		return "The device answered with an HTTP error. Its description URL may have changed."
	case ErrTypeEmptyBody:
		return "The device returned an empty description twice. Some devices need a moment after boot."
	case ErrTypeParse:
		return "The description is not well-formed XML. The device firmware may be non-compliant."
	case ErrTypeLocation:
		return "The advertised LOCATION is not an http(s) URL."
	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Verify you are on the same network as the device",
		}, "\n")
	}
}
