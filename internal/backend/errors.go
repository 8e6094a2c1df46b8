package backend

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotFound is matched by APIErrors carrying a 404 status.
var ErrNotFound = errors.New("connector not found")

// TransportErrorKind categorizes a transport failure.
type TransportErrorKind int

const (
	// TransportErrorUnknown indicates an unclassified transport error.
	TransportErrorUnknown TransportErrorKind = iota
	// TransportErrorTLS indicates a TLS/certificate verification error.
	TransportErrorTLS
	// TransportErrorNetwork indicates a network connectivity error (e.g., refused, unreachable).
	TransportErrorNetwork
	// TransportErrorTimeout indicates a request timeout.
	TransportErrorTimeout
	// TransportErrorDNS indicates a DNS resolution failure.
	TransportErrorDNS
)

// String returns a human-readable name for the transport error kind.
func (k TransportErrorKind) String() string {
	switch k {
	case TransportErrorTLS:
		return "TLS certificate error"
	case TransportErrorNetwork:
		return "Network error"
	case TransportErrorTimeout:
		return "Request timeout"
	case TransportErrorDNS:
		return "DNS resolution error"
	default:
		return "Transport error"
	}
}

// TransportError means the gateway could not be reached. It is transient:
// callers keep their cached state and retry on the next poll or refresh.
type TransportError struct {
	// Endpoint is the URL that could not be reached.
	Endpoint string
	// Kind categorizes the failure.
	Kind TransportErrorKind
	// Reason is the underlying error.
	Reason error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s reaching %s: %v", e.Kind, e.Endpoint, e.Reason)
}

func (e *TransportError) Unwrap() error {
	return e.Reason
}

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.Endpoint)
	}
	return fmt.Sprintf("gateway returned %d for %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// classifyTransportError wraps err in a TransportError of the matching kind.
func classifyTransportError(err error, endpoint string) *TransportError {
	if err == nil {
		return nil
	}

	kind := TransportErrorUnknown
	var dnsErr *net.DNSError
	switch {
	case isTLSError(err):
		kind = TransportErrorTLS
	case errors.As(err, &dnsErr):
		kind = TransportErrorDNS
	case isTimeoutError(err):
		kind = TransportErrorTimeout
	case isNetworkError(err.Error()):
		kind = TransportErrorNetwork
	}

	return &TransportError{Endpoint: endpoint, Kind: kind, Reason: err}
}

func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError

	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return true
	}

	errStr := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(errStr string) bool {
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"connect:",
	}

	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
