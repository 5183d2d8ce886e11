// Package errors provides categorized errors for authorization and probing.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for classification decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents timeout errors.
	Timeout
	// Auth represents authentication/authorization errors (401, 403).
	Auth
	// NotFound represents 404 errors.
	NotFound
	// ServerError represents 5xx errors.
	ServerError
	// ClientError represents 4xx errors (except 401, 403, 404).
	ClientError
	// Parse represents malformed URLs and undecodable input.
	Parse
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Auth:
		return "auth"
	case NotFound:
		return "not_found"
	case ServerError:
		return "server_error"
	case ClientError:
		return "client_error"
	case Parse:
		return "parse"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProbeError represents a categorized request failure.
type ProbeError struct {
	Type       ErrorType
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
}

// Error implements the error interface. Errors carrying an HTTP status
// include "HTTP response code: N" so they can be recognized from text alone.
func (e *ProbeError) Error() string {
	msg := e.Message
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP response code: %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, msg, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, msg)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target of the same type.
func (e *ProbeError) Is(target error) bool {
	t, ok := target.(*ProbeError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewProbeError creates a new ProbeError.
func NewProbeError(errType ErrorType, url, operation, message string, cause error) *ProbeError {
	return &ProbeError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Timeout, url, operation, "request timed out", cause)
}

// NewParseError creates a parse error.
func NewParseError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Parse, url, operation, "parsing failed", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *ProbeError {
	return NewProbeError(Cancelled, url, operation, "operation cancelled", nil)
}

// NewStatusError creates an error for an HTTP response status.
func NewStatusError(errType ErrorType, url string, statusCode int, message string) *ProbeError {
	err := NewProbeError(errType, url, "request", message, nil)
	err.StatusCode = statusCode
	return err
}

// Categorize determines the error type from a generic error.
func Categorize(err error, rawURL string) *ProbeError {
	if err == nil {
		return nil
	}

	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(rawURL, "request")
	}

	if isTimeout(err) {
		return NewTimeoutError(rawURL, "request", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && isMalformedURL(urlErr) {
		return NewParseError(rawURL, "request", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(rawURL, "request", err)
	}

	return NewProbeError(Unknown, rawURL, "request", err.Error(), err)
}

// CategorizeHTTPStatus creates an error from an HTTP status code, or nil for
// statuses below 400.
func CategorizeHTTPStatus(statusCode int, url string) *ProbeError {
	switch {
	case statusCode == 401:
		return NewStatusError(Auth, url, statusCode, "unauthorized")
	case statusCode == 403:
		return NewStatusError(Auth, url, statusCode, "forbidden")
	case statusCode == 404:
		return NewStatusError(NotFound, url, statusCode, "not found")
	case statusCode >= 500:
		return NewStatusError(ServerError, url, statusCode, fmt.Sprintf("server returned %d", statusCode))
	case statusCode >= 400:
		return NewStatusError(ClientError, url, statusCode, fmt.Sprintf("client error %d", statusCode))
	default:
		return nil
	}
}

func isMalformedURL(err *url.Error) bool {
	msg := err.Err.Error()
	return strings.Contains(msg, "unsupported protocol scheme") ||
		strings.Contains(msg, "no Host in request URL") ||
		strings.Contains(msg, "invalid URL")
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "EOF")
}

// GetStatusCode extracts the HTTP status code from an error, or 0.
func GetStatusCode(err error) int {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.StatusCode
	}
	return 0
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Type
	}
	return Unknown
}

// IsNotFound reports whether the error describes a 404 response.
func IsNotFound(err error) bool {
	return GetErrorType(err) == NotFound || GetStatusCode(err) == 404
}
