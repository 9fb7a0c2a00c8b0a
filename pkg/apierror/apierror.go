// Package apierror classifies failures of backend calls into a closed set of
// kinds. The API client produces *Error values, the retry policy decides on
// them by kind, and the tool handlers translate them into stable result
// codes exactly once.
package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind tags the class of a backend failure.
type Kind int

const (
	// Unknown is the fallback for failures that fit no other kind.
	Unknown Kind = iota
	// Authentication means the token is missing, invalid or expired (401).
	Authentication
	// Authorization means the token is valid but access is denied (403).
	Authorization
	// NotFound means the addressed resource does not exist (404).
	NotFound
	// Validation means the backend rejected the request parameters (400, 422
	// and any other unclassified 4xx).
	Validation
	// RateLimit means the backend is throttling the caller (429).
	RateLimit
	// Server means the backend failed (5xx).
	Server
	// Network means no HTTP response was obtained: connection refused,
	// DNS failure or timeout.
	Network
)

var kindNames = [...]string{
	Unknown:        "unknown",
	Authentication: "authentication",
	Authorization:  "authorization",
	NotFound:       "not_found",
	Validation:     "validation",
	RateLimit:      "rate_limit",
	Server:         "server",
	Network:        "network",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Sentinels for errors.Is comparisons. An *Error matches the sentinel of
// its kind.
var (
	ErrAuthentication = &Error{Kind: Authentication}
	ErrAuthorization  = &Error{Kind: Authorization}
	ErrNotFound       = &Error{Kind: NotFound}
	ErrValidation     = &Error{Kind: Validation}
	ErrRateLimit      = &Error{Kind: RateLimit}
	ErrServer         = &Error{Kind: Server}
	ErrNetwork        = &Error{Kind: Network}
)

// Error is a classified backend failure.
type Error struct {
	Kind       Kind
	Message    string        // Backend-supplied or locally built description.
	StatusCode int           // Originating HTTP status; 0 when none was received.
	RetryAfter time.Duration // Server-requested wait, set for RateLimit only.
	Cause      error         // Underlying transport error, if any.
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}

	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	case e.Cause != nil && e.Message == "":
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	default:
		return msg
	}
}

// Unwrap returns the underlying transport error.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind. It lets the
// package sentinels match any error of their kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewNetwork wraps a transport failure.
func NewNetwork(message string, cause error) *Error {
	return &Error{Kind: Network, Message: message, Cause: cause}
}

// FromContext classifies the error of a finished context. An expired
// deadline is a timeout and reported as Network; cancellation and any other
// error are returned unchanged.
func FromContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewNetwork("call timed out", err)
	}
	return err
}

// FromStatus classifies a non-2xx HTTP status code. An empty message falls
// back to the standard status text.
func FromStatus(code int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("%d %s", code, http.StatusText(code))
	}
	return &Error{Kind: KindForStatus(code), Message: message, StatusCode: code}
}

// KindForStatus maps an HTTP status code onto a Kind. 2xx codes map to
// Unknown since they are not failures.
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized:
		return Authentication
	case code == http.StatusForbidden:
		return Authorization
	case code == http.StatusNotFound:
		return NotFound
	case code == http.StatusTooManyRequests:
		return RateLimit
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return Validation
	case code >= 500:
		return Server
	case code >= 400:
		// 408, 409 and friends are caller-side problems.
		return Validation
	default:
		return Unknown
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or Unknown when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Unknown
}
