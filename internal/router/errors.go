package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/netbill/netbill-server/internal/storage"
)

var (
	// ErrNotConfigured is returned when no router settings are stored
	ErrNotConfigured = errors.New("router is not configured")

	// ErrNotFound is returned when a lookup by name matched no row
	ErrNotFound = errors.New("not found on router")

	// ErrInvalid is returned for requests that cannot be sent to the router
	ErrInvalid = errors.New("invalid request")
)

// Error kinds reported to API clients
const (
	KindNotConfigured = "not_configured"
	KindConnection    = "connection"
	KindProtocol      = "protocol"
	KindNotFound      = "not_found"
	KindInvalid       = "invalid"
	KindConflict      = "conflict"
	KindInternal      = "internal"
)

// ConnectionError is a failure to reach or talk to the router over a
// transport: dial, login, a non-2xx HTTP status or a broken stream.
type ConnectionError struct {
	Transport string
	Op        string
	Status    int
	Err       error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Transport, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError is a command the router rejected or a reply that could not
// be decoded.
type ProtocolError struct {
	Transport string
	Command   string
	Err       error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Command, e.Err)
}

// Unwrap returns the underlying error
func (e *ProtocolError) Unwrap() error { return e.Err }

// FallbackError is returned when every transport failed. Its message is the
// last transport's; Attempts holds all of them.
type FallbackError struct {
	Attempts *multierror.Error
}

func (e *FallbackError) last() error {
	if e.Attempts == nil || len(e.Attempts.Errors) == 0 {
		return nil
	}
	return e.Attempts.Errors[len(e.Attempts.Errors)-1]
}

// Error implements the error interface
func (e *FallbackError) Error() string {
	if last := e.last(); last != nil {
		return last.Error()
	}
	return "all transports failed"
}

// Unwrap returns the last attempt's error
func (e *FallbackError) Unwrap() error { return e.last() }

// Detail lists every attempt, for logs
func (e *FallbackError) Detail() string {
	if e.Attempts == nil {
		return e.Error()
	}
	return e.Attempts.Error()
}

// Kind classifies err for API responses
func Kind(err error) string {
	var connErr *ConnectionError
	var protoErr *ProtocolError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalid), errors.Is(err, storage.ErrInvalidData):
		return KindInvalid
	case errors.Is(err, storage.ErrDuplicateKey):
		return KindConflict
	case errors.As(err, &protoErr):
		return KindProtocol
	case errors.As(err, &connErr):
		return KindConnection
	case errors.Is(err, context.DeadlineExceeded):
		return KindConnection
	default:
		return KindInternal
	}
}

// shouldFallback reports whether err from a transport lets the next one
// try. Rejected commands are not retried elsewhere.
func shouldFallback(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return Kind(err) == KindConnection
}
