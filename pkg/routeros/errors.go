package routeros

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when a command is issued before login succeeded
	ErrNotAuthenticated = errors.New("session not authenticated")

	// ErrClosed is returned when the session was already closed
	ErrClosed = errors.New("session closed")

	// ErrUnexpectedReply is returned for a reply sentence of unknown type
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// TrapError is a command level failure reported with !trap
type TrapError struct {
	Command  string
	Category string
	Message  string
}

// Error implements the error interface
func (e *TrapError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: trap", e.Command)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// FatalError is reported with !fatal; the router closes the connection after it
type FatalError struct {
	Message string
}

// Error implements the error interface
func (e *FatalError) Error() string {
	return "fatal: " + e.Message
}
