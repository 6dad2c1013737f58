package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"

	"github.com/netbill/netbill-server/internal/storage"
	"github.com/netbill/netbill-server/pkg/routeros"
)

func TestKind(t *testing.T) {
	trap := &routeros.TrapError{Command: "/ppp/secret/add", Message: "failure"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not configured", ErrNotConfigured, KindNotConfigured},
		{"router not found", fmt.Errorf("%w: /ppp/secret", ErrNotFound), KindNotFound},
		{"store not found", fmt.Errorf("load secret: %w", storage.ErrNotFound), KindNotFound},
		{"invalid", fmt.Errorf("%w: bad", ErrInvalid), KindInvalid},
		{"duplicate", storage.ErrDuplicateKey, KindConflict},
		{"connection", &ConnectionError{Transport: "rest", Op: "dial", Err: errors.New("refused")}, KindConnection},
		{"protocol", &ProtocolError{Transport: "binary", Command: "/x", Err: trap}, KindProtocol},
		{"deadline", context.DeadlineExceeded, KindConnection},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestFallbackError(t *testing.T) {
	restErr := &ConnectionError{Transport: "rest", Op: "/interface/print", Status: 500, Err: errors.New("boom")}
	binErr := &ProtocolError{Transport: "binary", Command: "/interface/print", Err: errors.New("no such command")}

	err := &FallbackError{Attempts: multierror.Append(nil, restErr, binErr)}

	assert.Equal(t, binErr.Error(), err.Error())
	assert.Equal(t, KindProtocol, Kind(err))
	assert.Contains(t, err.Detail(), "status 500")
	assert.Contains(t, err.Detail(), "no such command")

	var conn *ConnectionError
	assert.False(t, errors.As(err, &conn), "only the last attempt is unwrapped")

	empty := &FallbackError{}
	assert.Equal(t, "all transports failed", empty.Error())
}

func TestShouldFallback(t *testing.T) {
	assert.True(t, shouldFallback(&ConnectionError{Transport: "rest", Err: errors.New("x")}))
	assert.False(t, shouldFallback(&ProtocolError{Transport: "rest", Err: errors.New("x")}))
	assert.False(t, shouldFallback(ErrNotFound))
	assert.False(t, shouldFallback(ErrInvalid))
	assert.False(t, shouldFallback(&ConnectionError{Transport: "rest", Err: context.Canceled}))
}

func TestConnectionErrorMessage(t *testing.T) {
	err := &ConnectionError{Transport: "rest", Op: "/ppp/secret/print", Status: 401, Err: errors.New("Unauthorized")}
	assert.Equal(t, "rest /ppp/secret/print: status 401: Unauthorized", err.Error())

	err = &ConnectionError{Transport: "binary", Op: "login", Err: errors.New("refused")}
	assert.Equal(t, "binary login: refused", err.Error())
}
