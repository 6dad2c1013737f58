package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/storage"
)

// Executor runs commands against one open channel to the router
type Executor interface {
	Execute(ctx context.Context, cmd Command) ([]Row, error)
	Close() error
}

// Transport opens executors for a router
type Transport interface {
	Name() string
	Open(ctx context.Context, settings *models.RouterSettings) (Executor, error)
}

// SettingsProvider returns the current router settings. storage.Store
// satisfies it.
type SettingsProvider interface {
	GetRouterSettings(ctx context.Context) (*models.RouterSettings, error)
}

// Batch is a unit of work run on one executor. It may run more than once,
// once per transport that is tried.
type Batch func(ctx context.Context, exec Executor) error

// Gateway runs batches on the first transport that answers. A transport
// failure moves on to the next one; any other outcome is returned as is.
type Gateway struct {
	settings   SettingsProvider
	transports []Transport
}

// NewGateway creates a gateway trying transports in order
func NewGateway(settings SettingsProvider, transports ...Transport) *Gateway {
	return &Gateway{settings: settings, transports: transports}
}

// Settings loads the router settings, mapping a missing row to
// ErrNotConfigured
func (g *Gateway) Settings(ctx context.Context) (*models.RouterSettings, error) {
	settings, err := g.settings.GetRouterSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && (settings == nil || settings.Host == "")) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("load router settings: %w", err)
	}
	return settings, nil
}

// attempt is one step of the fallback pipeline
type attempt struct {
	transport Transport
}

func (a attempt) run(ctx context.Context, settings *models.RouterSettings, batch Batch) error {
	exec, err := a.transport.Open(ctx, settings)
	if err != nil {
		return err
	}
	defer exec.Close()

	return batch(ctx, exec)
}

// Do runs batch and returns the name of the transport that completed it
func (g *Gateway) Do(ctx context.Context, batch Batch) (string, error) {
	settings, err := g.Settings(ctx)
	if err != nil {
		return "", err
	}
	if len(g.transports) == 0 {
		return "", errors.New("no transports configured")
	}

	pipeline := make([]attempt, 0, len(g.transports))
	for _, t := range g.transports {
		pipeline = append(pipeline, attempt{transport: t})
	}

	var attempts *multierror.Error
	for i, step := range pipeline {
		name := step.transport.Name()

		err := step.run(ctx, settings, batch)
		if err == nil {
			if i > 0 {
				log.Info().
					Str("transport", name).
					Int("failed_attempts", i).
					Msg("Router batch completed on fallback transport")
			}
			return name, nil
		}

		if !shouldFallback(err) {
			return name, err
		}

		attempts = multierror.Append(attempts, err)

		if i < len(pipeline)-1 {
			log.Warn().
				Err(err).
				Str("transport", name).
				Str("next", pipeline[i+1].transport.Name()).
				Msg("Router transport failed, falling back")
		}
	}

	fallbackErr := &FallbackError{Attempts: attempts}
	log.Error().
		Str("attempts", fallbackErr.Detail()).
		Msg("All router transports failed")

	return "", fallbackErr
}

// Run is Do for batches producing a value
func Run[T any](ctx context.Context, g *Gateway, fn func(ctx context.Context, exec Executor) (T, error)) (T, error) {
	var out T
	_, err := g.Do(ctx, func(ctx context.Context, exec Executor) error {
		v, err := fn(ctx, exec)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
