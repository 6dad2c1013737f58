// Package app wires configuration into the stores, router client and NATS
// connection shared by the commands.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/config"
	"github.com/netbill/netbill-server/internal/router"
	"github.com/netbill/netbill-server/internal/storage"
	"github.com/netbill/netbill-server/pkg/crypto"
)

// SetupLogging configures the global logger from cfg
func SetupLogging(cfg *config.LogConfig) {
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// OpenStore opens PostgreSQL when a DSN is configured and memory otherwise.
// Passwords are sealed when an encryption key is set.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	var store storage.Store
	if cfg.Database.DSN == "" {
		log.Warn().Msg("No database configured, records are kept in memory")
		store = storage.NewMemoryStore()
	} else {
		pg, err := storage.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		pg.SetPool(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, err
			}
			log.Info().Msg("Database schema applied")
		}
		store = pg
	}

	if cfg.Security.EncryptionKey == "" {
		return store, nil
	}
	sealer, err := crypto.NewSealer(cfg.Security.EncryptionKey)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	return storage.NewSealedStore(store, sealer), nil
}

// NewRouterClient builds the transport pipeline in configured order
func NewRouterClient(cfg *config.RouterConfig, settings router.SettingsProvider) (*router.Client, error) {
	var transports []router.Transport
	for _, name := range cfg.Transports {
		switch name {
		case "rest":
			var opts []router.RESTOption
			if cfg.RESTPort != 0 {
				opts = append(opts, router.WithRESTPort(cfg.RESTPort))
			}
			if cfg.RESTInsecure {
				opts = append(opts, router.WithInsecureTLS())
			}
			transports = append(transports, router.NewRESTTransport(cfg.RESTTimeout, opts...))
		case "binary":
			transports = append(transports, router.NewBinaryTransport(cfg.DialTimeout, cfg.CommandTimeout))
		default:
			return nil, fmt.Errorf("unknown transport %q", name)
		}
	}

	return router.NewClient(router.NewGateway(settings, transports...), cfg.WANMarker), nil
}

// ConnectNATS connects when a URL is configured. It returns nil without
// error when NATS is disabled or unreachable.
func ConnectNATS(cfg *config.NATSConfig, name string) *nats.Conn {
	if cfg.URL == "" {
		log.Info().Msg("NATS not configured, running in standalone mode")
		return nil
	}

	log.Info().Str("url", cfg.URL).Msg("Connecting to NATS...")

	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.UserInfo(cfg.Username, cfg.Password),
		nats.ReconnectWait(cfg.ReconnectInterval),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error().
				Err(err).
				Str("subject", subject).
				Msg("NATS error")
		}),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS support")
		return nil
	}

	log.Info().Msg("Connected to NATS")
	return nc
}
