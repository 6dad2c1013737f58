package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/api"
	"github.com/netbill/netbill-server/internal/app"
	"github.com/netbill/netbill-server/internal/config"
	"github.com/netbill/netbill-server/internal/integration"
	"github.com/netbill/netbill-server/internal/reconcile"
	"github.com/netbill/netbill-server/internal/server"
	"github.com/netbill/netbill-server/internal/traffic"
)

func main() {
	// Command line flags
	var configFile string
	var showConfig bool
	flag.StringVar(&configFile, "config", "config/router-api.yml", "Configuration file path")
	flag.BoolVar(&showConfig, "show-config", false, "Print the effective configuration and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if showConfig {
		cfg.PrintConfigSummary()
		return
	}

	// Setup logging
	app.SetupLogging(&cfg.Log)

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open storage
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	client, err := app.NewRouterClient(&cfg.Router, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create router client")
	}

	nc := app.ConnectNATS(&cfg.NATS, cfg.NATS.ClientID)
	if nc != nil {
		defer nc.Close()
	}
	publisher := server.NewPublisher(nc)

	poller := traffic.NewPoller(client, traffic.NewEstimator(), publisher, nil, traffic.PollerConfig{
		Interface: cfg.Traffic.Interface,
		WANMarker: cfg.Router.WANMarker,
		Interval:  cfg.Traffic.Interval,
	})

	apiServer := api.NewRESTServer(cfg, api.Dependencies{
		Store:     store,
		Router:    client,
		Reconcile: reconcile.NewService(store, client, publisher),
		Traffic:   poller,
	})

	// WaitGroup for services
	var wg sync.WaitGroup

	// Start API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Start billing subscriber
	if nc != nil {
		subscriber := server.NewBillingSubscriber(nc, store, client)

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("Starting billing subscriber")
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Billing subscriber stopped")
			}
		}()
	}

	// Start event forwarder
	if nc != nil && cfg.Integration.Enabled() {
		sinks, err := integration.NewSinks(&cfg.Integration)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create integration sinks")
		} else {
			forwarder := integration.NewForwarderService(nc, cfg.Server.Name, sinks...)

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := forwarder.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("Integration forwarder stopped")
				}
			}()
		}
	}

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Shutdown API server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Router API stopped")
}
