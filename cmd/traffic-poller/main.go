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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/app"
	"github.com/netbill/netbill-server/internal/config"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	client, err := app.NewRouterClient(&cfg.Router, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create router client")
	}

	nc := app.ConnectNATS(&cfg.NATS, cfg.NATS.ClientID+"-traffic")
	if nc != nil {
		defer nc.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	poller := traffic.NewPoller(client, traffic.NewEstimator(), server.NewPublisher(nc), traffic.NewMetrics(reg), traffic.PollerConfig{
		Interface: cfg.Traffic.Interface,
		WANMarker: cfg.Router.WANMarker,
		Interval:  cfg.Traffic.Interval,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsServer := &http.Server{
		Addr:              cfg.Traffic.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.Traffic.MetricsAddr).Msg("Serving metrics")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Metrics server failed")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown metrics server gracefully")
	}

	wg.Wait()

	log.Info().Msg("Traffic poller stopped")
}
