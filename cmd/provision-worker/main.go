package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wifibill/hotspot-server/internal/billing"
	"github.com/wifibill/hotspot-server/internal/config"
	"github.com/wifibill/hotspot-server/internal/payment"
	"github.com/wifibill/hotspot-server/internal/router"
	"github.com/wifibill/hotspot-server/internal/server"
	"github.com/wifibill/hotspot-server/internal/storage"
)

// The provision worker consumes provisioning retry events so router outages
// are healed even when the API server is busy or restarting. It runs the same
// coordinator as the API server against the same database; running both is
// safe because provisioning is idempotent.
func main() {
	// Command line flags
	var configFile string
	var retryDelay time.Duration
	flag.StringVar(&configFile, "config", "config/billing-server.yml", "Configuration file path")
	flag.DurationVar(&retryDelay, "retry-delay", 30*time.Second, "Delay before re-running a failed provisioning")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.NATS.URL == "" {
		log.Fatal().Msg("NATS is required for the provision worker")
	}

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Msg("Connected to database")

	// Connect to NATS
	nc, err := server.ConnectNATS(&cfg.NATS, "hotspot-provision-worker")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	log.Info().Msg("Connected to NATS")

	// Router provisioner
	var inner router.Provisioner
	switch cfg.Router.Mode {
	case "live":
		inner = router.NewMikrotikProvisioner(cfg.Router.ConnectTimeout)
	default:
		inner = router.NewSimulatedProvisioner()
		log.Warn().Msg("Router provisioner: simulator, no real routers will be touched")
	}
	provisioner := router.WithRetry(inner, cfg.Router.RetryAttempts, cfg.Router.RetryBackoff)

	coordinator := billing.NewCoordinator(billing.CoordinatorConfig{
		Store: store,
		Gateways: []payment.Gateway{
			payment.NewCashGateway(),
		},
		Provisioner:       provisioner,
		Catalog:           billing.NewPlanCatalog(cfg.Plans),
		Publisher:         server.NewNATSPublisher(nc),
		EncryptionKey:     cfg.EncryptionKey(),
		DefaultRouterPort: cfg.Router.DefaultPort,
		EnforceCapacity:   cfg.Router.EnforceCapacity,
	})

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriber := server.NewNATSSubscriber(nc, coordinator, retryDelay)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := subscriber.Start(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("NATS subscriber stopped")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	cancel()
	<-done

	log.Info().Msg("Provision worker stopped")
}
