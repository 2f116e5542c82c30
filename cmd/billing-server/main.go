package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wifibill/hotspot-server/internal/api"
	"github.com/wifibill/hotspot-server/internal/billing"
	"github.com/wifibill/hotspot-server/internal/config"
	"github.com/wifibill/hotspot-server/internal/payment"
	"github.com/wifibill/hotspot-server/internal/router"
	"github.com/wifibill/hotspot-server/internal/server"
	"github.com/wifibill/hotspot-server/internal/storage"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/billing-server.yml", "Configuration file path")
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

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Msg("Connected to database")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WaitGroup for services
	var wg sync.WaitGroup

	// Optional NATS connection
	var publisher billing.Publisher
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err := server.ConnectNATS(&cfg.NATS, "hotspot-billing-server")
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS support")
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
			publisher = server.NewNATSPublisher(nc)
		}
	} else {
		log.Info().Msg("NATS not configured, running in standalone mode")
	}

	// Router provisioner, selected once at startup
	provisioner := buildProvisioner(cfg)

	// Payment gateways
	gateways := []payment.Gateway{
		payment.NewMTNGateway(cfg.Payment.MTN),
		payment.NewAirtelGateway(cfg.Payment.Airtel),
		payment.NewCashGateway(),
	}

	coordinator := billing.NewCoordinator(billing.CoordinatorConfig{
		Store:             store,
		Gateways:          gateways,
		Provisioner:       provisioner,
		Catalog:           billing.NewPlanCatalog(cfg.Plans),
		Publisher:         publisher,
		EncryptionKey:     cfg.EncryptionKey(),
		DefaultRouterPort: cfg.Router.DefaultPort,
		EnforceCapacity:   cfg.Router.EnforceCapacity,
	})

	// Start REST API server
	apiServer := api.NewRESTServer(cfg, store, coordinator)

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Start payment sweeper
	sweeper := billing.NewSweeper(coordinator, cfg.Payment.SweepInterval, cfg.Payment.PendingTimeout)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Shutdown API server
	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Billing server stopped")
}

// buildProvisioner selects the provisioner variant from configuration and
// wraps it with the retry policy
func buildProvisioner(cfg *config.Config) router.Provisioner {
	var inner router.Provisioner
	switch cfg.Router.Mode {
	case "live":
		inner = router.NewMikrotikProvisioner(cfg.Router.ConnectTimeout)
		log.Info().Msg("Router provisioner: live MikroTik")
	default:
		inner = router.NewSimulatedProvisioner()
		log.Warn().Msg("Router provisioner: simulator, no real routers will be touched")
	}

	return router.WithRetry(inner, cfg.Router.RetryAttempts, cfg.Router.RetryBackoff)
}
