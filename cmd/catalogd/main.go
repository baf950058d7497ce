// catalogd is the catalog coordination server. It loads configuration,
// builds the stores and the coordinator, and runs the protocol adapters
// until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/catalog"
	"github.com/ybecker/catalogd/pkg/config"
	"github.com/ybecker/catalogd/pkg/coordinator"
	"github.com/ybecker/catalogd/pkg/server"
	"github.com/ybecker/catalogd/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to set log output: %v", err)
	}

	fmt.Println("catalogd - file catalog coordination server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics must come up before the adapters so their collectors land in
	// the registry.
	metricsServer := config.InitializeMetrics(cfg)

	stores, err := config.CreateStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create stores: %v", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("Error closing stores: %v", err)
		}
	}()

	if err := stores.Catalog.HealthCheck(ctx); err != nil {
		log.Fatalf("Catalog store failed health check: %v", err)
	}
	if err := stores.Accounts.HealthCheck(ctx); err != nil {
		log.Fatalf("Account store failed health check: %v", err)
	}
	logger.Info("Stores ready: catalog=%s, accounts=%s", cfg.Catalog.Type, cfg.Accounts.Type)

	coord := coordinator.New(stores.Accounts, catalog.New(stores.Catalog), session.NewRegistry())
	coord.SetLoginLimit(cfg.Server.Login.RateLimit, cfg.Server.Login.RateBurst)

	catalogServer := server.New(coord)

	adapters, err := config.CreateAdapters(cfg, coord)
	if err != nil {
		log.Fatalf("Failed to create adapters: %v", err)
	}
	for _, adp := range adapters {
		if err := catalogServer.AddAdapter(adp); err != nil {
			log.Fatalf("Failed to register %s adapter: %v", adp.Protocol(), err)
		}
	}

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Received signal %v, shutting down", sig)
		cancel()
	}()

	logger.Info("Server is running. Press Ctrl+C to stop.")
	if err := catalogServer.Serve(ctx); err != nil && err != context.Canceled {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
