package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/mailflow-monitor/internal/adapters/feed"
	"github.com/mikey/mailflow-monitor/internal/adapters/smtp"
	"github.com/mikey/mailflow-monitor/internal/config"
	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/mikey/mailflow-monitor/internal/di"
	"github.com/mikey/mailflow-monitor/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	smtpServer *smtp.Server,
	feedServer *feed.Server,
	modelClient core.ModelClient,
	verdictCache core.VerdictCache,
) error {
	defer logger.Sync()

	logger.Info("Starting mailflow monitor",
		zap.String("smtp_address", cfg.GetSMTP().ListenAddress),
		zap.String("feed_address", cfg.GetFeed().ListenAddress),
		zap.String("model_provider", cfg.GetModel().Provider),
		zap.String("cache_type", cfg.GetCache().Type))

	// Ingestion before the feed on the way up, and the same order on the
	// way down: stopping ingestion first means no publishes race the feed
	// teardown.
	listeners := []ports.Listener{smtpServer, feedServer}

	for i, listener := range listeners {
		if err := listener.Start(); err != nil {
			logger.Error("Failed to start listener", zap.Error(err))
			for _, started := range listeners[:i] {
				started.Stop()
			}
			return err
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	for _, listener := range listeners {
		if err := listener.Stop(); err != nil {
			logger.Error("Failed to stop listener", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := modelClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close model client", zap.Error(err))
		}
	}
	if stopper, ok := verdictCache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
