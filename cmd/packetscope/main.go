package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/packetscope/packetscope/internal/analysis"
	"github.com/packetscope/packetscope/internal/config"
	"github.com/packetscope/packetscope/internal/health"
	"github.com/packetscope/packetscope/internal/logger"
	"github.com/packetscope/packetscope/internal/server"
	"github.com/packetscope/packetscope/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting Packetscope analysis server")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	// Analysis manager owns every analysis run
	manager := analysis.NewManager(cfg, logger.NewLogrusAdapter(logrus.NewEntry(log)))

	// Start metrics server if enabled
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	// Create server and mount the analysis API
	srv := server.New(&cfg.Server, log)
	handlers := analysis.NewHandlers(manager, logger.NewLogrusAdapter(logrus.NewEntry(log)))
	srv.RegisterRoutes(handlers.RegisterRoutes)

	// Register health checkers
	srv.HealthManager().Register(health.NewFFprobeChecker(cfg.FFprobe.BinaryPath))
	srv.HealthManager().Register(health.NewAnalysisChecker(manager))

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Fatal("Server error")
	}

	manager.Shutdown()
	log.Info("Server shutdown complete")
}

// startMetricsServer starts the Prometheus metrics server
func startMetricsServer(cfg config.MetricsConfig, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
