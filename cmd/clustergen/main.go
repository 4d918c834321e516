package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/app"
	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/server"
)

const shutdownGrace = 10 * time.Second

// Default config locations checked when -config is not given.
var configSearchPath = []string{
	"clustergen.toml",
	"deployments/local/clustergen.toml",
}

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		serverPort  = flag.Int("port", 0, "Server port (overrides config)")
		serverHost  = flag.String("host", "", "Server host (overrides config)")
		showVersion = flag.Bool("version", false, "Print version information")
	)
	flag.BoolVar(showVersion, "v", false, "Print version information (shorthand)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("clustergen %s\n", common.GetFullVersion())
		return
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner

	path := findConfig(*configFile)
	config, err := common.LoadConfig(path)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Str("path", path).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("config_file", path).
		Str("host", config.Server.Host).
		Int("port", config.Server.Port).
		Str("llm_provider", config.LLM.Provider).
		Msg("Application configuration loaded")

	if err := run(config, logger); err != nil {
		logger.Fatal().Err(err).Msg("Fatal error")
		os.Exit(1)
	}
}

func run(config *common.Config, logger arbor.ILogger) error {
	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer application.Close()

	if err := application.Start(context.Background()); err != nil {
		return fmt.Errorf("start background services: %w", err)
	}

	srv := server.New(application)
	serveErr := make(chan error, 1)
	common.SafeGo(logger, "http-server", func() {
		serveErr <- srv.Start()
	})

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
	return nil
}

func findConfig(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, candidate := range configSearchPath {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
