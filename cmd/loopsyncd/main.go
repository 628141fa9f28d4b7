package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loopsmith/loopsync"
	"github.com/loopsmith/loopsync/config"
)

func defaultConfigPath() string {
	if p := os.Getenv("LOOPSYNC_CONFIG"); p != "" {
		return p
	}
	return "loopsync.yaml"
}

func main() {
	configPath := flag.String("config", defaultConfigPath(), "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := cfg.Logging.SlogLevel()
	if *debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting loopsync daemon",
		"config", *configPath,
		"project", cfg.Project,
		"broker", cfg.Transport.BrokerURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	engine, err := loopsync.New(cfg)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- engine.Run(ctx)
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case runErr = <-errChan:
		if runErr != nil {
			slog.Error("engine error", "error", runErr)
		} else {
			slog.Info("engine stopped (shutdown command)")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), engine.ShutdownTimeout())
	defer shutdownCancel()

	if err := engine.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	if runErr != nil {
		os.Exit(1)
	}
	slog.Info("loopsync daemon stopped")
}
