package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/srviswan/positionengine/internal/engine"
)

func main() {
	var (
		configPath string
		verbose    bool
		showHelp   bool
	)
	pflag.StringVarP(&configPath, "config", "c", "configs/engine.yml", "path to the engine config file")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pflag.BoolVarP(&showHelp, "help", "h", false, "show help")
	pflag.Parse()

	if showHelp {
		pflag.PrintDefaults()
		return
	}

	logger, err := newLogger(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", configPath), zap.Error(err))
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		logger.Fatal("failed to start engine", zap.Error(err))
	}
	logger.Info("engine started", zap.String("config", configPath), zap.Uint32("partitions", cfg.PartitionsCount))

	<-ctx.Done()
	logger.Info("shutdown signal received, draining workers")

	stopCtx, cancel := context.WithTimeout(context.Background(), engine.ShutdownTimeout)
	defer cancel()
	if err := eng.Stop(stopCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("engine stopped cleanly")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
