package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/geoduel/internal/api"
	"github.com/mcoot/geoduel/internal/config"
	"github.com/mcoot/geoduel/internal/factory"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	appCfg, err := factory.ConfigFrom(cfg, logger)
	if err != nil {
		return fmt.Errorf("building app config: %w", err)
	}
	app, err := factory.New(appCfg)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()
	logger.Info("storage ready",
		slog.String("storage", cfg.Storage),
		slog.Int("extra_locations", len(appCfg.ExtraLocations)),
	)

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		Registry:       app.Registry,
		Queue:          app.Queue,
		GameController: app.GameController,
		Dispatcher:     app.Dispatcher,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		err := server.Shutdown(context.Background())

		// Hijacked sockets outlive the HTTP server's shutdown
		app.Dispatcher.CloseAll()
		app.GameController.ShutdownAll()
		app.RatingUpdater.Wait()
		return err
	})

	g.Go(func() error {
		return app.GameController.Run(gctx, cfg.TickInterval)
	})

	g.Go(func() error {
		return app.Queue.Run(gctx, cfg.QueueInterval)
	})

	g.Go(func() error {
		return app.Heartbeat.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
