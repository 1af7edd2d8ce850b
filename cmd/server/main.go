package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/movienight/internal/api"
	"github.com/mcoot/movienight/internal/config"
	"github.com/mcoot/movienight/internal/factory"
	"github.com/mcoot/movienight/internal/logging"
	"github.com/mcoot/movienight/internal/storage/sqlstore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	configPath := os.Getenv("MOVIENIGHT_CONFIG")

	rootCmd := &cobra.Command{
		Use:          "movienight-server",
		Short:        "Movie night API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configPath, "YAML config file (env: MOVIENIGHT_CONFIG)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), configPath)
		},
	})

	return rootCmd
}

// setup loads configuration and builds the process logger
func setup(configPath string) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, logger, closer, err := setup(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	// Create application factory
	app, err := factory.New(ctx, factory.ConfigFrom(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = app.Close() }()

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		Sessions:        app.Issuer,
		Coordinator:     app.Coordinator,
		WatchController: app.WatchController,
	})

	server := api.NewServer(router, cfg.ServerSettings(), logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

func migrate(ctx context.Context, configPath string) error {
	cfg, logger, closer, err := setup(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	if cfg.Storage.Type != config.StorageSQL {
		return errors.New("migrate requires storage type sql")
	}

	store, err := sqlstore.Open(ctx, cfg.SQLSettings())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx, logger); err != nil {
		return err
	}

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("schema at version %d\n", version)
	return nil
}
