package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pinreport/internal/blob"
	"pinreport/internal/config"
	"pinreport/internal/generator"
	"pinreport/internal/raster"
	"pinreport/internal/server"
	"pinreport/internal/snapshot"
	"pinreport/internal/storage/postgres"
	"pinreport/internal/storage/sqlite"
	"pinreport/internal/util"
)

// recordStore is what the generator and the listing endpoints read from.
type recordStore interface {
	generator.RecordStore
	server.ProjectStore
	Close() error
}

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "pinreport",
		Short:         "PDF reports of construction pins with plan snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", util.EnvOrDefault("PINREPORT_CONFIG", ""), "Path to configuration file")

	load := func() (config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return config.Config{}, nil, err
		}
		logger, err := newLogger(cfg, os.Stdout)
		if err != nil {
			return config.Config{}, nil, err
		}
		return cfg, logger, nil
	}

	rootCmd.AddCommand(serveCmd(load), seedCmd(load), renderCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type loader func() (config.Config, *slog.Logger, error)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP report service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := server.New(store, newGenerator(cfg, store, logger), logger, cfg.Report.Filename)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Listen,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr), slog.String("db", cfg.DB.Driver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}

// newGenerator wires the snapshot and report pipeline from configuration.
func newGenerator(cfg config.Config, store generator.RecordStore, logger *slog.Logger) *generator.Generator {
	fetcher := blob.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes, logger)
	composer := snapshot.New(fetcher, raster.NewFitz(), snapshot.Options{
		Timeout:     cfg.Snapshot.Timeout,
		Concurrency: cfg.Snapshot.Concurrency,
	}, logger)
	return generator.New(store, composer, fetcher, blob.NewResolver(cfg.Storage.BaseURL), generator.Options{
		Company:          cfg.Report.CompanyName,
		PlanBucket:       cfg.Storage.PlanBucket,
		Page:             cfg.Snapshot.Page,
		CropWidth:        cfg.Snapshot.CropWidth,
		CropHeight:       cfg.Snapshot.CropHeight,
		Zoom:             cfg.Snapshot.Zoom,
		PhotoConcurrency: cfg.Snapshot.Concurrency,
	}, logger)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (recordStore, error) {
	switch cfg.DB.Driver {
	case "postgres":
		return postgres.Open(ctx, cfg.DB.Postgres.DSN, cfg.DB.Postgres.MaxConns, logger)
	case "sqlite":
		return sqlite.Open(cfg.DB.SQLite.Path, logger)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
