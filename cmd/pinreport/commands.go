package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pinreport/internal/fixtures"
	"pinreport/internal/storage/sqlite"
)

func seedCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load demo projects from YAML into the SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if cfg.DB.Driver != "sqlite" {
				return fmt.Errorf("seed writes to sqlite only, db.driver is %q", cfg.DB.Driver)
			}

			f, err := fixtures.Load(args[0])
			if err != nil {
				return err
			}
			store, err := sqlite.Open(cfg.DB.SQLite.Path, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := fixtures.Apply(cmd.Context(), store, f)
			if err != nil {
				return err
			}
			logger.Info("fixtures loaded",
				slog.String("db", cfg.DB.SQLite.Path),
				slog.Int("projects", stats.Projects),
				slog.Int("pins", stats.Pins),
				slog.Int("photos", stats.Photos))
			return nil
		},
	}
}

func renderCmd(load loader) *cobra.Command {
	var (
		projectID int64
		pins      string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write a report PDF to a file without starting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			ids, err := parseIDs(pins)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			pdf, err := newGenerator(cfg, store, logger).Generate(cmd.Context(), projectID, ids)
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Report.Filename
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			logger.Info("report written", slog.String("path", out), slog.Int("bytes", len(pdf)))
			return nil
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "Project id")
	cmd.Flags().StringVar(&pins, "pins", "", "Comma separated pin ids")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (defaults to report.filename)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("pins")
	return cmd
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pin id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no pin ids given")
	}
	return ids, nil
}
