package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/OranBe/project-data-mining/internal/config"
	"github.com/OranBe/project-data-mining/internal/database"
)

func workerCmd() *cli.Command {
	return &cli.Command{
		Name:      "worker",
		Usage:     "Query one id range and export it as CSV (invoked by the per-partition Slurm job)",
		ArgsUsage: "<min_id> <max_id> <output_csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("DM_DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 3 {
				return fmt.Errorf("expected exactly 3 arguments: <min_id> <max_id> <output_csv>")
			}
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			configureLogging(cmd, cfg)
			if v := cmd.String("database-url"); v != "" {
				cfg.Database.URL = v
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required (set DM_DATABASE_URL env or database.url in config)")
			}

			args := cmd.Args()
			return runWorker(ctx, cfg, args.Get(0), args.Get(1), args.Get(2))
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, minID, maxID, outputCSV string) error {
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Info().Str("min_id", minID).Str("max_id", maxID).Msg("querying id range")
	start := time.Now()

	rows, err := exportCSV(outputCSV, func(w *csv.Writer) (int64, error) {
		return database.ExtractRange(ctx, pool, database.RangeSpec{
			Table:    cfg.Query.Table,
			IDColumn: cfg.Query.IDColumn,
			Columns:  cfg.Query.Columns,
		}, minID, maxID, w)
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("rows", rows).
		Str("output", outputCSV).
		Dur("elapsed", time.Since(start)).
		Msg("range export complete")
	return nil
}

// exportCSV streams rows to a temp file and moves it into place only
// after extract returns. A failed query leaves nothing at outputCSV,
// so a rerun with --skip-done still resubmits that partition.
func exportCSV(outputCSV string, extract func(w *csv.Writer) (int64, error)) (int64, error) {
	if dir := filepath.Dir(outputCSV); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp := outputCSV + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create output csv: %w", err)
	}
	w := csv.NewWriter(f)

	rows, err := extract(w)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("extract range: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("write output csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, outputCSV); err != nil {
		return 0, fmt.Errorf("finalize output csv: %w", err)
	}
	return rows, nil
}
