package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/OranBe/project-data-mining/internal/config"
	"github.com/OranBe/project-data-mining/internal/database"
)

func indexCmd() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Fetch every record id (ordered) into the campaign's identifier index CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("DM_DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Index file path (defaults to campaign.index_path)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
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
			out := cmd.String("output")
			if out == "" {
				out = cfg.Campaign.IndexPath
			}
			return runIndex(ctx, cfg, out)
		},
	}
}

func runIndex(ctx context.Context, cfg *config.Config, outputPath string) error {
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return err
	}
	defer pool.Close()

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := csv.NewWriter(f)

	log.Info().Str("table", cfg.Query.Table).Str("output", outputPath).Msg("fetching id index")

	n, err := database.FetchIDs(ctx, pool, cfg.Query.Table, cfg.Query.IDColumn, w)
	if err != nil {
		f.Close()
		return fmt.Errorf("fetch ids: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	log.Info().Int64("ids", n).Msg("id index written")
	return nil
}
