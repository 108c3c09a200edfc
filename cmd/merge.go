package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/OranBe/project-data-mining/internal/config"
	"github.com/OranBe/project-data-mining/internal/mergecsv"
)

func mergeCmd() *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Merge all per-partition result CSVs into a single file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "input-dir",
				Usage: "Directory of partition CSVs (defaults to campaign.output_dir)",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Merged CSV path (defaults to campaign.merged_csv)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			configureLogging(cmd, cfg)
			in := cmd.String("input-dir")
			if in == "" {
				in = cfg.Campaign.OutputDir
			}
			out := cmd.String("output")
			if out == "" {
				out = cfg.Campaign.MergedCSV
			}
			_, err = mergecsv.Merge(in, out)
			return err
		},
	}
}
