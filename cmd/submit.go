package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/OranBe/project-data-mining/internal/admission"
	"github.com/OranBe/project-data-mining/internal/config"
	"github.com/OranBe/project-data-mining/internal/database"
	"github.com/OranBe/project-data-mining/internal/driver"
	"github.com/OranBe/project-data-mining/internal/partition"
	"github.com/OranBe/project-data-mining/internal/probe"
	"github.com/OranBe/project-data-mining/internal/slurm"
)

func submitCmd() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Partition the id index and submit one Slurm extraction job per partition",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("DM_DATABASE_URL"),
			},
			&cli.IntFlag{
				Name:  "resume-from",
				Usage: "Skip partitions with index below this value",
			},
			&cli.BoolFlag{
				Name:  "skip-done",
				Usage: "Skip partitions whose output CSV already exists",
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

			return runSubmit(ctx, cfg, int(cmd.Int("resume-from")), cmd.Bool("skip-done"))
		},
	}
}

func runSubmit(ctx context.Context, cfg *config.Config, resumeFrom int, skipDone bool) error {
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return err
	}
	defer pool.Close()

	source, err := partition.Open(cfg.Campaign.IndexPath, cfg.Campaign.Subgroups)
	if err != nil {
		return fmt.Errorf("open id index: %w", err)
	}
	defer source.Close()

	client := slurm.NewClient(cfg.Scheduler.SbatchBin, cfg.Scheduler.SqueueBin)
	gate := admission.NewController(
		probe.Live{Queue: client, Conns: database.NewConnGauge(pool)},
		admission.Config{
			Ceiling:      cfg.Admission.Ceiling,
			MarginLow:    cfg.Admission.MarginLow,
			MarginMid:    cfg.Admission.MarginMid,
			ConnHigh:     cfg.Admission.ConnHigh,
			ConnLow:      cfg.Admission.ConnLow,
			SettleDelay:  cfg.Admission.SettleDelay,
			NearDelay:    cfg.Admission.NearDelay,
			PollInterval: cfg.Admission.PollInterval,
		},
	)

	builder := slurm.NewScriptBuilder(slurm.ScriptConfig{
		ScriptDir:   cfg.Job.ScriptDir,
		LogDir:      cfg.Job.LogDir,
		NamePrefix:  cfg.Job.NamePrefix,
		Memory:      cfg.Job.Memory,
		Walltime:    cfg.Job.Walltime,
		CPUsPerTask: cfg.Job.CPUsPerTask,
		MailUser:    cfg.Job.MailUser,
		MailType:    cfg.Job.MailType,
		WorkerBin:   cfg.Job.WorkerBin,
	})

	log.Info().
		Str("index", cfg.Campaign.IndexPath).
		Int("subgroups", cfg.Campaign.Subgroups).
		Int("ceiling", cfg.Admission.Ceiling).
		Msg("starting campaign submission")

	d := driver.New(driver.Params{
		Source:    source,
		Builder:   builder,
		Scheduler: client,
		Gate:      gate,
		OutputDir: cfg.Campaign.OutputDir,
		Total:     cfg.Campaign.Subgroups,
		Skip:      skipPredicate(cfg.Campaign.OutputDir, resumeFrom, skipDone),
	})

	handles, err := d.Run(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("jobs", len(handles)).Msg("all subgroup jobs submitted")
	return nil
}

// skipPredicate combines the resume inputs into one filter.
func skipPredicate(outputDir string, resumeFrom int, skipDone bool) func(int) bool {
	if resumeFrom <= 0 && !skipDone {
		return nil
	}
	return func(index int) bool {
		if index < resumeFrom {
			return true
		}
		if skipDone {
			if _, err := os.Stat(driver.OutputPath(outputDir, index)); err == nil {
				return true
			}
		}
		return false
	}
}
