package cmd

import (
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/OranBe/project-data-mining/internal/config"
)

var version = "dev"

// configureLogging applies the --log-level flag (or the config value) to the
// global logger. Unknown level names are left at the default.
func configureLogging(cmd *cli.Command, cfg *config.Config) {
	if v := cmd.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}

func App() *cli.Command {
	return &cli.Command{
		Name:    "datamine",
		Version: version,
		Usage:   "Range-partitioned extraction campaigns — fan one large SQL export across a Slurm cluster.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("DATAMINE_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("DATAMINE_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			submitCmd(),
			workerCmd(),
			indexCmd(),
			mergeCmd(),
		},
	}
}
