package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Campaign  CampaignConfig  `koanf:"campaign"`
	Job       JobConfig       `koanf:"job"`
	Admission AdmissionConfig `koanf:"admission"`
	Query     QueryConfig     `koanf:"query"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

// CampaignConfig describes one extraction campaign: where the sorted id
// index lives, how many partitions to fan out to, and where results land.
type CampaignConfig struct {
	IndexPath string `koanf:"index_path"`
	Subgroups int    `koanf:"subgroups"`
	OutputDir string `koanf:"output_dir"`
	MergedCSV string `koanf:"merged_csv"`
}

// JobConfig holds the per-job Slurm resource requests and script/log
// locations. Memory and walltime use sbatch's native string forms ("2G",
// "72:00:00") since they are passed through verbatim.
type JobConfig struct {
	ScriptDir   string `koanf:"script_dir"`
	LogDir      string `koanf:"log_dir"`
	NamePrefix  string `koanf:"name_prefix"`
	Memory      string `koanf:"memory"`
	Walltime    string `koanf:"walltime"`
	CPUsPerTask int    `koanf:"cpus_per_task"`
	MailUser    string `koanf:"mail_user"`
	MailType    string `koanf:"mail_type"`
	WorkerBin   string `koanf:"worker_bin"`
}

// AdmissionConfig is the throttling policy. Ceiling is the soft concurrency
// target; the margins and connection thresholds select between the three
// release tiers of the admission gate.
type AdmissionConfig struct {
	Ceiling      int           `koanf:"ceiling"`
	MarginLow    int           `koanf:"margin_low"`
	MarginMid    int           `koanf:"margin_mid"`
	ConnHigh     int           `koanf:"conn_high"`
	ConnLow      int           `koanf:"conn_low"`
	SettleDelay  time.Duration `koanf:"settle_delay"`
	NearDelay    time.Duration `koanf:"near_delay"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// QueryConfig names the table slice each worker extracts. Columns always
// include IDColumn first so the output stays keyed and mergeable.
type QueryConfig struct {
	Table    string   `koanf:"table"`
	IDColumn string   `koanf:"id_column"`
	Columns  []string `koanf:"columns"`
}

type SchedulerConfig struct {
	SbatchBin string `koanf:"sbatch_bin"`
	SqueueBin string `koanf:"squeue_bin"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: DM_ADMISSION_MARGIN_LOW -> admission.margin_low.
	// Sections are single words, so only the first underscore is the
	// section delimiter; the rest belong to the field name.
	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue("DM_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "DM_")),
			"_", ".", 1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	// 4. Handle top-level convenience env vars
	if v := os.Getenv("DM_DATABASE_URL"); v != "" {
		k.Set("database.url", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Workers invoke this same binary unless pointed elsewhere.
	if cfg.Job.WorkerBin == "" {
		if exe, err := os.Executable(); err == nil {
			cfg.Job.WorkerBin = exe
		}
	}

	if len(cfg.Query.Columns) == 0 {
		cfg.Query.Columns = []string{cfg.Query.IDColumn}
	}

	return &cfg, nil
}
