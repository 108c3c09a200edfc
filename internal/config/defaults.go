package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"database.max_connections": 4,

		"campaign.index_path": "data/works_ids_index_all.csv",
		"campaign.subgroups":  10000,
		"campaign.output_dir": "data/subgroup_results",
		"campaign.merged_csv": "data/works_merged.csv",

		"job.script_dir":    "data/slurm_query_jobs",
		"job.log_dir":       "data/slurm_query_logs",
		"job.name_prefix":   "works_q",
		"job.memory":        "2G",
		"job.walltime":      "72:00:00",
		"job.cpus_per_task": 2,
		"job.mail_type":     "FAIL",

		"admission.ceiling":       180,
		"admission.margin_low":    150,
		"admission.margin_mid":    20,
		"admission.conn_high":     30,
		"admission.conn_low":      15,
		"admission.settle_delay":  "5s",
		"admission.near_delay":    "15s",
		"admission.poll_interval": "30s",

		"query.table":     "openalex.works",
		"query.id_column": "id",
		"query.columns":   []string{"id", "publication_year"},

		"scheduler.sbatch_bin": "sbatch",
		"scheduler.squeue_bin": "squeue",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
