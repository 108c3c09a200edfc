package slurm

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// ScriptConfig carries the static resource requests and directory layout
// shared by every job script in a campaign.
type ScriptConfig struct {
	ScriptDir   string
	LogDir      string
	NamePrefix  string
	Memory      string
	Walltime    string
	CPUsPerTask int
	MailUser    string
	MailType    string
	WorkerBin   string
}

// ScriptBuilder renders one sbatch script per partition. Building never
// submits; submission is the caller's responsibility.
type ScriptBuilder struct {
	cfg ScriptConfig
}

func NewScriptBuilder(cfg ScriptConfig) *ScriptBuilder {
	return &ScriptBuilder{cfg: cfg}
}

var scriptTmpl = template.Must(template.New("sbatch").Parse(`#!/bin/bash
#SBATCH --job-name={{.JobName}}
#SBATCH --output={{.Stdout}}
#SBATCH --error={{.Stderr}}
#SBATCH --time={{.Walltime}}
#SBATCH --mem={{.Memory}}
#SBATCH --cpus-per-task={{.CPUsPerTask}}
{{- if .MailUser}}
#SBATCH --mail-user={{.MailUser}}
#SBATCH --mail-type={{.MailType}}
{{- end}}

{{.WorkerBin}} worker "{{.MinID}}" "{{.MaxID}}" "{{.OutputCSV}}"
`))

type scriptData struct {
	JobName     string
	Stdout      string
	Stderr      string
	Walltime    string
	Memory      string
	CPUsPerTask int
	MailUser    string
	MailType    string
	WorkerBin   string
	MinID       string
	MaxID       string
	OutputCSV   string
}

// JobName returns the unique job name for a partition index.
func (b *ScriptBuilder) JobName(index int) string {
	return fmt.Sprintf("%s_%04d", b.cfg.NamePrefix, index)
}

// Build writes the job script for one partition and returns its path.
// Script and log directories are created on demand.
func (b *ScriptBuilder) Build(index int, minID, maxID, outputCSV string) (string, error) {
	for _, dir := range []string{b.cfg.ScriptDir, b.cfg.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}

	jobName := b.JobName(index)
	scriptPath := filepath.Join(b.cfg.ScriptDir, jobName+".sbatch")

	data := scriptData{
		JobName:     jobName,
		Stdout:      filepath.Join(b.cfg.LogDir, jobName+".out"),
		Stderr:      filepath.Join(b.cfg.LogDir, jobName+".err"),
		Walltime:    b.cfg.Walltime,
		Memory:      b.cfg.Memory,
		CPUsPerTask: b.cfg.CPUsPerTask,
		MailUser:    b.cfg.MailUser,
		MailType:    b.cfg.MailType,
		WorkerBin:   b.cfg.WorkerBin,
		MinID:       minID,
		MaxID:       maxID,
		OutputCSV:   outputCSV,
	}

	f, err := os.Create(scriptPath)
	if err != nil {
		return "", fmt.Errorf("create job script: %w", err)
	}
	if err := scriptTmpl.Execute(f, data); err != nil {
		f.Close()
		return "", fmt.Errorf("render job script: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return scriptPath, nil
}
