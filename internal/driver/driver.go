// Package driver runs the campaign submission loop: one scheduler job per
// id-range partition, throttled by the admission gate.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/OranBe/project-data-mining/internal/admission"
	"github.com/OranBe/project-data-mining/internal/partition"
)

// BoundarySource yields partition boundaries in ascending index order.
// Satisfied by *partition.Scanner.
type BoundarySource interface {
	Next() bool
	Boundary() partition.Boundary
	Err() error
}

// Submitter hands a rendered job script to the scheduler and returns the
// assigned job handle. Satisfied by *slurm.Client.
type Submitter interface {
	Submit(ctx context.Context, scriptPath string) (string, error)
}

// ScriptBuilder renders the job script for one partition.
// Satisfied by *slurm.ScriptBuilder.
type ScriptBuilder interface {
	Build(index int, minID, maxID, outputCSV string) (string, error)
}

// Driver is the single-threaded top-level control loop. Partitions are
// submitted strictly in ascending index order; the gate is consulted
// immediately before each submission.
type Driver struct {
	source    BoundarySource
	builder   ScriptBuilder
	scheduler Submitter
	gate      *admission.Controller
	outputDir string
	total     int
	// skip filters out partitions already handled by a previous run.
	// A nil skip submits everything.
	skip func(index int) bool
}

type Params struct {
	Source    BoundarySource
	Builder   ScriptBuilder
	Scheduler Submitter
	Gate      *admission.Controller
	OutputDir string
	// Total is the expected partition count, used for progress reporting
	// only. Zero is fine.
	Total int
	Skip  func(index int) bool
}

func New(p Params) *Driver {
	return &Driver{
		source:    p.Source,
		builder:   p.Builder,
		scheduler: p.Scheduler,
		gate:      p.Gate,
		outputDir: p.OutputDir,
		total:     p.Total,
		skip:      p.Skip,
	}
}

// OutputPath returns the per-partition result file under dir.
func OutputPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("subgroup_%04d.csv", index))
}

// Run submits one job per partition and returns every handle submitted in
// this invocation. Failed worker jobs are not retried and outputs are not
// verified; already-written partition CSVs are the resume mechanism for a
// later run.
func (d *Driver) Run(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var submitted []string
	for d.source.Next() {
		b := d.source.Boundary()
		if d.skip != nil && d.skip(b.Index) {
			log.Debug().Int("subgroup", b.Index).Msg("skipping partition")
			continue
		}

		csvPath := OutputPath(d.outputDir, b.Index)
		scriptPath, err := d.builder.Build(b.Index, b.Min, b.Max, csvPath)
		if err != nil {
			return submitted, fmt.Errorf("build job script for subgroup %d: %w", b.Index, err)
		}

		if err := d.gate.Admit(ctx); err != nil {
			return submitted, fmt.Errorf("admission gate: %w", err)
		}

		handle, err := d.scheduler.Submit(ctx, scriptPath)
		if err != nil {
			return submitted, fmt.Errorf("submit subgroup %d: %w", b.Index, err)
		}
		d.gate.Track(handle)
		submitted = append(submitted, handle)

		log.Info().
			Int("subgroup", b.Index).
			Int("total", d.total).
			Str("min_id", b.Min).
			Str("max_id", b.Max).
			Str("job", handle).
			Msg("submitted subgroup job")
	}
	if err := d.source.Err(); err != nil {
		return submitted, fmt.Errorf("read partitions: %w", err)
	}

	log.Info().Int("submitted", len(submitted)).Msg("campaign submission complete")
	return submitted, nil
}
