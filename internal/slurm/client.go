// Package slurm shells out to the cluster's batch scheduler: sbatch for
// submission and squeue for live queue membership.
package slurm

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Runner executes an external command and returns its combined stdout.
// Injectable so tests can fake scheduler responses.
type Runner func(ctx context.Context, bin string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, bin string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, bin, args...).Output()
}

// Client wraps the scheduler CLI binaries.
type Client struct {
	sbatchBin string
	squeueBin string
	run       Runner
}

func NewClient(sbatchBin, squeueBin string) *Client {
	return &Client{
		sbatchBin: sbatchBin,
		squeueBin: squeueBin,
		run:       execRunner,
	}
}

// NewClientWithRunner builds a client with a custom command runner.
func NewClientWithRunner(sbatchBin, squeueBin string, run Runner) *Client {
	return &Client{sbatchBin: sbatchBin, squeueBin: squeueBin, run: run}
}

// Submit hands a job script to sbatch and returns the assigned job handle,
// parsed as the final whitespace-delimited token of the submission output
// ("Submitted batch job 12345" -> "12345").
func (c *Client) Submit(ctx context.Context, scriptPath string) (string, error) {
	out, err := c.run(ctx, c.sbatchBin, scriptPath)
	if err != nil {
		return "", fmt.Errorf("sbatch %s: %w", scriptPath, err)
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", fmt.Errorf("sbatch %s: empty submission output", scriptPath)
	}
	return fields[len(fields)-1], nil
}

// LiveHandles returns the subset of handles still present in the scheduler
// queue (pending or running). A handle absent from the result is terminal;
// completed and failed jobs are indistinguishable here.
func (c *Client) LiveHandles(ctx context.Context, handles []string) ([]string, error) {
	live := make([]string, 0, len(handles))
	for _, h := range handles {
		out, err := c.run(ctx, c.squeueBin, "-h", "-j", h)
		if err != nil {
			// squeue exits non-zero for handles it no longer knows about;
			// that means terminal, not failure.
			if _, ok := err.(*exec.ExitError); ok {
				log.Debug().Str("job", h).Msg("job no longer in queue")
				continue
			}
			return nil, fmt.Errorf("squeue -j %s: %w", h, err)
		}
		if strings.TrimSpace(string(out)) != "" {
			live = append(live, h)
		}
	}
	return live, nil
}
