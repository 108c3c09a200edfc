package driver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OranBe/project-data-mining/internal/admission"
	"github.com/OranBe/project-data-mining/internal/partition"
)

type sliceSource struct {
	bounds []partition.Boundary
	pos    int
	err    error
}

func (s *sliceSource) Next() bool {
	if s.pos >= len(s.bounds) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Boundary() partition.Boundary { return s.bounds[s.pos-1] }
func (s *sliceSource) Err() error                   { return s.err }

type fakeBuilder struct {
	built []int
	err   error
}

func (b *fakeBuilder) Build(index int, minID, maxID, outputCSV string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.built = append(b.built, index)
	return fmt.Sprintf("scripts/job_%04d.sbatch", index), nil
}

type fakeScheduler struct {
	submitted []string
	next      int
	err       error
}

func (s *fakeScheduler) Submit(_ context.Context, scriptPath string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.submitted = append(s.submitted, scriptPath)
	s.next++
	return fmt.Sprintf("%d", 1000+s.next), nil
}

// queueProbe keeps every tracked handle live until drainAfter polling
// rounds have happened, then reports one handle terminal per round.
type queueProbe struct {
	rounds     int
	drainAfter int
}

func (p *queueProbe) LiveHandles(_ context.Context, handles []string) ([]string, error) {
	p.rounds++
	if p.rounds > p.drainAfter && len(handles) > 0 {
		return handles[:len(handles)-1], nil
	}
	out := make([]string, len(handles))
	copy(out, handles)
	return out, nil
}

func (p *queueProbe) FreeConnectionsExceed(context.Context, int) (bool, error) {
	return false, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

// gateWithCeiling builds a controller that admits purely on queue slack.
func gateWithCeiling(probe admission.Probe, ceiling int) *admission.Controller {
	return admission.NewControllerWithSleep(probe, admission.Config{
		Ceiling:      ceiling,
		PollInterval: time.Second,
	}, noSleep)
}

func boundaries(n int) []partition.Boundary {
	out := make([]partition.Boundary, n)
	for i := range out {
		out[i] = partition.Boundary{
			Index: i + 1,
			Min:   fmt.Sprintf("W%03d", i*10+1),
			Max:   fmt.Sprintf("W%03d", (i+1)*10),
		}
	}
	return out
}

func TestRunSubmitsEveryPartitionInOrder(t *testing.T) {
	builder := &fakeBuilder{}
	sched := &fakeScheduler{}
	d := New(Params{
		Source:    &sliceSource{bounds: boundaries(3)},
		Builder:   builder,
		Scheduler: sched,
		Gate:      gateWithCeiling(&queueProbe{drainAfter: 0}, 10),
		OutputDir: t.TempDir(),
		Total:     3,
	})

	handles, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1001", "1002", "1003"}, handles)
	assert.Equal(t, []int{1, 2, 3}, builder.built)
	assert.Equal(t, []string{
		"scripts/job_0001.sbatch",
		"scripts/job_0002.sbatch",
		"scripts/job_0003.sbatch",
	}, sched.submitted)
}

func TestRunBlocksOnCeilingUntilQueueDrains(t *testing.T) {
	// Ceiling 2 with an always-present queue: the third submission must
	// wait until the probe starts reporting terminal handles.
	probe := &queueProbe{drainAfter: 5}
	sched := &fakeScheduler{}
	d := New(Params{
		Source:    &sliceSource{bounds: boundaries(3)},
		Builder:   &fakeBuilder{},
		Scheduler: sched,
		Gate:      gateWithCeiling(probe, 2),
		OutputDir: t.TempDir(),
	})

	handles, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, handles, 3)

	// Rounds 1 and 2 admit immediately (0 then 1 in flight); the third
	// admission polls with 2 in flight until the drain kicks in.
	assert.Greater(t, probe.rounds, 5)
}

func TestRunSkipsResumedPartitions(t *testing.T) {
	builder := &fakeBuilder{}
	d := New(Params{
		Source:    &sliceSource{bounds: boundaries(5)},
		Builder:   builder,
		Scheduler: &fakeScheduler{},
		Gate:      gateWithCeiling(&queueProbe{}, 10),
		OutputDir: t.TempDir(),
		Skip:      func(index int) bool { return index < 4 },
	})

	handles, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, handles, 2)
	assert.Equal(t, []int{4, 5}, builder.built)
}

func TestRunAbortsOnSubmitError(t *testing.T) {
	boom := errors.New("sbatch: error")
	d := New(Params{
		Source:    &sliceSource{bounds: boundaries(3)},
		Builder:   &fakeBuilder{},
		Scheduler: &fakeScheduler{err: boom},
		Gate:      gateWithCeiling(&queueProbe{}, 10),
		OutputDir: t.TempDir(),
	})

	handles, err := d.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, handles)
}

func TestRunAbortsOnBuildError(t *testing.T) {
	boom := errors.New("disk full")
	d := New(Params{
		Source:    &sliceSource{bounds: boundaries(1)},
		Builder:   &fakeBuilder{err: boom},
		Scheduler: &fakeScheduler{},
		Gate:      gateWithCeiling(&queueProbe{}, 10),
		OutputDir: t.TempDir(),
	})

	_, err := d.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunSurfacesSourceError(t *testing.T) {
	boom := errors.New("corrupt index")
	d := New(Params{
		Source:    &sliceSource{err: boom},
		Builder:   &fakeBuilder{},
		Scheduler: &fakeScheduler{},
		Gate:      gateWithCeiling(&queueProbe{}, 10),
		OutputDir: t.TempDir(),
	})

	_, err := d.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestOutputPathZeroPadding(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "subgroup_0007.csv"), OutputPath("out", 7))
	assert.Equal(t, filepath.Join("out", "subgroup_12345.csv"), OutputPath("out", 12345))
}
