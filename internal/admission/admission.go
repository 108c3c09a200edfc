// Package admission gates job submission against two independently
// constrained resources: scheduler queue slots and database connections.
//
// The ceiling is a soft target. The gate only guarantees that the live
// in-flight count was below it at decision time; a job submitted elsewhere
// between the check and the caller's submission can push past it.
package admission

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Probe supplies live cluster and database state. Both calls hit external
// systems and may take seconds; implementations must not cache.
type Probe interface {
	// LiveHandles returns the subset of handles still pending or running.
	LiveHandles(ctx context.Context, handles []string) ([]string, error)
	// FreeConnectionsExceed reports whether free, non-reserved database
	// connection slots exceed threshold.
	FreeConnectionsExceed(ctx context.Context, threshold int) (bool, error)
}

// Config is the tiered throttling policy. All values are deployment
// specific; see the campaign config for the shipped defaults.
type Config struct {
	// Ceiling is the soft cap on concurrently queued or running jobs.
	Ceiling int
	// MarginLow: below Ceiling-MarginLow the queue has so much slack that
	// submission proceeds without consulting the database at all.
	MarginLow int
	// MarginMid: below Ceiling-MarginMid submission proceeds when free
	// connections exceed ConnHigh.
	MarginMid int
	ConnHigh  int
	ConnLow   int
	// SettleDelay is slept after a tier-1 or tier-2 release so scheduler
	// state can catch up with the submissions it just accepted.
	SettleDelay time.Duration
	// NearDelay is the longer post-release delay used near the ceiling.
	NearDelay time.Duration
	// PollInterval is slept between polling rounds when no tier releases.
	PollInterval time.Duration
}

// Sleep blocks for d or until ctx is cancelled. Injectable for tests.
type Sleep func(ctx context.Context, d time.Duration) error

func stdSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Controller holds the in-flight handle set and blocks submissions until
// the policy permits one more. It is single-threaded by design: the driver
// is the only caller, so no locking is needed.
type Controller struct {
	probe    Probe
	cfg      Config
	sleep    Sleep
	inflight []string
}

func NewController(probe Probe, cfg Config) *Controller {
	return &Controller{probe: probe, cfg: cfg, sleep: stdSleep}
}

// NewControllerWithSleep builds a controller with an injected sleep, for
// deterministic tests.
func NewControllerWithSleep(probe Probe, cfg Config, sleep Sleep) *Controller {
	return &Controller{probe: probe, cfg: cfg, sleep: sleep}
}

// Admit blocks until submitting one more job is safe. On every round it
// re-queries queue membership, prunes terminal handles from the in-flight
// set, then checks the release tiers in strict priority order:
//
//  1. live count < Ceiling-MarginLow: release after SettleDelay. The queue
//     is the binding constraint here; the database is not consulted.
//  2. live count < Ceiling-MarginMid and free connections > ConnHigh:
//     release after SettleDelay.
//  3. live count < Ceiling and free connections > ConnLow: release after
//     NearDelay.
//
// If no tier holds it sleeps PollInterval and retries. Probe errors abort
// the wait and propagate to the caller.
func (c *Controller) Admit(ctx context.Context) error {
	for {
		live, err := c.probe.LiveHandles(ctx, c.inflight)
		if err != nil {
			return err
		}
		c.inflight = live
		n := len(live)

		// Tier 1: the queue alone is the binding constraint.
		if n < c.cfg.Ceiling-c.cfg.MarginLow {
			log.Debug().Int("in_flight", n).Msg("queue far below ceiling, admitting")
			return c.sleep(ctx, c.cfg.SettleDelay)
		}

		// Tier 2: moderate queue slack, require ample connection headroom.
		if n < c.cfg.Ceiling-c.cfg.MarginMid {
			ok, err := c.probe.FreeConnectionsExceed(ctx, c.cfg.ConnHigh)
			if err != nil {
				return err
			}
			if ok {
				log.Debug().Int("in_flight", n).Msg("ample database headroom, admitting")
				return c.sleep(ctx, c.cfg.SettleDelay)
			}
		}

		// Tier 3: near the ceiling, a smaller headroom suffices but the
		// release delay is longer. A tier-2 miss can still release here.
		if n < c.cfg.Ceiling {
			ok, err := c.probe.FreeConnectionsExceed(ctx, c.cfg.ConnLow)
			if err != nil {
				return err
			}
			if ok {
				log.Debug().Int("in_flight", n).Msg("near ceiling with database slack, admitting")
				return c.sleep(ctx, c.cfg.NearDelay)
			}
		}

		log.Debug().Int("in_flight", n).Dur("wait", c.cfg.PollInterval).Msg("waiting for capacity")
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// Track records a freshly submitted handle in the in-flight set.
func (c *Controller) Track(handle string) {
	c.inflight = append(c.inflight, handle)
}

// InFlight returns a copy of the currently tracked handles.
func (c *Controller) InFlight() []string {
	out := make([]string, len(c.inflight))
	copy(out, c.inflight)
	return out
}
