// Package probe composes the two live resource views the admission gate
// polls: scheduler queue membership and database connection headroom.
package probe

import (
	"context"

	"github.com/OranBe/project-data-mining/internal/database"
	"github.com/OranBe/project-data-mining/internal/slurm"
)

// Live implements admission.Probe against the real cluster and database.
type Live struct {
	Queue *slurm.Client
	Conns *database.ConnGauge
}

func (p Live) LiveHandles(ctx context.Context, handles []string) ([]string, error) {
	return p.Queue.LiveHandles(ctx, handles)
}

func (p Live) FreeConnectionsExceed(ctx context.Context, threshold int) (bool, error) {
	return p.Conns.FreeConnectionsExceed(ctx, threshold)
}
