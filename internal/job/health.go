package job

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
)

// Healthy probes the temporal frontend, bounded by the configured timeout.
// A slow or unreachable server counts as unhealthy; large submissions are
// refused up front instead of stranding pending jobs.
func (t *TemporalBackgrounder) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.healthTimeout)
	defer cancel()

	if _, err := t.client.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		return eris.Wrap(err, "job: worker health check")
	}
	return nil
}
