package orchestrator

import (
	"context"
	"time"

	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/metrics"
)

const MonitorQueueInterval = 30 * time.Second

// MonitorQueue publishes the queue depth until ctx is done.
func (o *Orchestrator) MonitorQueue(ctx context.Context, interval time.Duration) {
	monitorTicker := time.NewTicker(interval)
	defer monitorTicker.Stop()
	for {
		depth, err := o.queue.Depth(ctx)
		if err != nil {
			logging.Logger.Errorf("failed to get queue depth, err=%s", err.Error())
		} else {
			metrics.PipelineQueueDepthGauge.Set(float64(depth))
		}
		select {
		case <-ctx.Done():
			return
		case <-monitorTicker.C:
		}
	}
}
