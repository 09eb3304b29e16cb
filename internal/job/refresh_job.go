package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// SnapshotRefresher runs one full pipeline cycle and replaces the artifact.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

// RefreshJob periodically re-runs the liquidity pipeline so the served
// snapshot tracks the upstream series. One cycle runs immediately on start.
type RefreshJob struct {
	tracer    trace.Tracer
	refresher SnapshotRefresher
	interval  time.Duration
}

func NewRefreshJob(tracer trace.Tracer, refresher SnapshotRefresher, interval time.Duration) *RefreshJob {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &RefreshJob{tracer: tracer, refresher: refresher, interval: interval}
}

// Start blocks until ctx is cancelled.
func (j *RefreshJob) Start(ctx context.Context) {
	if j.refresher == nil {
		log.Println("Refresh job disabled: no refresher")
		<-ctx.Done()
		return
	}

	log.Println("Snapshot refresh job starting...")
	j.runOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot refresh job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *RefreshJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "refresh-job.run-once")
	defer span.End()

	if err := j.refresher.Refresh(ctx); err != nil {
		log.Printf("Snapshot refresh cycle error: %v", err)
	}
}
