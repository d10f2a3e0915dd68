package service

import (
	"context"
	"time"

	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/dixieflatline76/Easel/util/log"
)

// Job is a periodic task that runs while the service is running.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context)
}

// runJob runs job every Interval until ctx is done. When immediate is set the
// first run happens right away.
func runJob(ctx context.Context, job Job, immediate bool) {
	if immediate {
		job.Run(ctx)
	}
	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debugf("Service: %s stopped", job.Name())
			return
		case <-ticker.C:
			job.Run(ctx)
		}
	}
}

// reconcileJob catches up a scheduled update missed while asleep or offline.
type reconcileJob struct {
	scheduler *wallpaper.Scheduler
	every     time.Duration
}

func (j *reconcileJob) Name() string            { return "reconciliation" }
func (j *reconcileJob) Interval() time.Duration { return j.every }

func (j *reconcileJob) Run(ctx context.Context) {
	outcome, err := j.scheduler.CheckAndCatchUp(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Service: reconciliation update failed: %v", err)
		}
		return
	}
	if outcome == wallpaper.OutcomeUpdated {
		log.Print("Service: reconciliation applied a missed update")
	}
}

// ArtworkMaintainer is the store surface used by maintenance.
type ArtworkMaintainer interface {
	EvictExcess() (int, error)
	ReconcileOrphans() (int, error)
}

// HistoryCompactor is the ledger surface used by maintenance.
type HistoryCompactor interface {
	TrimTo(n int) error
}

// maintenanceJob keeps the store within capacity and the ledger compact.
type maintenanceJob struct {
	store   ArtworkMaintainer
	history HistoryCompactor
	every   time.Duration
}

func (j *maintenanceJob) Name() string            { return "maintenance" }
func (j *maintenanceJob) Interval() time.Duration { return j.every }

func (j *maintenanceJob) Run(context.Context) {
	if _, err := j.store.EvictExcess(); err != nil {
		log.Printf("Service: eviction failed: %v", err)
	}
	if _, err := j.store.ReconcileOrphans(); err != nil {
		log.Printf("Service: orphan reconciliation failed: %v", err)
	}
	if j.history != nil {
		if err := j.history.TrimTo(config.HistoryCompactTo); err != nil {
			log.Printf("Service: history compaction failed: %v", err)
		}
	}
}
