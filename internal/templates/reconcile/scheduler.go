// Package reconcile fails template builds that never reported completion.
package reconcile

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
)

// Reconciler is the slice of the template service the scheduler drives.
type Reconciler interface {
	ReconcileStale(ctx context.Context, timeout time.Duration, limit int) (int, error)
}

// DefaultBatch is used when a scheduler is created with a batch below 1.
const DefaultBatch = 100

type Scheduler struct {
	cron    *cron.Cron
	target  Reconciler
	spec    string
	timeout time.Duration
	batch   int
}

// NewScheduler creates a scheduler running target on spec, a six-field
// cron expression with seconds. A pass still running when the next tick
// fires makes that tick a no-op.
func NewScheduler(target Reconciler, spec string, timeout time.Duration, batch int) *Scheduler {
	if batch < 1 {
		batch = DefaultBatch
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		target:  target,
		spec:    spec,
		timeout: timeout,
		batch:   batch,
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}

	logging.L().WithField("spec", s.spec).Info("stale build reconciler started")
	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce drains stale builds batch by batch. It returns the number marked
// failed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	log := logging.Op(ctx, "reconcile")
	if s.timeout <= 0 {
		log.WithField("timeout", s.timeout).Error("reconcile skipped: timeout must be positive")
		return 0
	}

	total := 0
	for {
		n, err := s.target.ReconcileStale(ctx, s.timeout, s.batch)
		total += n
		if err != nil {
			log.WithError(err).Error("reconcile pass failed")
			return total
		}
		if n < s.batch || ctx.Err() != nil {
			return total
		}
	}
}
