// Package cronrunner wraps robfig/cron with a per-job dispatch queue. A tick
// that fires while the job's previous dispatch is still queued is dropped,
// and a queued dispatch that has sat un-started past the expiry window is
// discarded instead of being run late, so slow runs never pile up stale work.
package cronrunner

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
	expiry  time.Duration

	mu     sync.Mutex
	queues []chan time.Time
	wg     sync.WaitGroup
}

func New(logger *zap.Logger, baseCtx context.Context, expiry time.Duration) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
		expiry:  expiry,
	}
}

// AddEvery schedules job at the given interval. Each invocation runs exactly
// one job call to completion or failure; there are no retries here.
func (r *Runner) AddEvery(interval time.Duration, name string, job func(context.Context)) (cron.EntryID, error) {
	dispatches := make(chan time.Time, 1)
	r.mu.Lock()
	r.queues = append(r.queues, dispatches)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for dispatchedAt := range dispatches {
			if r.expiry > 0 && time.Since(dispatchedAt) > r.expiry {
				if r.logger != nil {
					r.logger.Warn("discarding expired dispatch",
						zap.String("job", name),
						zap.Duration("age", time.Since(dispatchedAt)),
					)
				}
				continue
			}
			if r.baseCtx.Err() != nil {
				return
			}
			job(r.baseCtx)
		}
	}()

	return r.cron.AddFunc("@every "+interval.String(), func() {
		select {
		case dispatches <- time.Now():
		default:
			// Previous dispatch still pending; skip this tick.
		}
	})
}

func (r *Runner) Start() {
	if r.logger != nil {
		r.logger.Info("cron started")
	}
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.mu.Lock()
	for _, q := range r.queues {
		close(q)
	}
	r.queues = nil
	r.mu.Unlock()
	r.wg.Wait()
	if r.logger != nil {
		r.logger.Info("cron stopped")
	}
}
