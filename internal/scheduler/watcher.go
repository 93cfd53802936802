// Package scheduler runs sync passes on a cron schedule. Passes are
// serialized: a tick that fires while the previous pass is still running
// is skipped.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Watcher triggers a sync function periodically, with one initial run
// after a short startup delay.
type Watcher struct {
	schedule     string
	startupDelay time.Duration
	syncFn       func(context.Context) error
	logger       *log.Logger

	cron      *cron.Cron
	mu        sync.Mutex
	syncing   bool
	isRunning bool
}

// New creates a watcher for the given 5-field cron schedule.
func New(schedule string, startupDelay time.Duration, syncFn func(context.Context) error, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}
	return &Watcher{
		schedule:     schedule,
		startupDelay: startupDelay,
		syncFn:       syncFn,
		logger:       logger,
		cron:         cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Run blocks until the context is cancelled, firing the first sync after
// the startup delay and subsequent ones per the schedule.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = true
	w.mu.Unlock()

	if _, err := w.cron.AddFunc(w.schedule, func() { w.trigger(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", w.schedule, err)
	}

	if w.startupDelay > 0 {
		w.logger.Printf("first sync in %s", w.startupDelay)
		select {
		case <-time.After(w.startupDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.trigger(ctx)

	w.cron.Start()
	<-ctx.Done()

	stopCtx := w.cron.Stop()
	<-stopCtx.Done()

	w.mu.Lock()
	w.isRunning = false
	w.mu.Unlock()
	return ctx.Err()
}

// trigger runs one sync pass unless one is already in flight.
func (w *Watcher) trigger(ctx context.Context) {
	w.mu.Lock()
	if w.syncing {
		w.mu.Unlock()
		w.logger.Printf("previous sync still running, skipping tick")
		return
	}
	w.syncing = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.syncing = false
		w.mu.Unlock()
	}()

	if err := w.syncFn(ctx); err != nil {
		w.logger.Printf("sync failed: %v", err)
	}
}
