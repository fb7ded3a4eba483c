// Package scheduler runs delayed and daily jobs for the bot.
package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Runner owns every scheduled goroutine and stops them together.
type Runner struct {
	log *zap.Logger
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]context.CancelFunc
}

// NewRunner creates a runner whose jobs end when ctx is cancelled or Stop is called.
func NewRunner(ctx context.Context, log *zap.Logger) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		log:     log.Named("scheduler"),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]context.CancelFunc),
	}
}

// After runs fn once after delay and returns an id usable with Cancel.
func (r *Runner) After(delay time.Duration, name string, fn Job) string {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(r.ctx)

	r.mu.Lock()
	r.pending[id] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.forget(id)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		r.run(ctx, name, fn)
	}()

	r.log.Debug("job scheduled", zap.String("job", name), zap.String("id", id), zap.Duration("delay", delay))
	return id
}

// Cancel stops a pending job. It reports whether the job was still pending.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Pending returns the number of jobs that have not fired yet.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Daily runs fn every day at the given "HH:MM" local time.
func (r *Runner) Daily(name, at string, fn Job) error {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			wait := nextRun(r.now(), hour, minute).Sub(r.now())
			r.log.Info("daily job armed", zap.String("job", name), zap.Duration("in", wait))

			timer := time.NewTimer(wait)
			select {
			case <-r.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			r.run(r.ctx, name, fn)
		}
	}()
	return nil
}

// Stop cancels every job and waits for running ones to return.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, name string, fn Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("job panicked", zap.String("job", name), zap.Any("panic", rec))
		}
	}()
	start := r.now()
	fn(ctx)
	r.log.Debug("job finished", zap.String("job", name), zap.Duration("took", r.now().Sub(start)))
}

func (r *Runner) forget(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return hour, minute, nil
}

// nextRun returns the first instant strictly after now at hour:minute.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
