// Package schedule defers actions to a fixed future time.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// JobID identifies a scheduled job.
type JobID string

// Action is the deferred work. The context is the scheduler's base context
// and is cancelled when the scheduler stops.
type Action func(ctx context.Context)

type job struct {
	id    JobID
	name  string
	at    time.Time
	timer *time.Timer
}

// Scheduler runs one-shot jobs at their fire time. Jobs are held in memory
// only: anything still pending when the process exits is gone.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[JobID]*job
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	log     *slog.Logger
}

// New creates a scheduler whose jobs run under the given base context.
func New(ctx context.Context, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		jobs:   make(map[JobID]*job),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// Schedule registers fn to run at the given time. A zero or past time runs
// fn synchronously before returning (immediate mode). The returned id can
// be passed to Cancel while the job is pending.
func (s *Scheduler) Schedule(name string, at time.Time, fn Action) JobID {
	id := JobID("job_" + ulid.Make().String())

	delay := time.Until(at)
	if at.IsZero() || delay <= 0 {
		s.log.Info("running job immediately", "job", name)
		fn(s.ctx)
		return id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.log.Warn("scheduler stopped, dropping job", "job", name)
		return id
	}

	j := &job{id: id, name: name, at: at}
	j.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		s.log.Info("firing scheduled job", "job", name, "scheduled_for", at)
		fn(s.ctx)
	})
	s.jobs[id] = j

	s.log.Info("scheduled job", "job", name, "id", id, "at", at)
	return id
}

// Cancel stops a pending job. Unknown or already-fired ids are no-ops, so
// cancelling twice is safe.
func (s *Scheduler) Cancel(id JobID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	j.timer.Stop()
	delete(s.jobs, id)
	s.log.Info("cancelled job", "job", j.name, "id", id)
}

// Pending returns the number of jobs waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop cancels every pending job and the base context. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	s.cancel()
}
