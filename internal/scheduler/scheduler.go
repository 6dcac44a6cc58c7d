// Package scheduler provides the process-wide job runner for automation:
// recurring jobs on cron expressions plus keyed one-shot jobs that fire at an
// absolute instant. The one-shot registry is what the adaptive win check is
// built on: scheduling under an existing key replaces the pending run.
//
// A Scheduler is an explicit instance wired through the composition root, so
// tests construct their own and nothing hangs off package state.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs recurring cron jobs and keyed one-shot jobs. Recurring jobs
// honor Pause/Resume; one-shot jobs fire regardless, since they reschedule
// themselves and a paused scheduler would silently drop the chain.
type Scheduler struct {
	cron *cron.Cron

	mu       sync.Mutex
	oneShots map[string]*oneShot
	paused   bool
	started  bool
}

type oneShot struct {
	runAt time.Time
	timer *time.Timer
}

// New constructs a stopped Scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		oneShots: make(map[string]*oneShot),
	}
}

// Start begins dispatching cron jobs. Safe to call once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop halts cron dispatch and cancels all pending one-shot jobs. The
// returned context from cron is discarded: jobs here are short-lived and the
// process is exiting anyway.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Stop()
	for key, job := range s.oneShots {
		job.timer.Stop()
		delete(s.oneShots, key)
	}
	s.started = false
}

// AddRecurring registers fn to run on the given cron spec. The job is
// skipped while the scheduler is paused.
func (s *Scheduler) AddRecurring(spec string, fn func()) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		if s.Paused() {
			return
		}
		fn()
	})
}

// AddEvery registers fn to run at a fixed interval, honoring Pause.
func (s *Scheduler) AddEvery(every time.Duration, fn func()) cron.EntryID {
	return s.cron.Schedule(cron.Every(every), cron.FuncJob(func() {
		if s.Paused() {
			return
		}
		fn()
	}))
}

// RemoveRecurring unregisters a recurring job.
func (s *Scheduler) RemoveRecurring(id cron.EntryID) {
	s.cron.Remove(id)
}

// ScheduleAt registers fn to run once at the given instant under key,
// replacing any pending job with the same key. Instants in the past fire
// almost immediately.
func (s *Scheduler) ScheduleAt(key string, at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.oneShots[key]; ok {
		existing.timer.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	job := &oneShot{runAt: at}
	job.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// Only clear the registry slot if it still belongs to this job;
		// a replacement may have been scheduled while we were firing.
		if cur, ok := s.oneShots[key]; ok && cur == job {
			delete(s.oneShots, key)
		}
		s.mu.Unlock()

		log.Debug().Str("job", key).Time("run_at", at).Msg("one-shot job firing")
		fn()
	})
	s.oneShots[key] = job
}

// JobTime returns the pending run instant for a one-shot key.
func (s *Scheduler) JobTime(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.oneShots[key]
	if !ok {
		return time.Time{}, false
	}
	return job.runAt, true
}

// Cancel removes a pending one-shot job. Reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.oneShots[key]
	if !ok {
		return false
	}
	job.timer.Stop()
	delete(s.oneShots, key)
	return true
}

// Pause suspends recurring jobs. One-shot jobs keep firing.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume lifts a pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Paused reports whether recurring jobs are suspended.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
