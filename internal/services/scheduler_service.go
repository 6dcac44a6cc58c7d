// Package services – SchedulerService
//
// This file implements the SchedulerService, which owns the adaptive win
// check: a self-perpetuating one-shot job timed to fire shortly after the
// soonest-ending entered giveaway expires. Each run syncs the won-history
// page and then schedules its own successor, so the chain survives sync
// failures. New entries can only tighten the pending run, never push it
// later; the reconciliation after each run is what relaxes it.
//
// It also fronts the scheduler state row (cumulative counters, pause state)
// for the status endpoints.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/repo"
	"github.com/tbourn/go-gifter-backend/internal/scheduler"
)

// winCheckJobKey names the one-shot slot used by the win check; scheduling
// under the same key replaces the pending run.
const winCheckJobKey = "win_check"

const (
	// winCheckBuffer delays the check past the giveaway's end so the site
	// has settled on a winner.
	winCheckBuffer = 5 * time.Minute
	// winCheckPastClamp reschedules already-elapsed instants slightly into
	// the future instead of firing a burst immediately.
	winCheckPastClamp = time.Minute
	// winCheckTimeout bounds one win-check run.
	winCheckTimeout = 2 * time.Minute
)

// WinCheckRepo is the giveaway lookup the win check depends on.
type WinCheckRepo interface {
	NextExpiringEntered(ctx context.Context, db *gorm.DB, now time.Time) (*domain.Giveaway, error)
}

// SchedulerStateRepo fronts the singleton scheduler bookkeeping row.
type SchedulerStateRepo interface {
	GetSchedulerState(ctx context.Context, db *gorm.DB) (*domain.SchedulerState, error)
	RecordScan(ctx context.Context, db *gorm.DB, at, next time.Time, entries, errs int) error
	ResetSchedulerState(ctx context.Context, db *gorm.DB) error
}

// SchedulerService manages the win-check chain and scheduler state.
type SchedulerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Sched is the process job runner.
	Sched *scheduler.Scheduler
	// Giveaways resolves the next expiring entered giveaway.
	Giveaways WinCheckRepo
	// State fronts the scheduler bookkeeping row.
	State SchedulerStateRepo
	// SyncWins reconciles the won-history page; normally
	// GiveawayService.SyncWins.
	SyncWins func(ctx context.Context) (int, error)
	// Notifier records activity events. Optional.
	Notifier *NotificationService

	// mu serializes the compare-then-schedule in UpdateForNewEntry.
	mu sync.Mutex
}

// NewSchedulerService constructs a SchedulerService.
func NewSchedulerService(db *gorm.DB, sched *scheduler.Scheduler, giveaways WinCheckRepo, state SchedulerStateRepo) *SchedulerService {
	return &SchedulerService{DB: db, Sched: sched, Giveaways: giveaways, State: state}
}

// ScheduleNextWinCheck (re)computes the win-check instant from the
// soonest-ending entered giveaway and schedules it, replacing any pending
// run. With no entered giveaways running, the pending run is cancelled; the
// next successful entry restarts the chain.
func (s *SchedulerService) ScheduleNextWinCheck(ctx context.Context) error {
	now := time.Now().UTC()
	next, err := s.Giveaways.NextExpiringEntered(ctx, s.DB, now)
	if errors.Is(err, repo.ErrNotFound) {
		s.Sched.Cancel(winCheckJobKey)
		log.Debug().Msg("no entered giveaways running, win check idle")
		return nil
	}
	if err != nil {
		return err
	}

	runAt := s.clampRunAt(*next.EndTime, now)
	s.Sched.ScheduleAt(winCheckJobKey, runAt, s.runWinCheck)
	log.Info().Time("run_at", runAt).Str("code", next.Code).Msg("win check scheduled")
	return nil
}

// UpdateForNewEntry tightens the pending win check when a newly entered
// giveaway ends before the currently scheduled run. Entries with unknown end
// times are ignored; the next full reschedule will see them if the listing
// later reports one.
func (s *SchedulerService) UpdateForNewEntry(endTime *time.Time) {
	if endTime == nil {
		return
	}
	now := time.Now().UTC()
	candidate := s.clampRunAt(*endTime, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if pending, ok := s.Sched.JobTime(winCheckJobKey); ok && !candidate.Before(pending) {
		return
	}
	s.Sched.ScheduleAt(winCheckJobKey, candidate, s.runWinCheck)
	log.Debug().Time("run_at", candidate).Msg("win check tightened for new entry")
}

// NextWinCheckAt returns the pending win-check instant, if one is scheduled.
func (s *SchedulerService) NextWinCheckAt() *time.Time {
	if at, ok := s.Sched.JobTime(winCheckJobKey); ok {
		return &at
	}
	return nil
}

// clampRunAt computes end+buffer, pulled up to shortly after now when the
// end has already passed.
func (s *SchedulerService) clampRunAt(end, now time.Time) time.Time {
	runAt := end.Add(winCheckBuffer)
	if runAt.Before(now) {
		runAt = now.Add(winCheckPastClamp)
	}
	return runAt
}

// runWinCheck is the one-shot job body: sync wins, then schedule the
// successor no matter what happened.
func (s *SchedulerService) runWinCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), winCheckTimeout)
	defer cancel()

	if s.SyncWins != nil {
		if n, err := s.SyncWins(ctx); err != nil {
			log.Error().Err(err).Msg("win check sync failed")
			if s.Notifier != nil {
				s.Notifier.Error(ctx, "win_check_failed", "Win check failed: "+err.Error(), nil)
			}
		} else if n > 0 {
			log.Info().Int("new_wins", n).Msg("win check found new wins")
		}
	}

	if err := s.ScheduleNextWinCheck(ctx); err != nil {
		log.Error().Err(err).Msg("failed to schedule next win check")
	}
}

// Status returns the scheduler state row plus live pause/win-check info.
func (s *SchedulerService) Status(ctx context.Context) (*domain.SchedulerState, bool, *time.Time, error) {
	st, err := s.State.GetSchedulerState(ctx, s.DB)
	if err != nil {
		return nil, false, nil, err
	}
	return st, s.Sched.Paused(), s.NextWinCheckAt(), nil
}

// RecordCycle stamps a completed automation cycle into the state row.
func (s *SchedulerService) RecordCycle(ctx context.Context, at, next time.Time, entries, errs int) error {
	return s.State.RecordScan(ctx, s.DB, at, next, entries, errs)
}

// Reset zeroes the cumulative counters.
func (s *SchedulerService) Reset(ctx context.Context) error {
	return s.State.ResetSchedulerState(ctx, s.DB)
}

// Pause suspends recurring automation jobs.
func (s *SchedulerService) Pause() { s.Sched.Pause() }

// Resume lifts a pause.
func (s *SchedulerService) Resume() { s.Sched.Resume() }
