// Package worker contains the background jobs driven by the process
// scheduler: the periodic automation cycle (scan, reconcile, autojoin) and
// the slow safety sweep over unchecked giveaways.
//
// One cycle is strictly ordered and continues past individual step
// failures: every step's error lands in its own result bucket instead of
// aborting the steps after it. The external site failing to serve one page
// should not cost the whole tick.
package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/services"
	"github.com/tbourn/go-gifter-backend/internal/steamgifts"
)

// Skip reasons reported in cycle results.
const (
	ReasonNotAuthenticated = "not_authenticated"
	ReasonAutojoinDisabled = "autojoin_disabled"
	ReasonPointsBelowStart = "points_below_start"
	ReasonSafetyDisabled   = "safety_check_disabled"
	ReasonNothingUnchecked = "no_unchecked_giveaways"
)

const defaultMaxEntriesPerCycle = 10

// GiveawayOps is the giveaway service surface the worker drives.
type GiveawayOps interface {
	SyncGiveaways(ctx context.Context, listType string, maxPages int) (int, error)
	SyncWins(ctx context.Context) (int, error)
	SyncEntered(ctx context.Context) (int, error)
	Eligible(ctx context.Context, st *domain.Settings, points, limit int) ([]domain.Giveaway, error)
	Enter(ctx context.Context, code, entryType string) (*domain.Entry, error)
	EnterWithSafetyCheck(ctx context.Context, code, entryType string) (*domain.Entry, error)
	CurrentPoints(ctx context.Context) (int, error)
	CheckSafety(ctx context.Context, id int64) (*steamgifts.SafetyResult, error)
}

// WinCheckScheduler reschedules the win check and records cycle stats.
type WinCheckScheduler interface {
	ScheduleNextWinCheck(ctx context.Context) error
	RecordCycle(ctx context.Context, at, next time.Time, entries, errs int) error
}

// StepResult is the bucket for one sync step of a cycle.
type StepResult struct {
	Count   int    `json:"count"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EntryResult is the bucket for the autojoin step of a cycle.
type EntryResult struct {
	Eligible    int    `json:"eligible"`
	Entered     int    `json:"entered"`
	Failed      int    `json:"failed"`
	PointsSpent int    `json:"points_spent"`
	Skipped     bool   `json:"skipped"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
}

// CycleResult is the full outcome of one automation cycle.
type CycleResult struct {
	Scan        StepResult  `json:"scan"`
	Wishlist    StepResult  `json:"wishlist"`
	DLC         StepResult  `json:"dlc"`
	Wins        StepResult  `json:"wins"`
	EnteredSync StepResult  `json:"entered_sync"`
	Entries     EntryResult `json:"entries"`

	CycleSeconds float64 `json:"cycle_time"`
	Skipped      bool    `json:"skipped"`
	Reason       string  `json:"reason,omitempty"`
}

func (r *CycleResult) errorCount() int {
	n := 0
	for _, s := range []StepResult{r.Scan, r.Wishlist, r.DLC, r.Wins, r.EnteredSync} {
		if s.Error != "" {
			n++
		}
	}
	if r.Entries.Error != "" {
		n++
	}
	return n
}

// Runner drives the automation cycle against the service layer.
type Runner struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Settings supplies credentials and toggles.
	Settings services.SettingsRepo
	// Giveaways executes the syncs and entries.
	Giveaways GiveawayOps
	// Scheduler receives win-check reschedules and cycle stats. Optional.
	Scheduler WinCheckScheduler
	// Notifier records activity events. Optional.
	Notifier *services.NotificationService

	// Sleep is the inter-entry delay hook. Nil means a context-aware
	// time.Sleep; tests inject an instant one.
	Sleep func(ctx context.Context, d time.Duration) error

	// mu keeps cycles from overlapping: the site has no idempotent
	// concurrent entries, so at most one cycle runs at a time.
	mu sync.Mutex
}

// RunCycle executes one automation cycle: sync listings, reconcile history,
// then autojoin eligible giveaways with a randomized delay between entries.
// It never fails as a whole once credentials exist; per-step errors are
// reported in the result buckets.
func (w *Runner) RunCycle(ctx context.Context) *CycleResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now().UTC()
	res := &CycleResult{}
	log.Info().Msg("automation cycle started")

	st, err := w.Settings.GetSettings(ctx, w.DB)
	if err != nil {
		res.Skipped = true
		res.Reason = err.Error()
		return res
	}
	if !st.Authenticated() {
		log.Warn().Msg("automation cycle skipped, no credentials")
		res.Skipped = true
		res.Reason = ReasonNotAuthenticated
		return res
	}

	res.Scan = w.syncStep(ctx, "scan", func() (int, error) {
		return w.Giveaways.SyncGiveaways(ctx, "", st.MaxScanPages)
	})
	res.Wishlist = w.syncStep(ctx, "wishlist", func() (int, error) {
		return w.Giveaways.SyncGiveaways(ctx, "wishlist", 1)
	})
	if st.DLCEnabled {
		res.DLC = w.syncStep(ctx, "dlc", func() (int, error) {
			return w.Giveaways.SyncGiveaways(ctx, "dlc", 1)
		})
	} else {
		res.DLC = StepResult{Skipped: true, Reason: "dlc_disabled"}
	}

	res.Wins = w.syncStep(ctx, "sync wins", func() (int, error) {
		return w.Giveaways.SyncWins(ctx)
	})
	if res.Wins.Count > 0 && w.Notifier != nil {
		w.Notifier.Info(ctx, "win", "Detected new win(s)!", map[string]any{"count": res.Wins.Count})
	}
	res.EnteredSync = w.syncStep(ctx, "sync entered", func() (int, error) {
		return w.Giveaways.SyncEntered(ctx)
	})

	if !st.AutojoinEnabled {
		res.Entries = EntryResult{Skipped: true, Reason: ReasonAutojoinDisabled}
	} else {
		res.Entries = w.processEntries(ctx, st)
	}

	if res.Entries.Entered > 0 && w.Scheduler != nil {
		if err := w.Scheduler.ScheduleNextWinCheck(ctx); err != nil {
			log.Error().Err(err).Msg("failed to reschedule win check after cycle")
		}
	}

	res.CycleSeconds = time.Since(start).Seconds()
	if w.Scheduler != nil {
		next := start.Add(time.Duration(st.ScanIntervalMinutes) * time.Minute)
		if err := w.Scheduler.RecordCycle(ctx, start, next, res.Entries.Entered, res.errorCount()); err != nil {
			log.Error().Err(err).Msg("failed to record cycle stats")
		}
	}

	log.Info().
		Int("scanned", res.Scan.Count).
		Int("new_wins", res.Wins.Count).
		Int("entered", res.Entries.Entered).
		Float64("cycle_time", res.CycleSeconds).
		Msg("automation cycle completed")
	return res
}

func (w *Runner) syncStep(_ context.Context, name string, fn func() (int, error)) StepResult {
	n, err := fn()
	if err != nil {
		log.Error().Err(err).Str("step", name).Msg("cycle step failed")
		return StepResult{Count: n, Error: err.Error()}
	}
	return StepResult{Count: n}
}

// processEntries runs the autojoin step: current points, eligibility,
// then serialized entries with jitter between attempts. Entries stop when
// the points balance would fall below the stop threshold; cheaper
// candidates later in the richest-first ordering may still fit.
func (w *Runner) processEntries(ctx context.Context, st *domain.Settings) EntryResult {
	points, err := w.Giveaways.CurrentPoints(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read points balance")
		return EntryResult{Error: err.Error()}
	}
	if points < st.AutojoinStartAt {
		log.Debug().Int("points", points).Int("start_at", st.AutojoinStartAt).
			Msg("points below autojoin start threshold")
		return EntryResult{Skipped: true, Reason: ReasonPointsBelowStart}
	}

	maxEntries := defaultMaxEntriesPerCycle
	if st.MaxEntriesPerCycle != nil {
		maxEntries = *st.MaxEntriesPerCycle
	}

	candidates, err := w.Giveaways.Eligible(ctx, st, points, maxEntries)
	if err != nil {
		log.Error().Err(err).Msg("eligibility query failed")
		return EntryResult{Error: err.Error()}
	}

	res := EntryResult{Eligible: len(candidates)}
	enter := w.Giveaways.Enter
	if st.SafetyCheckEnabled {
		enter = w.Giveaways.EnterWithSafetyCheck
	}

	attempted := 0
	for _, ga := range candidates {
		if ga.Price > points || points-ga.Price < st.AutojoinStopAt {
			continue
		}
		if attempted > 0 {
			if err := w.sleep(ctx, jitter(st.EntryDelayMin, st.EntryDelayMax)); err != nil {
				res.Error = err.Error()
				return res
			}
		}
		attempted++

		entryType := domain.EntryTypeAuto
		if ga.IsWishlist {
			entryType = domain.EntryTypeWishlist
		}
		entry, err := enter(ctx, ga.Code, entryType)
		if err != nil {
			res.Failed++
			log.Error().Err(err).Str("code", ga.Code).Msg("entry attempt errored")
			continue
		}
		if entry.Status == domain.EntryStatusSuccess {
			res.Entered++
			res.PointsSpent += entry.PointsSpent
			points -= entry.PointsSpent
		} else {
			res.Failed++
		}
	}

	if w.Notifier != nil {
		w.Notifier.Info(ctx, "entry", "Processing completed", map[string]any{
			"eligible":     res.Eligible,
			"entered":      res.Entered,
			"failed":       res.Failed,
			"points_spent": res.PointsSpent,
		})
	}
	return res
}

// SyncWinsOnly reconciles the won-history page on demand, outside the
// normal cycle cadence, and reschedules the win check from the result.
func (w *Runner) SyncWinsOnly(ctx context.Context) (int, error) {
	st, err := w.Settings.GetSettings(ctx, w.DB)
	if err != nil {
		return 0, err
	}
	if !st.Authenticated() {
		return 0, services.ErrNotAuthenticated
	}
	n, err := w.Giveaways.SyncWins(ctx)
	if err != nil {
		return 0, err
	}
	if w.Scheduler != nil {
		if err := w.Scheduler.ScheduleNextWinCheck(ctx); err != nil {
			log.Error().Err(err).Msg("failed to reschedule win check after manual sync")
		}
	}
	return n, nil
}

func (w *Runner) sleep(ctx context.Context, d time.Duration) error {
	if w.Sleep != nil {
		return w.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// jitter picks a uniform random delay in [min, max] seconds. Entry attempts
// are deliberately serialized with this delay so the request pattern does
// not look like a burst.
func jitter(min, max int) time.Duration {
	if max <= min {
		return time.Duration(min) * time.Second
	}
	span := float64(max-min) * rand.Float64()
	return time.Duration((float64(min) + span) * float64(time.Second))
}
