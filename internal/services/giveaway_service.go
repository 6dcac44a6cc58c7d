// Package services – GiveawayService
//
// This file implements the GiveawayService, the heart of the application:
// entering giveaways (manually or on behalf of the automation worker),
// running the trap heuristic before an entry, reconciling local state with
// the site's listing/entered/won pages, and hiding unwanted games.
//
// Entry is guarded two ways:
//   - A per-code mutex serializes the check-then-insert so concurrent
//     requests for the same giveaway cannot double-enter.
//   - At most one Entry row exists per giveaway; a repeat request returns
//     the recorded entry unchanged, whatever its status.
//
// The safety gate fails open: when the heuristic cannot run (site error,
// page gone), the entry proceeds. The heuristic exists to skip obvious
// traps, not to block operation when SteamGifts hiccups.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/repo"
	"github.com/tbourn/go-gifter-backend/internal/steamgifts"
)

// GiveawayRepo defines the repository contract required by GiveawayService.
type GiveawayRepo interface {
	UpsertGiveaway(ctx context.Context, db *gorm.DB, ga *domain.Giveaway) (*domain.Giveaway, error)
	GetGiveaway(ctx context.Context, db *gorm.DB, id int64) (*domain.Giveaway, error)
	GetGiveawayByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Giveaway, error)
	ListGiveawaysPage(ctx context.Context, db *gorm.DB, f repo.ListFilter, offset, limit int) ([]domain.Giveaway, error)
	CountGiveaways(ctx context.Context, db *gorm.DB, f repo.ListFilter) (int64, error)
	EligibleGiveaways(ctx context.Context, db *gorm.DB, f repo.EligibilityFilter) ([]domain.Giveaway, error)
	MarkEntered(ctx context.Context, db *gorm.DB, id int64, at time.Time) error
	ClearEntered(ctx context.Context, db *gorm.DB, id int64) error
	MarkWon(ctx context.Context, db *gorm.DB, id int64, at time.Time) error
	SetHidden(ctx context.Context, db *gorm.DB, id int64, hidden bool) error
	SetSafety(ctx context.Context, db *gorm.DB, id int64, safe bool, score int) error
	UncheckedSafety(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Giveaway, error)
	GiveawaysStats(ctx context.Context, db *gorm.DB, now time.Time) (*repo.GiveawayStats, error)
}

// EntryRepo defines the repository contract for entry attempt records.
type EntryRepo interface {
	CreateEntry(ctx context.Context, db *gorm.DB, e *domain.Entry) (*domain.Entry, error)
	GetEntryByGiveaway(ctx context.Context, db *gorm.DB, giveawayID int64) (*domain.Entry, error)
	DeleteEntry(ctx context.Context, db *gorm.DB, giveawayID int64) error
	ListEntriesPage(ctx context.Context, db *gorm.DB, status, entryType string, offset, limit int) ([]domain.Entry, error)
	CountEntries(ctx context.Context, db *gorm.DB, status, entryType string) (int64, error)
	EntriesStats(ctx context.Context, db *gorm.DB) (*repo.EntryStats, error)
}

// SiteClient is the SteamGifts surface GiveawayService depends on.
type SiteClient interface {
	ListGiveaways(ctx context.Context, page int, opts steamgifts.ListOptions) ([]steamgifts.ListedGiveaway, error)
	WonGiveaways(ctx context.Context, page int) ([]steamgifts.WonGiveaway, error)
	EnteredGiveaways(ctx context.Context, page int) ([]steamgifts.EnteredGiveaway, error)
	Enter(ctx context.Context, code string) (bool, error)
	Leave(ctx context.Context, code string) (bool, error)
	CheckSafety(ctx context.Context, code string) (steamgifts.SafetyResult, error)
	GiveawayGameID(ctx context.Context, code string) (*int64, error)
	HideGame(ctx context.Context, gameID int64) error
	PostComment(ctx context.Context, code, text string) (bool, error)
	UserInfo(ctx context.Context) (steamgifts.UserInfo, error)
	Points(ctx context.Context) (int, error)
}

// GameProvider supplies cached Steam metadata during syncs.
type GameProvider interface {
	GetOrFetch(ctx context.Context, appID int64) (*domain.Game, error)
}

// GiveawayService orchestrates giveaway entry and site synchronization.
type GiveawayService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Giveaways and Entries are the repositories used by this service.
	Giveaways GiveawayRepo
	Entries   EntryRepo
	// Settings supplies credentials and toggles.
	Settings SettingsRepo
	// Games caches Steam metadata for discovered giveaways. Optional;
	// nil skips metadata prefetch during sync.
	Games GameProvider
	// Notifier records activity events. Optional.
	Notifier *NotificationService
	// NewClient builds a site client from stored credentials.
	NewClient func(phpSessID, userAgent string) SiteClient
	// OnEntered is invoked after a successful entry with the giveaway's end
	// time, letting the win-check scheduler tighten its next run. Optional.
	OnEntered func(endTime *time.Time)

	entryLocks keyedMutex
}

// NewGiveawayService constructs a GiveawayService using the real site client.
func NewGiveawayService(db *gorm.DB, giveaways GiveawayRepo, entries EntryRepo, settings SettingsRepo) *GiveawayService {
	return &GiveawayService{
		DB:        db,
		Giveaways: giveaways,
		Entries:   entries,
		Settings:  settings,
		NewClient: func(sessID, agent string) SiteClient {
			return steamgifts.NewClient(sessID, agent)
		},
	}
}

// site builds an authenticated client from stored credentials, or
// ErrNotAuthenticated when none are configured.
func (s *GiveawayService) site(ctx context.Context) (SiteClient, *domain.Settings, error) {
	st, err := s.Settings.GetSettings(ctx, s.DB)
	if err != nil {
		return nil, nil, err
	}
	if !st.Authenticated() {
		return nil, nil, ErrNotAuthenticated
	}
	return s.NewClient(*st.PHPSessID, st.UserAgent), st, nil
}

// Get returns a giveaway by ID.
func (s *GiveawayService) Get(ctx context.Context, id int64) (*domain.Giveaway, error) {
	ga, err := s.Giveaways.GetGiveaway(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGiveawayNotFound
	}
	return ga, err
}

// List returns a filtered page of giveaways plus the matching total.
func (s *GiveawayService) List(ctx context.Context, f repo.ListFilter, page, pageSize int) ([]domain.Giveaway, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := s.Giveaways.CountGiveaways(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Giveaway{}, 0, nil
	}
	items, err := s.Giveaways.ListGiveawaysPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Enter submits an entry for the giveaway, records the attempt, and returns
// the entry row. Repeat calls for the same giveaway return the existing
// record unchanged. Site rejections and transport failures both persist a
// failed entry with zero points, so every attempt leaves a trace.
func (s *GiveawayService) Enter(ctx context.Context, code, entryType string) (*domain.Entry, error) {
	unlock := s.entryLocks.lock(code)
	defer unlock()
	return s.enterLocked(ctx, code, entryType)
}

func (s *GiveawayService) enterLocked(ctx context.Context, code, entryType string) (*domain.Entry, error) {
	ga, err := s.Giveaways.GetGiveawayByCode(ctx, s.DB, code)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGiveawayNotFound
	}
	if err != nil {
		return nil, err
	}

	if existing, err := s.Entries.GetEntryByGiveaway(ctx, s.DB, ga.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if !ga.Active(now) {
		return nil, ErrGiveawayEnded
	}

	site, _, err := s.site(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := site.Enter(ctx, code)
	if err != nil {
		return s.recordFailure(ctx, ga, entryType, err.Error())
	}
	if !ok {
		return s.recordFailure(ctx, ga, entryType, "rejected by SteamGifts")
	}

	entry, err := s.Entries.CreateEntry(ctx, s.DB, &domain.Entry{
		GiveawayID:  ga.ID,
		PointsSpent: ga.Price,
		EntryType:   entryType,
		Status:      domain.EntryStatusSuccess,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Giveaways.MarkEntered(ctx, s.DB, ga.ID, now); err != nil {
		return nil, err
	}

	if s.Notifier != nil {
		s.Notifier.Info(ctx, "entry_success", "Entered "+ga.GameName,
			map[string]any{"code": ga.Code, "points": ga.Price})
	}
	if s.OnEntered != nil {
		s.OnEntered(ga.EndTime)
	}
	return entry, nil
}

// EnterWithSafetyCheck runs the trap heuristic (when enabled and no verdict
// is recorded yet) before entering. Unsafe giveaways are skipped with a
// failed entry record; a heuristic that cannot run does not block the entry.
func (s *GiveawayService) EnterWithSafetyCheck(ctx context.Context, code, entryType string) (*domain.Entry, error) {
	unlock := s.entryLocks.lock(code)
	defer unlock()

	ga, err := s.Giveaways.GetGiveawayByCode(ctx, s.DB, code)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGiveawayNotFound
	}
	if err != nil {
		return nil, err
	}

	site, st, err := s.site(ctx)
	if err != nil {
		return nil, err
	}

	if st.SafetyCheckEnabled {
		// A stored verdict is reused as-is; only a verdict-less giveaway
		// gets a fresh page fetch. Stored verdicts carry no matched
		// phrases, so those skips record a generic reason.
		verdictUnsafe := ga.IsSafe != nil && !*ga.IsSafe
		reason := "Unsafe giveaway: previously flagged"
		if ga.IsSafe == nil {
			res, err := site.CheckSafety(ctx, code)
			if err != nil {
				// Fail open: the gate is advisory, the entry proceeds.
				log.Warn().Err(err).Str("code", code).Msg("safety check unavailable, proceeding")
			} else {
				if err := s.Giveaways.SetSafety(ctx, s.DB, ga.ID, res.IsSafe, res.Score); err != nil {
					return nil, err
				}
				verdictUnsafe = !res.IsSafe
				if len(res.Matches) > 0 {
					reason = "Unsafe giveaway: " + strings.Join(res.Matches, ", ")
				} else {
					reason = "Unsafe giveaway"
				}
			}
		}
		if verdictUnsafe {
			if st.AutoHideUnsafe {
				s.hideUnsafe(ctx, site, ga)
			}
			if s.Notifier != nil {
				s.Notifier.Warn(ctx, "entry_skipped_unsafe", "Skipped "+ga.GameName+" (failed safety check)",
					map[string]any{"code": ga.Code})
			}
			return s.recordFailure(ctx, ga, entryType, reason)
		}
	}

	return s.enterLocked(ctx, code, entryType)
}

// hideUnsafe hides the giveaway locally and, when the game can be resolved,
// on the site as well. Site failures are logged only; the local hide stands.
func (s *GiveawayService) hideUnsafe(ctx context.Context, site SiteClient, ga *domain.Giveaway) {
	if err := s.Giveaways.SetHidden(ctx, s.DB, ga.ID, true); err != nil {
		log.Error().Err(err).Str("code", ga.Code).Msg("failed to hide unsafe giveaway locally")
		return
	}
	gameID := s.resolveGameID(ctx, site, ga)
	if gameID != nil {
		if err := site.HideGame(ctx, *gameID); err != nil {
			log.Warn().Err(err).Int64("game_id", *gameID).Msg("failed to hide game on site")
		}
	}
}

// resolveGameID returns the giveaway's site game id, scraping the detail
// page when the listing did not carry one. Best effort; a nil result just
// means the site-side hide is skipped.
func (s *GiveawayService) resolveGameID(ctx context.Context, site SiteClient, ga *domain.Giveaway) *int64 {
	if ga.GameID != nil {
		return ga.GameID
	}
	gameID, err := site.GiveawayGameID(ctx, ga.Code)
	if err != nil {
		log.Warn().Err(err).Str("code", ga.Code).Msg("could not resolve game id from giveaway page")
		return nil
	}
	return gameID
}

// recordFailure persists a failed entry attempt with no points spent and
// broadcasts it as an entry_failed activity event.
func (s *GiveawayService) recordFailure(ctx context.Context, ga *domain.Giveaway, entryType, reason string) (*domain.Entry, error) {
	entry, err := s.Entries.CreateEntry(ctx, s.DB, &domain.Entry{
		GiveawayID:   ga.ID,
		PointsSpent:  0,
		EntryType:    entryType,
		Status:       domain.EntryStatusFailed,
		ErrorMessage: &reason,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if s.Notifier != nil {
		s.Notifier.Warn(ctx, "entry_failed", "Entry failed for "+ga.GameName+": "+reason,
			map[string]any{"code": ga.Code, "reason": reason})
	}
	return entry, nil
}

// RemoveEntry withdraws an entry on the site and deletes the local record.
// A site rejection (typically because the giveaway already ended, making the
// refund impossible) still clears local state, since keeping a phantom entry
// helps nobody.
func (s *GiveawayService) RemoveEntry(ctx context.Context, giveawayID int64) error {
	ga, err := s.Giveaways.GetGiveaway(ctx, s.DB, giveawayID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrGiveawayNotFound
	}
	if err != nil {
		return err
	}
	if _, err := s.Entries.GetEntryByGiveaway(ctx, s.DB, ga.ID); errors.Is(err, repo.ErrNotFound) {
		return ErrEntryNotFound
	} else if err != nil {
		return err
	}

	site, _, err := s.site(ctx)
	if err != nil {
		return err
	}
	ok, err := site.Leave(ctx, ga.Code)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("code", ga.Code).Msg("site rejected entry withdrawal, clearing local record anyway")
	}

	if err := s.Entries.DeleteEntry(ctx, s.DB, ga.ID); err != nil {
		return err
	}
	return s.Giveaways.ClearEntered(ctx, s.DB, ga.ID)
}

// Hide hides a giveaway locally and, when the game is known, hides the game
// on the site so it stops appearing in future listings.
func (s *GiveawayService) Hide(ctx context.Context, id int64) error {
	ga, err := s.Giveaways.GetGiveaway(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrGiveawayNotFound
	}
	if err != nil {
		return err
	}
	if err := s.Giveaways.SetHidden(ctx, s.DB, id, true); err != nil {
		return err
	}
	site, _, err := s.site(ctx)
	if err != nil {
		// Local hide succeeded; no session just means the site copy
		// stays visible.
		log.Warn().Err(err).Str("code", ga.Code).Msg("giveaway hidden locally only")
		return nil
	}
	gameID := s.resolveGameID(ctx, site, ga)
	if gameID != nil {
		if err := site.HideGame(ctx, *gameID); err != nil {
			log.Warn().Err(err).Int64("game_id", *gameID).Msg("failed to hide game on site")
		}
	}
	return nil
}

// Unhide clears the local hidden flag.
func (s *GiveawayService) Unhide(ctx context.Context, id int64) error {
	err := s.Giveaways.SetHidden(ctx, s.DB, id, false)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrGiveawayNotFound
	}
	return err
}

// CheckSafety runs the trap heuristic for one giveaway on demand, records
// the verdict, and auto-hides when configured. Unlike the entry-time gate
// this surfaces errors, since the caller explicitly asked for a verdict.
func (s *GiveawayService) CheckSafety(ctx context.Context, id int64) (*steamgifts.SafetyResult, error) {
	ga, err := s.Giveaways.GetGiveaway(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGiveawayNotFound
	}
	if err != nil {
		return nil, err
	}

	site, st, err := s.site(ctx)
	if err != nil {
		return nil, err
	}
	res, err := site.CheckSafety(ctx, ga.Code)
	if err != nil {
		return nil, err
	}
	if err := s.Giveaways.SetSafety(ctx, s.DB, ga.ID, res.IsSafe, res.Score); err != nil {
		return nil, err
	}
	if !res.IsSafe && st.AutoHideUnsafe {
		s.hideUnsafe(ctx, site, ga)
	}
	return &res, nil
}

// SyncGiveaways pulls up to maxPages of a listing flavor from the site and
// reconciles each row into the database, prefetching Steam metadata for
// newly seen games. It returns the number of rows reconciled; a page fetch
// failure aborts the sync but keeps the partial count.
func (s *GiveawayService) SyncGiveaways(ctx context.Context, listType string, maxPages int) (int, error) {
	site, _, err := s.site(ctx)
	if err != nil {
		return 0, err
	}

	opts := steamgifts.ListOptions{Type: listType}
	if listType == "dlc" {
		opts = steamgifts.ListOptions{DLCOnly: true}
	}

	synced := 0
	for page := 1; page <= maxPages; page++ {
		rows, err := site.ListGiveaways(ctx, page, opts)
		if err != nil {
			return synced, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			ga, err := s.Giveaways.UpsertGiveaway(ctx, s.DB, listedToDomain(row))
			if err != nil {
				return synced, err
			}
			synced++
			if s.Games != nil && ga.GameID != nil {
				if _, err := s.Games.GetOrFetch(ctx, *ga.GameID); err != nil {
					log.Debug().Err(err).Int64("app_id", *ga.GameID).Msg("metadata prefetch failed")
				}
			}
		}
	}

	if _, err := s.Settings.UpdateSettings(ctx, s.DB, map[string]any{
		"last_synced_at": time.Now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to stamp last sync time")
	}
	return synced, nil
}

// SyncWins reconciles the won-giveaways history page and returns how many
// wins are newly detected. Wins discovered for giveaways never seen locally
// (won before this tool existed, or discovered off-scan) are created with a
// zero price, since the listing no longer reports one.
func (s *GiveawayService) SyncWins(ctx context.Context) (int, error) {
	site, _, err := s.site(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := site.WonGiveaways(ctx, 1)
	if err != nil {
		return 0, err
	}

	newWins := 0
	for _, row := range rows {
		ga, err := s.Giveaways.GetGiveawayByCode(ctx, s.DB, row.Code)
		if errors.Is(err, repo.ErrNotFound) {
			ga, err = s.Giveaways.UpsertGiveaway(ctx, s.DB, &domain.Giveaway{
				Code:     row.Code,
				URL:      steamgifts.GiveawayURL(row.Code),
				GameID:   row.GameID,
				GameName: row.GameName,
				Price:    0,
			})
		}
		if err != nil {
			return newWins, err
		}
		if ga.IsWon {
			continue
		}

		wonAt := time.Now().UTC()
		if row.WonAt != nil {
			wonAt = *row.WonAt
		}
		if err := s.Giveaways.MarkWon(ctx, s.DB, ga.ID, wonAt); err != nil {
			return newWins, err
		}
		newWins++
		if s.Notifier != nil {
			s.Notifier.Info(ctx, "win_detected", "Won "+row.GameName+"!",
				map[string]any{"code": row.Code})
		}
	}
	return newWins, nil
}

// SyncEntered reconciles the entered-giveaways history page, confirming
// entries made outside this tool.
func (s *GiveawayService) SyncEntered(ctx context.Context) (int, error) {
	site, _, err := s.site(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := site.EnteredGiveaways(ctx, 1)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		ga := &domain.Giveaway{
			Code:      row.Code,
			URL:       steamgifts.GiveawayURL(row.Code),
			GameID:    row.GameID,
			GameName:  row.GameName,
			Price:     row.Price,
			Copies:    1,
			EndTime:   row.EndTime,
			IsEntered: true,
		}
		stored, err := s.Giveaways.UpsertGiveaway(ctx, s.DB, ga)
		if err != nil {
			return 0, err
		}
		if stored.EnteredAt == nil && row.EnteredAt != nil {
			if err := s.Giveaways.MarkEntered(ctx, s.DB, stored.ID, *row.EnteredAt); err != nil {
				return 0, err
			}
		}
	}
	return len(rows), nil
}

// Eligible returns autojoin candidates given the current settings and points
// balance.
func (s *GiveawayService) Eligible(ctx context.Context, st *domain.Settings, points, limit int) ([]domain.Giveaway, error) {
	f := repo.EligibilityFilter{
		Now:        time.Now().UTC(),
		MinPrice:   st.AutojoinMinPrice,
		MaxPrice:   points,
		IncludeDLC: st.DLCEnabled,
		Limit:      limit,
	}
	if st.AutojoinMinScore > 0 {
		v := st.AutojoinMinScore
		f.MinScore = &v
	}
	if st.AutojoinMinReviews > 0 {
		v := st.AutojoinMinReviews
		f.MinReviews = &v
	}
	if st.AutojoinMaxGameAge != nil {
		f.MaxGameAgeYears = st.AutojoinMaxGameAge
	}
	return s.Giveaways.EligibleGiveaways(ctx, s.DB, f)
}

// CurrentPoints returns the live points balance from the site.
func (s *GiveawayService) CurrentPoints(ctx context.Context) (int, error) {
	site, _, err := s.site(ctx)
	if err != nil {
		return 0, err
	}
	return site.Points(ctx)
}

// UserInfo returns the authenticated site identity.
func (s *GiveawayService) UserInfo(ctx context.Context) (*steamgifts.UserInfo, error) {
	site, _, err := s.site(ctx)
	if err != nil {
		return nil, err
	}
	info, err := site.UserInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// PostComment posts a comment on a giveaway. The returned bool carries the
// site's weak echo-based success signal.
func (s *GiveawayService) PostComment(ctx context.Context, id int64, text string) (bool, error) {
	ga, err := s.Giveaways.GetGiveaway(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return false, ErrGiveawayNotFound
	}
	if err != nil {
		return false, err
	}
	site, _, err := s.site(ctx)
	if err != nil {
		return false, err
	}
	return site.PostComment(ctx, ga.Code, text)
}

// Stats returns the dashboard aggregates.
func (s *GiveawayService) Stats(ctx context.Context) (*repo.GiveawayStats, *repo.EntryStats, error) {
	gs, err := s.Giveaways.GiveawaysStats(ctx, s.DB, time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}
	es, err := s.Entries.EntriesStats(ctx, s.DB)
	if err != nil {
		return nil, nil, err
	}
	return gs, es, nil
}

// ListEntries returns a page of entry records plus the matching total.
func (s *GiveawayService) ListEntries(ctx context.Context, status, entryType string, page, pageSize int) ([]domain.Entry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := s.Entries.CountEntries(ctx, s.DB, status, entryType)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Entry{}, 0, nil
	}
	items, err := s.Entries.ListEntriesPage(ctx, s.DB, status, entryType, (page-1)*pageSize, pageSize)
	return items, total, err
}

// listedToDomain converts a scraped listing row into a persistence model.
func listedToDomain(row steamgifts.ListedGiveaway) *domain.Giveaway {
	return &domain.Giveaway{
		Code:       row.Code,
		URL:        steamgifts.GiveawayURL(row.Code),
		GameID:     row.GameID,
		GameName:   row.GameName,
		Price:      row.Price,
		Copies:     row.Copies,
		EndTime:    row.EndTime,
		IsEntered:  row.IsEntered,
		IsWishlist: row.IsWishlist,
	}
}

// keyedMutex hands out one mutex per key so unrelated giveaways do not
// contend. Mutexes are never reclaimed; the key space (giveaway codes seen
// this process) stays small.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
