// Package services – GameService
//
// This file implements the GameService, the cache layer between the local
// games table and the Steam storefront API. Metadata is fetched at most once
// per staleness window (seven days); everything in between is served from
// the database. Review aggregates ride along with the details fetch, and a
// failed reviews call degrades to details-only metadata instead of failing
// the refresh.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/repo"
	"github.com/tbourn/go-gifter-backend/internal/steam"
)

// GameRepo defines the repository contract required by GameService.
type GameRepo interface {
	GetGame(ctx context.Context, db *gorm.DB, id int64) (*domain.Game, error)
	SaveGame(ctx context.Context, db *gorm.DB, g *domain.Game) (*domain.Game, error)
	StaleGames(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Game, error)
	SearchGames(ctx context.Context, db *gorm.DB, query string, limit int) ([]domain.Game, error)
}

// SteamAPI is the storefront surface GameService depends on.
type SteamAPI interface {
	AppDetails(ctx context.Context, appID int64) (*steam.AppDetails, error)
	AppReviews(ctx context.Context, appID int64) (*steam.ReviewSummary, error)
}

// GameService caches Steam store metadata locally.
type GameService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the game repository used by this service.
	Repo GameRepo
	// Steam is the storefront client.
	Steam SteamAPI

	// StaleAfter is the cache TTL. Zero means the seven-day default.
	StaleAfter time.Duration
}

// NewGameService constructs a GameService with the default staleness window.
func NewGameService(db *gorm.DB, r GameRepo, api SteamAPI) *GameService {
	return &GameService{DB: db, Repo: r, Steam: api, StaleAfter: 7 * 24 * time.Hour}
}

// GetOrFetch returns the cached game, fetching from Steam when the cache
// misses or has gone stale. A refresh failure on a stale-but-present row
// returns the stale data rather than an error.
func (s *GameService) GetOrFetch(ctx context.Context, appID int64) (*domain.Game, error) {
	cached, err := s.Repo.GetGame(ctx, s.DB, appID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if cached != nil && !cached.NeedsRefresh(now) {
		return cached, nil
	}

	fresh, err := s.fetch(ctx, appID, now)
	if err != nil {
		if cached != nil {
			log.Warn().Err(err).Int64("app_id", appID).Msg("steam refresh failed, serving stale metadata")
			return cached, nil
		}
		if errors.Is(err, steam.ErrAppNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return s.Repo.SaveGame(ctx, s.DB, fresh)
}

// Refresh fetches fresh metadata for the game regardless of cache age.
// Unlike GetOrFetch it surfaces the fetch error even when a cached row
// exists, since the caller explicitly asked for fresh data.
func (s *GameService) Refresh(ctx context.Context, appID int64) (*domain.Game, error) {
	fresh, err := s.fetch(ctx, appID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, steam.ErrAppNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return s.Repo.SaveGame(ctx, s.DB, fresh)
}

// Search returns cached games whose name matches the query. It never calls
// Steam; only locally cached metadata is searchable.
func (s *GameService) Search(ctx context.Context, query string, limit int) ([]domain.Game, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.Repo.SearchGames(ctx, s.DB, query, limit)
}

// RefreshStale refreshes up to limit stale games and returns how many were
// updated. Individual failures are logged and skipped; ErrRateLimited aborts
// the batch since every remaining call would hit the same wall.
func (s *GameService) RefreshStale(ctx context.Context, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-s.staleAfter())
	stale, err := s.Repo.StaleGames(ctx, s.DB, cutoff, limit)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, g := range stale {
		fresh, err := s.fetch(ctx, g.ID, time.Now().UTC())
		if err != nil {
			if errors.Is(err, steam.ErrRateLimited) {
				return refreshed, err
			}
			log.Warn().Err(err).Int64("app_id", g.ID).Msg("skipping stale game refresh")
			continue
		}
		if _, err := s.Repo.SaveGame(ctx, s.DB, fresh); err != nil {
			return refreshed, err
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *GameService) staleAfter() time.Duration {
	if s.StaleAfter > 0 {
		return s.StaleAfter
	}
	return 7 * 24 * time.Hour
}

// fetch pulls details and review aggregates from Steam and assembles a Game
// row stamped with the refresh time.
func (s *GameService) fetch(ctx context.Context, appID int64, now time.Time) (*domain.Game, error) {
	details, err := s.Steam.AppDetails(ctx, appID)
	if err != nil {
		return nil, err
	}

	g := &domain.Game{
		ID:              appID,
		Name:            details.Name,
		Type:            normalizeGameType(details.Type),
		ReleaseDate:     details.ReleaseDate,
		ParentGameID:    details.ParentAppID,
		LastRefreshedAt: &now,
	}
	if details.HeaderImage != "" {
		img := details.HeaderImage
		g.HeaderImage = &img
	}
	if details.Description != "" {
		desc := details.Description
		g.Description = &desc
	}
	if g.Type == domain.GameTypeBundle {
		g.IsBundle = true
		if len(details.PackageIDs) > 0 {
			if content, err := json.Marshal(details.PackageIDs); err == nil {
				g.BundleContent = content
			}
		}
	}

	reviews, err := s.Steam.AppReviews(ctx, appID)
	if err != nil {
		log.Warn().Err(err).Int64("app_id", appID).Msg("review summary unavailable")
	} else {
		score := reviews.ReviewScore
		pos := reviews.TotalPositive
		neg := reviews.TotalNegative
		total := reviews.TotalReviews
		g.ReviewScore = &score
		g.TotalPositive = &pos
		g.TotalNegative = &neg
		g.TotalReviews = &total
	}
	return g, nil
}

// normalizeGameType maps storefront type strings onto the local enum.
// Anything unrecognized counts as a plain game.
func normalizeGameType(t string) string {
	switch t {
	case "dlc":
		return domain.GameTypeDLC
	case "sub", "bundle":
		return domain.GameTypeBundle
	default:
		return domain.GameTypeGame
	}
}

// ReviewSummaryText renders the cached review aggregates as a short human
// label, e.g. "Very Positive (93% of 12,345 reviews)". Games without review
// data yield "No reviews".
func ReviewSummaryText(g *domain.Game) string {
	if g.TotalReviews == nil || *g.TotalReviews == 0 || g.TotalPositive == nil {
		return "No reviews"
	}
	total := *g.TotalReviews
	pct := 100 * *g.TotalPositive / total

	var band string
	switch {
	case pct >= 95:
		band = "Overwhelmingly Positive"
	case pct >= 80:
		band = "Very Positive"
	case pct >= 70:
		band = "Mostly Positive"
	case pct >= 40:
		band = "Mixed"
	case pct >= 20:
		band = "Mostly Negative"
	default:
		band = "Overwhelmingly Negative"
	}
	return fmt.Sprintf("%s (%d%% of %d reviews)", band, pct, total)
}
