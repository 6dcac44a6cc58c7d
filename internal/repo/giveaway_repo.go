// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Giveaway
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a giveaway is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - UpsertGiveaway(ctx, db, ga) -> *domain.Giveaway, error
//     Inserts a newly discovered giveaway or refreshes the mutable fields
//     of an existing row, keyed by the SteamGifts code.
//
//   - GetGiveaway / GetGiveawayByCode
//     Fetch a single giveaway, preloading cached game metadata.
//
//   - ListGiveawaysPage(ctx, db, f, offset, limit) / CountGiveaways(ctx, db, f)
//     Paginated listing with state filters for the API surface.
//
//   - EligibleGiveaways(ctx, db, f) -> []domain.Giveaway, error
//     The autojoin candidate query: active, unentered, unhidden giveaways
//     within the price band, optionally joined against cached game metadata
//     for quality filters, most expensive first.
//
//   - NextExpiringEntered(ctx, db, now) -> *domain.Giveaway, error
//     The soonest-ending entered giveaway still running, used to time the
//     win check.
//
//   - UncheckedSafety, MarkEntered, MarkWon, SetHidden, SetSafety:
//     state transitions and auxiliary queries.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.GiveawayService) which enforces business rules.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ListFilter narrows the paginated giveaway listing.
type ListFilter struct {
	// Entered/Hidden/Won filter by flag when non-nil.
	Entered *bool
	Hidden  *bool
	Won     *bool
	// ActiveAt keeps only giveaways still running at the given instant
	// (unknown end times count as running).
	ActiveAt *time.Time
	// Search matches the game name, case-insensitive substring.
	Search string
}

// EligibilityFilter captures the autojoin candidate predicate.
type EligibilityFilter struct {
	Now      time.Time
	MinPrice int
	// MaxPrice is the points ceiling, normally the current balance.
	MaxPrice int
	// Quality filters require cached game metadata; any of them being
	// non-nil switches the query to an inner join against games.
	MinScore        *int
	MinReviews      *int
	MaxGameAgeYears *int
	// IncludeDLC admits DLC giveaways; only meaningful when game metadata
	// is joined.
	IncludeDLC bool
	Limit      int
}

func (f ListFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Entered != nil {
		q = q.Where("is_entered = ?", *f.Entered)
	}
	if f.Hidden != nil {
		q = q.Where("is_hidden = ?", *f.Hidden)
	}
	if f.Won != nil {
		q = q.Where("is_won = ?", *f.Won)
	}
	if f.ActiveAt != nil {
		q = q.Where("end_time IS NULL OR end_time > ?", *f.ActiveAt)
	}
	if f.Search != "" {
		q = q.Where("game_name LIKE ?", "%"+f.Search+"%")
	}
	return q
}

// UpsertGiveaway inserts a newly discovered giveaway, or refreshes the
// mutable listing fields (price, copies, end time, game linkage, entered
// flag) of the existing row with the same code. Local state flags such as
// is_hidden and the safety verdict are never overwritten by a sync.
//
// On success, it returns the persisted row with its database ID populated.
func UpsertGiveaway(ctx context.Context, db *gorm.DB, ga *domain.Giveaway) (*domain.Giveaway, error) {
	existing, err := GetGiveawayByCode(ctx, db, ga.Code)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if existing == nil {
		if ga.DiscoveredAt.IsZero() {
			ga.DiscoveredAt = time.Now().UTC()
		}
		if err := db.WithContext(ctx).Create(ga).Error; err != nil {
			return nil, err
		}
		return ga, nil
	}

	updates := map[string]any{
		"price":     ga.Price,
		"copies":    ga.Copies,
		"game_name": ga.GameName,
	}
	if ga.EndTime != nil {
		updates["end_time"] = *ga.EndTime
	}
	if ga.GameID != nil {
		updates["game_id"] = *ga.GameID
	}
	if ga.IsWishlist {
		updates["is_wishlist"] = true
	}
	// The site is authoritative for the entered flag in one direction only:
	// it can confirm an entry we missed, never revoke one we recorded.
	if ga.IsEntered {
		updates["is_entered"] = true
	}
	if err := db.WithContext(ctx).
		Model(&domain.Giveaway{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetGiveawayByCode(ctx, db, ga.Code)
}

// GetGiveaway fetches a giveaway by database ID, preloading cached game
// metadata. Returns ErrNotFound if missing.
func GetGiveaway(ctx context.Context, db *gorm.DB, id int64) (*domain.Giveaway, error) {
	var ga domain.Giveaway
	err := db.WithContext(ctx).
		Preload("Game").
		First(&ga, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &ga, nil
}

// GetGiveawayByCode fetches a giveaway by its SteamGifts code.
// Returns ErrNotFound if missing.
func GetGiveawayByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Giveaway, error) {
	var ga domain.Giveaway
	err := db.WithContext(ctx).
		Preload("Game").
		First(&ga, "code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &ga, nil
}

// ListGiveawaysPage returns a filtered, paginated slice of giveaways ordered
// by end time ascending (soonest-ending first), nulls last.
func ListGiveawaysPage(ctx context.Context, db *gorm.DB, f ListFilter, offset, limit int) ([]domain.Giveaway, error) {
	var out []domain.Giveaway
	err := f.apply(db.WithContext(ctx).Preload("Game")).
		Order("end_time IS NULL, end_time asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountGiveaways returns the number of giveaways matching the filter.
func CountGiveaways(ctx context.Context, db *gorm.DB, f ListFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Giveaway{})).
		Count(&total).Error
	return total, err
}

// EligibleGiveaways returns autojoin candidates: giveaways that are still
// running (unknown end times are excluded, since an expired giveaway wastes
// an entry attempt), not hidden, not yet entered, and priced within
// [MinPrice, MaxPrice]. Quality filters (review score, review count, release
// year) join against cached game metadata, which means giveaways without a
// cached game drop out whenever any quality filter is set.
//
// Release-year filtering compares the stored ISO date against "YYYY-01-01"
// lexicographically; rows with no release date drop out.
//
// Results are ordered by price descending so the most expensive eligible
// giveaways are entered first, bounded by Limit.
func EligibleGiveaways(ctx context.Context, db *gorm.DB, f EligibilityFilter) ([]domain.Giveaway, error) {
	q := db.WithContext(ctx).
		Model(&domain.Giveaway{}).
		Where("giveaways.end_time IS NOT NULL AND giveaways.end_time > ?", f.Now).
		Where("giveaways.is_hidden = ?", false).
		Where("giveaways.is_entered = ?", false).
		Where("giveaways.price >= ? AND giveaways.price <= ?", f.MinPrice, f.MaxPrice)

	if f.MinScore != nil || f.MinReviews != nil || f.MaxGameAgeYears != nil {
		q = q.Joins("INNER JOIN games ON games.id = giveaways.game_id")
		if f.MinScore != nil {
			q = q.Where("games.review_score >= ?", *f.MinScore)
		}
		if f.MinReviews != nil {
			q = q.Where("games.total_reviews >= ?", *f.MinReviews)
		}
		if f.MaxGameAgeYears != nil {
			cutoff := fmt.Sprintf("%04d-01-01", f.Now.Year()-*f.MaxGameAgeYears)
			q = q.Where("games.release_date >= ?", cutoff)
		}
		if !f.IncludeDLC {
			q = q.Where("games.type <> ?", domain.GameTypeDLC)
		}
	}

	var out []domain.Giveaway
	err := q.Order("giveaways.price desc").
		Limit(f.Limit).
		Find(&out).Error
	return out, err
}

// NextExpiringEntered returns the entered giveaway with the soonest end time
// still in the future, or ErrNotFound when no entered giveaway is running.
// The win check is scheduled just after this instant.
func NextExpiringEntered(ctx context.Context, db *gorm.DB, now time.Time) (*domain.Giveaway, error) {
	var ga domain.Giveaway
	err := db.WithContext(ctx).
		Where("is_entered = ? AND is_won = ?", true, false).
		Where("end_time IS NOT NULL AND end_time > ?", now).
		Order("end_time asc").
		First(&ga).Error
	if err != nil {
		return nil, err
	}
	return &ga, nil
}

// UncheckedSafety returns up to limit active, unhidden giveaways that have
// never been through the trap heuristic (is_safe IS NULL), oldest discovery
// first.
func UncheckedSafety(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Giveaway, error) {
	var out []domain.Giveaway
	err := db.WithContext(ctx).
		Where("is_safe IS NULL").
		Where("is_hidden = ?", false).
		Where("end_time IS NULL OR end_time > ?", now).
		Order("discovered_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkEntered flags a giveaway as entered at the given instant.
// Returns ErrNotFound if the giveaway does not exist.
func MarkEntered(ctx context.Context, db *gorm.DB, id int64, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Giveaway{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_entered": true, "entered_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkWon flags a giveaway as won at the given instant. Winning implies the
// entry existed, so is_entered is set as well.
// Returns ErrNotFound if the giveaway does not exist.
func MarkWon(ctx context.Context, db *gorm.DB, id int64, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Giveaway{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_won": true, "is_entered": true, "won_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearEntered resets the entered flag after an entry is withdrawn.
// Returns ErrNotFound if the giveaway does not exist.
func ClearEntered(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Giveaway{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_entered": false, "entered_at": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHidden updates a giveaway's hidden flag.
// Returns ErrNotFound if the giveaway does not exist.
func SetHidden(ctx context.Context, db *gorm.DB, id int64, hidden bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Giveaway{}).
		Where("id = ?", id).
		Update("is_hidden", hidden)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSafety records a trap-heuristic verdict on a giveaway.
// Returns ErrNotFound if the giveaway does not exist.
func SetSafety(ctx context.Context, db *gorm.DB, id int64, safe bool, score int) error {
	res := db.WithContext(ctx).
		Model(&domain.Giveaway{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_safe": safe, "safety_score": score})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
