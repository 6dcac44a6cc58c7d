// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the dashboard endpoints. Each function is context-aware and safe to
// call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// GiveawayStats is the aggregate giveaway breakdown for the dashboard.
type GiveawayStats struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Entered int64 `json:"entered"`
	Won     int64 `json:"won"`
	Hidden  int64 `json:"hidden"`
	Unsafe  int64 `json:"unsafe"`
}

// EntryStats is the aggregate entry breakdown for the dashboard.
type EntryStats struct {
	Total       int64 `json:"total"`
	Successful  int64 `json:"successful"`
	Failed      int64 `json:"failed"`
	PointsSpent int64 `json:"points_spent"`
}

// GiveawaysStats returns counts of giveaways by state at the given instant.
// It runs one count per bucket; the giveaways table stays small enough that
// this is cheaper than a grouped scan with conditional aggregation.
func GiveawaysStats(ctx context.Context, db *gorm.DB, now time.Time) (*GiveawayStats, error) {
	var s GiveawayStats
	m := func() *gorm.DB { return db.WithContext(ctx).Model(&domain.Giveaway{}) }

	if err := m().Count(&s.Total).Error; err != nil {
		return nil, err
	}
	if err := m().Where("end_time IS NULL OR end_time > ?", now).
		Where("is_hidden = ?", false).
		Count(&s.Active).Error; err != nil {
		return nil, err
	}
	if err := m().Where("is_entered = ?", true).Count(&s.Entered).Error; err != nil {
		return nil, err
	}
	if err := m().Where("is_won = ?", true).Count(&s.Won).Error; err != nil {
		return nil, err
	}
	if err := m().Where("is_hidden = ?", true).Count(&s.Hidden).Error; err != nil {
		return nil, err
	}
	if err := m().Where("is_safe = ?", false).Count(&s.Unsafe).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// EntriesStats returns the entry attempt breakdown and cumulative points
// spent on successful entries.
func EntriesStats(ctx context.Context, db *gorm.DB) (*EntryStats, error) {
	var s EntryStats
	m := func() *gorm.DB { return db.WithContext(ctx).Model(&domain.Entry{}) }

	if err := m().Count(&s.Total).Error; err != nil {
		return nil, err
	}
	if err := m().Where("status = ?", domain.EntryStatusSuccess).
		Count(&s.Successful).Error; err != nil {
		return nil, err
	}
	if err := m().Where("status = ?", domain.EntryStatusFailed).
		Count(&s.Failed).Error; err != nil {
		return nil, err
	}
	spent, err := SumPointsSpent(ctx, db)
	if err != nil {
		return nil, err
	}
	s.PointsSpent = spent
	return &s, nil
}
