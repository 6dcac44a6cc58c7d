// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Entry
// model: one row per entry attempt, successful or failed.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// CreateEntry inserts an entry attempt record.
func CreateEntry(ctx context.Context, db *gorm.DB, e *domain.Entry) (*domain.Entry, error) {
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// GetEntryByGiveaway fetches the entry for a giveaway, or ErrNotFound when
// the giveaway was never attempted. At most one entry exists per giveaway.
func GetEntryByGiveaway(ctx context.Context, db *gorm.DB, giveawayID int64) (*domain.Entry, error) {
	var e domain.Entry
	err := db.WithContext(ctx).
		First(&e, "giveaway_id = ?", giveawayID).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteEntry removes the entry row for a giveaway. Missing rows are not an
// error: the end state (no entry) is the same.
func DeleteEntry(ctx context.Context, db *gorm.DB, giveawayID int64) error {
	return db.WithContext(ctx).
		Where("giveaway_id = ?", giveawayID).
		Delete(&domain.Entry{}).Error
}

// ListEntriesPage returns entries ordered most recent first, optionally
// filtered by status and type, with their giveaways preloaded.
func ListEntriesPage(ctx context.Context, db *gorm.DB, status, entryType string, offset, limit int) ([]domain.Entry, error) {
	q := db.WithContext(ctx).Preload("Giveaway")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if entryType != "" {
		q = q.Where("entry_type = ?", entryType)
	}
	var out []domain.Entry
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountEntries returns the number of entries matching the status and type
// filters (empty string matches all).
func CountEntries(ctx context.Context, db *gorm.DB, status, entryType string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Entry{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if entryType != "" {
		q = q.Where("entry_type = ?", entryType)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// SumPointsSpent returns the total points spent across successful entries.
func SumPointsSpent(ctx context.Context, db *gorm.DB) (int64, error) {
	var total *int64
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("status = ?", domain.EntryStatusSuccess).
		Select("SUM(points_spent)").
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}
