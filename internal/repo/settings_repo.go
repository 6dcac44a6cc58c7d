// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the singleton
// Settings and SchedulerState rows (ID fixed at 1). Reads create the row on
// first access so callers never see ErrNotFound for either singleton.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

const singletonID = 1

// GetSettings returns the settings row, creating it with column defaults on
// first access.
func GetSettings(ctx context.Context, db *gorm.DB) (*domain.Settings, error) {
	var s domain.Settings
	err := db.WithContext(ctx).First(&s, "id = ?", singletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s = domain.Settings{ID: singletonID}
		if err := db.WithContext(ctx).Create(&s).Error; err != nil {
			return nil, err
		}
		// Re-read so column defaults are populated.
		err = db.WithContext(ctx).First(&s, "id = ?", singletonID).Error
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings applies a partial column update to the settings row and
// returns the updated row. Callers build the updates map from validated
// input; zero values pass through deliberately.
func UpdateSettings(ctx context.Context, db *gorm.DB, updates map[string]any) (*domain.Settings, error) {
	if _, err := GetSettings(ctx, db); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		err := db.WithContext(ctx).
			Model(&domain.Settings{}).
			Where("id = ?", singletonID).
			Updates(updates).Error
		if err != nil {
			return nil, err
		}
	}
	return GetSettings(ctx, db)
}

// GetSchedulerState returns the scheduler bookkeeping row, creating it on
// first access.
func GetSchedulerState(ctx context.Context, db *gorm.DB) (*domain.SchedulerState, error) {
	var s domain.SchedulerState
	err := db.WithContext(ctx).First(&s, "id = ?", singletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s = domain.SchedulerState{ID: singletonID}
		if err := db.WithContext(ctx).Create(&s).Error; err != nil {
			return nil, err
		}
		return &s, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RecordScan bumps the cumulative counters after an automation cycle and
// stores the last/next scan instants.
func RecordScan(ctx context.Context, db *gorm.DB, at, next time.Time, entries, errs int) error {
	if _, err := GetSchedulerState(ctx, db); err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.SchedulerState{}).
		Where("id = ?", singletonID).
		Updates(map[string]any{
			"last_scan_at":  at,
			"next_scan_at":  next,
			"total_scans":   gorm.Expr("total_scans + 1"),
			"total_entries": gorm.Expr("total_entries + ?", entries),
			"total_errors":  gorm.Expr("total_errors + ?", errs),
		}).Error
}

// ResetSchedulerState zeroes the counters and clears the scan timestamps.
func ResetSchedulerState(ctx context.Context, db *gorm.DB) error {
	if _, err := GetSchedulerState(ctx, db); err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.SchedulerState{}).
		Where("id = ?", singletonID).
		Updates(map[string]any{
			"last_scan_at":  nil,
			"next_scan_at":  nil,
			"total_scans":   0,
			"total_entries": 0,
			"total_errors":  0,
		}).Error
}
