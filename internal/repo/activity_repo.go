// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only ActivityLog trail.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// CreateActivity appends one activity event.
func CreateActivity(ctx context.Context, db *gorm.DB, a *domain.ActivityLog) (*domain.ActivityLog, error) {
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// ListActivityPage returns activity events most recent first, optionally
// filtered by level and event type.
func ListActivityPage(ctx context.Context, db *gorm.DB, level, eventType string, offset, limit int) ([]domain.ActivityLog, error) {
	q := db.WithContext(ctx)
	if level != "" {
		q = q.Where("level = ?", level)
	}
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var out []domain.ActivityLog
	err := q.Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountActivity returns the number of activity events matching the filters.
func CountActivity(ctx context.Context, db *gorm.DB, level, eventType string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.ActivityLog{})
	if level != "" {
		q = q.Where("level = ?", level)
	}
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// PruneActivity deletes events older than the cutoff and returns the number
// removed. Keeps the trail bounded on long-running installs.
func PruneActivity(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.ActivityLog{})
	return res.RowsAffected, res.Error
}
