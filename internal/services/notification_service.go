// Package services – NotificationService
//
// This file implements the NotificationService, the single funnel for
// user-visible automation events. Every notable occurrence (entry made, win
// detected, sync failed) is recorded twice: appended to the persistent
// activity trail and published to the in-process event hub for live
// dashboard streams. Failures to persist are logged and swallowed so that a
// notification problem never aborts the operation being reported.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/events"
)

// Activity levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// ActivityRepo defines the repository contract required by
// NotificationService.
type ActivityRepo interface {
	CreateActivity(ctx context.Context, db *gorm.DB, a *domain.ActivityLog) (*domain.ActivityLog, error)
	ListActivityPage(ctx context.Context, db *gorm.DB, level, eventType string, offset, limit int) ([]domain.ActivityLog, error)
	CountActivity(ctx context.Context, db *gorm.DB, level, eventType string) (int64, error)
}

// NotificationService records leveled activity events and fans them out to
// live subscribers.
type NotificationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the activity repository used by this service.
	Repo ActivityRepo
	// Hub receives a copy of every event for live streaming. Optional.
	Hub *events.Hub
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, r ActivityRepo, hub *events.Hub) *NotificationService {
	return &NotificationService{DB: db, Repo: r, Hub: hub}
}

// Info records an informational event.
func (s *NotificationService) Info(ctx context.Context, eventType, message string, details any) {
	s.record(ctx, LevelInfo, eventType, message, details)
}

// Warn records a warning event.
func (s *NotificationService) Warn(ctx context.Context, eventType, message string, details any) {
	s.record(ctx, LevelWarning, eventType, message, details)
}

// Error records an error event.
func (s *NotificationService) Error(ctx context.Context, eventType, message string, details any) {
	s.record(ctx, LevelError, eventType, message, details)
}

// List returns a page of activity events, newest first, with the matching
// total for pagination metadata.
func (s *NotificationService) List(ctx context.Context, level, eventType string, page, pageSize int) ([]domain.ActivityLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := s.Repo.CountActivity(ctx, s.DB, level, eventType)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ActivityLog{}, 0, nil
	}
	items, err := s.Repo.ListActivityPage(ctx, s.DB, level, eventType, (page-1)*pageSize, pageSize)
	return items, total, err
}

func (s *NotificationService) record(ctx context.Context, level, eventType, message string, details any) {
	var raw []byte
	if details != nil {
		var err error
		if raw, err = json.Marshal(details); err != nil {
			log.Warn().Err(err).Str("event", eventType).Msg("activity details not serializable")
			raw = nil
		}
	}

	a := &domain.ActivityLog{
		Level:     level,
		EventType: eventType,
		Message:   message,
		Details:   raw,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.Repo.CreateActivity(ctx, s.DB, a); err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to persist activity event")
	}

	if s.Hub != nil {
		s.Hub.Publish(events.Event{
			Type:    eventType,
			Message: message,
			Data:    details,
		})
	}
}
