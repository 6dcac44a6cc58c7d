// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Game
// model, the local cache of Steam store metadata.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// GetGame fetches a cached game by Steam App ID.
// Returns ErrNotFound if the game has never been cached.
func GetGame(ctx context.Context, db *gorm.DB, id int64) (*domain.Game, error) {
	var g domain.Game
	if err := db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveGame inserts or fully replaces a cached game row. The primary key is
// the Steam App ID, so a refresh of existing metadata is an update in place.
func SaveGame(ctx context.Context, db *gorm.DB, g *domain.Game) (*domain.Game, error) {
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(g).Error
	if err != nil {
		return nil, err
	}
	return g, nil
}

// StaleGames returns up to limit games whose cached metadata needs a refresh
// at the given instant: never refreshed, or refreshed before the staleness
// cutoff. Oldest refresh first, so the most outdated rows go first.
func StaleGames(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Game, error) {
	var out []domain.Game
	err := db.WithContext(ctx).
		Where("last_refreshed_at IS NULL OR last_refreshed_at < ?", cutoff).
		Order("last_refreshed_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SearchGames returns up to limit cached games whose name contains the
// query, case-insensitively, ordered by name. An empty query lists from the
// top of the alphabet.
func SearchGames(ctx context.Context, db *gorm.DB, query string, limit int) ([]domain.Game, error) {
	q := db.WithContext(ctx).Model(&domain.Game{})
	if query != "" {
		q = q.Where("name LIKE ?", "%"+query+"%")
	}
	var out []domain.Game
	err := q.Order("name asc").Limit(limit).Find(&out).Error
	return out, err
}

// CountGames returns the number of cached games.
func CountGames(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Game{}).Count(&total).Error
	return total, err
}
