package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

func TestSaveGameUpsertsByAppID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetGame(ctx, db, 440); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	g := &domain.Game{ID: 440, Name: "Team Fortress 2", Type: domain.GameTypeGame}
	if _, err := SaveGame(ctx, db, g); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}

	score := 9
	refreshed := time.Now().UTC().Truncate(time.Second)
	g.ReviewScore = &score
	g.LastRefreshedAt = &refreshed
	if _, err := SaveGame(ctx, db, g); err != nil {
		t.Fatalf("SaveGame refresh: %v", err)
	}

	got, err := GetGame(ctx, db, 440)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if got.ReviewScore == nil || *got.ReviewScore != 9 {
		t.Errorf("ReviewScore = %v, want 9", got.ReviewScore)
	}
	var n int64
	db.Model(&domain.Game{}).Count(&n)
	if n != 1 {
		t.Errorf("game rows = %d, want 1", n)
	}
}

func TestStaleGames(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	cutoff := now.Add(-7 * 24 * time.Hour)

	fresh := now.Add(-time.Hour)
	stale := now.Add(-8 * 24 * time.Hour)
	older := now.Add(-30 * 24 * time.Hour)

	mk := func(id int64, at *time.Time) {
		g := &domain.Game{ID: id, Name: "g", Type: domain.GameTypeGame, LastRefreshedAt: at}
		if err := db.Create(g).Error; err != nil {
			t.Fatalf("seed game %d: %v", id, err)
		}
	}
	mk(1, &fresh)
	mk(2, &stale)
	mk(3, nil)
	mk(4, &older)

	got, err := StaleGames(ctx, db, cutoff, 10)
	if err != nil {
		t.Fatalf("StaleGames: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("stale = %d, want 3", len(got))
	}
	for _, g := range got {
		if g.ID == 1 {
			t.Error("fresh game returned as stale")
		}
	}

	got, err = StaleGames(ctx, db, cutoff, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("limited stale = %d, err = %v, want 1", len(got), err)
	}
}

func TestSearchGames(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for id, name := range map[int64]string{
		620: "Portal 2",
		400: "Portal",
		440: "Team Fortress 2",
	} {
		if _, err := SaveGame(ctx, db, &domain.Game{ID: id, Name: name, Type: domain.GameTypeGame}); err != nil {
			t.Fatalf("SaveGame: %v", err)
		}
	}

	got, err := SearchGames(ctx, db, "portal", 10)
	if err != nil {
		t.Fatalf("SearchGames: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2", len(got))
	}
	if got[0].Name != "Portal" || got[1].Name != "Portal 2" {
		t.Errorf("order = %q, %q, want name ascending", got[0].Name, got[1].Name)
	}

	all, err := SearchGames(ctx, db, "", 2)
	if err != nil || len(all) != 2 {
		t.Fatalf("empty query = %d rows, err = %v, want limit respected", len(all), err)
	}

	none, err := SearchGames(ctx, db, "skyrim", 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("no-match = %d rows, err = %v, want none", len(none), err)
	}
}
