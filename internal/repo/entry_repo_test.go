package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

func TestEntryLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ga := seedGiveaway(t, db, "AbCd1", 50, nil, nil)

	if _, err := GetEntryByGiveaway(ctx, db, ga.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound before creation", err)
	}

	e, err := CreateEntry(ctx, db, &domain.Entry{
		GiveawayID:  ga.ID,
		PointsSpent: 50,
		EntryType:   domain.EntryTypeAuto,
		Status:      domain.EntryStatusSuccess,
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if e.ID == 0 {
		t.Fatal("entry has no ID")
	}

	got, err := GetEntryByGiveaway(ctx, db, ga.ID)
	if err != nil {
		t.Fatalf("GetEntryByGiveaway: %v", err)
	}
	if got.PointsSpent != 50 || got.Status != domain.EntryStatusSuccess {
		t.Errorf("entry = %+v", got)
	}

	if err := DeleteEntry(ctx, db, ga.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := GetEntryByGiveaway(ctx, db, ga.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
	// Deleting again is a no-op.
	if err := DeleteEntry(ctx, db, ga.ID); err != nil {
		t.Errorf("second DeleteEntry: %v", err)
	}
}

func TestListEntriesAndStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g1 := seedGiveaway(t, db, "g1", 30, nil, nil)
	g2 := seedGiveaway(t, db, "g2", 20, nil, nil)
	g3 := seedGiveaway(t, db, "g3", 10, nil, nil)

	reason := "insufficient points"
	mustCreate := func(e *domain.Entry) {
		t.Helper()
		if _, err := CreateEntry(ctx, db, e); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}
	mustCreate(&domain.Entry{GiveawayID: g1.ID, PointsSpent: 30,
		EntryType: domain.EntryTypeAuto, Status: domain.EntryStatusSuccess,
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute)})
	mustCreate(&domain.Entry{GiveawayID: g2.ID, PointsSpent: 20,
		EntryType: domain.EntryTypeManual, Status: domain.EntryStatusSuccess,
		CreatedAt: time.Now().UTC().Add(-time.Minute)})
	mustCreate(&domain.Entry{GiveawayID: g3.ID, PointsSpent: 0,
		EntryType: domain.EntryTypeAuto, Status: domain.EntryStatusFailed,
		ErrorMessage: &reason, CreatedAt: time.Now().UTC()})

	rows, err := ListEntriesPage(ctx, db, "", "", 0, 10)
	if err != nil {
		t.Fatalf("ListEntriesPage: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].GiveawayID != g3.ID {
		t.Errorf("order: newest entry first expected")
	}
	if rows[0].Giveaway.Code != "g3" {
		t.Errorf("giveaway not preloaded: %+v", rows[0].Giveaway)
	}

	rows, err = ListEntriesPage(ctx, db, domain.EntryStatusSuccess, domain.EntryTypeAuto, 0, 10)
	if err != nil || len(rows) != 1 || rows[0].GiveawayID != g1.ID {
		t.Errorf("filtered rows = %+v, err = %v", rows, err)
	}

	n, err := CountEntries(ctx, db, domain.EntryStatusFailed, "")
	if err != nil || n != 1 {
		t.Errorf("CountEntries failed = %d, %v, want 1", n, err)
	}

	spent, err := SumPointsSpent(ctx, db)
	if err != nil {
		t.Fatalf("SumPointsSpent: %v", err)
	}
	if spent != 50 {
		t.Errorf("points spent = %d, want 50 (failed entries excluded)", spent)
	}

	stats, err := EntriesStats(ctx, db)
	if err != nil {
		t.Fatalf("EntriesStats: %v", err)
	}
	if stats.Total != 3 || stats.Successful != 2 || stats.Failed != 1 || stats.PointsSpent != 50 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSumPointsSpentEmpty(t *testing.T) {
	db := newTestDB(t)
	spent, err := SumPointsSpent(context.Background(), db)
	if err != nil || spent != 0 {
		t.Errorf("SumPointsSpent = %d, %v, want 0, nil", spent, err)
	}
}

func TestGiveawaysStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedGiveaway(t, db, "act", 10, timePtr(now.Add(time.Hour)), nil)
	seedGiveaway(t, db, "ent", 10, timePtr(now.Add(time.Hour)), func(g *domain.Giveaway) { g.IsEntered = true })
	seedGiveaway(t, db, "won", 10, timePtr(now.Add(-time.Hour)), func(g *domain.Giveaway) {
		g.IsEntered = true
		g.IsWon = true
	})
	seedGiveaway(t, db, "hid", 10, timePtr(now.Add(time.Hour)), func(g *domain.Giveaway) { g.IsHidden = true })
	seedGiveaway(t, db, "bad", 10, timePtr(now.Add(time.Hour)), func(g *domain.Giveaway) {
		unsafe := false
		g.IsSafe = &unsafe
	})

	s, err := GiveawaysStats(ctx, db, now)
	if err != nil {
		t.Fatalf("GiveawaysStats: %v", err)
	}
	if s.Total != 5 || s.Active != 4 || s.Entered != 2 || s.Won != 1 || s.Hidden != 1 || s.Unsafe != 1 {
		t.Errorf("stats = %+v", s)
	}
}
