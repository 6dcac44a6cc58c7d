package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/scheduler"
)

type fakeStateRepo struct {
	state      domain.SchedulerState
	scanCalls  int
	resetCalls int
}

func (f *fakeStateRepo) GetSchedulerState(_ context.Context, _ *gorm.DB) (*domain.SchedulerState, error) {
	cp := f.state
	return &cp, nil
}

func (f *fakeStateRepo) RecordScan(_ context.Context, _ *gorm.DB, at, next time.Time, entries, errs int) error {
	f.scanCalls++
	f.state.LastScanAt = &at
	f.state.NextScanAt = &next
	f.state.TotalScans++
	f.state.TotalEntries += int64(entries)
	f.state.TotalErrors += int64(errs)
	return nil
}

func (f *fakeStateRepo) ResetSchedulerState(_ context.Context, _ *gorm.DB) error {
	f.resetCalls++
	f.state = domain.SchedulerState{ID: f.state.ID}
	return nil
}

func newTestSchedulerService(t *testing.T, giveaways WinCheckRepo) (*SchedulerService, *fakeStateRepo) {
	t.Helper()
	sched := scheduler.New()
	t.Cleanup(sched.Stop)
	state := &fakeStateRepo{}
	svc := NewSchedulerService(nil, sched, giveaways, state)
	return svc, state
}

func TestScheduleNextWinCheckUsesSoonestEnd(t *testing.T) {
	giveaways := newFakeGiveawayRepo()
	soon := time.Now().UTC().Add(30 * time.Minute)
	later := time.Now().UTC().Add(2 * time.Hour)
	giveaways.add(&domain.Giveaway{Code: "soon1", GameName: "A", IsEntered: true, EndTime: &soon})
	giveaways.add(&domain.Giveaway{Code: "later", GameName: "B", IsEntered: true, EndTime: &later})

	svc, _ := newTestSchedulerService(t, giveaways)
	if err := svc.ScheduleNextWinCheck(context.Background()); err != nil {
		t.Fatalf("ScheduleNextWinCheck: %v", err)
	}

	at := svc.NextWinCheckAt()
	if at == nil {
		t.Fatal("no win check scheduled")
	}
	want := soon.Add(5 * time.Minute)
	if !at.Equal(want) {
		t.Errorf("run at %v, want %v", at, want)
	}
}

func TestScheduleNextWinCheckClampsPastEnds(t *testing.T) {
	giveaways := newFakeGiveawayRepo()
	// Ends ahead of now so NextExpiringEntered still returns it, but close
	// enough that end+buffer computed against a later "now" would not
	// matter here; instead exercise the clamp via UpdateForNewEntry below.
	end := time.Now().UTC().Add(time.Second)
	giveaways.add(&domain.Giveaway{Code: "edge1", GameName: "A", IsEntered: true, EndTime: &end})

	svc, _ := newTestSchedulerService(t, giveaways)

	past := time.Now().UTC().Add(-time.Hour)
	svc.UpdateForNewEntry(&past)

	at := svc.NextWinCheckAt()
	if at == nil {
		t.Fatal("no win check scheduled")
	}
	until := time.Until(*at)
	if until < 30*time.Second || until > 90*time.Second {
		t.Errorf("clamped run in %v, want about a minute out", until)
	}
}

func TestScheduleNextWinCheckIdlesWithoutEnteredGiveaways(t *testing.T) {
	giveaways := newFakeGiveawayRepo()
	end := time.Now().UTC().Add(time.Hour)
	giveaways.add(&domain.Giveaway{Code: "notme", GameName: "A", EndTime: &end}) // not entered

	svc, _ := newTestSchedulerService(t, giveaways)
	future := time.Now().UTC().Add(time.Hour)
	svc.UpdateForNewEntry(&future)
	if svc.NextWinCheckAt() == nil {
		t.Fatal("setup: expected a pending run")
	}

	if err := svc.ScheduleNextWinCheck(context.Background()); err != nil {
		t.Fatalf("ScheduleNextWinCheck: %v", err)
	}
	if at := svc.NextWinCheckAt(); at != nil {
		t.Errorf("pending run at %v, want cancelled", at)
	}
}

func TestUpdateForNewEntryOnlyTightens(t *testing.T) {
	giveaways := newFakeGiveawayRepo()
	svc, _ := newTestSchedulerService(t, giveaways)

	early := time.Now().UTC().Add(time.Hour)
	svc.UpdateForNewEntry(&early)
	scheduled := svc.NextWinCheckAt()
	if scheduled == nil {
		t.Fatal("no win check scheduled")
	}

	later := time.Now().UTC().Add(3 * time.Hour)
	svc.UpdateForNewEntry(&later)
	if at := svc.NextWinCheckAt(); !at.Equal(*scheduled) {
		t.Errorf("run at %v, want unchanged %v after a later entry", at, scheduled)
	}

	earlier := time.Now().UTC().Add(10 * time.Minute)
	svc.UpdateForNewEntry(&earlier)
	if at := svc.NextWinCheckAt(); !at.Before(*scheduled) {
		t.Errorf("run at %v, want tightened before %v", at, scheduled)
	}

	svc.UpdateForNewEntry(nil) // ignored
}

func TestRunWinCheckSchedulesSuccessor(t *testing.T) {
	giveaways := newFakeGiveawayRepo()
	end := time.Now().UTC().Add(time.Hour)
	giveaways.add(&domain.Giveaway{Code: "next1", GameName: "A", IsEntered: true, EndTime: &end})

	svc, _ := newTestSchedulerService(t, giveaways)
	var syncs atomic.Int32
	svc.SyncWins = func(_ context.Context) (int, error) {
		syncs.Add(1)
		return 1, nil
	}

	svc.runWinCheck()

	if syncs.Load() != 1 {
		t.Errorf("syncs = %d, want 1", syncs.Load())
	}
	at := svc.NextWinCheckAt()
	if at == nil {
		t.Fatal("successor not scheduled")
	}
	if want := end.Add(5 * time.Minute); !at.Equal(want) {
		t.Errorf("successor at %v, want %v", at, want)
	}
}

func TestRunWinCheckReschedulesAfterSyncFailure(t *testing.T) {
	giveaways := newFakeGiveawayRepo()
	end := time.Now().UTC().Add(time.Hour)
	giveaways.add(&domain.Giveaway{Code: "next1", GameName: "A", IsEntered: true, EndTime: &end})

	svc, _ := newTestSchedulerService(t, giveaways)
	svc.SyncWins = func(_ context.Context) (int, error) {
		return 0, errors.New("site down")
	}

	svc.runWinCheck()

	if svc.NextWinCheckAt() == nil {
		t.Error("chain broken: no successor after a failed sync")
	}
}

func TestRecordCycleAndReset(t *testing.T) {
	svc, state := newTestSchedulerService(t, newFakeGiveawayRepo())

	now := time.Now().UTC()
	if err := svc.RecordCycle(context.Background(), now, now.Add(30*time.Minute), 4, 1); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if state.scanCalls != 1 || state.state.TotalEntries != 4 || state.state.TotalErrors != 1 {
		t.Errorf("state = %+v", state.state)
	}

	if err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if state.resetCalls != 1 || state.state.TotalScans != 0 {
		t.Errorf("state after reset = %+v", state.state)
	}
}

func TestStatusReportsPauseAndPendingRun(t *testing.T) {
	svc, _ := newTestSchedulerService(t, newFakeGiveawayRepo())

	_, paused, next, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if paused || next != nil {
		t.Errorf("paused = %v, next = %v, want idle defaults", paused, next)
	}

	svc.Pause()
	future := time.Now().UTC().Add(time.Hour)
	svc.UpdateForNewEntry(&future)

	_, paused, next, err = svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !paused || next == nil {
		t.Errorf("paused = %v, next = %v, want paused with a pending run", paused, next)
	}
	svc.Resume()
}
