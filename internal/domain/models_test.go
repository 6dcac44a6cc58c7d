package domain

import (
	"testing"
	"time"
)

func TestGiveawayActive(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(2 * time.Hour)
	past := now.Add(-2 * time.Hour)

	cases := []struct {
		name    string
		endTime *time.Time
		want    bool
	}{
		{"nil end time is active", nil, true},
		{"future end time is active", &future, true},
		{"past end time is expired", &past, false},
	}
	for _, tc := range cases {
		g := &Giveaway{EndTime: tc.endTime}
		if got := g.Active(now); got != tc.want {
			t.Errorf("%s: Active = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestGiveawayTimeRemaining(t *testing.T) {
	now := time.Now().UTC()

	g := &Giveaway{}
	if got := g.TimeRemaining(now); got != nil {
		t.Fatalf("nil end time: want nil, got %v", *got)
	}

	future := now.Add(2 * time.Hour)
	g.EndTime = &future
	if got := g.TimeRemaining(now); got == nil || *got != 7200 {
		t.Fatalf("2h remaining: want 7200, got %v", got)
	}

	past := now.Add(-time.Minute)
	g.EndTime = &past
	if got := g.TimeRemaining(now); got == nil || *got != 0 {
		t.Fatalf("expired: want 0, got %v", got)
	}
}

func TestGameNeedsRefresh(t *testing.T) {
	now := time.Now().UTC()

	g := &Game{}
	if !g.NeedsRefresh(now) {
		t.Fatal("never refreshed: want NeedsRefresh = true")
	}

	fresh := now
	g.LastRefreshedAt = &fresh
	if g.NeedsRefresh(now) {
		t.Fatal("refreshed just now: want NeedsRefresh = false")
	}

	stale := now.Add(-8 * 24 * time.Hour)
	g.LastRefreshedAt = &stale
	if !g.NeedsRefresh(now) {
		t.Fatal("refreshed 8 days ago: want NeedsRefresh = true")
	}
}

func TestSettingsAuthenticated(t *testing.T) {
	s := &Settings{}
	if s.Authenticated() {
		t.Fatal("no cookie: want Authenticated = false")
	}

	empty := ""
	s.PHPSessID = &empty
	if s.Authenticated() {
		t.Fatal("empty cookie: want Authenticated = false")
	}

	sid := "abc123"
	s.PHPSessID = &sid
	if !s.Authenticated() {
		t.Fatal("cookie set: want Authenticated = true")
	}
}

func TestSchedulerStateTimers(t *testing.T) {
	now := time.Now().UTC()
	s := &SchedulerState{}

	if s.HasRun() {
		t.Fatal("fresh state: want HasRun = false")
	}
	if s.TimeSinceLastScan(now) != nil {
		t.Fatal("fresh state: want nil TimeSinceLastScan")
	}
	if s.TimeUntilNextScan(now) != nil {
		t.Fatal("fresh state: want nil TimeUntilNextScan")
	}

	last := now.Add(-90 * time.Second)
	next := now.Add(30 * time.Second)
	s.LastScanAt = &last
	s.NextScanAt = &next

	if !s.HasRun() {
		t.Fatal("want HasRun = true")
	}
	if got := s.TimeSinceLastScan(now); got == nil || *got != 90 {
		t.Fatalf("TimeSinceLastScan = %v, want 90", got)
	}
	if got := s.TimeUntilNextScan(now); got == nil || *got != 30 {
		t.Fatalf("TimeUntilNextScan = %v, want 30", got)
	}

	overdue := now.Add(-time.Minute)
	s.NextScanAt = &overdue
	if got := s.TimeUntilNextScan(now); got == nil || *got != 0 {
		t.Fatalf("overdue next scan: want 0, got %v", got)
	}
}
