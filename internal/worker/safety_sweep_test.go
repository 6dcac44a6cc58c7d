package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/steamgifts"
)

type fakeSafetyRepo struct {
	unchecked []domain.Giveaway
	verdicts  map[int64]struct {
		safe  bool
		score int
	}
}

func newFakeSafetyRepo() *fakeSafetyRepo {
	return &fakeSafetyRepo{verdicts: map[int64]struct {
		safe  bool
		score int
	}{}}
}

func (f *fakeSafetyRepo) UncheckedSafety(_ context.Context, _ *gorm.DB, _ time.Time, limit int) ([]domain.Giveaway, error) {
	if len(f.unchecked) > limit {
		return f.unchecked[:limit], nil
	}
	return f.unchecked, nil
}

func (f *fakeSafetyRepo) SetSafety(_ context.Context, _ *gorm.DB, id int64, safe bool, score int) error {
	f.verdicts[id] = struct {
		safe  bool
		score int
	}{safe, score}
	return nil
}

func newTestSweeper(st domain.Settings, repo *fakeSafetyRepo, ops *fakeOps) *Sweeper {
	return &Sweeper{
		Settings:  &fakeSettings{settings: st},
		Repo:      repo,
		Giveaways: ops,
	}
}

func TestSweepSkipReasons(t *testing.T) {
	t.Run("not authenticated", func(t *testing.T) {
		st := authedSettings()
		st.PHPSessID = nil
		s := newTestSweeper(st, newFakeSafetyRepo(), &fakeOps{})
		res := s.Run(context.Background())
		if !res.Skipped || res.Reason != ReasonNotAuthenticated {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("safety check disabled", func(t *testing.T) {
		st := authedSettings()
		st.SafetyCheckEnabled = false
		s := newTestSweeper(st, newFakeSafetyRepo(), &fakeOps{})
		res := s.Run(context.Background())
		if !res.Skipped || res.Reason != ReasonSafetyDisabled {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("nothing unchecked", func(t *testing.T) {
		s := newTestSweeper(authedSettings(), newFakeSafetyRepo(), &fakeOps{})
		res := s.Run(context.Background())
		if !res.Skipped || res.Reason != ReasonNothingUnchecked {
			t.Errorf("result = %+v", res)
		}
	})
}

func TestSweepChecksOneGiveaway(t *testing.T) {
	repo := newFakeSafetyRepo()
	repo.unchecked = []domain.Giveaway{
		{ID: 7, Code: "first", GameName: "First"},
		{ID: 8, Code: "later", GameName: "Later"},
	}
	ops := &fakeOps{safetyVerdicts: map[int64]*steamgifts.SafetyResult{
		7: {IsSafe: true, Score: 100},
	}}
	s := newTestSweeper(authedSettings(), repo, ops)

	res := s.Run(context.Background())
	if res.Checked != 1 || res.Safe != 1 || res.Unsafe != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestSweepFlagsUnsafe(t *testing.T) {
	repo := newFakeSafetyRepo()
	repo.unchecked = []domain.Giveaway{{ID: 9, Code: "trap1", GameName: "Trap"}}
	ops := &fakeOps{safetyVerdicts: map[int64]*steamgifts.SafetyResult{
		9: {IsSafe: false, Score: 20, Matches: []string{" ban", " fake"}},
	}}
	s := newTestSweeper(authedSettings(), repo, ops)

	res := s.Run(context.Background())
	if res.Checked != 1 || res.Unsafe != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestSweepErrorRecordsFallbackVerdict(t *testing.T) {
	repo := newFakeSafetyRepo()
	repo.unchecked = []domain.Giveaway{{ID: 11, Code: "gone1", GameName: "Gone"}}
	ops := &fakeOps{safetyErr: errors.New("page fetch failed")}
	s := newTestSweeper(authedSettings(), repo, ops)

	res := s.Run(context.Background())
	if res.Checked != 0 {
		t.Errorf("result = %+v, want nothing counted for an errored check", res)
	}
	v, ok := repo.verdicts[11]
	if !ok || !v.safe || v.score != 50 {
		t.Errorf("fallback verdict = %+v, want safe with score 50", v)
	}
}
