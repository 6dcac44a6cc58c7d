package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// SafetyRepo is the giveaway lookup surface the sweep needs beyond the
// service layer: picking unchecked rows and writing fallback verdicts.
type SafetyRepo interface {
	UncheckedSafety(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Giveaway, error)
	SetSafety(ctx context.Context, db *gorm.DB, id int64, safe bool, score int) error
}

// SweepResult is the outcome of one safety sweep tick.
type SweepResult struct {
	Checked int    `json:"checked"`
	Safe    int    `json:"safe"`
	Unsafe  int    `json:"unsafe"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// Sweeper runs the slow background safety sweep. It is designed to tick
// frequently but check a single giveaway per tick, keeping the extra page
// fetches well under the site's tolerance.
type Sweeper struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Settings supplies credentials and the safety toggle.
	Settings interface {
		GetSettings(ctx context.Context, db *gorm.DB) (*domain.Settings, error)
	}
	// Repo picks unchecked giveaways and writes fallback verdicts.
	Repo SafetyRepo
	// Giveaways runs the actual check (fetch page, heuristic, persist,
	// auto-hide).
	Giveaways GiveawayOps
}

// Run checks at most one active, unchecked giveaway. A check that errors
// marks the giveaway safe with a middling score so the sweep does not
// revisit it forever; the entry-time gate would have failed open on it
// anyway.
func (s *Sweeper) Run(ctx context.Context) *SweepResult {
	res := &SweepResult{}

	st, err := s.Settings.GetSettings(ctx, s.DB)
	if err != nil {
		res.Skipped = true
		res.Reason = err.Error()
		return res
	}
	if !st.Authenticated() {
		res.Skipped = true
		res.Reason = ReasonNotAuthenticated
		return res
	}
	if !st.SafetyCheckEnabled {
		res.Skipped = true
		res.Reason = ReasonSafetyDisabled
		return res
	}

	unchecked, err := s.Repo.UncheckedSafety(ctx, s.DB, time.Now().UTC(), 1)
	if err != nil {
		res.Skipped = true
		res.Reason = err.Error()
		return res
	}
	if len(unchecked) == 0 {
		res.Skipped = true
		res.Reason = ReasonNothingUnchecked
		return res
	}

	ga := unchecked[0]
	log.Info().Str("code", ga.Code).Str("game", ga.GameName).Msg("safety sweep checking giveaway")

	verdict, err := s.Giveaways.CheckSafety(ctx, ga.ID)
	if err != nil {
		log.Error().Err(err).Str("code", ga.Code).Msg("safety sweep check errored")
		if err := s.Repo.SetSafety(ctx, s.DB, ga.ID, true, 50); err != nil {
			log.Error().Err(err).Str("code", ga.Code).Msg("failed to record fallback verdict")
		}
		return res
	}

	res.Checked = 1
	if verdict.IsSafe {
		res.Safe = 1
		log.Info().Str("code", ga.Code).Int("score", verdict.Score).Msg("safety sweep passed")
	} else {
		res.Unsafe = 1
		log.Warn().Str("code", ga.Code).Int("score", verdict.Score).
			Strs("matches", verdict.Matches).Msg("safety sweep flagged giveaway")
	}
	return res
}
