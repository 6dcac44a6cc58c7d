// Package services – SettingsService
//
// This file implements the SettingsService, which manages the singleton
// configuration row: session credentials, feature toggles, and autojoin
// thresholds. Updates are typed partial updates: only non-nil fields are
// applied, after cross-field validation against the resulting state (so an
// update cannot leave, say, the stop threshold above the start threshold).
package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// SettingsRepo defines the repository contract required by SettingsService.
type SettingsRepo interface {
	GetSettings(ctx context.Context, db *gorm.DB) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, db *gorm.DB, updates map[string]any) (*domain.Settings, error)
}

// SettingsUpdate is a typed partial update: nil fields are left untouched.
// The two Clear flags null out their optional columns, since a *int field
// cannot distinguish "unset" from "set to null".
type SettingsUpdate struct {
	PHPSessID *string `json:"phpsessid"`
	UserAgent *string `json:"user_agent"`
	XSRFToken *string `json:"xsrf_token"`

	DLCEnabled         *bool `json:"dlc_enabled"`
	SafetyCheckEnabled *bool `json:"safety_check_enabled"`
	AutoHideUnsafe     *bool `json:"auto_hide_unsafe"`
	AutomationEnabled  *bool `json:"automation_enabled"`
	AutojoinEnabled    *bool `json:"autojoin_enabled"`

	AutojoinStartAt    *int `json:"autojoin_start_at"`
	AutojoinStopAt     *int `json:"autojoin_stop_at"`
	AutojoinMinPrice   *int `json:"autojoin_min_price"`
	AutojoinMinScore   *int `json:"autojoin_min_score"`
	AutojoinMinReviews *int `json:"autojoin_min_reviews"`
	AutojoinMaxGameAge *int `json:"autojoin_max_game_age"`
	ClearMaxGameAge    bool `json:"clear_max_game_age"`

	ScanIntervalMinutes *int `json:"scan_interval_minutes"`
	MaxScanPages        *int `json:"max_scan_pages"`
	MaxEntriesPerCycle  *int `json:"max_entries_per_cycle"`
	ClearMaxEntries     bool `json:"clear_max_entries_per_cycle"`
	EntryDelayMin       *int `json:"entry_delay_min"`
	EntryDelayMax       *int `json:"entry_delay_max"`
}

// SettingsService provides read and partial-update access to the singleton
// settings row.
type SettingsService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the settings repository used by this service.
	Repo SettingsRepo
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB, r SettingsRepo) *SettingsService {
	return &SettingsService{DB: db, Repo: r}
}

// Get returns the current settings, creating defaults on first access.
func (s *SettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	return s.Repo.GetSettings(ctx, s.DB)
}

// Update validates and applies a partial update, returning the new state.
// Validation runs against the merged result of current settings and the
// update, and a failed validation applies nothing.
func (s *SettingsService) Update(ctx context.Context, u SettingsUpdate) (*domain.Settings, error) {
	current, err := s.Repo.GetSettings(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(current, u); err != nil {
		return nil, err
	}
	return s.Repo.UpdateSettings(ctx, s.DB, u.columns())
}

// SetCredentials stores the SteamGifts session cookie (and optionally a
// browser user agent), clearing any cached XSRF token since it belongs to
// the previous session.
func (s *SettingsService) SetCredentials(ctx context.Context, phpSessID, userAgent string) (*domain.Settings, error) {
	if phpSessID == "" {
		return nil, fmt.Errorf("%w: session cookie must not be empty", ErrInvalidSettings)
	}
	updates := map[string]any{
		"phpsessid":  phpSessID,
		"xsrf_token": nil,
	}
	if userAgent != "" {
		updates["user_agent"] = userAgent
	}
	return s.Repo.UpdateSettings(ctx, s.DB, updates)
}

// ClearCredentials removes the stored session, disabling all site
// operations until new credentials arrive. Automation is switched off at the
// same time so the next cycle does not immediately fail.
func (s *SettingsService) ClearCredentials(ctx context.Context) (*domain.Settings, error) {
	return s.Repo.UpdateSettings(ctx, s.DB, map[string]any{
		"phpsessid":          nil,
		"xsrf_token":         nil,
		"automation_enabled": false,
		"autojoin_enabled":   false,
	})
}

// validateUpdate checks an update against the state it would produce.
func validateUpdate(cur *domain.Settings, u SettingsUpdate) error {
	pick := func(p *int, fallback int) int {
		if p != nil {
			return *p
		}
		return fallback
	}

	for name, p := range map[string]*int{
		"autojoin_start_at":     u.AutojoinStartAt,
		"autojoin_stop_at":      u.AutojoinStopAt,
		"autojoin_min_price":    u.AutojoinMinPrice,
		"autojoin_min_reviews":  u.AutojoinMinReviews,
		"autojoin_max_game_age": u.AutojoinMaxGameAge,
		"entry_delay_min":       u.EntryDelayMin,
		"entry_delay_max":       u.EntryDelayMax,
	} {
		if p != nil && *p < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidSettings, name)
		}
	}

	if u.AutojoinMinScore != nil && (*u.AutojoinMinScore < 0 || *u.AutojoinMinScore > 10) {
		return fmt.Errorf("%w: autojoin_min_score must be between 0 and 10", ErrInvalidSettings)
	}
	if u.ScanIntervalMinutes != nil && *u.ScanIntervalMinutes < 1 {
		return fmt.Errorf("%w: scan_interval_minutes must be at least 1", ErrInvalidSettings)
	}
	if u.MaxScanPages != nil && *u.MaxScanPages < 1 {
		return fmt.Errorf("%w: max_scan_pages must be at least 1", ErrInvalidSettings)
	}
	if u.MaxEntriesPerCycle != nil && *u.MaxEntriesPerCycle < 1 {
		return fmt.Errorf("%w: max_entries_per_cycle must be at least 1", ErrInvalidSettings)
	}

	delayMin := pick(u.EntryDelayMin, cur.EntryDelayMin)
	delayMax := pick(u.EntryDelayMax, cur.EntryDelayMax)
	if delayMin > delayMax {
		return fmt.Errorf("%w: entry_delay_min must not exceed entry_delay_max", ErrInvalidSettings)
	}

	startAt := pick(u.AutojoinStartAt, cur.AutojoinStartAt)
	stopAt := pick(u.AutojoinStopAt, cur.AutojoinStopAt)
	if stopAt > startAt {
		return fmt.Errorf("%w: autojoin_stop_at must not exceed autojoin_start_at", ErrInvalidSettings)
	}
	return nil
}

// columns converts the update into a GORM column map. Only non-nil fields
// appear; the Clear flags translate to explicit NULLs.
func (u SettingsUpdate) columns() map[string]any {
	m := map[string]any{}
	setStr := func(col string, p *string) {
		if p != nil {
			m[col] = *p
		}
	}
	setBool := func(col string, p *bool) {
		if p != nil {
			m[col] = *p
		}
	}
	setInt := func(col string, p *int) {
		if p != nil {
			m[col] = *p
		}
	}

	setStr("phpsessid", u.PHPSessID)
	setStr("user_agent", u.UserAgent)
	setStr("xsrf_token", u.XSRFToken)

	setBool("dlc_enabled", u.DLCEnabled)
	setBool("safety_check_enabled", u.SafetyCheckEnabled)
	setBool("auto_hide_unsafe", u.AutoHideUnsafe)
	setBool("automation_enabled", u.AutomationEnabled)
	setBool("autojoin_enabled", u.AutojoinEnabled)

	setInt("autojoin_start_at", u.AutojoinStartAt)
	setInt("autojoin_stop_at", u.AutojoinStopAt)
	setInt("autojoin_min_price", u.AutojoinMinPrice)
	setInt("autojoin_min_score", u.AutojoinMinScore)
	setInt("autojoin_min_reviews", u.AutojoinMinReviews)
	setInt("autojoin_max_game_age", u.AutojoinMaxGameAge)
	if u.ClearMaxGameAge {
		m["autojoin_max_game_age"] = nil
	}

	setInt("scan_interval_minutes", u.ScanIntervalMinutes)
	setInt("max_scan_pages", u.MaxScanPages)
	setInt("max_entries_per_cycle", u.MaxEntriesPerCycle)
	if u.ClearMaxEntries {
		m["max_entries_per_cycle"] = nil
	}
	setInt("entry_delay_min", u.EntryDelayMin)
	setInt("entry_delay_max", u.EntryDelayMax)
	return m
}
