// Package domain defines the persistence models for giveaways, games,
// entries, and automation state. These types are mapped with GORM and form
// the core data layer of the application.
package domain

import (
	"time"
)

// Entry type classifications.
const (
	EntryTypeManual   = "manual"
	EntryTypeAuto     = "auto"
	EntryTypeWishlist = "wishlist"
)

// Entry status values.
const (
	EntryStatusSuccess = "success"
	EntryStatusFailed  = "failed"
	EntryStatusPending = "pending"
)

// Game content types.
const (
	GameTypeGame   = "game"
	GameTypeDLC    = "dlc"
	GameTypeBundle = "bundle"
)

// gameCacheTTL is how long cached Steam metadata stays fresh.
const gameCacheTTL = 7 * 24 * time.Hour

// Giveaway represents a SteamGifts giveaway discovered during scanning. The
// code is the unique identifier taken from the giveaway URL; game_name is
// denormalized so listings render without a JOIN.
//
// Fields:
//   - Code: unique SteamGifts giveaway code (indexed).
//   - GameID: Steam App ID, nullable because the game may not be cached yet.
//   - Price: entry cost in points; Copies: number of copies given away.
//   - EndTime: when the giveaway ends (UTC); nil means unknown, treated as
//     still active.
//   - IsSafe / SafetyScore: trap-detection verdict; nil until checked.
//   - DiscoveredAt / EnteredAt / WonAt: lifecycle timestamps.
type Giveaway struct {
	ID       int64  `json:"id"        gorm:"primaryKey;autoIncrement"`
	Code     string `json:"code"      gorm:"type:varchar(16);not null;uniqueIndex"`
	URL      string `json:"url"       gorm:"type:varchar(512);not null"`
	GameID   *int64 `json:"game_id"   gorm:"index"`
	GameName string `json:"game_name" gorm:"type:varchar(255);not null"`

	Price   int        `json:"price"    gorm:"not null"`
	Copies  int        `json:"copies"   gorm:"not null;default:1"`
	EndTime *time.Time `json:"end_time" gorm:"index"`

	IsHidden   bool `json:"is_hidden"   gorm:"not null;default:false"`
	IsEntered  bool `json:"is_entered"  gorm:"not null;default:false;index"`
	IsWishlist bool `json:"is_wishlist" gorm:"not null;default:false"`
	IsWon      bool `json:"is_won"      gorm:"not null;default:false"`

	IsSafe      *bool `json:"is_safe"`
	SafetyScore *int  `json:"safety_score"`

	DiscoveredAt time.Time  `json:"discovered_at" gorm:"not null"`
	EnteredAt    *time.Time `json:"entered_at"`
	WonAt        *time.Time `json:"won_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Game is the cached Steam metadata, when present.
	Game *Game `json:"-" gorm:"foreignKey:GameID;references:ID"`
}

// TableName returns the database table name for Giveaway.
func (Giveaway) TableName() string { return "giveaways" }

// Active reports whether the giveaway is still running at the given instant.
// An unknown end time counts as active.
func (g *Giveaway) Active(now time.Time) bool {
	if g.EndTime == nil {
		return true
	}
	return now.Before(*g.EndTime)
}

// TimeRemaining returns the seconds until the giveaway ends, 0 when expired,
// or nil when the end time is unknown.
func (g *Giveaway) TimeRemaining(now time.Time) *int64 {
	if g.EndTime == nil {
		return nil
	}
	secs := int64(g.EndTime.Sub(now).Seconds())
	if secs < 0 {
		secs = 0
	}
	return &secs
}

// Game caches Steam store metadata so giveaway filtering does not hit the
// Steam API on every cycle. The primary key is the Steam App ID itself, not a
// surrogate.
//
// Review fields come from the appreviews endpoint and are nil until fetched.
// BundleContent lists member App IDs for bundles; ParentGameID points at the
// base game for DLC.
type Game struct {
	ID   int64  `json:"id"   gorm:"primaryKey;autoIncrement:false"`
	Name string `json:"name" gorm:"type:varchar(255);not null"`
	Type string `json:"type" gorm:"type:varchar(16);not null;check:type IN ('game','dlc','bundle')"`

	ReleaseDate *string `json:"release_date" gorm:"type:varchar(32)"`
	HeaderImage *string `json:"header_image" gorm:"type:varchar(512)"`
	Description *string `json:"description"  gorm:"type:text"`

	ReviewScore   *int `json:"review_score"`
	TotalPositive *int `json:"total_positive"`
	TotalNegative *int `json:"total_negative"`
	TotalReviews  *int `json:"total_reviews"`

	IsBundle      bool   `json:"is_bundle"      gorm:"not null;default:false"`
	BundleContent []byte `json:"bundle_content" gorm:"type:json"`
	ParentGameID  *int64 `json:"parent_game_id"`

	LastRefreshedAt *time.Time `json:"last_refreshed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Game.
func (Game) TableName() string { return "games" }

// NeedsRefresh reports whether the cached metadata is stale: never refreshed,
// or refreshed more than seven days before now.
func (g *Game) NeedsRefresh(now time.Time) bool {
	if g.LastRefreshedAt == nil {
		return true
	}
	return now.Sub(*g.LastRefreshedAt) > gameCacheTTL
}

// Entry records one attempt to enter a giveaway, successful or not. The
// service layer guarantees at most one Entry per Giveaway; failed attempts
// keep PointsSpent at zero and carry the failure reason.
type Entry struct {
	ID          int64  `json:"id"           gorm:"primaryKey;autoIncrement"`
	GiveawayID  int64  `json:"giveaway_id"  gorm:"not null;index"`
	PointsSpent int    `json:"points_spent" gorm:"not null;default:0"`
	EntryType   string `json:"entry_type"   gorm:"type:varchar(16);not null;check:entry_type IN ('manual','auto','wishlist')"`
	Status      string `json:"status"       gorm:"type:varchar(16);not null;check:status IN ('success','failed','pending')"`

	ErrorMessage *string   `json:"error_message" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`

	// Giveaway is the giveaway this entry belongs to.
	Giveaway Giveaway `json:"-" gorm:"foreignKey:GiveawayID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Entry.
func (Entry) TableName() string { return "entries" }

// Settings is the singleton configuration row (ID is always 1). It holds the
// SteamGifts session credentials, feature toggles, and autojoin thresholds.
type Settings struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	// Credentials
	PHPSessID *string `json:"-" gorm:"column:phpsessid;type:varchar(128)"`
	UserAgent string  `json:"user_agent" gorm:"type:varchar(255);not null;default:'Mozilla/5.0 (X11; Fedora; Linux x86_64; rv:82.0) Gecko/20100101 Firefox/82.0'"`
	XSRFToken *string `json:"-" gorm:"column:xsrf_token;type:varchar(128)"`

	// Feature toggles
	DLCEnabled         bool `json:"dlc_enabled"          gorm:"not null;default:false"`
	SafetyCheckEnabled bool `json:"safety_check_enabled" gorm:"not null;default:true"`
	AutoHideUnsafe     bool `json:"auto_hide_unsafe"     gorm:"not null;default:true"`
	AutomationEnabled  bool `json:"automation_enabled"   gorm:"not null;default:false"`
	AutojoinEnabled    bool `json:"autojoin_enabled"     gorm:"not null;default:false"`

	// Autojoin thresholds
	AutojoinStartAt    int  `json:"autojoin_start_at"    gorm:"not null;default:350"`
	AutojoinStopAt     int  `json:"autojoin_stop_at"     gorm:"not null;default:200"`
	AutojoinMinPrice   int  `json:"autojoin_min_price"   gorm:"not null;default:10"`
	AutojoinMinScore   int  `json:"autojoin_min_score"   gorm:"not null;default:7"`
	AutojoinMinReviews int  `json:"autojoin_min_reviews" gorm:"not null;default:1000"`
	AutojoinMaxGameAge *int `json:"autojoin_max_game_age"`

	// Scheduling
	ScanIntervalMinutes int  `json:"scan_interval_minutes" gorm:"not null;default:30"`
	MaxScanPages        int  `json:"max_scan_pages"        gorm:"not null;default:3"`
	MaxEntriesPerCycle  *int `json:"max_entries_per_cycle"`
	EntryDelayMin       int  `json:"entry_delay_min"       gorm:"not null;default:8"`
	EntryDelayMax       int  `json:"entry_delay_max"       gorm:"not null;default:12"`

	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Settings.
func (Settings) TableName() string { return "settings" }

// Authenticated reports whether a SteamGifts session cookie is configured.
func (s *Settings) Authenticated() bool {
	return s.PHPSessID != nil && *s.PHPSessID != ""
}

// SchedulerState is the singleton automation bookkeeping row (ID is always 1):
// cumulative scan/entry/error counters plus last and next cycle timestamps.
type SchedulerState struct {
	ID         int64      `json:"id" gorm:"primaryKey"`
	LastScanAt *time.Time `json:"last_scan_at"`
	NextScanAt *time.Time `json:"next_scan_at"`

	TotalScans   int64 `json:"total_scans"   gorm:"not null;default:0"`
	TotalEntries int64 `json:"total_entries" gorm:"not null;default:0"`
	TotalErrors  int64 `json:"total_errors"  gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for SchedulerState.
func (SchedulerState) TableName() string { return "scheduler_state" }

// HasRun reports whether at least one automation cycle has completed.
func (s *SchedulerState) HasRun() bool { return s.LastScanAt != nil }

// TimeSinceLastScan returns seconds since the last completed scan, or nil if
// the scheduler never ran.
func (s *SchedulerState) TimeSinceLastScan(now time.Time) *int64 {
	if s.LastScanAt == nil {
		return nil
	}
	secs := int64(now.Sub(*s.LastScanAt).Seconds())
	return &secs
}

// TimeUntilNextScan returns seconds until the next scheduled scan (clamped at
// zero), or nil when no scan is scheduled.
func (s *SchedulerState) TimeUntilNextScan(now time.Time) *int64 {
	if s.NextScanAt == nil {
		return nil
	}
	secs := int64(s.NextScanAt.Sub(now).Seconds())
	if secs < 0 {
		secs = 0
	}
	return &secs
}

// ActivityLog is an append-only, leveled event trail surfaced in the UI.
// Details holds free-form JSON specific to the event type.
type ActivityLog struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Level     string    `json:"level"      gorm:"type:varchar(16);not null;index;check:level IN ('info','warning','error')"`
	EventType string    `json:"event_type" gorm:"type:varchar(32);not null;index"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	Details   []byte    `json:"details"    gorm:"type:json"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for ActivityLog.
func (ActivityLog) TableName() string { return "activity_log" }
