// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as correlation IDs, logging/redaction, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tbourn/go-gifter-backend/internal/config"
	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/events"
	"github.com/tbourn/go-gifter-backend/internal/http/handlers"
	"github.com/tbourn/go-gifter-backend/internal/http/middleware"
	"github.com/tbourn/go-gifter-backend/internal/repo"
	"github.com/tbourn/go-gifter-backend/internal/scheduler"
	"github.com/tbourn/go-gifter-backend/internal/services"
	"github.com/tbourn/go-gifter-backend/internal/steamgifts"
	"github.com/tbourn/go-gifter-backend/internal/worker"
)

// giveawayRepoShim adapts the repository free functions to the repo
// interfaces expected by the giveaway, scheduler, and sweep components. This
// keeps services decoupled from the concrete repo package while reusing
// existing functions.
type giveawayRepoShim struct{}

// UpsertGiveaway proxies repo.UpsertGiveaway.
func (giveawayRepoShim) UpsertGiveaway(ctx context.Context, db *gorm.DB, ga *domain.Giveaway) (*domain.Giveaway, error) {
	return repo.UpsertGiveaway(ctx, db, ga)
}

// GetGiveaway proxies repo.GetGiveaway.
func (giveawayRepoShim) GetGiveaway(ctx context.Context, db *gorm.DB, id int64) (*domain.Giveaway, error) {
	return repo.GetGiveaway(ctx, db, id)
}

// GetGiveawayByCode proxies repo.GetGiveawayByCode.
func (giveawayRepoShim) GetGiveawayByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Giveaway, error) {
	return repo.GetGiveawayByCode(ctx, db, code)
}

// ListGiveawaysPage proxies repo.ListGiveawaysPage (pagination support).
func (giveawayRepoShim) ListGiveawaysPage(ctx context.Context, db *gorm.DB, f repo.ListFilter, offset, limit int) ([]domain.Giveaway, error) {
	return repo.ListGiveawaysPage(ctx, db, f, offset, limit)
}

// CountGiveaways proxies repo.CountGiveaways (pagination support).
func (giveawayRepoShim) CountGiveaways(ctx context.Context, db *gorm.DB, f repo.ListFilter) (int64, error) {
	return repo.CountGiveaways(ctx, db, f)
}

// EligibleGiveaways proxies repo.EligibleGiveaways.
func (giveawayRepoShim) EligibleGiveaways(ctx context.Context, db *gorm.DB, f repo.EligibilityFilter) ([]domain.Giveaway, error) {
	return repo.EligibleGiveaways(ctx, db, f)
}

// MarkEntered proxies repo.MarkEntered.
func (giveawayRepoShim) MarkEntered(ctx context.Context, db *gorm.DB, id int64, at time.Time) error {
	return repo.MarkEntered(ctx, db, id, at)
}

// ClearEntered proxies repo.ClearEntered.
func (giveawayRepoShim) ClearEntered(ctx context.Context, db *gorm.DB, id int64) error {
	return repo.ClearEntered(ctx, db, id)
}

// MarkWon proxies repo.MarkWon.
func (giveawayRepoShim) MarkWon(ctx context.Context, db *gorm.DB, id int64, at time.Time) error {
	return repo.MarkWon(ctx, db, id, at)
}

// SetHidden proxies repo.SetHidden.
func (giveawayRepoShim) SetHidden(ctx context.Context, db *gorm.DB, id int64, hidden bool) error {
	return repo.SetHidden(ctx, db, id, hidden)
}

// SetSafety proxies repo.SetSafety.
func (giveawayRepoShim) SetSafety(ctx context.Context, db *gorm.DB, id int64, safe bool, score int) error {
	return repo.SetSafety(ctx, db, id, safe, score)
}

// UncheckedSafety proxies repo.UncheckedSafety.
func (giveawayRepoShim) UncheckedSafety(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Giveaway, error) {
	return repo.UncheckedSafety(ctx, db, now, limit)
}

// NextExpiringEntered proxies repo.NextExpiringEntered (win-check scheduling).
func (giveawayRepoShim) NextExpiringEntered(ctx context.Context, db *gorm.DB, now time.Time) (*domain.Giveaway, error) {
	return repo.NextExpiringEntered(ctx, db, now)
}

// GiveawaysStats proxies repo.GiveawaysStats.
func (giveawayRepoShim) GiveawaysStats(ctx context.Context, db *gorm.DB, now time.Time) (*repo.GiveawayStats, error) {
	return repo.GiveawaysStats(ctx, db, now)
}

// entryRepoShim adapts the entry repository free functions to the
// services.EntryRepo interface.
type entryRepoShim struct{}

// CreateEntry proxies repo.CreateEntry.
func (entryRepoShim) CreateEntry(ctx context.Context, db *gorm.DB, e *domain.Entry) (*domain.Entry, error) {
	return repo.CreateEntry(ctx, db, e)
}

// GetEntryByGiveaway proxies repo.GetEntryByGiveaway.
func (entryRepoShim) GetEntryByGiveaway(ctx context.Context, db *gorm.DB, giveawayID int64) (*domain.Entry, error) {
	return repo.GetEntryByGiveaway(ctx, db, giveawayID)
}

// DeleteEntry proxies repo.DeleteEntry.
func (entryRepoShim) DeleteEntry(ctx context.Context, db *gorm.DB, giveawayID int64) error {
	return repo.DeleteEntry(ctx, db, giveawayID)
}

// ListEntriesPage proxies repo.ListEntriesPage.
func (entryRepoShim) ListEntriesPage(ctx context.Context, db *gorm.DB, status, entryType string, offset, limit int) ([]domain.Entry, error) {
	return repo.ListEntriesPage(ctx, db, status, entryType, offset, limit)
}

// CountEntries proxies repo.CountEntries.
func (entryRepoShim) CountEntries(ctx context.Context, db *gorm.DB, status, entryType string) (int64, error) {
	return repo.CountEntries(ctx, db, status, entryType)
}

// EntriesStats proxies repo.EntriesStats.
func (entryRepoShim) EntriesStats(ctx context.Context, db *gorm.DB) (*repo.EntryStats, error) {
	return repo.EntriesStats(ctx, db)
}

// settingsRepoShim adapts the settings repository free functions to the
// services.SettingsRepo and services.SchedulerStateRepo interfaces.
type settingsRepoShim struct{}

// GetSettings proxies repo.GetSettings.
func (settingsRepoShim) GetSettings(ctx context.Context, db *gorm.DB) (*domain.Settings, error) {
	return repo.GetSettings(ctx, db)
}

// UpdateSettings proxies repo.UpdateSettings.
func (settingsRepoShim) UpdateSettings(ctx context.Context, db *gorm.DB, updates map[string]any) (*domain.Settings, error) {
	return repo.UpdateSettings(ctx, db, updates)
}

// GetSchedulerState proxies repo.GetSchedulerState.
func (settingsRepoShim) GetSchedulerState(ctx context.Context, db *gorm.DB) (*domain.SchedulerState, error) {
	return repo.GetSchedulerState(ctx, db)
}

// RecordScan proxies repo.RecordScan.
func (settingsRepoShim) RecordScan(ctx context.Context, db *gorm.DB, at, next time.Time, entries, errs int) error {
	return repo.RecordScan(ctx, db, at, next, entries, errs)
}

// ResetSchedulerState proxies repo.ResetSchedulerState.
func (settingsRepoShim) ResetSchedulerState(ctx context.Context, db *gorm.DB) error {
	return repo.ResetSchedulerState(ctx, db)
}

// gameRepoShim adapts the game repository free functions to the
// services.GameRepo interface.
type gameRepoShim struct{}

// GetGame proxies repo.GetGame.
func (gameRepoShim) GetGame(ctx context.Context, db *gorm.DB, id int64) (*domain.Game, error) {
	return repo.GetGame(ctx, db, id)
}

// SaveGame proxies repo.SaveGame.
func (gameRepoShim) SaveGame(ctx context.Context, db *gorm.DB, g *domain.Game) (*domain.Game, error) {
	return repo.SaveGame(ctx, db, g)
}

// SearchGames proxies repo.SearchGames.
func (gameRepoShim) SearchGames(ctx context.Context, db *gorm.DB, query string, limit int) ([]domain.Game, error) {
	return repo.SearchGames(ctx, db, query, limit)
}

// StaleGames proxies repo.StaleGames.
func (gameRepoShim) StaleGames(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Game, error) {
	return repo.StaleGames(ctx, db, cutoff, limit)
}

// activityRepoShim adapts the activity repository free functions to the
// services.ActivityRepo interface.
type activityRepoShim struct{}

// CreateActivity proxies repo.CreateActivity.
func (activityRepoShim) CreateActivity(ctx context.Context, db *gorm.DB, a *domain.ActivityLog) (*domain.ActivityLog, error) {
	return repo.CreateActivity(ctx, db, a)
}

// ListActivityPage proxies repo.ListActivityPage.
func (activityRepoShim) ListActivityPage(ctx context.Context, db *gorm.DB, level, eventType string, offset, limit int) ([]domain.ActivityLog, error) {
	return repo.ListActivityPage(ctx, db, level, eventType, offset, limit)
}

// CountActivity proxies repo.CountActivity.
func (activityRepoShim) CountActivity(ctx context.Context, db *gorm.DB, level, eventType string) (int64, error) {
	return repo.CountActivity(ctx, db, level, eventType)
}

// Deps holds the application components assembled during route registration.
// The composition root uses them to wire the background jobs (automation
// cycle, safety sweep, initial win check) onto the cron scheduler.
type Deps struct {
	Giveaways *services.GiveawayService
	Settings  *services.SettingsService
	Scheduler *services.SchedulerService
	Games     *services.GameService
	Notifier  *services.NotificationService
	Runner    *worker.Runner
	Sweeper   *worker.Sweeper
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, builds the application services on top of db, and returns the
// assembled components for background wiring.
//
// Middleware order matters:
//  1. RequestID: generate/propagate correlation id
//  2. RedactingLogger: structured logs with PII and session scrubbing
//  3. Recovery: capture panics after logger
//  4. Body size limiter
//  5. Metrics
//  6. Rate limiter (per IP)
//  7. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, sched *scheduler.Scheduler, hub *events.Hub, steamAPI services.SteamAPI, cfg config.Config) *Deps {
	r.HandleMethodNotAllowed = true

	// 1) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 2) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 3) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 4) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Compress JSON responses. The SSE stream and Prometheus scrape are
	// excluded: both manage their own framing.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{cfg.APIBasePath + "/events", "/metrics"})))

	// 6) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 7) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/hub
	notifier := services.NewNotificationService(db, activityRepoShim{}, hub)
	settingsSvc := services.NewSettingsService(db, settingsRepoShim{})
	gameSvc := services.NewGameService(db, gameRepoShim{}, steamAPI)

	giveawaySvc := services.NewGiveawayService(db, giveawayRepoShim{}, entryRepoShim{}, settingsRepoShim{})
	giveawaySvc.Games = gameSvc
	giveawaySvc.Notifier = notifier
	giveawaySvc.NewClient = func(phpSessID, userAgent string) services.SiteClient {
		return steamgifts.NewClient(phpSessID, userAgent,
			steamgifts.WithHTTPClient(&http.Client{Timeout: cfg.Automation.SiteTimeout}))
	}

	schedulerSvc := services.NewSchedulerService(db, sched, giveawayRepoShim{}, settingsRepoShim{})
	schedulerSvc.SyncWins = giveawaySvc.SyncWins
	schedulerSvc.Notifier = notifier
	giveawaySvc.OnEntered = schedulerSvc.UpdateForNewEntry

	runner := &worker.Runner{
		DB:        db,
		Settings:  settingsRepoShim{},
		Giveaways: giveawaySvc,
		Scheduler: schedulerSvc,
		Notifier:  notifier,
	}
	sweeper := &worker.Sweeper{
		DB:        db,
		Settings:  settingsRepoShim{},
		Repo:      giveawayRepoShim{},
		Giveaways: giveawaySvc,
	}

	h := handlers.New(giveawaySvc, settingsSvc, schedulerSvc, gameSvc, notifier, runner)
	stream := handlers.NewStreamHandler(hub)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Giveaways
		api.GET("/giveaways", h.ListGiveaways)
		api.GET("/giveaways/:id", h.GetGiveaway)
		api.POST("/giveaways/:id/enter", h.EnterGiveaway)
		api.DELETE("/giveaways/:id/entry", h.RemoveEntry)
		api.POST("/giveaways/:id/safety-check", h.CheckSafety)
		api.POST("/giveaways/:id/hide", h.HideGiveaway)
		api.POST("/giveaways/:id/unhide", h.UnhideGiveaway)
		api.POST("/giveaways/:id/comment", h.PostComment)

		// Entries and dashboard
		api.GET("/entries", h.ListEntries)
		api.GET("/stats", h.GetStats)
		api.GET("/user", h.GetUser)
		api.GET("/points", h.GetPoints)
		api.GET("/activity", h.ListActivity)
		api.GET("/events", stream.Stream)

		// Games
		api.GET("/games", h.ListGames)
		api.GET("/games/:id", h.GetGame)
		api.POST("/games/refresh-stale", h.RefreshStaleGames)

		// Settings
		api.GET("/settings", h.GetSettings)
		api.PATCH("/settings", h.UpdateSettings)
		api.PUT("/settings/credentials", h.SetCredentials)
		api.DELETE("/settings/credentials", h.ClearCredentials)

		// Scheduler and automation
		api.GET("/scheduler/status", h.GetSchedulerStatus)
		api.POST("/scheduler/reset", h.ResetScheduler)
		api.POST("/scheduler/pause", h.PauseScheduler)
		api.POST("/scheduler/resume", h.ResumeScheduler)
		api.POST("/scheduler/run-cycle", h.RunCycle)
		api.POST("/scheduler/sync-wins", h.SyncWins)
	}

	return &Deps{
		Giveaways: giveawaySvc,
		Settings:  settingsSvc,
		Scheduler: schedulerSvc,
		Games:     gameSvc,
		Notifier:  notifier,
		Runner:    runner,
		Sweeper:   sweeper,
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
