// Command server runs the SteamGifts automation backend: the REST API, the
// recurring automation cycle, the trap-safety sweep, and the adaptive win
// checker, all in one process backed by a local SQLite database.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-gifter-backend/internal/config"
	"github.com/tbourn/go-gifter-backend/internal/events"
	httpapi "github.com/tbourn/go-gifter-backend/internal/http"
	"github.com/tbourn/go-gifter-backend/internal/repo"
	"github.com/tbourn/go-gifter-backend/internal/scheduler"
	"github.com/tbourn/go-gifter-backend/internal/steam"
	"github.com/tbourn/go-gifter-backend/internal/sysutil"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if n, err := repo.CountGames(context.Background(), db); err == nil {
		log.Info().Str("path", cfg.DBPath).Int64("cached_games", n).Msg("database ready")
	}

	steamAPI := steam.NewClient(
		steam.NewWindowLimiter(cfg.Steam.RateCalls, cfg.Steam.RateWindow),
		cfg.Steam.MaxRetries,
		steam.WithHTTPClient(&http.Client{Timeout: cfg.Steam.Timeout}),
	)

	hub := events.NewHub()
	sched := scheduler.New()

	r := gin.New()
	deps := httpapi.RegisterRoutes(r, db, sched, hub, steamAPI, cfg)

	// Background jobs. The automation cycle re-reads the interval setting on
	// each run; the cron cadence is only the upper bound on how often a cycle
	// can start, so it tracks the smallest useful interval.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.AddEvery(time.Minute, func() {
		st, err := deps.Settings.Get(ctx)
		if err != nil {
			log.Error().Err(err).Msg("read settings for cycle gate")
			return
		}
		if !st.AutomationEnabled {
			return
		}
		if due(st.LastSyncedAt, time.Duration(st.ScanIntervalMinutes)*time.Minute) {
			deps.Runner.RunCycle(ctx)
		}
	})
	sched.AddEvery(time.Duration(cfg.Automation.SafetySweepMinutes)*time.Minute, func() {
		deps.Sweeper.Run(ctx)
	})
	sched.AddEvery(24*time.Hour, func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Automation.ActivityRetentionDays)
		if n, err := repo.PruneActivity(ctx, db, cutoff); err != nil {
			log.Error().Err(err).Msg("prune activity log")
		} else if n > 0 {
			log.Info().Int64("pruned", n).Msg("activity log retention")
		}
	})
	sched.Start()

	// Resume the win-check chain for entries recorded before this start.
	if err := deps.Scheduler.ScheduleNextWinCheck(ctx); err != nil {
		log.Warn().Err(err).Msg("initial win check scheduling")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	log.Info().Msg("bye")
}

// due reports whether enough time has passed since the last sync for another
// automation cycle to start. A nil last sync means a cycle never ran.
func due(last *time.Time, interval time.Duration) bool {
	if last == nil {
		return true
	}
	return time.Since(*last) >= interval
}
