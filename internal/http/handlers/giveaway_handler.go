// Giveaway HTTP handlers.
//
// This file exposes REST endpoints for giveaway resources:
//   - GET    /giveaways                   (list, filtered + paginated)
//   - GET    /giveaways/{id}              (detail)
//   - POST   /giveaways/{id}/enter        (manual entry)
//   - DELETE /giveaways/{id}/entry        (withdraw entry)
//   - POST   /giveaways/{id}/safety-check (run the trap heuristic now)
//   - POST   /giveaways/{id}/hide         (hide locally + on site)
//   - POST   /giveaways/{id}/unhide
//   - POST   /giveaways/{id}/comment
//   - GET    /entries                     (attempt history)
//   - GET    /stats                       (dashboard aggregates)
//   - GET    /user                        (live points + username)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate service errors into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/repo"
	"github.com/tbourn/go-gifter-backend/internal/services"
	"github.com/tbourn/go-gifter-backend/internal/steamgifts"
	"github.com/tbourn/go-gifter-backend/internal/utils"
	"github.com/tbourn/go-gifter-backend/internal/worker"
)

//
// Service contracts (context-aware)
//

// GiveawayService defines the giveaway operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type GiveawayService interface {
	Get(ctx context.Context, id int64) (*domain.Giveaway, error)
	List(ctx context.Context, f repo.ListFilter, page, pageSize int) ([]domain.Giveaway, int64, error)
	Enter(ctx context.Context, code, entryType string) (*domain.Entry, error)
	EnterWithSafetyCheck(ctx context.Context, code, entryType string) (*domain.Entry, error)
	RemoveEntry(ctx context.Context, giveawayID int64) error
	Hide(ctx context.Context, id int64) error
	Unhide(ctx context.Context, id int64) error
	CheckSafety(ctx context.Context, id int64) (*steamgifts.SafetyResult, error)
	PostComment(ctx context.Context, id int64, text string) (bool, error)
	ListEntries(ctx context.Context, status, entryType string, page, pageSize int) ([]domain.Entry, int64, error)
	Stats(ctx context.Context) (*repo.GiveawayStats, *repo.EntryStats, error)
	CurrentPoints(ctx context.Context) (int, error)
	UserInfo(ctx context.Context) (*steamgifts.UserInfo, error)
}

// SettingsService defines the configuration operations consumed by handlers.
type SettingsService interface {
	Get(ctx context.Context) (*domain.Settings, error)
	Update(ctx context.Context, u services.SettingsUpdate) (*domain.Settings, error)
	SetCredentials(ctx context.Context, phpSessID, userAgent string) (*domain.Settings, error)
	ClearCredentials(ctx context.Context) (*domain.Settings, error)
}

// SchedulerService defines the scheduler state operations consumed by handlers.
type SchedulerService interface {
	Status(ctx context.Context) (*domain.SchedulerState, bool, *time.Time, error)
	Reset(ctx context.Context) error
	Pause()
	Resume()
}

// GameService defines the catalog operations consumed by handlers.
type GameService interface {
	GetOrFetch(ctx context.Context, appID int64) (*domain.Game, error)
	Refresh(ctx context.Context, appID int64) (*domain.Game, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Game, error)
	RefreshStale(ctx context.Context, limit int) (int, error)
}

// ActivityService defines the activity trail reads consumed by handlers.
type ActivityService interface {
	List(ctx context.Context, level, eventType string, page, pageSize int) ([]domain.ActivityLog, int64, error)
}

// CycleRunner defines the manual automation triggers consumed by handlers.
type CycleRunner interface {
	RunCycle(ctx context.Context) *worker.CycleResult
	SyncWinsOnly(ctx context.Context) (int, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for giveaways, settings, scheduling,
// games, and the activity trail. It depends on abstract service interfaces to
// keep transport concerns separate from business logic.
type Handlers struct {
	giveaways GiveawayService
	settings  SettingsService
	scheduler SchedulerService
	games     GameService
	activity  ActivityService
	runner    CycleRunner
}

// New constructs and returns a Handlers instance bound to the given services.
func New(g GiveawayService, st SettingsService, sch SchedulerService, games GameService, act ActivityService, runner CycleRunner) *Handlers {
	return &Handlers{giveaways: g, settings: st, scheduler: sch, games: games, activity: act, runner: runner}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListGiveawaysResponse wraps a page of giveaways and pagination information.
type ListGiveawaysResponse struct {
	Giveaways  []domain.Giveaway `json:"giveaways"`
	Pagination Pagination        `json:"pagination"`
}

// ListEntriesResponse wraps a page of entry records.
type ListEntriesResponse struct {
	Entries    []domain.Entry `json:"entries"`
	Pagination Pagination     `json:"pagination"`
}

// StatsResponse bundles the dashboard aggregates.
type StatsResponse struct {
	Giveaways *repo.GiveawayStats `json:"giveaways"`
	Entries   *repo.EntryStats    `json:"entries"`
}

// CommentRequest is the JSON payload for posting a giveaway comment.
type CommentRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// pageMeta builds the pagination envelope for a list response.
func pageMeta(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// idParam parses the numeric :id path parameter.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// boolFilter parses an optional tri-state boolean query param.
func boolFilter(c *gin.Context, name string) *bool {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	b := v == "true" || v == "1"
	return &b
}

// failFromService translates service errors into the HTTP error taxonomy.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrGiveawayNotFound),
		errors.Is(err, services.ErrEntryNotFound),
		errors.Is(err, services.ErrGameNotFound),
		errors.Is(err, steamgifts.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrNotAuthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeNotAuthenticated, "no SteamGifts session configured")
	case errors.Is(err, steamgifts.ErrSessionExpired):
		fail(c, http.StatusUnauthorized, ErrCodeSessionExpired, "SteamGifts session expired")
	case errors.Is(err, services.ErrGiveawayEnded):
		fail(c, http.StatusConflict, ErrCodeGiveawayEnded, "giveaway already ended")
	case errors.Is(err, services.ErrInvalidSettings):
		fail(c, http.StatusBadRequest, ErrCodeInvalidSettings, err.Error())
	default:
		var siteErr *steamgifts.SiteError
		if errors.As(err, &siteErr) {
			if siteErr.Status == http.StatusTooManyRequests {
				fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "SteamGifts rate limit hit")
				return
			}
			fail(c, http.StatusBadGateway, ErrCodeSiteError, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// ListGiveaways returns a filtered, paginated page of cached giveaways.
//
// Query params: entered, hidden, won (tri-state booleans), active (true
// keeps only currently running giveaways), search (substring match on the
// game name), page, page_size.
func (h *Handlers) ListGiveaways(c *gin.Context) {
	page, pageSize := clampPagination(c)

	f := repo.ListFilter{
		Entered: boolFilter(c, "entered"),
		Hidden:  boolFilter(c, "hidden"),
		Won:     boolFilter(c, "won"),
		Search:  strings.TrimSpace(c.Query("search")),
	}
	if c.Query("active") == "true" {
		now := time.Now().UTC()
		f.ActiveAt = &now
	}

	items, total, err := h.giveaways.List(c.Request.Context(), f, page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ListGiveawaysResponse{
		Giveaways:  items,
		Pagination: pageMeta(page, pageSize, total),
	})
}

// GetGiveaway returns one giveaway by ID, with its cached game metadata.
func (h *Handlers) GetGiveaway(c *gin.Context) {
	id, good := idParam(c)
	if !good {
		return
	}
	ga, err := h.giveaways.Get(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ga)
}

// EnterGiveaway submits a manual entry for the giveaway. Repeat calls return
// the recorded entry unchanged.
func (h *Handlers) EnterGiveaway(c *gin.Context) {
	id, good := idParam(c)
	if !good {
		return
	}
	ga, err := h.giveaways.Get(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}
	entry, err := h.giveaways.Enter(c.Request.Context(), ga.Code, domain.EntryTypeManual)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, entry)
}

// RemoveEntry withdraws the recorded entry for the giveaway.
func (h *Handlers) RemoveEntry(c *gin.Context) {
	id, good := idParam(c)
	if !good {
		return
	}
	if err := h.giveaways.RemoveEntry(c.Request.Context(), id); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

// CheckSafety runs the trap heuristic for the giveaway now and returns the
// verdict.
func (h *Handlers) CheckSafety(c *gin.Context) {
	id, good := idParam(c)
	if !good {
		return
	}
	res, err := h.giveaways.CheckSafety(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// HideGiveaway hides the giveaway locally and, when the game is known, on
// the site.
func (h *Handlers) HideGiveaway(c *gin.Context) {
	id, good := idParam(c)
	if !good {
		return
	}
	if err := h.giveaways.Hide(c.Request.Context(), id); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

// UnhideGiveaway clears the local hidden flag.
func (h *Handlers) UnhideGiveaway(c *gin.Context) {
	id, good := idParam(c)
	if !good {
		return
	}
	if err := h.giveaways.Unhide(c.Request.Context(), id); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

// PostComment posts a comment on the giveaway's page.
func (h *Handlers) PostComment(c *gin.Context) {
	id, good := idParam(c)
	if !good {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "comment text required")
		return
	}
	posted, err := h.giveaways.PostComment(c.Request.Context(), id, req.Text)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"posted": posted})
}

// ListEntries returns the attempt history, newest first.
//
// Query params: status (success/failed/pending), type (manual/auto/wishlist),
// page, page_size.
func (h *Handlers) ListEntries(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.giveaways.ListEntries(c.Request.Context(),
		c.Query("status"), c.Query("type"), page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ListEntriesResponse{
		Entries:    items,
		Pagination: pageMeta(page, pageSize, total),
	})
}

// GetStats returns the dashboard aggregates over giveaways and entries.
func (h *Handlers) GetStats(c *gin.Context) {
	gs, es, err := h.giveaways.Stats(c.Request.Context())
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, StatsResponse{Giveaways: gs, Entries: es})
}

// GetUser returns the authenticated site identity and live points balance.
func (h *Handlers) GetUser(c *gin.Context) {
	info, err := h.giveaways.UserInfo(c.Request.Context())
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, info)
}

// GetPoints returns the live points balance only.
func (h *Handlers) GetPoints(c *gin.Context) {
	points, err := h.giveaways.CurrentPoints(c.Request.Context())
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"points": points})
}
