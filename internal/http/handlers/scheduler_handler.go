// Scheduler and automation HTTP handlers.
//
// Endpoints:
//   - GET  /scheduler/status     (counters, pause state, next win check)
//   - POST /scheduler/reset      (zero the counters)
//   - POST /scheduler/pause
//   - POST /scheduler/resume
//   - POST /scheduler/run-cycle  (run one automation cycle now)
//   - POST /scheduler/sync-wins  (refresh the wins list only)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// SchedulerStatusResponse reports scheduler counters and the pending win
// check, if any.
type SchedulerStatusResponse struct {
	State          *domain.SchedulerState `json:"state"`
	Paused         bool                   `json:"paused"`
	NextWinCheckAt *time.Time             `json:"next_win_check_at"`
}

// GetSchedulerStatus returns the scheduler counters, whether the scheduler
// is paused, and the time of the next pending win check.
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	state, paused, nextWin, err := h.scheduler.Status(c.Request.Context())
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, SchedulerStatusResponse{
		State:          state,
		Paused:         paused,
		NextWinCheckAt: nextWin,
	})
}

// ResetScheduler zeroes the cycle counters.
func (h *Handlers) ResetScheduler(c *gin.Context) {
	if err := h.scheduler.Reset(c.Request.Context()); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

// PauseScheduler suspends recurring automation. Already-scheduled one-shot
// win checks still fire.
func (h *Handlers) PauseScheduler(c *gin.Context) {
	h.scheduler.Pause()
	ok(c, http.StatusOK, gin.H{"paused": true})
}

// ResumeScheduler resumes recurring automation.
func (h *Handlers) ResumeScheduler(c *gin.Context) {
	h.scheduler.Resume()
	ok(c, http.StatusOK, gin.H{"paused": false})
}

// RunCycle runs one full automation cycle synchronously and returns the
// per-step results.
func (h *Handlers) RunCycle(c *gin.Context) {
	res := h.runner.RunCycle(c.Request.Context())
	ok(c, http.StatusOK, res)
}

// SyncWins refreshes the wins list from the site without running a full
// cycle.
func (h *Handlers) SyncWins(c *gin.Context) {
	n, err := h.runner.SyncWinsOnly(c.Request.Context())
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"new_wins": n})
}
