package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/services"
	"github.com/tbourn/go-gifter-backend/internal/worker"
)

func TestGetSchedulerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	nextWin := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	sched := &stubSchedulerSvc{
		status: func(ctx context.Context) (*domain.SchedulerState, bool, *time.Time, error) {
			return &domain.SchedulerState{ID: 1, TotalScans: 4, TotalEntries: 9}, true, &nextWin, nil
		},
	}
	h := New(stubGiveawaySvc{}, stubSettingsSvc{}, sched, stubGameSvc{}, stubActivitySvc{}, stubRunner{})
	r := gin.New()
	r.GET("/scheduler/status", h.GetSchedulerStatus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status -> %d", w.Code)
	}
	var out SchedulerStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.State == nil || out.State.TotalScans != 4 || out.State.TotalEntries != 9 {
		t.Fatalf("state = %#v", out.State)
	}
	if !out.Paused {
		t.Fatal("paused flag lost")
	}
	if out.NextWinCheckAt == nil || !out.NextWinCheckAt.Equal(nextWin) {
		t.Fatalf("next win check = %v want %v", out.NextWinCheckAt, nextWin)
	}
}

func TestPauseResume_TogglesScheduler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sched := &stubSchedulerSvc{}
	h := New(stubGiveawaySvc{}, stubSettingsSvc{}, sched, stubGameSvc{}, stubActivitySvc{}, stubRunner{})
	r := gin.New()
	r.POST("/scheduler/pause", h.PauseScheduler)
	r.POST("/scheduler/resume", h.ResumeScheduler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/pause", nil))
	if w.Code != http.StatusOK || !sched.paused {
		t.Fatalf("pause -> %d paused=%v", w.Code, sched.paused)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/resume", nil))
	if w.Code != http.StatusOK || sched.paused {
		t.Fatalf("resume -> %d paused=%v", w.Code, sched.paused)
	}
}

func TestResetScheduler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	resets := 0
	sched := &stubSchedulerSvc{reset: func(ctx context.Context) error { resets++; return nil }}
	h := New(stubGiveawaySvc{}, stubSettingsSvc{}, sched, stubGameSvc{}, stubActivitySvc{}, stubRunner{})
	r := gin.New()
	r.POST("/scheduler/reset", h.ResetScheduler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/reset", nil))
	if w.Code != http.StatusNoContent || resets != 1 {
		t.Fatalf("reset -> %d calls=%d", w.Code, resets)
	}
}

func TestRunCycle_ReturnsStepResults(t *testing.T) {
	gin.SetMode(gin.TestMode)

	runner := stubRunner{
		runCycle: func(ctx context.Context) *worker.CycleResult {
			return &worker.CycleResult{
				Scan:    worker.StepResult{Count: 12},
				Wins:    worker.StepResult{Count: 1},
				DLC:     worker.StepResult{Skipped: true, Reason: "dlc_disabled"},
				Entries: worker.EntryResult{Eligible: 3, Entered: 2, PointsSpent: 70},
			}
		},
	}
	h := New(stubGiveawaySvc{}, stubSettingsSvc{}, &stubSchedulerSvc{}, stubGameSvc{}, stubActivitySvc{}, runner)
	r := gin.New()
	r.POST("/scheduler/run-cycle", h.RunCycle)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/run-cycle", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("run-cycle -> %d", w.Code)
	}
	var out worker.CycleResult
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Scan.Count != 12 || !out.DLC.Skipped || out.Entries.Entered != 2 {
		t.Fatalf("cycle result = %#v", out)
	}
}

func TestSyncWins_CountAndAuthError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	runner := stubRunner{syncWins: func(ctx context.Context) (int, error) { return 2, nil }}
	h := New(stubGiveawaySvc{}, stubSettingsSvc{}, &stubSchedulerSvc{}, stubGameSvc{}, stubActivitySvc{}, runner)
	r := gin.New()
	r.POST("/scheduler/sync-wins", h.SyncWins)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/sync-wins", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("sync-wins -> %d", w.Code)
	}
	var out map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out["new_wins"] != 2 {
		t.Fatalf("new_wins = %d", out["new_wins"])
	}

	runner = stubRunner{syncWins: func(ctx context.Context) (int, error) { return 0, services.ErrNotAuthenticated }}
	h = New(stubGiveawaySvc{}, stubSettingsSvc{}, &stubSchedulerSvc{}, stubGameSvc{}, stubActivitySvc{}, runner)
	r = gin.New()
	r.POST("/scheduler/sync-wins", h.SyncWins)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/sync-wins", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated sync-wins -> %d", w.Code)
	}
}
