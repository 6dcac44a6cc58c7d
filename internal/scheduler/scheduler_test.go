package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleAtFiresOnce(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired int32
	s.ScheduleAt("job", time.Now().Add(30*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})

	if _, ok := s.JobTime("job"); !ok {
		t.Fatal("pending job not visible")
	}

	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("fired = %d, want 1", n)
	}
	if _, ok := s.JobTime("job"); ok {
		t.Error("job still registered after firing")
	}
}

func TestScheduleAtReplacesPendingJob(t *testing.T) {
	s := New()
	defer s.Stop()

	var first, second int32
	s.ScheduleAt("job", time.Now().Add(40*time.Millisecond), func() {
		atomic.AddInt32(&first, 1)
	})
	s.ScheduleAt("job", time.Now().Add(60*time.Millisecond), func() {
		atomic.AddInt32(&second, 1)
	})

	time.Sleep(200 * time.Millisecond)
	if atomic.LoadInt32(&first) != 0 {
		t.Error("replaced job still fired")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Error("replacement job did not fire")
	}
}

func TestScheduleAtPastInstantFiresImmediately(t *testing.T) {
	s := New()
	defer s.Stop()

	done := make(chan struct{})
	s.ScheduleAt("job", time.Now().Add(-time.Hour), func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("past-dated job never fired")
	}
}

func TestCancel(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired int32
	s.ScheduleAt("job", time.Now().Add(30*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})
	if !s.Cancel("job") {
		t.Fatal("Cancel = false for pending job")
	}
	if s.Cancel("job") {
		t.Error("Cancel = true for missing job")
	}

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("cancelled job fired")
	}
}

func TestPauseSkipsRecurringJobs(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs int32
	s.AddEvery(20*time.Millisecond, func() {
		atomic.AddInt32(&runs, 1)
	})
	s.Pause()
	s.Start()

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&runs); n != 0 {
		t.Errorf("runs while paused = %d, want 0", n)
	}

	s.Resume()
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&runs); n == 0 {
		t.Error("no runs after resume")
	}
}

func TestStopCancelsOneShots(t *testing.T) {
	s := New()

	var fired int32
	s.ScheduleAt("job", time.Now().Add(30*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("one-shot fired after Stop")
	}
}
