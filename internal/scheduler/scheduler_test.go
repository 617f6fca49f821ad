package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T, job Job) *Scheduler {
	t.Helper()
	s, err := New("0 3 * * *", time.UTC, job, time.Minute, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestRunIfDueOncePerDay(t *testing.T) {
	runs := 0
	s := newTestScheduler(t, func(ctx context.Context) error {
		runs++
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("job context should carry the timeout")
		}
		return nil
	})

	day1 := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	steps := []struct {
		at   time.Time
		want bool
	}{
		{day1.Add(-time.Minute), false},
		{day1, true},
		{day1.Add(30 * time.Second), false},
		{day1.Add(time.Minute), false},
		{day1.Add(24 * time.Hour), true},
	}
	for i, step := range steps {
		if got := s.runIfDue(step.at); got != step.want {
			t.Fatalf("step %d (%s): fired=%v, want %v", i, step.at, got, step.want)
		}
	}
	if runs != 2 {
		t.Fatalf("expected 2 runs, got %d", runs)
	}
}

func TestRunIfDueUsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	runs := 0
	s, err := New("0 3 * * *", tokyo, func(context.Context) error { runs++; return nil }, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	// 18:00 UTC is 03:00 the next day in Tokyo.
	if !s.runIfDue(time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected job to fire at 03:00 Tokyo time")
	}
	if s.runIfDue(time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("03:00 UTC is not 03:00 in Tokyo")
	}
	if runs != 1 {
		t.Fatalf("expected 1 run, got %d", runs)
	}
}

func TestJobFailureAndPanicAreContained(t *testing.T) {
	calls := 0
	s := newTestScheduler(t, func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("disk full")
		}
		panic("unexpected")
	})
	day := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	if !s.runIfDue(day) {
		t.Fatalf("expected first run")
	}
	if !s.runIfDue(day.Add(24 * time.Hour)) {
		t.Fatalf("expected second run despite previous failure")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("bad", time.UTC, func(context.Context) error { return nil }, 0, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for invalid expression")
	}
	if _, err := New("0 3 * * *", time.UTC, nil, 0, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for nil job")
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(t, func(context.Context) error { return nil })
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
