package storage

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestDelayedScheduleWaitsForFirstRun(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := delayedSchedule{
		first: start.Add(30 * time.Minute),
		every: cron.Every(10 * time.Minute),
	}

	if got := s.Next(start); !got.Equal(s.first) {
		t.Fatalf("next from start: got %s, want %s", got, s.first)
	}
	if got := s.Next(start.Add(29 * time.Minute)); !got.Equal(s.first) {
		t.Fatalf("next before first run: got %s, want %s", got, s.first)
	}

	after := s.first
	if got, want := s.Next(after), after.Add(10*time.Minute); !got.Equal(want) {
		t.Fatalf("next after first run: got %s, want %s", got, want)
	}
}
