package exam

import (
	"testing"
	"time"

	"github.com/examgate/examgate-backend/internal/model"
)

func clockAttempt(duration time.Duration) (*model.Attempt, time.Time) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &model.Attempt{
		StartedAt:  start,
		DeadlineAt: start.Add(duration),
	}, start
}

func TestRemaining(t *testing.T) {
	attempt, start := clockAttempt(60 * time.Second)

	tests := []struct {
		name string
		now  time.Time
		want float64
	}{
		{name: "at start", now: start, want: 60},
		{name: "halfway", now: start.Add(30 * time.Second), want: 30},
		{name: "at deadline", now: start.Add(60 * time.Second), want: 0},
		{name: "past deadline clamps to zero", now: start.Add(2 * time.Minute), want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Remaining(attempt, tc.now); got != tc.want {
				t.Errorf("Remaining = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	attempt, start := clockAttempt(60 * time.Second)

	if IsExpired(attempt, start.Add(59*time.Second)) {
		t.Error("expired one second before deadline")
	}
	if !IsExpired(attempt, start.Add(60*time.Second)) {
		t.Error("not expired exactly at deadline")
	}
	if !IsExpired(attempt, start.Add(61*time.Second)) {
		t.Error("not expired past deadline")
	}
}
