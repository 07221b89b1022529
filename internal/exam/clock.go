package exam

import (
	"time"

	"github.com/examgate/examgate-backend/internal/model"
)

// Remaining returns the seconds left on an attempt, clamped to zero. The
// attempt's DeadlineAt is the single authority; client countdowns are
// advisory only.
func Remaining(attempt *model.Attempt, now time.Time) float64 {
	remaining := attempt.DeadlineAt.Sub(now).Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports whether now is at or past the attempt's deadline.
func IsExpired(attempt *model.Attempt, now time.Time) bool {
	return !now.Before(attempt.DeadlineAt)
}
