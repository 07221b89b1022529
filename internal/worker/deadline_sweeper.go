package worker

import (
	"context"
	"time"

	"github.com/examgate/examgate-backend/internal/repository"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/rs/zerolog"
)

// SweepBatchSize caps how many overdue attempts one tick processes.
const SweepBatchSize = 100

// DeadlineSweeper periodically finalizes overdue attempts so a student who
// closed their browser still gets auto-submitted near the deadline. Lazy
// expiry on read handles the common case; the sweeper is the backstop.
type DeadlineSweeper struct {
	attemptRepo    *repository.AttemptRepository
	attemptService *service.AttemptService
	interval       time.Duration
	log            zerolog.Logger
}

// NewDeadlineSweeper creates a new DeadlineSweeper.
func NewDeadlineSweeper(
	attemptRepo *repository.AttemptRepository,
	attemptService *service.AttemptService,
	interval time.Duration,
	log zerolog.Logger,
) *DeadlineSweeper {
	return &DeadlineSweeper{
		attemptRepo:    attemptRepo,
		attemptService: attemptService,
		interval:       interval,
		log:            log.With().Str("component", "deadline_sweeper").Logger(),
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *DeadlineSweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("DeadlineSweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("DeadlineSweeper stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineSweeper) sweep(ctx context.Context) {
	overdue, err := w.attemptRepo.ListOverdue(ctx, time.Now(), SweepBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("List overdue attempts failed")
		return
	}
	if len(overdue) == 0 {
		return
	}

	expired := 0
	for i := range overdue {
		// ExpireIfDue re-checks the config; attempts without auto-submit
		// stay open and will show up again next tick, which is fine.
		_, closed, err := w.attemptService.ExpireIfDue(ctx, overdue[i].ID)
		if err != nil {
			w.log.Error().
				Err(err).
				Str("attempt_id", overdue[i].ID.String()).
				Msg("Expiry failed")
			continue
		}
		if closed {
			expired++
		}
	}

	if expired > 0 {
		w.log.Info().
			Int("expired", expired).
			Int("overdue", len(overdue)).
			Msg("Sweep finalized overdue attempts")
	}
}
