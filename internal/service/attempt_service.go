package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/event"
	"github.com/examgate/examgate-backend/internal/exam"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrNotAttemptOwner = errors.New("attempt belongs to another student")
	ErrAttemptClosed   = errors.New("attempt is no longer in progress")
	ErrAttemptExpired  = errors.New("attempt deadline has passed")
	ErrUnknownQuestion = errors.New("question is not part of this attempt")
	ErrScoringFailed   = errors.New("scoring failed, attempt flagged for review")
)

// DuplicateActiveAttemptError is returned when a student tries to start a
// second attempt against a config they already have one in progress for.
// Handlers surface ExistingAttemptID so clients can resume instead.
type DuplicateActiveAttemptError struct {
	ExistingAttemptID uuid.UUID
}

func (e *DuplicateActiveAttemptError) Error() string {
	return fmt.Sprintf("active attempt %s already exists", e.ExistingAttemptID)
}

// AttemptState is the full reconnect-safe view of one attempt.
// RemainingSeconds is nil when the config hides the clock from clients.
type AttemptState struct {
	Attempt          *model.Attempt            `json:"attempt"`
	Questions        []model.SanitizedQuestion `json:"questions"`
	RemainingSeconds *float64                  `json:"remaining_seconds,omitempty"`
	Violations       []model.ViolationEvent    `json:"violations"`
}

// AttemptService owns the attempt state machine: start, answer writes,
// violation handling, and the single terminal transition that produces the
// immutable score. Per-attempt mutexes serialize transitions in-process;
// SQL status predicates guard against other processes.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	configRepo  *repository.ExamConfigRepository
	rdb         *redis.Client
	publisher   *event.Publisher
	log         zerolog.Logger
	locks       sync.Map // attempt uuid -> *sync.Mutex
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	configRepo *repository.ExamConfigRepository,
	rdb *redis.Client,
	publisher *event.Publisher,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		configRepo:  configRepo,
		rdb:         rdb,
		publisher:   publisher,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

func (s *AttemptService) lock(attemptID uuid.UUID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(attemptID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Start creates a new attempt against a published config: builds the frozen
// shuffle snapshot, fixes the deadline, and returns the sanitized paper in
// the attempt's order. At most one in_progress attempt per (student, config)
// is allowed; the partial unique index backstops concurrent starts.
func (s *AttemptService) Start(ctx context.Context, studentID string, examConfigID uuid.UUID) (*model.Attempt, []model.SanitizedQuestion, error) {
	cfg, err := s.configRepo.GetByID(ctx, examConfigID)
	if err != nil {
		return nil, nil, fmt.Errorf("get exam config: %w", err)
	}
	if cfg.Status != model.ConfigStatusPublished {
		return nil, nil, ErrConfigNotPublished
	}
	if len(cfg.QuestionIDs) == 0 {
		return nil, nil, ErrNoQuestions
	}

	if existing, err := s.attemptRepo.FindActive(ctx, studentID, examConfigID); err == nil {
		return nil, nil, &DuplicateActiveAttemptError{ExistingAttemptID: existing.ID}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("find active attempt: %w", err)
	}

	// The frozen version row, not the live pool, is what the attempt pins.
	ver, err := s.configRepo.GetVersion(ctx, examConfigID, cfg.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("get config version %d: %w", cfg.Version, err)
	}
	if len(ver.Questions) == 0 {
		return nil, nil, ErrNoQuestions
	}

	now := time.Now().UTC()
	attemptID := uuid.New()
	attempt := &model.Attempt{
		ID:            attemptID,
		ExamConfigID:  examConfigID,
		ConfigVersion: cfg.Version,
		StudentID:     studentID,
		Snapshot:      exam.PrepareSnapshot(cfg.Security, ver.Questions, exam.SeedFromAttemptID(attemptID)),
		StartedAt:     now,
		DeadlineAt:    now.Add(time.Duration(cfg.DurationSeconds) * time.Second),
		Answers:       map[uuid.UUID]string{},
		Status:        model.AttemptStatusInProgress,
	}

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if repository.IsUniqueViolation(err) {
			// Lost the race to a concurrent start; surface the winner.
			if existing, ferr := s.attemptRepo.FindActive(ctx, studentID, examConfigID); ferr == nil {
				return nil, nil, &DuplicateActiveAttemptError{ExistingAttemptID: existing.ID}
			}
		}
		return nil, nil, fmt.Errorf("create attempt: %w", err)
	}

	s.mirrorStart(ctx, attempt)

	paper, err := exam.SanitizeQuestions(attempt.Snapshot, ver.Questions)
	if err != nil {
		return nil, nil, fmt.Errorf("build paper: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("student_id", studentID).
		Str("exam_config_id", examConfigID.String()).
		Int("config_version", cfg.Version).
		Time("deadline_at", attempt.DeadlineAt).
		Msg("Attempt started")

	return attempt, paper, nil
}

// mirrorStart caches deadline and active-attempt pointers in Redis.
// Best-effort: Postgres is authoritative for all of these.
func (s *AttemptService) mirrorStart(ctx context.Context, a *model.Attempt) {
	ttl := time.Until(a.DeadlineAt) + time.Hour

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptDeadlineKey(a.ID.String()), a.DeadlineAt.Format(time.RFC3339Nano), ttl)
	pipe.Set(ctx, config.CacheKey.StudentActiveAttemptKey(a.StudentID, a.ExamConfigID.String()), a.ID.String(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to mirror attempt start to redis")
	}
}

// SaveAnswer upserts one answer, last write wins. Writes are rejected once
// the attempt is terminal or past its deadline; a past-deadline write on an
// auto-submit config finalizes the attempt before rejecting.
func (s *AttemptService) SaveAnswer(ctx context.Context, studentID string, attemptID, questionID uuid.UUID, value string) error {
	mu := s.lock(attemptID)
	mu.Lock()
	defer mu.Unlock()

	a, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.StudentID != studentID {
		return ErrNotAttemptOwner
	}
	if a.Status.IsTerminal() {
		return ErrAttemptClosed
	}

	if exam.IsExpired(a, time.Now()) {
		s.expireLocked(ctx, a)
		return ErrAttemptExpired
	}

	if !snapshotContains(a.Snapshot, questionID) {
		return ErrUnknownQuestion
	}

	saved, err := s.attemptRepo.UpsertAnswer(ctx, attemptID, questionID, value)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	if !saved {
		// A terminal transition from another process won the race.
		return ErrAttemptClosed
	}

	// Mirror for cheap reconnect reads; Postgres already holds the truth.
	if err := s.rdb.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()), questionID.String(), value).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to mirror answer to redis")
	}

	return nil
}

// RecordViolation handles one client-reported integrity event. Accepted
// events are queued for async persistence; a tab_switch that reaches the
// config's threshold auto-submits the attempt before returning.
func (s *AttemptService) RecordViolation(ctx context.Context, studentID string, attemptID uuid.UUID, req *model.ReportViolationRequest) (*model.ViolationOutcome, error) {
	mu := s.lock(attemptID)
	mu.Lock()
	defer mu.Unlock()

	a, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	if a.Status.IsTerminal() {
		return &model.ViolationOutcome{}, nil
	}
	if exam.IsExpired(a, time.Now()) {
		s.expireLocked(ctx, a)
		return &model.ViolationOutcome{}, nil
	}

	cfg, err := s.configRepo.GetByID(ctx, a.ExamConfigID)
	if err != nil {
		return nil, fmt.Errorf("get exam config: %w", err)
	}

	vType := model.ViolationType(req.Type)
	count := a.TabSwitchCount
	if vType == model.ViolationTabSwitch {
		count, err = s.attemptRepo.IncrementTabSwitchCount(ctx, attemptID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &model.ViolationOutcome{}, nil
			}
			return nil, fmt.Errorf("increment tab switch count: %w", err)
		}
	}

	decision := exam.EvaluateViolation(cfg.Security, vType, count)
	if !decision.Accepted {
		return &model.ViolationOutcome{}, nil
	}

	s.enqueueViolation(ctx, model.PersistViolationJob{
		AttemptID:  attemptID,
		Type:       vType,
		OccurredAt: req.OccurredAt,
	})

	outcome := &model.ViolationOutcome{Accepted: true, ThresholdBreached: decision.ThresholdBreached}
	if decision.ThresholdBreached {
		s.log.Warn().
			Str("attempt_id", attemptID.String()).
			Int("tab_switches", count).
			Msg("Violation threshold breached, auto-submitting")
		reason := model.AutoSubmitReasonViolationThreshold
		if _, err := s.finalizeLocked(ctx, a, model.AttemptStatusAutoSubmitted, &reason); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// enqueueViolation hands an accepted event to the async persister. When the
// queue push fails the event is written to the audit log synchronously
// instead; an accepted violation must never be lost.
func (s *AttemptService) enqueueViolation(ctx context.Context, job model.PersistViolationJob) {
	payload, err := json.Marshal(job)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal violation job failed")
		return
	}
	if err := s.rdb.LPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Warn().
			Err(err).
			Str("attempt_id", job.AttemptID.String()).
			Msg("Failed to enqueue violation, persisting synchronously")
		if ierr := s.attemptRepo.InsertViolation(ctx, job.AttemptID, job.Type, job.OccurredAt); ierr != nil {
			s.log.Error().
				Err(ierr).
				Str("attempt_id", job.AttemptID.String()).
				Msg("Synchronous violation insert failed, audit log misses this event")
		}
	}
}

// Submit finalizes the attempt at the student's request. Idempotent: an
// already-terminal attempt returns its stored result unchanged. An explicit
// submit is honored even past the deadline.
func (s *AttemptService) Submit(ctx context.Context, studentID string, attemptID uuid.UUID) (*model.Attempt, error) {
	mu := s.lock(attemptID)
	mu.Lock()
	defer mu.Unlock()

	a, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	if a.Status.IsTerminal() {
		return a, nil
	}

	status := model.AttemptStatusSubmitted
	var reason *model.AutoSubmitReason
	if exam.IsExpired(a, time.Now()) {
		cfg, err := s.configRepo.GetByID(ctx, a.ExamConfigID)
		if err != nil {
			return nil, fmt.Errorf("get exam config: %w", err)
		}
		if cfg.Security.AutoSubmitOnTimeUp {
			// The client beat the sweeper to the deadline.
			status = model.AttemptStatusAutoSubmitted
			r := model.AutoSubmitReasonClientRequested
			reason = &r
		}
	}

	return s.finalizeLocked(ctx, a, status, reason)
}

// ExpireIfDue finalizes an overdue attempt as expired when its config
// auto-submits on time-up. Returns the attempt and whether this call closed
// it. Attempts on configs without auto-submit stay open; they only reject
// writes until the student submits explicitly.
func (s *AttemptService) ExpireIfDue(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, bool, error) {
	mu := s.lock(attemptID)
	mu.Lock()
	defer mu.Unlock()

	a, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, false, err
	}
	if a.Status.IsTerminal() {
		return a, false, nil
	}
	if !exam.IsExpired(a, time.Now()) {
		return a, false, nil
	}

	cfg, err := s.configRepo.GetByID(ctx, a.ExamConfigID)
	if err != nil {
		return nil, false, fmt.Errorf("get exam config: %w", err)
	}
	if !cfg.Security.AutoSubmitOnTimeUp {
		return a, false, nil
	}

	closed, err := s.finalizeLocked(ctx, a, model.AttemptStatusExpired, nil)
	if err != nil {
		return nil, false, err
	}
	return closed, true, nil
}

// expireLocked runs the lazy-expiry path under an already-held attempt lock.
// Errors are logged; the caller's write rejection stands either way.
func (s *AttemptService) expireLocked(ctx context.Context, a *model.Attempt) {
	cfg, err := s.configRepo.GetByID(ctx, a.ExamConfigID)
	if err != nil {
		s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Lazy expiry: get exam config failed")
		return
	}
	if !cfg.Security.AutoSubmitOnTimeUp {
		return
	}
	if _, err := s.finalizeLocked(ctx, a, model.AttemptStatusExpired, nil); err != nil {
		s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Lazy expiry failed")
	}
}

// finalizeLocked performs the single terminal transition: score, persist,
// clean up mirrors, emit the finalized event. Caller must hold the attempt
// lock and have verified a.Status is in_progress. If another process already
// finalized, the stored attempt is returned untouched.
func (s *AttemptService) finalizeLocked(ctx context.Context, a *model.Attempt, status model.AttemptStatus, reason *model.AutoSubmitReason) (*model.Attempt, error) {
	// Score against the frozen version the attempt pinned at start. The
	// live config and pool may have moved on since.
	ver, err := s.configRepo.GetVersion(ctx, a.ExamConfigID, a.ConfigVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.flagForReview(ctx, a, fmt.Errorf("config version %d not found", a.ConfigVersion))
		}
		return nil, fmt.Errorf("get config version: %w", err)
	}

	result, err := exam.Score(exam.ScoreInput{
		Snapshot:          a.Snapshot,
		Answers:           a.Answers,
		Questions:         ver.Questions,
		PassingPercentage: ver.PassingPercentage,
		FloorTotalAtZero:  ver.FloorTotalAtZero,
	})
	if err != nil {
		return nil, s.flagForReview(ctx, a, err)
	}

	finishedAt := time.Now().UTC()
	applied, err := s.attemptRepo.Finalize(ctx, a.ID, status, reason, result, finishedAt)
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}
	if !applied {
		// First transition won elsewhere; re-read the stored outcome.
		return s.attemptRepo.GetByID(ctx, a.ID)
	}

	a.Status = status
	a.EndReason = reason
	a.Result = result
	a.FinishedAt = &finishedAt

	s.cleanupMirrors(ctx, a)
	s.locks.Delete(a.ID)

	s.publisher.Publish(event.AttemptFinalized, map[string]interface{}{
		"attempt_id":     a.ID,
		"exam_config_id": a.ExamConfigID,
		"student_id":     a.StudentID,
		"status":         a.Status,
		"end_reason":     a.EndReason,
		"score":          result.Score,
		"percentage":     result.Percentage,
		"passed":         result.Passed,
		"finished_at":    finishedAt,
	})

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("status", string(status)).
		Float64("percentage", result.Percentage).
		Bool("passed", result.Passed).
		Msg("Attempt finalized")

	return a, nil
}

// flagForReview marks an attempt whose terminal transition cannot score.
// The attempt stays in_progress until an operator reconciles it.
func (s *AttemptService) flagForReview(ctx context.Context, a *model.Attempt, cause error) error {
	s.log.Error().Err(cause).Str("attempt_id", a.ID.String()).Msg("Scoring failed, flagging for review")
	if ferr := s.attemptRepo.SetReviewFlag(ctx, a.ID, fmt.Sprintf("scoring failed: %v", cause)); ferr != nil {
		s.log.Error().Err(ferr).Str("attempt_id", a.ID.String()).Msg("Failed to set review flag")
	}
	return ErrScoringFailed
}

func (s *AttemptService) cleanupMirrors(ctx context.Context, a *model.Attempt) {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(a.ID.String()))
	pipe.Del(ctx, config.CacheKey.AttemptDeadlineKey(a.ID.String()))
	pipe.Del(ctx, config.CacheKey.StudentActiveAttemptKey(a.StudentID, a.ExamConfigID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to clean attempt mirrors")
	}
}

// GetState returns everything a client needs to render or resume an attempt:
// sanitized paper in snapshot order, saved answers, violation log, remaining
// time, and the result once terminal. Reading an overdue attempt triggers
// lazy expiry first so clients never see a stale in_progress state.
func (s *AttemptService) GetState(ctx context.Context, studentID string, attemptID uuid.UUID) (*AttemptState, error) {
	mu := s.lock(attemptID)
	mu.Lock()
	defer mu.Unlock()

	a, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}

	now := time.Now()
	if !a.Status.IsTerminal() && exam.IsExpired(a, now) {
		s.expireLocked(ctx, a)
		// Re-read in case lazy expiry finalized it.
		if a.Status == model.AttemptStatusInProgress {
			if refreshed, rerr := s.attemptRepo.GetByID(ctx, attemptID); rerr == nil {
				a = refreshed
			}
		}
	}

	cfg, err := s.configRepo.GetByID(ctx, a.ExamConfigID)
	if err != nil {
		return nil, fmt.Errorf("get exam config: %w", err)
	}

	paper, err := s.loadPaper(ctx, a.ExamConfigID, a.ConfigVersion)
	if err != nil {
		return nil, err
	}

	violations, err := s.attemptRepo.ListViolations(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	if violations == nil {
		violations = []model.ViolationEvent{}
	}
	a.Violations = violations

	questions, err := exam.ApplySnapshot(a.Snapshot, paper)
	if err != nil {
		return nil, fmt.Errorf("build paper: %w", err)
	}

	state := &AttemptState{
		Attempt:    a,
		Questions:  questions,
		Violations: violations,
	}
	if !a.Status.IsTerminal() && cfg.Security.ShowRemainingTime {
		remaining := exam.Remaining(a, now)
		state.RemainingSeconds = &remaining
	}
	if !a.Status.IsTerminal() {
		// Results never leak while the attempt is open.
		a.Result = nil
	}
	return state, nil
}

// RemainingSeconds reads the attempt clock cheaply for time-sync pings,
// preferring the Redis deadline mirror over PostgreSQL.
func (s *AttemptService) RemainingSeconds(ctx context.Context, attemptID uuid.UUID) (*float64, error) {
	if raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptDeadlineKey(attemptID.String())).Result(); err == nil {
		if deadline, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			remaining := time.Until(deadline).Seconds()
			if remaining < 0 {
				remaining = 0
			}
			return &remaining, nil
		}
	}

	a, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		zero := 0.0
		return &zero, nil
	}
	remaining := exam.Remaining(a, time.Now())
	return &remaining, nil
}

// loadPaper reads the version-pinned sanitized paper from Redis, falling
// back to the frozen version row in PostgreSQL and backfilling the cache on
// miss. The live pool is never consulted; a cache eviction after a pool
// replace must still serve the paper the attempt started with.
func (s *AttemptService) loadPaper(ctx context.Context, examConfigID uuid.UUID, version int) ([]model.SanitizedQuestion, error) {
	key := config.CacheKey.ExamPaperKey(examConfigID.String(), version)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var paper []model.SanitizedQuestion
		if uerr := json.Unmarshal(data, &paper); uerr == nil {
			return paper, nil
		}
		s.log.Warn().Str("key", key).Msg("Corrupt paper cache entry, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("key", key).Msg("Paper cache read failed, falling back to postgres")
	}

	ver, err := s.configRepo.GetVersion(ctx, examConfigID, version)
	if err != nil {
		return nil, fmt.Errorf("get config version %d: %w", version, err)
	}
	paper := exam.Sanitize(ver.Questions)

	if payload, merr := json.Marshal(paper); merr == nil {
		if serr := s.rdb.Set(ctx, key, payload, 0).Err(); serr != nil {
			s.log.Warn().Err(serr).Str("key", key).Msg("Paper cache backfill failed")
		}
	}
	return paper, nil
}

func snapshotContains(snapshot model.AttemptSnapshot, questionID uuid.UUID) bool {
	for _, qid := range snapshot.QuestionOrder {
		if qid == questionID {
			return true
		}
	}
	return false
}
