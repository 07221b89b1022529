package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptResult is one row of an exam config's result listing.
type AttemptResult struct {
	AttemptID  uuid.UUID           `json:"attempt_id"`
	StudentID  string              `json:"student_id"`
	Status     model.AttemptStatus `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at"`
	Score      *float64            `json:"score"`
	Percentage *float64            `json:"percentage"`
	Passed     *bool               `json:"passed"`
}

// AttemptRepository handles attempt data access. Terminal transitions are
// guarded at the SQL level (status = 'in_progress' predicates) so the first
// transition wins even across processes.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new attempt. The partial unique index on
// (student_id, exam_config_id) WHERE status = 'in_progress' makes concurrent
// duplicate starts fail with a unique violation.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	snapshot, err := json.Marshal(a.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempts (id, exam_config_id, config_version, student_id, snapshot, started_at, deadline_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ExamConfigID, a.ConfigVersion, a.StudentID, snapshot, a.StartedAt, a.DeadlineAt, a.Status,
	)
	return err
}

const attemptColumns = `id, exam_config_id, config_version, student_id, snapshot, started_at, deadline_at,
	tab_switch_count, status, finished_at, end_reason, result, review_flag`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var snapshot, result []byte
	if err := row.Scan(
		&a.ID, &a.ExamConfigID, &a.ConfigVersion, &a.StudentID, &snapshot,
		&a.StartedAt, &a.DeadlineAt, &a.TabSwitchCount, &a.Status,
		&a.FinishedAt, &a.EndReason, &result, &a.ReviewFlag,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &a.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if len(result) > 0 {
		a.Result = &model.ScoreResult{}
		if err := json.Unmarshal(result, a.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return a, nil
}

// GetByID retrieves an attempt with its answers loaded.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	a.Answers, err = r.LoadAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindActive retrieves the in_progress attempt for a (student, config) pair,
// or pgx.ErrNoRows when none exists.
func (r *AttemptRepository) FindActive(ctx context.Context, studentID string, examConfigID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE student_id = $1 AND exam_config_id = $2 AND status = 'in_progress'`,
		studentID, examConfigID))
}

// LoadAnswers retrieves the answer map for an attempt.
func (r *AttemptRepository) LoadAnswers(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[uuid.UUID]string)
	for rows.Next() {
		var qid uuid.UUID
		var answer string
		if err := rows.Scan(&qid, &answer); err != nil {
			return nil, err
		}
		answers[qid] = answer
	}
	return answers, rows.Err()
}

// UpsertAnswer writes one answer, last write wins. The status predicate keeps
// a racing terminal transition from accepting a late write.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, answer string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer)
		 SELECT $1, $2, $3
		 WHERE EXISTS (SELECT 1 FROM attempts WHERE id = $1 AND status = 'in_progress')
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		attemptID, questionID, answer,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementTabSwitchCount atomically bumps the counter and returns the new
// value. Returns pgx.ErrNoRows if the attempt is no longer in_progress.
func (r *AttemptRepository) IncrementTabSwitchCount(ctx context.Context, attemptID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET tab_switch_count = tab_switch_count + 1
		 WHERE id = $1 AND status = 'in_progress'
		 RETURNING tab_switch_count`, attemptID,
	).Scan(&count)
	return count, err
}

// Finalize applies a terminal transition. Returns false when the attempt was
// already terminal; the caller should re-read and return the stored result.
func (r *AttemptRepository) Finalize(ctx context.Context, attemptID uuid.UUID, status model.AttemptStatus, reason *model.AutoSubmitReason, result *model.ScoreResult, finishedAt time.Time) (bool, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal result: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, end_reason = $2, result = $3, finished_at = $4
		 WHERE id = $5 AND status = 'in_progress'`,
		status, reason, resultJSON, finishedAt, attemptID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetReviewFlag marks an attempt for manual reconciliation after a scoring
// failure. The attempt stays in_progress.
func (r *AttemptRepository) SetReviewFlag(ctx context.Context, attemptID uuid.UUID, flag string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET review_flag = $1 WHERE id = $2`, flag, attemptID)
	return err
}

// ListOverdue retrieves in_progress attempts whose deadline has passed,
// for the background sweeper.
func (r *AttemptRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE status = 'in_progress' AND deadline_at < $1 AND review_flag IS NULL
		 ORDER BY deadline_at ASC
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// InsertViolation writes one violation event to the audit log directly.
// The worker batch-inserts the same rows; this is the synchronous path.
func (r *AttemptRepository) InsertViolation(ctx context.Context, attemptID uuid.UUID, vType model.ViolationType, occurredAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_violations (attempt_id, type, occurred_at)
		 VALUES ($1, $2, $3)`,
		attemptID, string(vType), occurredAt)
	return err
}

// ListViolations retrieves the persisted violation log for an attempt in
// occurrence order.
func (r *AttemptRepository) ListViolations(ctx context.Context, attemptID uuid.UUID) ([]model.ViolationEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT type, occurred_at FROM attempt_violations
		 WHERE attempt_id = $1
		 ORDER BY occurred_at ASC, id ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ViolationEvent
	for rows.Next() {
		var e model.ViolationEvent
		if err := rows.Scan(&e.Type, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListByConfig retrieves paginated attempt results for one exam config.
func (r *AttemptRepository) ListByConfig(ctx context.Context, examConfigID uuid.UUID, limit, offset int) ([]AttemptResult, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE exam_config_id = $1`, examConfigID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, status, started_at, finished_at,
		        (result->>'score')::float8,
		        (result->>'percentage')::float8,
		        (result->>'passed')::bool
		 FROM attempts
		 WHERE exam_config_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, examConfigID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []AttemptResult
	for rows.Next() {
		var res AttemptResult
		if err := rows.Scan(
			&res.AttemptID, &res.StudentID, &res.Status, &res.StartedAt,
			&res.FinishedAt, &res.Score, &res.Percentage, &res.Passed,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
