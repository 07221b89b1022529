package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question pool data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, exam_config_id, prompt, type, options, correct_answer, points, negative_marks, explanation`

func scanQuestion(row interface{ Scan(...any) error }) (*model.Question, error) {
	q := &model.Question{}
	var options []byte
	if err := row.Scan(
		&q.ID, &q.ExamConfigID, &q.Prompt, &q.Type, &options,
		&q.CorrectAnswer, &q.Points, &q.NegativeMarks, &q.Explanation,
	); err != nil {
		return nil, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	return q, nil
}

// ListByConfig retrieves a config's full question pool in pool order,
// including answer-key fields. Callers must sanitize before client delivery.
func (r *QuestionRepository) ListByConfig(ctx context.Context, examConfigID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE exam_config_id = $1
		 ORDER BY position ASC`, examConfigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// Add inserts a single question at the end of a config's pool.
func (r *QuestionRepository) Add(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_config_id, prompt, type, options, correct_answer, points, negative_marks, explanation, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		         COALESCE((SELECT MAX(position) + 1 FROM questions WHERE exam_config_id = $1), 0))
		 RETURNING id`,
		q.ExamConfigID, q.Prompt, q.Type, options, q.CorrectAnswer, q.Points, q.NegativeMarks, q.Explanation,
	).Scan(&q.ID)
}

// ReplaceForConfig atomically swaps a config's whole question pool.
func (r *QuestionRepository) ReplaceForConfig(ctx context.Context, examConfigID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_config_id = $1`, examConfigID); err != nil {
		return fmt.Errorf("delete old pool: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO questions (exam_config_id, prompt, type, options, correct_answer, points, negative_marks, explanation, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			examConfigID, q.Prompt, q.Type, options, q.CorrectAnswer, q.Points, q.NegativeMarks, q.Explanation, i,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}
