package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamConfigRepository handles exam config data access.
type ExamConfigRepository struct {
	pool *pgxpool.Pool
}

// NewExamConfigRepository creates a new ExamConfigRepository.
func NewExamConfigRepository(pool *pgxpool.Pool) *ExamConfigRepository {
	return &ExamConfigRepository{pool: pool}
}

const examConfigColumns = `id, title, duration_seconds, passing_percentage, security, status, version, created_at, updated_at`

func scanExamConfig(row interface{ Scan(...any) error }) (*model.ExamConfig, error) {
	cfg := &model.ExamConfig{}
	var security []byte
	if err := row.Scan(
		&cfg.ID, &cfg.Title, &cfg.DurationSeconds, &cfg.PassingPercentage,
		&security, &cfg.Status, &cfg.Version, &cfg.CreatedAt, &cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(security, &cfg.Security); err != nil {
		return nil, fmt.Errorf("unmarshal security settings: %w", err)
	}
	return cfg, nil
}

// Create inserts a new exam config as DRAFT with version 1.
func (r *ExamConfigRepository) Create(ctx context.Context, cfg *model.ExamConfig) error {
	security, err := json.Marshal(cfg.Security)
	if err != nil {
		return fmt.Errorf("marshal security settings: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_configs (title, duration_seconds, passing_percentage, security, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, version, created_at, updated_at`,
		cfg.Title, cfg.DurationSeconds, cfg.PassingPercentage, security, model.ConfigStatusDraft,
	).Scan(&cfg.ID, &cfg.Version, &cfg.CreatedAt, &cfg.UpdatedAt)
}

// GetByID retrieves an exam config with its ordered question id pool.
func (r *ExamConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamConfig, error) {
	cfg, err := scanExamConfig(r.pool.QueryRow(ctx,
		`SELECT `+examConfigColumns+` FROM exam_configs WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id FROM questions WHERE exam_config_id = $1 ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var qid uuid.UUID
		if err := rows.Scan(&qid); err != nil {
			return nil, err
		}
		cfg.QuestionIDs = append(cfg.QuestionIDs, qid)
	}
	return cfg, rows.Err()
}

// Update persists mutable config fields, bumping the version when the config
// is already published so running attempts keep their pinned rules.
func (r *ExamConfigRepository) Update(ctx context.Context, cfg *model.ExamConfig) error {
	security, err := json.Marshal(cfg.Security)
	if err != nil {
		return fmt.Errorf("marshal security settings: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`UPDATE exam_configs
		 SET title = $1,
		     duration_seconds = $2,
		     passing_percentage = $3,
		     security = $4,
		     version = version + CASE WHEN status = 'PUBLISHED' THEN 1 ELSE 0 END,
		     updated_at = NOW()
		 WHERE id = $5
		 RETURNING version, updated_at`,
		cfg.Title, cfg.DurationSeconds, cfg.PassingPercentage, security, cfg.ID,
	).Scan(&cfg.Version, &cfg.UpdatedAt)
}

// SaveVersion freezes a config version: the full keyed question set plus the
// scoring rules in force. Idempotent per (config, version) so a re-warm after
// a partial failure overwrites rather than errors.
func (r *ExamConfigRepository) SaveVersion(ctx context.Context, cfg *model.ExamConfig, questions []model.Question) error {
	payload, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_config_versions (exam_config_id, version, passing_percentage, floor_total_at_zero, questions)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (exam_config_id, version)
		 DO UPDATE SET passing_percentage = EXCLUDED.passing_percentage,
		               floor_total_at_zero = EXCLUDED.floor_total_at_zero,
		               questions = EXCLUDED.questions`,
		cfg.ID, cfg.Version, cfg.PassingPercentage, cfg.Security.FloorTotalScoreAtZero, payload)
	return err
}

// GetVersion retrieves one frozen config version with its keyed question set.
// Returns pgx.ErrNoRows when the version was never frozen.
func (r *ExamConfigRepository) GetVersion(ctx context.Context, examConfigID uuid.UUID, version int) (*model.ConfigVersion, error) {
	ver := &model.ConfigVersion{}
	var questions []byte
	err := r.pool.QueryRow(ctx,
		`SELECT exam_config_id, version, passing_percentage, floor_total_at_zero, questions, created_at
		 FROM exam_config_versions
		 WHERE exam_config_id = $1 AND version = $2`,
		examConfigID, version,
	).Scan(&ver.ExamConfigID, &ver.Version, &ver.PassingPercentage, &ver.FloorTotalAtZero, &questions, &ver.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &ver.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal version questions: %w", err)
	}
	return ver, nil
}

// UpdateStatus changes the config lifecycle status.
func (r *ExamConfigRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ConfigStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_configs SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// ListPaginated retrieves exam configs ordered by creation time.
func (r *ExamConfigRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.ExamConfig, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_configs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examConfigColumns+` FROM exam_configs
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var configs []model.ExamConfig
	for rows.Next() {
		cfg, err := scanExamConfig(rows)
		if err != nil {
			return nil, 0, err
		}
		configs = append(configs, *cfg)
	}
	return configs, total, rows.Err()
}
