package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/exam"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/repository"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrNoQuestions        = errors.New("exam config has no questions, cannot publish")
	ErrInvalidQuestion    = errors.New("invalid question")
	ErrConfigNotDraft     = errors.New("exam config status is not DRAFT")
	ErrConfigNotPublished = errors.New("exam config status is not PUBLISHED")
	ErrConfigArchived     = errors.New("exam config is archived")
)

// ExamConfigService handles exam config lifecycle, question pool management,
// the frozen per-version rows attempts pin, and the Redis paper cache that
// attempt state reads hit.
type ExamConfigService struct {
	configRepo   *repository.ExamConfigRepository
	questionRepo *repository.QuestionRepository
	attemptRepo  *repository.AttemptRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamConfigService creates a new ExamConfigService.
func NewExamConfigService(
	configRepo *repository.ExamConfigRepository,
	questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamConfigService {
	return &ExamConfigService{
		configRepo:   configRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_config_service").Logger(),
	}
}

// GetByID retrieves an exam config with its ordered question id pool.
func (s *ExamConfigService) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamConfig, error) {
	return s.configRepo.GetByID(ctx, id)
}

// List retrieves exam configs ordered by creation time, newest first.
func (s *ExamConfigService) List(ctx context.Context, page, perPage int) ([]model.ExamConfig, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	configs, total, err := s.configRepo.ListPaginated(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if configs == nil {
		configs = []model.ExamConfig{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return configs, pagination, nil
}

// Create inserts a new exam config as DRAFT.
func (s *ExamConfigService) Create(ctx context.Context, req *model.CreateExamConfigRequest) (*model.ExamConfig, error) {
	cfg := &model.ExamConfig{
		Title:             req.Title,
		DurationSeconds:   req.DurationSeconds,
		PassingPercentage: req.PassingPercentage,
		Security:          req.Security,
		Status:            model.ConfigStatusDraft,
	}
	if err := s.configRepo.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("create exam config: %w", err)
	}

	s.log.Info().Str("exam_config_id", cfg.ID.String()).Msg("Exam config created")
	return cfg, nil
}

// Update applies partial edits. Editing a PUBLISHED config bumps its version
// and re-warms the paper cache under the new version key; attempts already
// running keep the version they pinned at start.
func (s *ExamConfigService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateExamConfigRequest) (*model.ExamConfig, error) {
	cfg, err := s.configRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get exam config: %w", err)
	}
	if cfg.Status == model.ConfigStatusArchived {
		return nil, ErrConfigArchived
	}

	if req.Title != "" {
		cfg.Title = req.Title
	}
	if req.DurationSeconds != nil {
		cfg.DurationSeconds = *req.DurationSeconds
	}
	if req.PassingPercentage != nil {
		cfg.PassingPercentage = *req.PassingPercentage
	}
	if req.Security != nil {
		cfg.Security = *req.Security
	}

	if err := s.configRepo.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("update exam config: %w", err)
	}

	if cfg.Status == model.ConfigStatusPublished {
		// The bumped version gets its own frozen row so attempts starting
		// from now on pin the edited rules.
		questions, err := s.questionRepo.ListByConfig(ctx, cfg.ID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		if err := s.configRepo.SaveVersion(ctx, cfg, questions); err != nil {
			return nil, fmt.Errorf("freeze config version: %w", err)
		}
		if err := s.warmPaper(ctx, cfg, questions); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_config_id", cfg.ID.String()).
				Msg("Failed to warm paper cache after update")
		}
	}

	s.log.Info().
		Str("exam_config_id", cfg.ID.String()).
		Int("version", cfg.Version).
		Msg("Exam config updated")
	return cfg, nil
}

// Publish moves a DRAFT config to PUBLISHED and warms the Redis paper cache.
// A config with an empty question pool cannot be published.
func (s *ExamConfigService) Publish(ctx context.Context, id uuid.UUID) (*model.ExamConfig, error) {
	cfg, err := s.configRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get exam config: %w", err)
	}
	if cfg.Status != model.ConfigStatusDraft {
		return nil, ErrConfigNotDraft
	}

	questions, err := s.questionRepo.ListByConfig(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	// Freeze the published content before exposing it; attempts score
	// against this row even if the pool is replaced later.
	if err := s.configRepo.SaveVersion(ctx, cfg, questions); err != nil {
		return nil, fmt.Errorf("freeze config version: %w", err)
	}
	if err := s.warmPaper(ctx, cfg, questions); err != nil {
		return nil, err
	}

	if err := s.configRepo.UpdateStatus(ctx, id, model.ConfigStatusPublished); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	cfg.Status = model.ConfigStatusPublished

	s.log.Info().Str("exam_config_id", id.String()).Msg("Exam config published")
	return cfg, nil
}

// Archive moves a PUBLISHED config to ARCHIVED. New attempts can no longer
// start against it; attempts already running finish normally.
func (s *ExamConfigService) Archive(ctx context.Context, id uuid.UUID) (*model.ExamConfig, error) {
	cfg, err := s.configRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get exam config: %w", err)
	}
	if cfg.Status != model.ConfigStatusPublished {
		return nil, ErrConfigNotPublished
	}

	if err := s.configRepo.UpdateStatus(ctx, id, model.ConfigStatusArchived); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	cfg.Status = model.ConfigStatusArchived

	s.log.Info().Str("exam_config_id", id.String()).Msg("Exam config archived")
	return cfg, nil
}

// ListQuestions retrieves the full question pool, answer keys included.
// Admin-only; students receive sanitized questions from the attempt service.
func (s *ExamConfigService) ListQuestions(ctx context.Context, examConfigID uuid.UUID) ([]model.Question, error) {
	questions, err := s.questionRepo.ListByConfig(ctx, examConfigID)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// AddQuestion appends one question to a config's pool. Only DRAFT configs
// accept pool edits; published pools are replaced wholesale via
// ReplaceQuestions so the version bump stays explicit.
func (s *ExamConfigService) AddQuestion(ctx context.Context, examConfigID uuid.UUID, req *model.AddQuestionRequest) (*model.Question, error) {
	cfg, err := s.configRepo.GetByID(ctx, examConfigID)
	if err != nil {
		return nil, fmt.Errorf("get exam config: %w", err)
	}
	if cfg.Status != model.ConfigStatusDraft {
		return nil, ErrConfigNotDraft
	}

	q := questionFromRequest(examConfigID, req)
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Add(ctx, q); err != nil {
		return nil, fmt.Errorf("add question: %w", err)
	}

	s.log.Info().
		Str("exam_config_id", examConfigID.String()).
		Str("question_id", q.ID.String()).
		Msg("Question added")
	return q, nil
}

// ReplaceQuestions swaps the entire pool in one transaction. Allowed on DRAFT
// and PUBLISHED configs; a published config gets a version bump and a new
// frozen version row, so attempts already running keep scoring against the
// pool they started with.
func (s *ExamConfigService) ReplaceQuestions(ctx context.Context, examConfigID uuid.UUID, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	cfg, err := s.configRepo.GetByID(ctx, examConfigID)
	if err != nil {
		return nil, fmt.Errorf("get exam config: %w", err)
	}
	if cfg.Status == model.ConfigStatusArchived {
		return nil, ErrConfigArchived
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i := range req.Questions {
		q := questionFromRequest(examConfigID, &req.Questions[i])
		if err := validateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, *q)
	}

	if err := s.questionRepo.ReplaceForConfig(ctx, examConfigID, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}

	if cfg.Status == model.ConfigStatusPublished {
		// Bump the version so running attempts keep their pinned paper,
		// then freeze the new pool under the bumped version.
		if err := s.configRepo.Update(ctx, cfg); err != nil {
			return nil, fmt.Errorf("bump version: %w", err)
		}
		if err := s.configRepo.SaveVersion(ctx, cfg, questions); err != nil {
			return nil, fmt.Errorf("freeze config version: %w", err)
		}
		if err := s.warmPaper(ctx, cfg, questions); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_config_id", examConfigID.String()).
				Msg("Failed to warm paper cache after replace")
		}
	}

	s.log.Info().
		Str("exam_config_id", examConfigID.String()).
		Int("questions", len(questions)).
		Msg("Question pool replaced")
	return questions, nil
}

// Results retrieves paginated attempt outcomes for one config.
func (s *ExamConfigService) Results(ctx context.Context, examConfigID uuid.UUID, page, perPage int) ([]repository.AttemptResult, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 200 {
		perPage = 200
	}

	results, total, err := s.attemptRepo.ListByConfig(ctx, examConfigID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []repository.AttemptResult{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return results, pagination, nil
}

// WarmPaperCache loads a config's frozen current-version question set from
// PostgreSQL into Redis. Attempt state reads hit this key and apply their
// per-attempt snapshot on top.
func (s *ExamConfigService) WarmPaperCache(ctx context.Context, cfg *model.ExamConfig) error {
	ver, err := s.configRepo.GetVersion(ctx, cfg.ID, cfg.Version)
	if err != nil {
		return fmt.Errorf("get config version %d: %w", cfg.Version, err)
	}
	return s.warmPaper(ctx, cfg, ver.Questions)
}

// warmPaper caches the sanitized paper under the config's current version.
func (s *ExamConfigService) warmPaper(ctx context.Context, cfg *model.ExamConfig, questions []model.Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	paper := exam.Sanitize(questions)
	paperJSON, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	key := config.CacheKey.ExamPaperKey(cfg.ID.String(), cfg.Version)
	if err := s.rdb.Set(ctx, key, paperJSON, 0).Err(); err != nil {
		return fmt.Errorf("cache paper to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_config_id", cfg.ID.String()).
		Int("version", cfg.Version).
		Int("questions", len(questions)).
		Msg("Paper cache warmed")
	return nil
}

// PrewarmAllCaches loads every published config's paper into Redis on
// startup so attempt starts never lazy-load under load.
func (s *ExamConfigService) PrewarmAllCaches(ctx context.Context) error {
	configs, _, err := s.configRepo.ListPaginated(ctx, 500, 0)
	if err != nil {
		return fmt.Errorf("list exam configs: %w", err)
	}

	warmed := 0
	for i := range configs {
		if configs[i].Status != model.ConfigStatusPublished {
			continue
		}
		if err := s.WarmPaperCache(ctx, &configs[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_config_id", configs[i].ID.String()).
				Msg("Failed to warm paper cache, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Msg("Prewarming complete")
	return nil
}

func questionFromRequest(examConfigID uuid.UUID, req *model.AddQuestionRequest) *model.Question {
	return &model.Question{
		ExamConfigID:  examConfigID,
		Prompt:        req.Prompt,
		Type:          model.QuestionType(req.Type),
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Points:        req.Points,
		NegativeMarks: req.NegativeMarks,
		Explanation:   req.Explanation,
	}
}

// validateQuestion enforces cross-field rules the binding tags cannot express.
func validateQuestion(q *model.Question) error {
	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: multiple_choice question needs at least 2 options", ErrInvalidQuestion)
		}
		found := false
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: correct_answer must be one of the options", ErrInvalidQuestion)
		}
	case model.QuestionTypeTrueFalse:
		if q.CorrectAnswer != "true" && q.CorrectAnswer != "false" {
			return fmt.Errorf("%w: true_false correct_answer must be \"true\" or \"false\"", ErrInvalidQuestion)
		}
	case model.QuestionTypeShortAnswer:
		if len(q.Options) > 0 {
			return fmt.Errorf("%w: short_answer question cannot have options", ErrInvalidQuestion)
		}
	}
	return nil
}
