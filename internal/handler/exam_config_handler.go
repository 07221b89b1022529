package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/examgate/examgate-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ExamConfigHandler handles the admin exam config endpoints.
type ExamConfigHandler struct {
	configService *service.ExamConfigService
}

// NewExamConfigHandler creates a new ExamConfigHandler.
func NewExamConfigHandler(configService *service.ExamConfigService) *ExamConfigHandler {
	return &ExamConfigHandler{configService: configService}
}

// List godoc
// GET /api/v1/admin/exam-configs
func (h *ExamConfigHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	configs, pagination, err := h.configService.List(c.Request.Context(), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exam_configs": configs}, pagination)
}

// Get godoc
// GET /api/v1/admin/exam-configs/:config_id
func (h *ExamConfigHandler) Get(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	cfg, err := h.configService.GetByID(c.Request.Context(), configID)
	if err != nil {
		failConfigError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam_config": cfg})
}

// Create godoc
// POST /api/v1/admin/exam-configs
func (h *ExamConfigHandler) Create(c *gin.Context) {
	var req model.CreateExamConfigRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cfg, err := h.configService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam_config": cfg})
}

// Update godoc
// PATCH /api/v1/admin/exam-configs/:config_id
func (h *ExamConfigHandler) Update(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateExamConfigRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cfg, err := h.configService.Update(c.Request.Context(), configID, &req)
	if err != nil {
		failConfigError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam_config": cfg})
}

// Publish godoc
// POST /api/v1/admin/exam-configs/:config_id/publish
func (h *ExamConfigHandler) Publish(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	cfg, err := h.configService.Publish(c.Request.Context(), configID)
	if err != nil {
		failConfigError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam_config": cfg})
}

// Archive godoc
// POST /api/v1/admin/exam-configs/:config_id/archive
func (h *ExamConfigHandler) Archive(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	cfg, err := h.configService.Archive(c.Request.Context(), configID)
	if err != nil {
		failConfigError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam_config": cfg})
}

// ListQuestions godoc
// GET /api/v1/admin/exam-configs/:config_id/questions
// Returns the full pool including answer keys. Admin only.
func (h *ExamConfigHandler) ListQuestions(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.configService.ListQuestions(c.Request.Context(), configID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/admin/exam-configs/:config_id/questions
func (h *ExamConfigHandler) AddQuestion(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.configService.AddQuestion(c.Request.Context(), configID, &req)
	if err != nil {
		failConfigError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/exam-configs/:config_id/questions
// Replaces the whole pool; bumps the version on a published config.
func (h *ExamConfigHandler) ReplaceQuestions(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.configService.ReplaceQuestions(c.Request.Context(), configID, &req)
	if err != nil {
		failConfigError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// Results godoc
// GET /api/v1/admin/exam-configs/:config_id/results
func (h *ExamConfigHandler) Results(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	results, pagination, err := h.configService.Results(c.Request.Context(), configID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// failConfigError maps exam config service errors onto the error envelope.
func failConfigError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrConfigNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrConfigNotDraft)
	case errors.Is(err, service.ErrConfigNotPublished), errors.Is(err, service.ErrConfigArchived):
		response.Fail(c, http.StatusConflict, response.ErrConfigNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrInvalidQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
