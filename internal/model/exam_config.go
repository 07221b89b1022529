package model

import (
	"time"

	"github.com/google/uuid"
)

// ConfigStatus enumerates the possible states of an exam configuration.
type ConfigStatus string

const (
	ConfigStatusDraft     ConfigStatus = "DRAFT"
	ConfigStatusPublished ConfigStatus = "PUBLISHED"
	ConfigStatusArchived  ConfigStatus = "ARCHIVED"
)

// SecuritySettings controls shuffling, violation thresholds and timing
// behavior for attempts started against a config.
type SecuritySettings struct {
	ShuffleQuestions      bool `json:"shuffle_questions"`
	ShuffleOptions        bool `json:"shuffle_options"`
	MaxTabSwitches        *int `json:"max_tab_switches,omitempty"` // nil = unlimited
	AutoSubmitOnTimeUp    bool `json:"auto_submit_on_time_up"`
	ShowRemainingTime     bool `json:"show_remaining_time"`
	FloorTotalScoreAtZero bool `json:"floor_total_score_at_zero"`
}

// ExamConfig is the template an attempt is started against. Attempts pin the
// Version they started with, so edits after publish never change a running
// attempt's rules.
type ExamConfig struct {
	ID                uuid.UUID        `json:"id"`
	Title             string           `json:"title"`
	DurationSeconds   int              `json:"duration_seconds"`
	PassingPercentage float64          `json:"passing_percentage"`
	Security          SecuritySettings `json:"security"`
	QuestionIDs       []uuid.UUID      `json:"question_ids"`
	Status            ConfigStatus     `json:"status"`
	Version           int              `json:"version"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// ConfigVersion is the frozen content of one published config version: the
// keyed question set and the scoring rules in force when the version was
// created. Attempts pin a version at start; scoring and paper reads go
// through the version row, never the live pool, so later edits cannot touch
// a running attempt.
type ConfigVersion struct {
	ExamConfigID      uuid.UUID  `json:"exam_config_id"`
	Version           int        `json:"version"`
	PassingPercentage float64    `json:"passing_percentage"`
	FloorTotalAtZero  bool       `json:"floor_total_at_zero"`
	Questions         []Question `json:"questions"`
	CreatedAt         time.Time  `json:"created_at"`
}

// CreateExamConfigRequest is the payload for creating a new exam config.
type CreateExamConfigRequest struct {
	Title             string           `json:"title" binding:"required,min=3,max=255"`
	DurationSeconds   int              `json:"duration_seconds" binding:"required,min=30,max=28800"`
	PassingPercentage float64          `json:"passing_percentage" binding:"min=0,max=100"`
	Security          SecuritySettings `json:"security"`
}

// UpdateExamConfigRequest is the payload for updating an exam config.
// Updating a PUBLISHED config bumps its version.
type UpdateExamConfigRequest struct {
	Title             string            `json:"title" binding:"omitempty,min=3,max=255"`
	DurationSeconds   *int              `json:"duration_seconds" binding:"omitempty,min=30,max=28800"`
	PassingPercentage *float64          `json:"passing_percentage" binding:"omitempty,min=0,max=100"`
	Security          *SecuritySettings `json:"security" binding:"omitempty"`
}
