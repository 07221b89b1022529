package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states. The three terminal
// states are never left once entered.
type AttemptStatus string

const (
	AttemptStatusInProgress    AttemptStatus = "in_progress"
	AttemptStatusSubmitted     AttemptStatus = "submitted"
	AttemptStatusAutoSubmitted AttemptStatus = "auto_submitted"
	AttemptStatusExpired       AttemptStatus = "expired"
)

// IsTerminal reports whether the status is one of the closed states.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusAutoSubmitted || s == AttemptStatusExpired
}

// AutoSubmitReason records why a server-initiated submission happened.
type AutoSubmitReason string

const (
	AutoSubmitReasonViolationThreshold AutoSubmitReason = "violation_threshold"
	AutoSubmitReasonClientRequested    AutoSubmitReason = "client_requested"
)

// ViolationType enumerates client-reported integrity events.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationCopyAttempt    ViolationType = "copy_attempt"
	ViolationRightClick     ViolationType = "right_click"
	ViolationFullscreenExit ViolationType = "fullscreen_exit"
)

// ValidViolationType reports whether t is a known violation type.
func ValidViolationType(t ViolationType) bool {
	switch t {
	case ViolationTabSwitch, ViolationCopyAttempt, ViolationRightClick, ViolationFullscreenExit:
		return true
	}
	return false
}

// ViolationEvent is one append-only integrity event on an attempt.
type ViolationEvent struct {
	Type       ViolationType `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// AttemptSnapshot is the frozen per-attempt ordering computed once at start.
// OptionOrder maps question id → permutation of option indices (identity when
// option shuffling is disabled or the question has no options).
type AttemptSnapshot struct {
	QuestionOrder []uuid.UUID         `json:"question_order"`
	OptionOrder   map[uuid.UUID][]int `json:"option_order"`
}

// QuestionScore is the per-question breakdown inside a ScoreResult.
type QuestionScore struct {
	QuestionID      uuid.UUID `json:"question_id"`
	SubmittedAnswer string    `json:"submitted_answer"`
	Correct         bool      `json:"correct"`
	PointsAwarded   float64   `json:"points_awarded"`
	CorrectAnswer   string    `json:"correct_answer,omitempty"`
	Explanation     string    `json:"explanation,omitempty"`
}

// ScoreResult is the immutable grading outcome, produced exactly once per
// attempt by the terminal transition.
type ScoreResult struct {
	Score       float64         `json:"score"`
	TotalPoints float64         `json:"total_points"`
	Percentage  float64         `json:"percentage"`
	Passed      bool            `json:"passed"`
	PerQuestion []QuestionScore `json:"per_question"`
}

// Attempt is one student's timed run against an exam config. Answers and
// violations are mutable only while Status is in_progress; DeadlineAt is
// fixed at creation.
type Attempt struct {
	ID             uuid.UUID            `json:"id"`
	ExamConfigID   uuid.UUID            `json:"exam_config_id"`
	ConfigVersion  int                  `json:"config_version"`
	StudentID      string               `json:"student_id"`
	Snapshot       AttemptSnapshot      `json:"snapshot"`
	StartedAt      time.Time            `json:"started_at"`
	DeadlineAt     time.Time            `json:"deadline_at"`
	Answers        map[uuid.UUID]string `json:"answers"`
	Violations     []ViolationEvent     `json:"violations"`
	TabSwitchCount int                  `json:"tab_switch_count"`
	Status         AttemptStatus        `json:"status"`
	FinishedAt     *time.Time           `json:"finished_at,omitempty"`
	EndReason      *AutoSubmitReason    `json:"end_reason,omitempty"`
	Result         *ScoreResult         `json:"result,omitempty"`
	ReviewFlag     *string              `json:"review_flag,omitempty"`
}

// SaveAnswerRequest is the payload for an answer write.
type SaveAnswerRequest struct {
	Value string `json:"value" binding:"required,max=4000"`
}

// ReportViolationRequest is the payload for a client-reported violation.
type ReportViolationRequest struct {
	Type       string    `json:"type" binding:"required,oneof=tab_switch copy_attempt right_click fullscreen_exit"`
	OccurredAt time.Time `json:"occurred_at" binding:"required"`
}

// ViolationOutcome is returned to the client after recording a violation.
type ViolationOutcome struct {
	Accepted          bool `json:"accepted"`
	ThresholdBreached bool `json:"threshold_breached"`
}

// PersistViolationJob is the Redis queue payload the violation worker
// drains into attempt_violations.
type PersistViolationJob struct {
	AttemptID  uuid.UUID     `json:"attempt_id"`
	Type       ViolationType `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
}
