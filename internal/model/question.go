package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// Question is the full question record including answer-key fields.
// CorrectAnswer, NegativeMarks and Explanation must never reach a client
// while an attempt is in progress; use SanitizedQuestion for exam delivery.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ExamConfigID  uuid.UUID    `json:"exam_config_id"`
	Prompt        string       `json:"prompt"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	Points        float64      `json:"points"`
	NegativeMarks float64      `json:"negative_marks"`
	Explanation   string       `json:"explanation,omitempty"`
}

// SanitizedQuestion is the answer-key-free view delivered to students during
// an attempt. Options are already reordered per the attempt snapshot.
type SanitizedQuestion struct {
	ID      uuid.UUID    `json:"id"`
	Prompt  string       `json:"prompt"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options"`
	Points  float64      `json:"points"`
}

// AddQuestionRequest is the payload for adding a question to an exam config.
type AddQuestionRequest struct {
	Prompt        string   `json:"prompt" binding:"required,min=1,max=4000"`
	Type          string   `json:"type" binding:"required,oneof=multiple_choice true_false short_answer"`
	Options       []string `json:"options" binding:"omitempty,max=10,dive,min=1,max=500"`
	CorrectAnswer string   `json:"correct_answer" binding:"required,max=500"`
	Points        float64  `json:"points" binding:"required,min=1"`
	NegativeMarks float64  `json:"negative_marks" binding:"min=0"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=4000"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing a config's pool.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
