package service

import (
	"errors"
	"testing"

	"github.com/examgate/examgate-backend/internal/model"
)

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name    string
		q       model.Question
		wantErr bool
	}{
		{
			name: "valid multiple choice",
			q: model.Question{
				Type:          model.QuestionTypeMultipleChoice,
				Options:       []string{"3", "4", "5"},
				CorrectAnswer: "4",
			},
		},
		{
			name: "multiple choice with one option",
			q: model.Question{
				Type:          model.QuestionTypeMultipleChoice,
				Options:       []string{"4"},
				CorrectAnswer: "4",
			},
			wantErr: true,
		},
		{
			name: "multiple choice key not in options",
			q: model.Question{
				Type:          model.QuestionTypeMultipleChoice,
				Options:       []string{"3", "5"},
				CorrectAnswer: "4",
			},
			wantErr: true,
		},
		{
			name: "valid true false",
			q: model.Question{
				Type:          model.QuestionTypeTrueFalse,
				CorrectAnswer: "false",
			},
		},
		{
			name: "true false with capitalized key",
			q: model.Question{
				Type:          model.QuestionTypeTrueFalse,
				CorrectAnswer: "True",
			},
			wantErr: true,
		},
		{
			name: "valid short answer",
			q: model.Question{
				Type:          model.QuestionTypeShortAnswer,
				CorrectAnswer: "Paris",
			},
		},
		{
			name: "short answer with options",
			q: model.Question{
				Type:          model.QuestionTypeShortAnswer,
				Options:       []string{"Paris"},
				CorrectAnswer: "Paris",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateQuestion(&tt.q)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidQuestion) {
					t.Errorf("error %v is not ErrInvalidQuestion", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
