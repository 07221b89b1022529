package exam

import (
	"reflect"
	"testing"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/google/uuid"
)

var (
	q1ID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	q2ID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func twoQuestionPool(q1Negative float64) []model.Question {
	return []model.Question{
		{
			ID:            q1ID,
			Prompt:        "Pick the second letter",
			Type:          model.QuestionTypeMultipleChoice,
			Options:       []string{"A", "B", "C"},
			CorrectAnswer: "B",
			Points:        2,
			NegativeMarks: q1Negative,
		},
		{
			ID:            q2ID,
			Prompt:        "The sky is blue",
			Type:          model.QuestionTypeTrueFalse,
			Options:       []string{"True", "False"},
			CorrectAnswer: "True",
			Points:        1,
		},
	}
}

func identitySnapshot(pool []model.Question) model.AttemptSnapshot {
	order := make([]uuid.UUID, len(pool))
	optionOrder := make(map[uuid.UUID][]int, len(pool))
	for i, q := range pool {
		order[i] = q.ID
		optionOrder[q.ID] = identityPerm(len(q.Options))
	}
	return model.AttemptSnapshot{QuestionOrder: order, OptionOrder: optionOrder}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		q1Negative float64
		answers    map[uuid.UUID]string
		floor      bool
		passingPct float64
		wantScore  float64
		wantTotal  float64
		wantPct    float64
		wantPassed bool
	}{
		{
			name:       "one correct one wrong no negative marking",
			answers:    map[uuid.UUID]string{q1ID: "B", q2ID: "False"},
			passingPct: 50,
			wantScore:  2,
			wantTotal:  3,
			wantPct:    66.7,
			wantPassed: true,
		},
		{
			name:       "wrong with negative marking and one unanswered",
			q1Negative: 0.5,
			answers:    map[uuid.UUID]string{q1ID: "A"},
			passingPct: 50,
			wantScore:  -0.5,
			wantTotal:  3,
			wantPct:    -16.7,
			wantPassed: false,
		},
		{
			name:       "negative total floored when configured",
			q1Negative: 0.5,
			answers:    map[uuid.UUID]string{q1ID: "A"},
			floor:      true,
			passingPct: 50,
			wantScore:  0,
			wantTotal:  3,
			wantPct:    0,
			wantPassed: false,
		},
		{
			name:       "all unanswered scores zero without penalty",
			q1Negative: 1,
			answers:    map[uuid.UUID]string{},
			passingPct: 50,
			wantScore:  0,
			wantTotal:  3,
			wantPct:    0,
			wantPassed: false,
		},
		{
			name:       "all correct passes at exact boundary",
			answers:    map[uuid.UUID]string{q1ID: "B", q2ID: "True"},
			passingPct: 100,
			wantScore:  3,
			wantTotal:  3,
			wantPct:    100,
			wantPassed: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pool := twoQuestionPool(tc.q1Negative)
			got, err := Score(ScoreInput{
				Snapshot:          identitySnapshot(pool),
				Answers:           tc.answers,
				Questions:         pool,
				PassingPercentage: tc.passingPct,
				FloorTotalAtZero:  tc.floor,
			})
			if err != nil {
				t.Fatalf("Score returned error: %v", err)
			}
			if got.Score != tc.wantScore {
				t.Errorf("score = %v, want %v", got.Score, tc.wantScore)
			}
			if got.TotalPoints != tc.wantTotal {
				t.Errorf("total = %v, want %v", got.TotalPoints, tc.wantTotal)
			}
			if got.Percentage != tc.wantPct {
				t.Errorf("percentage = %v, want %v", got.Percentage, tc.wantPct)
			}
			if got.Passed != tc.wantPassed {
				t.Errorf("passed = %v, want %v", got.Passed, tc.wantPassed)
			}
			if len(got.PerQuestion) != 2 {
				t.Fatalf("per-question entries = %d, want 2", len(got.PerQuestion))
			}
		})
	}
}

func TestScoreShortAnswerCaseSensitive(t *testing.T) {
	pool := []model.Question{{
		ID:            q1ID,
		Prompt:        "Name the capital of France",
		Type:          model.QuestionTypeShortAnswer,
		CorrectAnswer: "Paris",
		Points:        1,
	}}

	tests := []struct {
		name        string
		answer      string
		wantCorrect bool
	}{
		{name: "exact match", answer: "Paris", wantCorrect: true},
		{name: "case mismatch", answer: "paris", wantCorrect: false},
		{name: "trailing space", answer: "Paris ", wantCorrect: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Score(ScoreInput{
				Snapshot:  identitySnapshot(pool),
				Answers:   map[uuid.UUID]string{q1ID: tc.answer},
				Questions: pool,
			})
			if err != nil {
				t.Fatalf("Score returned error: %v", err)
			}
			if got.PerQuestion[0].Correct != tc.wantCorrect {
				t.Errorf("correct = %v, want %v", got.PerQuestion[0].Correct, tc.wantCorrect)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	pool := twoQuestionPool(0.25)
	in := ScoreInput{
		Snapshot:          identitySnapshot(pool),
		Answers:           map[uuid.UUID]string{q1ID: "C", q2ID: "True"},
		Questions:         pool,
		PassingPercentage: 40,
	}

	first, err := Score(in)
	if err != nil {
		t.Fatalf("first Score returned error: %v", err)
	}
	second, err := Score(in)
	if err != nil {
		t.Fatalf("second Score returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different results:\n%+v\n%+v", first, second)
	}
}

func TestScoreMissingQuestionDefinition(t *testing.T) {
	pool := twoQuestionPool(0)
	snapshot := identitySnapshot(pool)
	snapshot.QuestionOrder = append(snapshot.QuestionOrder, uuid.MustParse("33333333-3333-3333-3333-333333333333"))

	_, err := Score(ScoreInput{
		Snapshot:  snapshot,
		Answers:   map[uuid.UUID]string{},
		Questions: pool,
	})
	if err == nil {
		t.Fatal("expected error for snapshot question without definition")
	}
}

func TestScoreEmptyPool(t *testing.T) {
	got, err := Score(ScoreInput{Snapshot: model.AttemptSnapshot{}, Answers: nil, Questions: nil, PassingPercentage: 50})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if got.Percentage != 0 || got.Passed {
		t.Errorf("empty pool: percentage = %v, passed = %v; want 0, false", got.Percentage, got.Passed)
	}
}
