package exam

import (
	"fmt"
	"math"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/google/uuid"
)

// ScoreInput carries everything the scoring engine needs. Scoring is a pure
// function of (snapshot, answers, answer keys); calling it twice with the
// same input yields an identical result.
type ScoreInput struct {
	Snapshot          model.AttemptSnapshot
	Answers           map[uuid.UUID]string
	Questions         []model.Question
	PassingPercentage float64
	FloorTotalAtZero  bool
}

// Score grades an attempt. Unanswered questions score 0 and are never
// penalized; a wrong submitted answer costs that question's NegativeMarks.
// Per-question contributions are not clamped; when FloorTotalAtZero is set
// the overall score floors at 0.
//
// Returns an error if any snapshot question id has no definition; the
// caller must abort the terminal transition rather than persist a partial
// result.
func Score(in ScoreInput) (*model.ScoreResult, error) {
	byID := make(map[uuid.UUID]model.Question, len(in.Questions))
	for _, q := range in.Questions {
		byID[q.ID] = q
	}

	result := &model.ScoreResult{
		PerQuestion: make([]model.QuestionScore, 0, len(in.Snapshot.QuestionOrder)),
	}

	for _, qid := range in.Snapshot.QuestionOrder {
		q, ok := byID[qid]
		if !ok {
			return nil, fmt.Errorf("question %s referenced by snapshot has no definition", qid)
		}

		result.TotalPoints += q.Points

		entry := model.QuestionScore{
			QuestionID:    qid,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}

		answer, answered := in.Answers[qid]
		switch {
		case !answered:
			// Leave zero; no negative marking for silence.
		case answerMatches(q, answer):
			entry.SubmittedAnswer = answer
			entry.Correct = true
			entry.PointsAwarded = q.Points
		default:
			entry.SubmittedAnswer = answer
			entry.PointsAwarded = -q.NegativeMarks
		}

		result.Score += entry.PointsAwarded
		result.PerQuestion = append(result.PerQuestion, entry)
	}

	if in.FloorTotalAtZero && result.Score < 0 {
		result.Score = 0
	}

	if result.TotalPoints > 0 {
		result.Percentage = roundPercentage(100 * result.Score / result.TotalPoints)
	}
	result.Passed = result.Percentage >= in.PassingPercentage

	return result, nil
}

// answerMatches compares against the canonical (un-shuffled) correct value.
// short_answer is a case-sensitive exact match; choice types compare the
// submitted option text verbatim.
func answerMatches(q model.Question, answer string) bool {
	return answer == q.CorrectAnswer
}

func roundPercentage(pct float64) float64 {
	return math.Round(pct*10) / 10
}
