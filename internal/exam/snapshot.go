package exam

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/google/uuid"
)

// SeedFromAttemptID derives the shuffle seed from the attempt id so the
// snapshot can be reproduced for audit without storing the seed separately.
func SeedFromAttemptID(attemptID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(attemptID[:])
	return int64(h.Sum64())
}

// PrepareSnapshot builds the frozen question/option ordering for one attempt.
// The same seed always yields the same permutations. Inputs are never
// mutated; the returned order has exactly one entry per pool question.
func PrepareSnapshot(security model.SecuritySettings, pool []model.Question, seed int64) model.AttemptSnapshot {
	rng := rand.New(rand.NewSource(seed))

	order := make([]uuid.UUID, len(pool))
	for i, q := range pool {
		order[i] = q.ID
	}
	if security.ShuffleQuestions {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	optionOrder := make(map[uuid.UUID][]int, len(pool))
	for _, q := range pool {
		perm := identityPerm(len(q.Options))
		// Only multiple_choice is ever reordered; true_false keeps its
		// canonical True/False order and short_answer has no options.
		if security.ShuffleOptions && q.Type == model.QuestionTypeMultipleChoice {
			rng.Shuffle(len(perm), func(i, j int) {
				perm[i], perm[j] = perm[j], perm[i]
			})
		}
		optionOrder[q.ID] = perm
	}

	return model.AttemptSnapshot{
		QuestionOrder: order,
		OptionOrder:   optionOrder,
	}
}

// Sanitize strips answer-key fields from the pool, preserving pool order and
// canonical option order. The result is safe to cache and send to clients.
func Sanitize(pool []model.Question) []model.SanitizedQuestion {
	out := make([]model.SanitizedQuestion, len(pool))
	for i, q := range pool {
		out[i] = model.SanitizedQuestion{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Type:    q.Type,
			Options: append([]string(nil), q.Options...),
			Points:  q.Points,
		}
	}
	return out
}

// ApplySnapshot reorders a sanitized paper into the attempt-specific view:
// questions in snapshot order, options permuted per the snapshot. Every
// snapshot question must exist in the paper; a missing one means the paper
// does not belong to the attempt's pinned version and must not be served.
func ApplySnapshot(snapshot model.AttemptSnapshot, paper []model.SanitizedQuestion) ([]model.SanitizedQuestion, error) {
	byID := make(map[uuid.UUID]model.SanitizedQuestion, len(paper))
	for _, q := range paper {
		byID[q.ID] = q
	}

	out := make([]model.SanitizedQuestion, 0, len(snapshot.QuestionOrder))
	for _, qid := range snapshot.QuestionOrder {
		q, ok := byID[qid]
		if !ok {
			return nil, fmt.Errorf("question %s in snapshot is missing from the paper", qid)
		}
		perm := snapshot.OptionOrder[qid]
		options := make([]string, 0, len(q.Options))
		for _, idx := range perm {
			if idx >= 0 && idx < len(q.Options) {
				options = append(options, q.Options[idx])
			}
		}
		q.Options = options
		out = append(out, q)
	}
	return out, nil
}

// SanitizeQuestions projects the pool into the answer-key-free view students
// receive, in snapshot order with options permuted per the snapshot.
func SanitizeQuestions(snapshot model.AttemptSnapshot, pool []model.Question) ([]model.SanitizedQuestion, error) {
	return ApplySnapshot(snapshot, Sanitize(pool))
}

func identityPerm(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}
