package exam

import (
	"reflect"
	"testing"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/google/uuid"
)

func snapshotPool(n int) []model.Question {
	pool := make([]model.Question, n)
	for i := range pool {
		pool[i] = model.Question{
			ID:      uuid.New(),
			Type:    model.QuestionTypeMultipleChoice,
			Options: []string{"A", "B", "C", "D"},
		}
	}
	return pool
}

func TestPrepareSnapshotStableForSeed(t *testing.T) {
	pool := snapshotPool(10)
	security := model.SecuritySettings{ShuffleQuestions: true, ShuffleOptions: true}

	first := PrepareSnapshot(security, pool, 42)
	second := PrepareSnapshot(security, pool, 42)

	if !reflect.DeepEqual(first, second) {
		t.Error("same seed produced different snapshots")
	}

	other := PrepareSnapshot(security, pool, 43)
	if reflect.DeepEqual(first.QuestionOrder, other.QuestionOrder) {
		t.Error("different seeds produced identical question order (10 questions)")
	}
}

func TestPrepareSnapshotIdentityWhenShufflingDisabled(t *testing.T) {
	pool := snapshotPool(5)
	snap := PrepareSnapshot(model.SecuritySettings{}, pool, 7)

	for i, q := range pool {
		if snap.QuestionOrder[i] != q.ID {
			t.Fatalf("question %d reordered without shuffle_questions", i)
		}
		if !reflect.DeepEqual(snap.OptionOrder[q.ID], []int{0, 1, 2, 3}) {
			t.Fatalf("options permuted without shuffle_options: %v", snap.OptionOrder[q.ID])
		}
	}
}

func TestPrepareSnapshotNeverReordersNonChoiceOptions(t *testing.T) {
	pool := []model.Question{
		{ID: uuid.New(), Type: model.QuestionTypeTrueFalse, Options: []string{"True", "False"}},
		{ID: uuid.New(), Type: model.QuestionTypeShortAnswer},
	}
	snap := PrepareSnapshot(model.SecuritySettings{ShuffleOptions: true}, pool, 99)

	if !reflect.DeepEqual(snap.OptionOrder[pool[0].ID], []int{0, 1}) {
		t.Errorf("true_false options reordered: %v", snap.OptionOrder[pool[0].ID])
	}
	if len(snap.OptionOrder[pool[1].ID]) != 0 {
		t.Errorf("short_answer got option permutation: %v", snap.OptionOrder[pool[1].ID])
	}
}

func TestPrepareSnapshotCoversWholePool(t *testing.T) {
	pool := snapshotPool(25)
	snap := PrepareSnapshot(model.SecuritySettings{ShuffleQuestions: true}, pool, 5)

	if len(snap.QuestionOrder) != len(pool) {
		t.Fatalf("snapshot has %d questions, pool has %d", len(snap.QuestionOrder), len(pool))
	}
	seen := make(map[uuid.UUID]bool, len(pool))
	for _, id := range snap.QuestionOrder {
		if seen[id] {
			t.Fatalf("question %s appears twice in snapshot", id)
		}
		seen[id] = true
	}
}

func TestSeedFromAttemptIDDeterministic(t *testing.T) {
	id := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	if SeedFromAttemptID(id) != SeedFromAttemptID(id) {
		t.Error("seed derivation is not deterministic")
	}
	if SeedFromAttemptID(id) == SeedFromAttemptID(uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeef")) {
		t.Error("distinct attempt ids produced the same seed")
	}
}

func TestSanitizeQuestionsStripsKeyAndAppliesPermutation(t *testing.T) {
	q := model.Question{
		ID:            uuid.New(),
		Prompt:        "Pick one",
		Type:          model.QuestionTypeMultipleChoice,
		Options:       []string{"A", "B", "C"},
		CorrectAnswer: "B",
		Points:        2,
		NegativeMarks: 1,
		Explanation:   "because",
	}
	snap := model.AttemptSnapshot{
		QuestionOrder: []uuid.UUID{q.ID},
		OptionOrder:   map[uuid.UUID][]int{q.ID: {2, 0, 1}},
	}

	got, err := SanitizeQuestions(snap, []model.Question{q})
	if err != nil {
		t.Fatalf("SanitizeQuestions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("sanitized %d questions, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0].Options, []string{"C", "A", "B"}) {
		t.Errorf("options = %v, want permuted [C A B]", got[0].Options)
	}
}

func TestApplySnapshotRejectsPaperMissingSnapshotQuestion(t *testing.T) {
	pinned := model.Question{
		ID:     uuid.New(),
		Type:   model.QuestionTypeShortAnswer,
		Prompt: "original",
		Points: 1,
	}
	snap := model.AttemptSnapshot{
		QuestionOrder: []uuid.UUID{pinned.ID},
		OptionOrder:   map[uuid.UUID][]int{pinned.ID: {}},
	}

	// A replaced pool has all-new ids; the attempt's snapshot must never
	// silently shrink to an empty paper.
	replacement := Sanitize([]model.Question{{
		ID:     uuid.New(),
		Type:   model.QuestionTypeShortAnswer,
		Prompt: "replacement",
		Points: 1,
	}})
	if _, err := ApplySnapshot(snap, replacement); err == nil {
		t.Fatal("ApplySnapshot accepted a paper missing a snapshot question")
	}

	got, err := ApplySnapshot(snap, Sanitize([]model.Question{pinned}))
	if err != nil {
		t.Fatalf("ApplySnapshot on matching paper: %v", err)
	}
	if len(got) != 1 || got[0].ID != pinned.ID {
		t.Fatalf("paper = %+v, want the pinned question", got)
	}
}
