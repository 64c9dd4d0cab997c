package scoring

import (
	"testing"

	"examhub_backend/internal/model"
)

func TestScore_MCQ(t *testing.T) {
	key := Key{Type: model.QuestionMCQ, Marks: 5, CorrectOptionID: 42}

	tests := []struct {
		name    string
		given   string
		correct bool
		marks   int
	}{
		{name: "correct option", given: "42", correct: true, marks: 5},
		{name: "correct option padded", given: " 42 ", correct: true, marks: 5},
		{name: "wrong option", given: "7", correct: false, marks: 0},
		{name: "empty answer", given: "", correct: false, marks: 0},
		{name: "non numeric answer", given: "forty-two", correct: false, marks: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(key, tc.given)
			if got.IsCorrect != tc.correct || got.MarksObtained != tc.marks {
				t.Fatalf("Score(%q) = %+v, want correct=%v marks=%d", tc.given, got, tc.correct, tc.marks)
			}
			if got.NeedsReview {
				t.Fatalf("mcq answer must never need review")
			}
		})
	}
}

func TestScore_MCQ_NoCorrectOption(t *testing.T) {
	key := Key{Type: model.QuestionMCQ, Marks: 5}
	if got := Score(key, "0"); got.IsCorrect || got.MarksObtained != 0 {
		t.Fatalf("key without correct option must score 0, got %+v", got)
	}
}

func TestScore_TrueFalse(t *testing.T) {
	key := Key{Type: model.QuestionTrueFalse, Marks: 3, CorrectAnswer: "True"}

	tests := []struct {
		name    string
		given   string
		correct bool
	}{
		{name: "exact", given: "True", correct: true},
		{name: "case insensitive", given: "tRuE", correct: true},
		{name: "whitespace insensitive", given: "  true\n", correct: true},
		{name: "wrong", given: "false", correct: false},
		{name: "empty", given: "", correct: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(key, tc.given)
			if got.IsCorrect != tc.correct {
				t.Fatalf("Score(%q).IsCorrect = %v, want %v", tc.given, got.IsCorrect, tc.correct)
			}
			wantMarks := 0
			if tc.correct {
				wantMarks = 3
			}
			if got.MarksObtained != wantMarks {
				t.Fatalf("Score(%q).MarksObtained = %d, want %d", tc.given, got.MarksObtained, wantMarks)
			}
		})
	}
}

func TestScore_Project(t *testing.T) {
	key := Key{Type: model.QuestionProject, Marks: 10}
	got := Score(key, "link-to-repo")
	if got.IsCorrect || got.MarksObtained != 0 {
		t.Fatalf("project answers must not be auto-scored, got %+v", got)
	}
	if !got.NeedsReview {
		t.Fatalf("project answers must be flagged for review")
	}
}

func TestScore_NegativeMarksClamped(t *testing.T) {
	key := Key{Type: model.QuestionTrueFalse, Marks: -2, CorrectAnswer: "true"}
	if got := Score(key, "true"); got.MarksObtained != 0 {
		t.Fatalf("negative marks must clamp to 0, got %d", got.MarksObtained)
	}
}

func TestKeysEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Key
		equal bool
	}{
		{
			name:  "identical mcq",
			a:     Key{Type: model.QuestionMCQ, Marks: 5, CorrectOptionID: 1},
			b:     Key{Type: model.QuestionMCQ, Marks: 5, CorrectOptionID: 1},
			equal: true,
		},
		{
			name:  "mcq flipped option",
			a:     Key{Type: model.QuestionMCQ, Marks: 5, CorrectOptionID: 1},
			b:     Key{Type: model.QuestionMCQ, Marks: 5, CorrectOptionID: 2},
			equal: false,
		},
		{
			name:  "marks changed",
			a:     Key{Type: model.QuestionMCQ, Marks: 5, CorrectOptionID: 1},
			b:     Key{Type: model.QuestionMCQ, Marks: 4, CorrectOptionID: 1},
			equal: false,
		},
		{
			name:  "true_false case only",
			a:     Key{Type: model.QuestionTrueFalse, Marks: 2, CorrectAnswer: "True"},
			b:     Key{Type: model.QuestionTrueFalse, Marks: 2, CorrectAnswer: " true "},
			equal: true,
		},
		{
			name:  "true_false flipped",
			a:     Key{Type: model.QuestionTrueFalse, Marks: 2, CorrectAnswer: "true"},
			b:     Key{Type: model.QuestionTrueFalse, Marks: 2, CorrectAnswer: "false"},
			equal: false,
		},
		{
			name:  "type changed",
			a:     Key{Type: model.QuestionMCQ, Marks: 2, CorrectOptionID: 1},
			b:     Key{Type: model.QuestionTrueFalse, Marks: 2, CorrectAnswer: "true"},
			equal: false,
		},
		{
			name:  "project marks only",
			a:     Key{Type: model.QuestionProject, Marks: 10},
			b:     Key{Type: model.QuestionProject, Marks: 10},
			equal: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := KeysEqual(tc.a, tc.b); got != tc.equal {
				t.Fatalf("KeysEqual = %v, want %v", got, tc.equal)
			}
		})
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		obtained int
		total    int
		want     float64
	}{
		{name: "full marks", obtained: 10, total: 10, want: 100},
		{name: "zero", obtained: 0, total: 10, want: 0},
		{name: "half", obtained: 5, total: 10, want: 50},
		{name: "zero total", obtained: 5, total: 0, want: 0},
		// 1/160*100 = 0.625 exactly; half-even rounds to 0.62
		{name: "half even down", obtained: 1, total: 160, want: 0.62},
		// 3/160*100 = 1.875 exactly; half-even rounds to 1.88
		{name: "half even up", obtained: 3, total: 160, want: 1.88},
		{name: "exact two decimals", obtained: 5, total: 8, want: 62.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Percentage(tc.obtained, tc.total); got != tc.want {
				t.Fatalf("Percentage(%d,%d) = %v, want %v", tc.obtained, tc.total, got, tc.want)
			}
		})
	}
}
