// Package scoring holds the pure grading rules shared by submission
// finalization and answer-key change propagation. Nothing here touches the
// database or the clock: both call sites must grade identically, so the
// whole contract is (key, given answer) in, (correct, marks) out.
package scoring

import (
	"math"
	"strconv"
	"strings"

	"examhub_backend/internal/model"
)

// Key is the current answer key of one question.
type Key struct {
	Type            model.QuestionType
	Marks           int
	CorrectOptionID uint   // mcq: the option flagged correct
	CorrectAnswer   string // true_false: canonical answer text
}

// Outcome is the grade of a single stored answer. NeedsReview marks answers
// that only a manual grading action can score (project questions).
type Outcome struct {
	IsCorrect     bool
	MarksObtained int
	NeedsReview   bool
}

// Score grades one submitted answer against the key. Deterministic and
// side-effect free.
func Score(key Key, given string) Outcome {
	marks := key.Marks
	if marks < 0 {
		marks = 0
	}

	switch key.Type {
	case model.QuestionMCQ:
		id, err := strconv.ParseUint(strings.TrimSpace(given), 10, 64)
		if err != nil || key.CorrectOptionID == 0 {
			return Outcome{}
		}
		if uint(id) == key.CorrectOptionID {
			return Outcome{IsCorrect: true, MarksObtained: marks}
		}
		return Outcome{}

	case model.QuestionTrueFalse:
		want := strings.TrimSpace(key.CorrectAnswer)
		if want == "" {
			return Outcome{}
		}
		if strings.EqualFold(strings.TrimSpace(given), want) {
			return Outcome{IsCorrect: true, MarksObtained: marks}
		}
		return Outcome{}

	case model.QuestionProject:
		// Never auto-scored; a grader sets the marks later.
		return Outcome{NeedsReview: true}

	default:
		return Outcome{}
	}
}

// KeysEqual reports whether two keys grade identically, i.e. whether an
// authoring edit requires propagation at all.
func KeysEqual(a, b Key) bool {
	if a.Type != b.Type || a.Marks != b.Marks {
		return false
	}
	switch a.Type {
	case model.QuestionMCQ:
		return a.CorrectOptionID == b.CorrectOptionID
	case model.QuestionTrueFalse:
		return strings.EqualFold(strings.TrimSpace(a.CorrectAnswer), strings.TrimSpace(b.CorrectAnswer))
	default:
		return true
	}
}

// Percentage computes obtained/total*100 rounded half-even to 2 decimals.
func Percentage(obtained, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.RoundToEven(float64(obtained)/float64(total)*100*100) / 100
}
