package service

import (
	"encoding/json"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/scoring"
)

// keyForQuestion extracts the current answer key from a question and its
// options. For MCQ the key is the id of the option flagged correct.
func keyForQuestion(q repository.QuestionWithOptions) scoring.Key {
	key := scoring.Key{
		Type:          q.Type,
		Marks:         q.Marks,
		CorrectAnswer: q.Answer,
	}
	if q.Type == model.QuestionMCQ {
		for _, opt := range q.Options {
			if opt.IsCorrect {
				key.CorrectOptionID = opt.ID
				break
			}
		}
	}
	return key
}

// keysByExam loads the exam's questions and maps question id to its key.
func keysByExam(repo *repository.QuestionRepository, examID uint) (map[uint]scoring.Key, error) {
	qs, err := repo.ListByExam(examID)
	if err != nil {
		return nil, err
	}
	keys := make(map[uint]scoring.Key, len(qs))
	for _, q := range qs {
		keys[q.ID] = keyForQuestion(q)
	}
	return keys, nil
}

// summarizeAnswers folds scored answers into the submission-level totals.
func summarizeAnswers(answers []model.SubmissionAnswer) (total int, pending bool) {
	for _, a := range answers {
		total += a.MarksObtained
		if a.NeedsReview {
			pending = true
		}
	}
	return total, pending
}

func submissionStatus(pending bool) model.SubmissionStatus {
	if pending {
		return model.SubmissionPendingReview
	}
	return model.SubmissionSubmitted
}

func resultStatus(obtained, passingMarks int, pending bool) model.ResultStatus {
	if pending {
		return model.ResultPendingReview
	}
	if obtained >= passingMarks {
		return model.ResultPass
	}
	return model.ResultFail
}

func buildBreakdown(answers []model.SubmissionAnswer) json.RawMessage {
	lines := make([]model.ResultLine, 0, len(answers))
	for _, a := range answers {
		lines = append(lines, model.ResultLine{
			QuestionID:    a.QuestionID,
			Given:         a.Given,
			IsCorrect:     a.IsCorrect,
			MarksObtained: a.MarksObtained,
			NeedsReview:   a.NeedsReview,
		})
	}
	raw, _ := json.Marshal(lines)
	return raw
}

// deriveResult rebuilds every derived field of a Result from its submission
// answers and the exam. The result row must always equal this function's
// output; the propagator and the manual grading path both re-apply it.
func deriveResult(result *model.Result, exam *model.Exam, sub *model.Submission, answers []model.SubmissionAnswer) {
	total, pending := summarizeAnswers(answers)
	result.SubmissionID = sub.ID
	result.ExamID = exam.ID
	result.StudentID = sub.StudentID
	result.TotalMarks = exam.TotalMarks
	result.ObtainedMarks = total
	result.Percentage = scoring.Percentage(total, exam.TotalMarks)
	result.Status = resultStatus(total, exam.PassingMarks, pending)
	result.Breakdown = buildBreakdown(answers)
}
