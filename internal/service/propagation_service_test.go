package service

import (
	"fmt"
	"testing"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
)

// finalizedSubmissions walks two students through the exam: student 10
// answers the mcq with the given option, student 11 with the other one, and
// both submit. Returns their submission ids keyed by student.
func (env *testEnv) finalizedSubmissions(t *testing.T, exam *model.Exam, mcqID, tfID uint) map[uint]string {
	t.Helper()

	options, err := env.questionRepo.ListOptions(mcqID)
	if err != nil {
		t.Fatalf("list options: %v", err)
	}
	var correct, wrong uint
	for _, opt := range options {
		if opt.IsCorrect {
			correct = opt.ID
		} else {
			wrong = opt.ID
		}
	}

	answers := map[uint]uint{10: correct, 11: wrong}
	subs := make(map[uint]string, 2)
	for student, optionID := range answers {
		attempt, err := env.attempts.StartAttempt(student, exam.ID)
		if err != nil {
			t.Fatalf("start student %d: %v", student, err)
		}
		if err := env.attempts.RecordAnswer(student, attempt.ID, mcqID, fmt.Sprint(optionID)); err != nil {
			t.Fatalf("record mcq student %d: %v", student, err)
		}
		if err := env.attempts.RecordAnswer(student, attempt.ID, tfID, "true"); err != nil {
			t.Fatalf("record tf student %d: %v", student, err)
		}
		sub, err := env.attempts.FinalizeAttempt(student, attempt.ID)
		if err != nil {
			t.Fatalf("finalize student %d: %v", student, err)
		}
		subs[student] = sub.ID
	}
	return subs
}

func TestKeyChangeRescoresFinalizedSubmissions(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, tfID := env.publishedExam(t, 1)
	subs := env.finalizedSubmissions(t, exam, mcqID, tfID)

	// flip the correct option: the previously wrong answer becomes right
	options, _ := env.questionRepo.ListOptions(mcqID)
	reqOptions := make([]QuestionOptionRequest, 0, len(options))
	for _, opt := range options {
		reqOptions = append(reqOptions, QuestionOptionRequest{
			ID:        opt.ID,
			Text:      opt.Text,
			IsCorrect: !opt.IsCorrect,
			Order:     opt.Order,
		})
	}
	q, _ := env.questionRepo.FindByID(mcqID)
	_, updated, err := env.exams.UpdateQuestion(mcqID, QuestionRequest{
		Type:    q.Type,
		Content: q.Content,
		Marks:   q.Marks,
		Order:   q.Order,
		Options: reqOptions,
	})
	if err != nil {
		t.Fatalf("update question: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	// student 10 answered the old correct option: now wrong, only tf counts
	r10, err := env.resultRepo.FindBySubmission(subs[10])
	if err != nil {
		t.Fatalf("result 10: %v", err)
	}
	if r10.ObtainedMarks != 5 {
		t.Fatalf("student 10 marks = %d, want 5", r10.ObtainedMarks)
	}

	// student 11 answered the old wrong option: now right, full marks
	r11, err := env.resultRepo.FindBySubmission(subs[11])
	if err != nil {
		t.Fatalf("result 11: %v", err)
	}
	if r11.ObtainedMarks != 10 {
		t.Fatalf("student 11 marks = %d, want 10", r11.ObtainedMarks)
	}
	if r11.Status != model.ResultPass {
		t.Fatalf("student 11 status = %s, want pass (passing is 6)", r11.Status)
	}

	// submission totals moved with the results
	s11, _ := env.submissionRepo.FindByID(subs[11])
	if s11.TotalMarksObtained != 10 {
		t.Fatalf("student 11 submission total = %d, want 10", s11.TotalMarksObtained)
	}
}

func TestUnchangedKeySkipsPropagation(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, tfID := env.publishedExam(t, 1)
	env.finalizedSubmissions(t, exam, mcqID, tfID)

	// edit only the content; key and marks stay the same
	q, _ := env.questionRepo.FindByID(mcqID)
	options, _ := env.questionRepo.ListOptions(mcqID)
	reqOptions := make([]QuestionOptionRequest, 0, len(options))
	for _, opt := range options {
		reqOptions = append(reqOptions, QuestionOptionRequest{
			ID: opt.ID, Text: opt.Text + " (reworded)", IsCorrect: opt.IsCorrect, Order: opt.Order,
		})
	}
	_, updated, err := env.exams.UpdateQuestion(mcqID, QuestionRequest{
		Type:    q.Type,
		Content: "rephrased",
		Marks:   q.Marks,
		Order:   q.Order,
		Options: reqOptions,
	})
	if err != nil {
		t.Fatalf("update question: %v", err)
	}
	if updated != 0 {
		t.Fatalf("updated = %d, want 0 for a content-only edit", updated)
	}
}

func TestPropagationIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, tfID := env.publishedExam(t, 1)
	subs := env.finalizedSubmissions(t, exam, mcqID, tfID)

	q, _ := env.questionRepo.FindByID(mcqID)
	options, _ := env.questionRepo.ListOptions(mcqID)
	oldKey := keyForQuestion(repository.QuestionWithOptions{Question: *q, Options: options})
	newKey := oldKey
	newKey.Marks = 7

	// raise the marks directly and run the propagator twice
	q.Marks = 7
	if err := env.questionRepo.Update(q, nil); err != nil {
		t.Fatalf("save question: %v", err)
	}

	for run := 1; run <= 2; run++ {
		n, err := env.propagation.OnAnswerKeyChanged(mcqID, oldKey, newKey)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if n != 2 {
			t.Fatalf("run %d updated %d, want 2", run, n)
		}
	}

	r10, err := env.resultRepo.FindBySubmission(subs[10])
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if r10.ObtainedMarks != 12 {
		t.Fatalf("marks = %d, want 12 (7 mcq + 5 tf)", r10.ObtainedMarks)
	}
}

func TestTrueFalseKeyChange(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, tfID := env.publishedExam(t, 1)
	subs := env.finalizedSubmissions(t, exam, mcqID, tfID)

	q, _ := env.questionRepo.FindByID(tfID)
	_, updated, err := env.exams.UpdateQuestion(tfID, QuestionRequest{
		Type:    q.Type,
		Content: q.Content,
		Marks:   q.Marks,
		Answer:  "false",
		Order:   q.Order,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	// both students answered "true"; with the flipped key neither scores it
	r10, _ := env.resultRepo.FindBySubmission(subs[10])
	if r10.ObtainedMarks != 5 {
		t.Fatalf("student 10 marks = %d, want 5 (mcq only)", r10.ObtainedMarks)
	}
}

func TestGradeProjectAnswerCompletesResult(t *testing.T) {
	env := newTestEnv(t)
	exam, _, _ := env.publishedExam(t, 1)

	project, err := env.exams.AddQuestion(exam.ID, QuestionRequest{
		Type:    model.QuestionProject,
		Content: "Ship it.",
		Marks:   10,
	})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.attempts.RecordAnswer(10, attempt.ID, project.ID, "submission text"); err != nil {
		t.Fatalf("record: %v", err)
	}
	sub, err := env.attempts.FinalizeAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if _, err := env.results.GradeProjectAnswer(sub.ID, project.ID, 11); err == nil {
		t.Fatal("marks above the question's maximum were accepted")
	}

	result, err := env.results.GradeProjectAnswer(sub.ID, project.ID, 8)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if result.ObtainedMarks != 8 {
		t.Fatalf("marks = %d, want 8", result.ObtainedMarks)
	}
	if result.Status != model.ResultPass {
		t.Fatalf("status = %s, want pass", result.Status)
	}

	graded, _ := env.submissionRepo.FindByID(sub.ID)
	if graded.Status != model.SubmissionEvaluated {
		t.Fatalf("submission status = %s, want evaluated", graded.Status)
	}
}

func TestResultIsDerivedFromStoredAnswers(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, tfID := env.publishedExam(t, 1)
	subs := env.finalizedSubmissions(t, exam, mcqID, tfID)

	// Rebuilding the result from the persisted submission and answers must
	// reproduce the stored row exactly; this is what makes propagation and
	// manual grading safe to re-run.
	for student, subID := range subs {
		sub, err := env.submissionRepo.FindByID(subID)
		if err != nil {
			t.Fatalf("submission %d: %v", student, err)
		}
		answers, err := env.submissionRepo.ListAnswers(subID)
		if err != nil {
			t.Fatalf("answers %d: %v", student, err)
		}
		stored, err := env.resultRepo.FindBySubmission(subID)
		if err != nil {
			t.Fatalf("result %d: %v", student, err)
		}

		var rebuilt model.Result
		deriveResult(&rebuilt, exam, sub, answers)

		if rebuilt.ObtainedMarks != stored.ObtainedMarks ||
			rebuilt.TotalMarks != stored.TotalMarks ||
			rebuilt.Percentage != stored.Percentage ||
			rebuilt.Status != stored.Status {
			t.Fatalf("student %d: rebuilt result %+v differs from stored %+v", student, rebuilt, stored)
		}
	}
}

func TestResultReleaseGate(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, tfID := env.publishedExam(t, 1)
	env.finalizedSubmissions(t, exam, mcqID, tfID)

	if _, err := env.results.GetResult(exam.ID, 10); err == nil {
		t.Fatal("unreleased result was visible to the student")
	}

	count, err := env.results.Release(exam.ID, true)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if count != 2 {
		t.Fatalf("released %d results, want 2", count)
	}

	result, err := env.results.GetResult(exam.ID, 10)
	if err != nil {
		t.Fatalf("get released result: %v", err)
	}
	if result.StudentID != 10 {
		t.Fatalf("result student = %d, want 10", result.StudentID)
	}
}
