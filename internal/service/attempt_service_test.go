package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/database"
	"examhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db          *gorm.DB
	attempts    *AttemptService
	exams       *ExamService
	propagation *PropagationService
	results     *ResultService

	examRepo       *repository.ExamRepository
	questionRepo   *repository.QuestionRepository
	attemptRepo    *repository.AttemptRepository
	submissionRepo *repository.SubmissionRepository
	resultRepo     *repository.ResultRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.Log = zap.NewNop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		db:             db,
		examRepo:       repository.NewExamRepository(db),
		questionRepo:   repository.NewQuestionRepository(db, nil),
		attemptRepo:    repository.NewAttemptRepository(db),
		submissionRepo: repository.NewSubmissionRepository(db),
		resultRepo:     repository.NewResultRepository(db),
	}
	env.propagation = NewPropagationService(env.examRepo, env.questionRepo, env.submissionRepo, db)
	env.exams = NewExamService(env.examRepo, env.questionRepo, env.propagation)
	env.attempts = NewAttemptService(env.attemptRepo, env.examRepo, env.questionRepo, env.submissionRepo, db)
	env.results = NewResultService(env.examRepo, env.questionRepo, env.submissionRepo, env.resultRepo, db)
	return env
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// publishedExam creates a published 30-minute exam with one MCQ worth 5
// (first option correct), one true/false worth 5 (answer "true"), and the
// given attempt limit. Returns the exam and the question ids.
func (env *testEnv) publishedExam(t *testing.T, maxAttempts int) (*model.Exam, uint, uint) {
	t.Helper()

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	exam, err := env.exams.CreateExam(1, ExamRequest{
		Title:        strPtr("Midterm"),
		Duration:     intPtr(30),
		StartDate:    &start,
		EndDate:      &end,
		PassingMarks: intPtr(6),
		MaxAttempts:  intPtr(maxAttempts),
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}

	mcq, err := env.exams.AddQuestion(exam.ID, QuestionRequest{
		Type:    model.QuestionMCQ,
		Content: "2+2?",
		Marks:   5,
		Options: []QuestionOptionRequest{
			{Text: "4", IsCorrect: true},
			{Text: "5"},
		},
	})
	if err != nil {
		t.Fatalf("add mcq: %v", err)
	}
	tf, err := env.exams.AddQuestion(exam.ID, QuestionRequest{
		Type:    model.QuestionTrueFalse,
		Content: "The sky is blue.",
		Marks:   5,
		Answer:  "true",
	})
	if err != nil {
		t.Fatalf("add true/false: %v", err)
	}

	if _, err := env.exams.TransitionStatus(exam.ID, model.ExamPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}
	exam, err = env.examRepo.FindByID(exam.ID)
	if err != nil {
		t.Fatalf("reload exam: %v", err)
	}
	return exam, mcq.ID, tf.ID
}

func (env *testEnv) correctOptionID(t *testing.T, questionID uint) uint {
	t.Helper()
	options, err := env.questionRepo.ListOptions(questionID)
	if err != nil {
		t.Fatalf("list options: %v", err)
	}
	for _, opt := range options {
		if opt.IsCorrect {
			return opt.ID
		}
	}
	t.Fatal("no correct option")
	return 0
}

func TestStartAttemptGuards(t *testing.T) {
	env := newTestEnv(t)

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	draft, err := env.exams.CreateExam(1, ExamRequest{
		Title:     strPtr("Draft"),
		Duration:  intPtr(30),
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	if _, err := env.attempts.StartAttempt(10, draft.ID); !errors.Is(err, util.ErrAttemptNotAllowed) {
		t.Fatalf("draft exam: got %v, want ErrAttemptNotAllowed", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	closedEnd := time.Now().Add(-time.Hour)
	closed, _ := env.exams.CreateExam(1, ExamRequest{
		Title:     strPtr("Closed"),
		Duration:  intPtr(30),
		StartDate: &past,
		EndDate:   &closedEnd,
	})
	env.exams.TransitionStatus(closed.ID, model.ExamPublished)
	if _, err := env.attempts.StartAttempt(10, closed.ID); !errors.Is(err, util.ErrAttemptNotAllowed) {
		t.Fatalf("closed window: got %v, want ErrAttemptNotAllowed", err)
	}

	if _, err := env.attempts.StartAttempt(10, 9999); !errors.Is(err, util.ErrExamNotFound) {
		t.Fatalf("missing exam: got %v, want ErrExamNotFound", err)
	}
}

func TestStartAttemptAllowList(t *testing.T) {
	env := newTestEnv(t)
	exam, _, _ := env.publishedExam(t, 1)

	exam.IsPublic = false
	if err := env.examRepo.Update(exam); err != nil {
		t.Fatalf("update exam: %v", err)
	}

	if _, err := env.attempts.StartAttempt(10, exam.ID); !errors.Is(err, util.ErrAttemptNotAllowed) {
		t.Fatalf("off-list student: got %v, want ErrAttemptNotAllowed", err)
	}

	if err := env.exams.GrantAccess(exam.ID, 10); err != nil {
		t.Fatalf("grant access: %v", err)
	}
	if _, err := env.attempts.StartAttempt(10, exam.ID); err != nil {
		t.Fatalf("listed student: %v", err)
	}
}

func TestAttemptNumberingAndLimit(t *testing.T) {
	env := newTestEnv(t)
	exam, _, _ := env.publishedExam(t, 2)

	first, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if first.AttemptNumber != 1 {
		t.Fatalf("first attempt number = %d, want 1", first.AttemptNumber)
	}

	second, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if second.AttemptNumber != 2 {
		t.Fatalf("second attempt number = %d, want 2", second.AttemptNumber)
	}

	if _, err := env.attempts.StartAttempt(10, exam.ID); !errors.Is(err, util.ErrAttemptNotAllowed) {
		t.Fatalf("over the limit: got %v, want ErrAttemptNotAllowed", err)
	}
}

func TestFinalizeScoresAnswers(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, tfID := env.publishedExam(t, 1)
	correct := env.correctOptionID(t, mcqID)

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := env.attempts.RecordAnswer(10, attempt.ID, mcqID, fmt.Sprint(correct)); err != nil {
		t.Fatalf("record mcq: %v", err)
	}
	if err := env.attempts.RecordAnswer(10, attempt.ID, tfID, "  TRUE "); err != nil {
		t.Fatalf("record tf: %v", err)
	}
	// overwrite the mcq answer with a wrong option
	if err := env.attempts.RecordAnswer(10, attempt.ID, mcqID, "0"); err != nil {
		t.Fatalf("overwrite mcq: %v", err)
	}

	sub, err := env.attempts.FinalizeAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if sub.TotalMarksObtained != 5 {
		t.Fatalf("total = %d, want 5 (only the true/false counted)", sub.TotalMarksObtained)
	}
	if sub.Status != model.SubmissionSubmitted {
		t.Fatalf("submission status = %s, want submitted", sub.Status)
	}

	reloaded, err := env.attemptRepo.FindByID(attempt.ID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if reloaded.Status != model.AttemptSubmitted {
		t.Fatalf("attempt status = %s, want submitted", reloaded.Status)
	}

	result, err := env.resultRepo.FindBySubmission(sub.ID)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if result.ObtainedMarks != 5 || result.TotalMarks != 10 {
		t.Fatalf("result marks = %d/%d, want 5/10", result.ObtainedMarks, result.TotalMarks)
	}
	if result.Percentage != 50 {
		t.Fatalf("percentage = %v, want 50", result.Percentage)
	}
	if result.Status != model.ResultFail {
		t.Fatalf("result status = %s, want fail (passing is 6)", result.Status)
	}
}

func TestFinalizeAtDeadlineIsNormalSubmit(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, _ := env.publishedExam(t, 1)
	correct := env.correctOptionID(t, mcqID)

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.attempts.RecordAnswer(10, attempt.ID, mcqID, fmt.Sprint(correct)); err != nil {
		t.Fatalf("record: %v", err)
	}

	// pin the clock to the exact deadline
	deadline := attempt.EndTime
	env.attempts.now = func() time.Time { return deadline }

	sub, err := env.attempts.FinalizeAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("finalize at deadline: %v", err)
	}
	if sub.TotalMarksObtained != 5 {
		t.Fatalf("total = %d, want 5", sub.TotalMarksObtained)
	}
}

func TestDoubleFinalizeReturnsSameSubmission(t *testing.T) {
	env := newTestEnv(t)
	exam, _, _ := env.publishedExam(t, 1)

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	first, err := env.attempts.FinalizeAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	second, err := env.attempts.FinalizeAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("submission ids differ: %s vs %s", first.ID, second.ID)
	}

	var count int64
	env.db.Model(&model.Submission{}).Where("exam_id = ?", exam.ID).Count(&count)
	if count != 1 {
		t.Fatalf("submission rows = %d, want 1", count)
	}
}

func TestFinalizeRaceLoserGetsWinnersRow(t *testing.T) {
	env := newTestEnv(t)
	exam, _, _ := env.publishedExam(t, 1)

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Simulate a racing writer that already inserted the submission but has
	// not flipped the attempt status yet. The unique index makes this
	// caller's insert fail, and it must return the winner's row instead.
	winner := &model.Submission{
		ExamID:             exam.ID,
		StudentID:          10,
		AttemptNumber:      attempt.AttemptNumber,
		TotalMarksObtained: 5,
		Status:             model.SubmissionSubmitted,
	}
	if err := env.db.Create(winner).Error; err != nil {
		t.Fatalf("seed winner: %v", err)
	}

	got, err := env.attempts.FinalizeAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("finalize as race loser: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("got submission %s, want the winner's %s", got.ID, winner.ID)
	}

	var count int64
	env.db.Model(&model.Submission{}).Where("exam_id = ?", exam.ID).Count(&count)
	if count != 1 {
		t.Fatalf("submission rows = %d, want 1", count)
	}

	// the loser also repairs the attempt status the winner left behind
	reloaded, _ := env.attemptRepo.FindByID(attempt.ID)
	if reloaded.Status != model.AttemptSubmitted {
		t.Fatalf("attempt status = %s, want submitted", reloaded.Status)
	}
}

func TestRecordAnswerAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, _ := env.publishedExam(t, 1)
	correct := env.correctOptionID(t, mcqID)

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.attempts.RecordAnswer(10, attempt.ID, mcqID, fmt.Sprint(correct)); err != nil {
		t.Fatalf("record: %v", err)
	}

	env.attempts.now = func() time.Time { return attempt.EndTime.Add(time.Second) }

	err = env.attempts.RecordAnswer(10, attempt.ID, mcqID, "0")
	if !errors.Is(err, util.ErrAttemptNotActive) {
		t.Fatalf("late write: got %v, want ErrAttemptNotActive", err)
	}

	// The late write triggered the lazy expiry finalization: the submission
	// exists and carries the answer recorded before the deadline.
	sub, err := env.submissionRepo.FindByAttempt(exam.ID, 10, attempt.AttemptNumber)
	if err != nil {
		t.Fatalf("submission missing after lazy expiry: %v", err)
	}
	if sub.TotalMarksObtained != 5 {
		t.Fatalf("total = %d, want 5 (pre-deadline answer preserved)", sub.TotalMarksObtained)
	}
}

func TestSweepExpiredFinalizes(t *testing.T) {
	env := newTestEnv(t)
	exam, mcqID, _ := env.publishedExam(t, 1)
	correct := env.correctOptionID(t, mcqID)

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.attempts.RecordAnswer(10, attempt.ID, mcqID, fmt.Sprint(correct)); err != nil {
		t.Fatalf("record: %v", err)
	}

	env.attempts.now = func() time.Time { return attempt.EndTime.Add(time.Minute) }

	n, err := env.attempts.SweepExpired()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("sweep finalized %d attempts, want 1", n)
	}

	if _, err := env.submissionRepo.FindByAttempt(exam.ID, 10, attempt.AttemptNumber); err != nil {
		t.Fatalf("submission missing after sweep: %v", err)
	}

	// a second sweep finds nothing left to do
	n, err = env.attempts.SweepExpired()
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep finalized %d attempts, want 0", n)
	}
}

func TestProjectAnswerPendingReview(t *testing.T) {
	env := newTestEnv(t)
	exam, _, _ := env.publishedExam(t, 1)

	project, err := env.exams.AddQuestion(exam.ID, QuestionRequest{
		Type:    model.QuestionProject,
		Content: "Build a parser.",
		Marks:   10,
	})
	if err != nil {
		t.Fatalf("add project question: %v", err)
	}

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.attempts.RecordAnswer(10, attempt.ID, project.ID, "https://repo.example/x"); err != nil {
		t.Fatalf("record: %v", err)
	}

	sub, err := env.attempts.FinalizeAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if sub.Status != model.SubmissionPendingReview {
		t.Fatalf("submission status = %s, want pending_review", sub.Status)
	}

	result, err := env.resultRepo.FindBySubmission(sub.ID)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if result.Status != model.ResultPendingReview {
		t.Fatalf("result status = %s, want pending_review", result.Status)
	}
}

func TestGetAttemptRemainingTime(t *testing.T) {
	env := newTestEnv(t)
	exam, _, _ := env.publishedExam(t, 1)

	attempt, err := env.attempts.StartAttempt(10, exam.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	detail, err := env.attempts.GetAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.RemainingSeconds <= 0 || detail.RemainingSeconds > 30*60 {
		t.Fatalf("remaining = %d, want within (0, 1800]", detail.RemainingSeconds)
	}

	// other students cannot see the attempt
	if _, err := env.attempts.GetAttempt(11, attempt.ID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("foreign read: got %v, want ErrAttemptNotFound", err)
	}

	// reading past the deadline finalizes and reports zero remaining
	env.attempts.now = func() time.Time { return attempt.EndTime.Add(time.Minute) }
	detail, err = env.attempts.GetAttempt(10, attempt.ID)
	if err != nil {
		t.Fatalf("get after deadline: %v", err)
	}
	if detail.RemainingSeconds != 0 {
		t.Fatalf("remaining after deadline = %d, want 0", detail.RemainingSeconds)
	}
	if detail.Attempt.Status != model.AttemptSubmitted {
		t.Fatalf("status = %s, want submitted", detail.Attempt.Status)
	}
}
