package service

import (
	"errors"
	"fmt"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/scoring"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService drives the attempt lifecycle (start, answer, finalize,
// expire) and records submissions. Finalization is exactly-once: the
// compound unique index on submissions arbitrates every race, and the loser
// returns the winner's row.
type AttemptService struct {
	AttemptRepo    *repository.AttemptRepository
	ExamRepo       *repository.ExamRepository
	QuestionRepo   *repository.QuestionRepository
	SubmissionRepo *repository.SubmissionRepository
	DB             *gorm.DB

	// SweepBatch caps how many expired attempts one sweep run finalizes.
	SweepBatch int

	now func() time.Time // injectable clock for deadline tests
}

func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	submissionRepo *repository.SubmissionRepository,
	db *gorm.DB,
) *AttemptService {
	return &AttemptService{
		AttemptRepo:    attemptRepo,
		ExamRepo:       examRepo,
		QuestionRepo:   questionRepo,
		SubmissionRepo: submissionRepo,
		DB:             db,
		SweepBatch:     100,
		now:            time.Now,
	}
}

// StartAttempt checks the entry guards and creates attempt number
// priorCount+1. All guard failures are ErrAttemptNotAllowed, never
// transient faults.
func (s *AttemptService) StartAttempt(studentID, examID uint) (*model.Attempt, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}

	now := s.now()
	if exam.Status != model.ExamPublished {
		return nil, fmt.Errorf("%w: exam is not open for attempts", util.ErrAttemptNotAllowed)
	}
	if now.Before(exam.StartDate) || now.After(exam.EndDate) {
		return nil, fmt.Errorf("%w: outside the exam time window", util.ErrAttemptNotAllowed)
	}
	if !exam.IsPublic {
		ok, err := s.ExamRepo.HasAccess(examID, studentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: student is not on the exam allow-list", util.ErrAttemptNotAllowed)
		}
	}

	attempt, err := s.createNumberedAttempt(exam, studentID, now)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("attempt started",
		zap.String("attemptId", attempt.ID),
		zap.Uint("examId", examID),
		zap.Uint("studentId", studentID),
		zap.Int("attemptNumber", attempt.AttemptNumber))
	return attempt, nil
}

// createNumberedAttempt allocates attemptNumber = priorCount+1 under the
// unique index on (exam_id, student_id, attempt_number). A concurrent start
// produces a duplicate key; one recount-and-retry resolves it.
func (s *AttemptService) createNumberedAttempt(exam *model.Exam, studentID uint, now time.Time) (*model.Attempt, error) {
	for retry := 0; retry < 2; retry++ {
		count, err := s.AttemptRepo.CountByExamAndStudent(exam.ID, studentID)
		if err != nil {
			return nil, err
		}
		if count >= int64(exam.MaxAttempts) {
			return nil, fmt.Errorf("%w: attempt limit of %d reached", util.ErrAttemptNotAllowed, exam.MaxAttempts)
		}

		attempt := &model.Attempt{
			ExamID:        exam.ID,
			StudentID:     studentID,
			AttemptNumber: int(count) + 1,
			StartTime:     now,
			EndTime:       now.Add(time.Duration(exam.Duration) * time.Minute),
			Status:        model.AttemptInProgress,
		}
		err = s.AttemptRepo.Create(attempt)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: attempt limit reached", util.ErrAttemptNotAllowed)
}

// RecordAnswer upserts a working answer. Allowed only while the attempt is
// IN_PROGRESS and unexpired; a write past the deadline triggers the lazy
// expiry finalization and is rejected.
func (s *AttemptService) RecordAnswer(studentID uint, attemptID string, questionID uint, value string) error {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptInProgress {
		return util.ErrAttemptNotActive
	}
	if s.now().After(attempt.EndTime) {
		if _, err := s.finalize(attempt); err != nil {
			logger.Log.Error("lazy expiry finalization failed", zap.String("attemptId", attempt.ID), zap.Error(err))
		}
		return util.ErrAttemptNotActive
	}

	question, err := s.QuestionRepo.FindByID(questionID)
	if err != nil || question.ExamID != attempt.ExamID {
		return util.ErrQuestionNotFound
	}

	return s.AttemptRepo.UpsertAnswer(&model.AttemptAnswer{
		AttemptID:  attempt.ID,
		QuestionID: questionID,
		Value:      value,
	})
}

// FinalizeAttempt is the explicit submit action. Calling it at exactly the
// deadline still counts as a normal submit; calling it on an already
// finalized attempt returns the existing submission.
func (s *AttemptService) FinalizeAttempt(studentID uint, attemptID string) (*model.Submission, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.finalize(attempt)
}

// AttemptDetail is the student view of a running or finished attempt.
type AttemptDetail struct {
	Attempt          *model.Attempt  `json:"attempt"`
	RemainingSeconds int             `json:"remainingSeconds"`
	Answers          map[uint]string `json:"answers"`
}

// GetAttempt returns the attempt with remaining time. Reading an attempt
// past its deadline finalizes it first (the lazy expiry check).
func (s *AttemptService) GetAttempt(studentID uint, attemptID string) (*AttemptDetail, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == model.AttemptInProgress && s.now().After(attempt.EndTime) {
		if _, err := s.finalize(attempt); err != nil {
			return nil, err
		}
		attempt, err = s.AttemptRepo.FindByID(attemptID)
		if err != nil {
			return nil, err
		}
	}

	remaining := 0
	if attempt.Status == model.AttemptInProgress {
		remaining = int(attempt.EndTime.Sub(s.now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
	}

	rows, err := s.AttemptRepo.ListAnswers(attemptID)
	if err != nil {
		return nil, err
	}
	answers := make(map[uint]string, len(rows))
	for _, row := range rows {
		answers[row.QuestionID] = row.Value
	}

	return &AttemptDetail{Attempt: attempt, RemainingSeconds: remaining, Answers: answers}, nil
}

// SweepExpired finalizes every attempt whose deadline passed without a
// submit. Racing the lazy path or an explicit submit is harmless: the
// duplicate finalization degrades to a no-op. Returns the number of
// attempts finalized by this run.
func (s *AttemptService) SweepExpired() (int, error) {
	attempts, err := s.AttemptRepo.ListExpired(s.now(), s.SweepBatch)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for i := range attempts {
		if _, err := s.finalize(&attempts[i]); err != nil {
			if errors.Is(err, util.ErrAlreadyFinalized) {
				// Finalization cannot happen for this attempt; park it
				// as expired so the sweep stops revisiting it.
				s.markExpired(attempts[i].ID)
				continue
			}
			logger.Log.Error("expiry sweep finalization failed", zap.String("attemptId", attempts[i].ID), zap.Error(err))
			continue
		}
		finalized++
	}
	return finalized, nil
}

func (s *AttemptService) ownedAttempt(studentID uint, attemptID string) (*model.Attempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrAttemptNotFound
	}
	return attempt, nil
}

// errDuplicateSubmission aborts the finalize transaction when the unique
// index reports that another writer won the race.
var errDuplicateSubmission = errors.New("submission already exists")

// finalize converts the attempt into a Submission and Result exactly once.
// Explicit submit, lazy expiry and the background sweep all funnel through
// here; whichever writer inserts the submission first wins, and every other
// caller gets that same row back.
func (s *AttemptService) finalize(attempt *model.Attempt) (*model.Submission, error) {
	if attempt.Status != model.AttemptInProgress {
		return s.existingSubmission(attempt)
	}

	exam, err := s.ExamRepo.FindByID(attempt.ExamID)
	if err != nil {
		return nil, err
	}
	keys, err := keysByExam(s.QuestionRepo, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	working, err := s.AttemptRepo.ListAnswers(attempt.ID)
	if err != nil {
		return nil, err
	}

	answers := make([]model.SubmissionAnswer, 0, len(working))
	for _, w := range working {
		key, ok := keys[w.QuestionID]
		if !ok {
			continue // question deleted since the answer was recorded
		}
		outcome := scoring.Score(key, w.Value)
		answers = append(answers, model.SubmissionAnswer{
			QuestionID:    w.QuestionID,
			Given:         w.Value,
			IsCorrect:     outcome.IsCorrect,
			MarksObtained: outcome.MarksObtained,
			NeedsReview:   outcome.NeedsReview,
		})
	}

	total, pending := summarizeAnswers(answers)
	submission := &model.Submission{
		ExamID:             attempt.ExamID,
		StudentID:          attempt.StudentID,
		AttemptNumber:      attempt.AttemptNumber,
		TotalMarksObtained: total,
		Status:             submissionStatus(pending),
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(submission).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicateSubmission
			}
			return err
		}
		for i := range answers {
			answers[i].SubmissionID = submission.ID
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}

		var result model.Result
		deriveResult(&result, exam, submission, answers)
		if err := tx.Create(&result).Error; err != nil {
			return err
		}

		return tx.Model(&model.Attempt{}).
			Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
			Update("status", model.AttemptSubmitted).Error
	})

	if errors.Is(err, errDuplicateSubmission) {
		monitoring.FinalizationCounter.WithLabelValues("duplicate").Inc()
		return s.existingSubmission(attempt)
	}
	if err != nil {
		return nil, err
	}

	monitoring.FinalizationCounter.WithLabelValues("submitted").Inc()
	logger.Log.Info("attempt finalized",
		zap.String("attemptId", attempt.ID),
		zap.String("submissionId", submission.ID),
		zap.Int("totalMarksObtained", total))
	return submission, nil
}

// existingSubmission resolves the "already finalized" outcome: the race
// loser (or a repeated submit) returns the persisted row as success.
func (s *AttemptService) existingSubmission(attempt *model.Attempt) (*model.Submission, error) {
	existing, err := s.SubmissionRepo.FindByAttempt(attempt.ExamID, attempt.StudentID, attempt.AttemptNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAlreadyFinalized
		}
		return nil, err
	}
	// Make sure the attempt row reflects the finalized state even if the
	// winning writer crashed between inserting and flipping the status.
	s.DB.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
		Update("status", model.AttemptSubmitted)
	return existing, nil
}

func (s *AttemptService) markExpired(attemptID string) {
	s.DB.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Update("status", model.AttemptExpired)
}
