package service

import (
	"errors"
	"fmt"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/scoring"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PropagationService re-derives every finalized Submission and Result after
// an answer key edit. Each Submission+Result pair is rewritten inside one
// transaction so readers never see the pair disagree; the whole run is
// idempotent because every field is recomputed from the stored answers and
// the current key.
type PropagationService struct {
	ExamRepo       *repository.ExamRepository
	QuestionRepo   *repository.QuestionRepository
	SubmissionRepo *repository.SubmissionRepository
	DB             *gorm.DB
}

func NewPropagationService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	submissionRepo *repository.SubmissionRepository,
	db *gorm.DB,
) *PropagationService {
	return &PropagationService{
		ExamRepo:       examRepo,
		QuestionRepo:   questionRepo,
		SubmissionRepo: submissionRepo,
		DB:             db,
	}
}

// OnAnswerKeyChanged re-scores every finalized submission that answered the
// edited question. In-progress attempts are left alone; they will be scored
// against the current key when they finalize. Returns the number of
// Submission+Result pairs updated.
func (s *PropagationService) OnAnswerKeyChanged(questionID uint, oldKey, newKey scoring.Key) (int, error) {
	if scoring.KeysEqual(oldKey, newKey) {
		return 0, nil
	}

	question, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, util.ErrQuestionNotFound
		}
		return 0, err
	}
	exam, err := s.ExamRepo.FindByID(question.ExamID)
	if err != nil {
		return 0, err
	}

	ids, err := s.SubmissionRepo.ListIDsByQuestion(questionID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// The authoring write already invalidated the cache; repeat here so a
	// propagation retry never grades against a stale key either.
	s.QuestionRepo.InvalidateExamCache(exam.ID)

	updated := 0
	for _, id := range ids {
		if err := s.repairPair(exam, id, questionID, newKey); err != nil {
			logger.Log.Error("answer key propagation interrupted",
				zap.Uint("questionId", questionID),
				zap.String("submissionId", id),
				zap.Int("updated", updated),
				zap.Int("remaining", len(ids)-updated),
				zap.Error(err))
			return updated, fmt.Errorf("%w: %v", util.ErrPropagationPartial, err)
		}
		updated++
	}

	monitoring.PropagationUpdates.Add(float64(updated))
	logger.Log.Info("answer key propagation completed",
		zap.Uint("questionId", questionID),
		zap.Int("updated", updated))
	return updated, nil
}

// repairPair rewrites one Submission and its Result as a single logical
// unit. Only the edited question's answer is re-scored; the totals and the
// result are recomputed from all stored answers so the pair is internally
// consistent whatever state the previous run left behind.
func (s *PropagationService) repairPair(exam *model.Exam, submissionID string, questionID uint, newKey scoring.Key) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var sub model.Submission
		if err := tx.First(&sub, "id = ?", submissionID).Error; err != nil {
			return err
		}

		var answers []model.SubmissionAnswer
		if err := tx.Where("submission_id = ?", submissionID).Order("question_id asc").Find(&answers).Error; err != nil {
			return err
		}

		for i := range answers {
			if answers[i].QuestionID != questionID {
				continue
			}
			// Re-score the stored answer; the student is never re-asked.
			outcome := scoring.Score(newKey, answers[i].Given)
			answers[i].IsCorrect = outcome.IsCorrect
			answers[i].MarksObtained = outcome.MarksObtained
			answers[i].NeedsReview = outcome.NeedsReview
			if err := tx.Save(&answers[i]).Error; err != nil {
				return err
			}
		}

		total, pending := summarizeAnswers(answers)
		sub.TotalMarksObtained = total
		if sub.Status != model.SubmissionEvaluated || pending {
			sub.Status = submissionStatus(pending)
		}
		if err := tx.Save(&sub).Error; err != nil {
			return err
		}

		var result model.Result
		if err := tx.First(&result, "submission_id = ?", submissionID).Error; err != nil {
			return err
		}
		deriveResult(&result, exam, &sub, answers)
		return tx.Save(&result).Error
	})
}
