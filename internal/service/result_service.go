package service

import (
	"errors"
	"fmt"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResultService serves graded outcomes to students and teachers and handles
// the manual grading of project answers.
type ResultService struct {
	ExamRepo       *repository.ExamRepository
	QuestionRepo   *repository.QuestionRepository
	SubmissionRepo *repository.SubmissionRepository
	ResultRepo     *repository.ResultRepository
	DB             *gorm.DB
}

func NewResultService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	submissionRepo *repository.SubmissionRepository,
	resultRepo *repository.ResultRepository,
	db *gorm.DB,
) *ResultService {
	return &ResultService{
		ExamRepo:       examRepo,
		QuestionRepo:   questionRepo,
		SubmissionRepo: submissionRepo,
		ResultRepo:     resultRepo,
		DB:             db,
	}
}

// GetResult returns the student's result for their latest attempt. Students
// only see it once the teacher has released the exam's results.
func (s *ResultService) GetResult(examID, studentID uint) (*model.Result, error) {
	result, err := s.ResultRepo.FindLatest(examID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrResultNotFound
		}
		return nil, err
	}
	if !result.IsReleased {
		return nil, util.ErrResultNotReleased
	}
	return result, nil
}

// GetResultForTeacher skips the release gate.
func (s *ResultService) GetResultForTeacher(examID, studentID uint) (*model.Result, error) {
	result, err := s.ResultRepo.FindLatest(examID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrResultNotFound
		}
		return nil, err
	}
	return result, nil
}

func (s *ResultService) ListByExam(examID uint, page, limit int) ([]model.Result, int64, error) {
	return s.ResultRepo.ListByExam(examID, page, limit)
}

func (s *ResultService) ListSubmissions(examID uint, page, limit int) ([]repository.SubmissionListRow, int64, error) {
	return s.SubmissionRepo.ListByExam(examID, page, limit)
}

func (s *ResultService) GetSubmissionAnswers(submissionID string) (*model.Submission, []model.SubmissionAnswer, error) {
	sub, err := s.SubmissionRepo.FindByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrSubmissionNotFound
		}
		return nil, nil, err
	}
	answers, err := s.SubmissionRepo.ListAnswers(submissionID)
	return sub, answers, err
}

// Release makes every result of the exam visible to students. Returns the
// number of results released.
func (s *ResultService) Release(examID uint, released bool) (int64, error) {
	if _, err := s.ExamRepo.FindByID(examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, util.ErrExamNotFound
		}
		return 0, err
	}
	count, err := s.ResultRepo.Release(examID, released)
	if err != nil {
		return 0, err
	}
	logger.Log.Info("exam results release toggled",
		zap.Uint("examId", examID),
		zap.Bool("released", released),
		zap.Int64("count", count))
	return count, nil
}

// GradeProjectAnswer records a teacher's marks for one project answer and
// recomputes the submission and result. When no answers remain pending the
// submission flips to evaluated.
func (s *ResultService) GradeProjectAnswer(submissionID string, questionID uint, marks int) (*model.Result, error) {
	sub, err := s.SubmissionRepo.FindByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}

	question, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	if question.Type != model.QuestionProject {
		return nil, fmt.Errorf("%w: question %d is not a project question", util.ErrInvalidAnswerKey, questionID)
	}
	if marks < 0 || marks > question.Marks {
		return nil, fmt.Errorf("%w: marks must be between 0 and %d", util.ErrInvalidAnswerKey, question.Marks)
	}

	exam, err := s.ExamRepo.FindByID(sub.ExamID)
	if err != nil {
		return nil, err
	}

	var result model.Result
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var answer model.SubmissionAnswer
		err := tx.Where("submission_id = ? AND question_id = ?", submissionID, questionID).First(&answer).Error
		if err != nil {
			return err
		}

		answer.MarksObtained = marks
		answer.IsCorrect = marks == question.Marks
		answer.NeedsReview = false
		if err := tx.Save(&answer).Error; err != nil {
			return err
		}

		var answers []model.SubmissionAnswer
		if err := tx.Where("submission_id = ?", submissionID).Order("question_id asc").Find(&answers).Error; err != nil {
			return err
		}

		total, pending := summarizeAnswers(answers)
		sub.TotalMarksObtained = total
		if pending {
			sub.Status = model.SubmissionPendingReview
		} else {
			sub.Status = model.SubmissionEvaluated
		}
		if err := tx.Save(sub).Error; err != nil {
			return err
		}

		if err := tx.First(&result, "submission_id = ?", submissionID).Error; err != nil {
			return err
		}
		deriveResult(&result, exam, sub, answers)
		return tx.Save(&result).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("project answer graded",
		zap.String("submissionId", submissionID),
		zap.Uint("questionId", questionID),
		zap.Int("marks", marks))
	return &result, nil
}
