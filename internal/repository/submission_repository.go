package repository

import (
	"examhub_backend/internal/model"

	"gorm.io/gorm"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) FindByID(id string) (*model.Submission, error) {
	var s model.Submission
	if err := r.DB.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) FindByAttempt(examID, studentID uint, attemptNumber int) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.Where("exam_id = ? AND student_id = ? AND attempt_number = ?", examID, studentID, attemptNumber).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) ListAnswers(submissionID string) ([]model.SubmissionAnswer, error) {
	var answers []model.SubmissionAnswer
	err := r.DB.Where("submission_id = ?", submissionID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

// ListIDsByQuestion returns the ids of every finalized submission holding
// an answer to the given question, i.e. the set the propagator must visit.
func (r *SubmissionRepository) ListIDsByQuestion(questionID uint) ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.SubmissionAnswer{}).
		Joins("JOIN submissions ON submissions.id = submission_answers.submission_id").
		Where("submission_answers.question_id = ? AND submissions.deleted_at IS NULL", questionID).
		Order("submission_answers.submission_id asc").
		Pluck("submission_answers.submission_id", &ids).Error
	return ids, err
}

type SubmissionListRow struct {
	model.Submission
	StudentName string `json:"studentName"`
}

func (r *SubmissionRepository) ListByExam(examID uint, page, limit int) ([]SubmissionListRow, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Submission{}).Where("exam_id = ?", examID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.DB.Table("submissions s").
		Select("s.*, u.name as student_name").
		Joins("JOIN users u ON u.id = s.student_id").
		Where("s.exam_id = ? AND s.deleted_at IS NULL", examID).
		Order("s.created_at desc")
	if limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}

	var rows []SubmissionListRow
	err := query.Scan(&rows).Error
	return rows, total, err
}
