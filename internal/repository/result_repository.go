package repository

import (
	"examhub_backend/internal/model"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) FindBySubmission(submissionID string) (*model.Result, error) {
	var res model.Result
	if err := r.DB.Where("submission_id = ?", submissionID).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// FindLatest returns the result of the student's highest attempt number for
// the exam.
func (r *ResultRepository) FindLatest(examID, studentID uint) (*model.Result, error) {
	var res model.Result
	err := r.DB.Table("results r").
		Select("r.*").
		Joins("JOIN submissions s ON s.id = r.submission_id").
		Where("r.exam_id = ? AND r.student_id = ? AND r.deleted_at IS NULL", examID, studentID).
		Order("s.attempt_number desc").
		Limit(1).
		Scan(&res).Error
	if err != nil {
		return nil, err
	}
	if res.ID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return &res, nil
}

func (r *ResultRepository) ListByExam(examID uint, page, limit int) ([]model.Result, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Result{}).Where("exam_id = ?", examID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.DB.Where("exam_id = ?", examID).Order("created_at desc")
	if limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}

	var results []model.Result
	err := query.Find(&results).Error
	return results, total, err
}

// Release flips is_released on every result of the exam; returns the number
// of rows touched.
func (r *ResultRepository) Release(examID uint, released bool) (int64, error) {
	res := r.DB.Model(&model.Result{}).Where("exam_id = ?", examID).Update("is_released", released)
	return res.RowsAffected, res.Error
}
