package repository

import (
	"examhub_backend/internal/model"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Create(exam).Error
}

func (r *ExamRepository) Update(exam *model.Exam) error {
	return r.DB.Save(exam).Error
}

func (r *ExamRepository) FindByID(id uint) (*model.Exam, error) {
	var exam model.Exam
	if err := r.DB.First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) List(page, limit int, status model.ExamStatus) ([]model.Exam, int64, error) {
	query := r.DB.Model(&model.Exam{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var exams []model.Exam
	if limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	err := query.Order("created_at desc").Find(&exams).Error
	return exams, total, err
}

func (r *ExamRepository) UpdateStatus(id uint, from, to model.ExamStatus) (bool, error) {
	res := r.DB.Model(&model.Exam{}).Where("id = ? AND status = ?", id, from).Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (r *ExamRepository) SetTotalMarks(id uint, totalMarks int) error {
	return r.DB.Model(&model.Exam{}).Where("id = ?", id).Update("total_marks", totalMarks).Error
}

// ListRunningPastEnd returns in_progress exams whose window has closed, for
// the time-driven in_progress -> completed sweep.
func (r *ExamRepository) ListRunningPastEnd() ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.Where("status = ? AND end_date < CURRENT_TIMESTAMP", model.ExamInProgress).Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) GrantAccess(examID, studentID uint) error {
	access := &model.ExamAccess{ExamID: examID, StudentID: studentID}
	return r.DB.Where("exam_id = ? AND student_id = ?", examID, studentID).
		FirstOrCreate(access).Error
}

func (r *ExamRepository) RevokeAccess(examID, studentID uint) error {
	return r.DB.Where("exam_id = ? AND student_id = ?", examID, studentID).
		Delete(&model.ExamAccess{}).Error
}

func (r *ExamRepository) HasAccess(examID, studentID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.ExamAccess{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error
	return count > 0, err
}
