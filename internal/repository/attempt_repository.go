package repository

import (
	"time"

	"examhub_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) CountByExamAndStudent(examID, studentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error
	return count, err
}

// UpsertAnswer writes the working answer for one question, replacing any
// earlier value for the same (attempt, question) pair.
func (r *AttemptRepository) UpsertAnswer(answer *model.AttemptAnswer) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(answer).Error
}

func (r *AttemptRepository) ListAnswers(attemptID string) ([]model.AttemptAnswer, error) {
	var answers []model.AttemptAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

// ListExpired returns in-progress attempts whose deadline has passed, for
// the background sweep.
func (r *AttemptRepository) ListExpired(now time.Time, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	query := r.DB.Where("status = ? AND end_time < ?", model.AttemptInProgress, now)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&attempts).Error
	return attempts, err
}
