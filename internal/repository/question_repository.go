package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"examhub_backend/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const questionCacheTTL = 5 * time.Minute

type QuestionRepository struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func NewQuestionRepository(db *gorm.DB, rdb *redis.Client) *QuestionRepository {
	return &QuestionRepository{DB: db, RDB: rdb}
}

// QuestionWithOptions bundles a question with its MCQ options; this is the
// unit the cache stores and the grading paths consume.
type QuestionWithOptions struct {
	model.Question
	Options []model.QuestionOption `json:"options"`
}

func (r *QuestionRepository) Create(q *model.Question, options []model.QuestionOption) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		for i := range options {
			options[i].QuestionID = q.ID
		}
		if len(options) > 0 {
			if err := tx.Create(&options).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.InvalidateExamCache(q.ExamID)
	return nil
}

// Update rewrites the question row and reconciles its option set: options
// carrying an id are updated in place, new ones are created, missing ones
// are deleted. Keeping option ids stable matters because finalized
// submissions reference them as the student's given answer.
func (r *QuestionRepository) Update(q *model.Question, options []model.QuestionOption) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(q).Error; err != nil {
			return err
		}
		if options == nil {
			return nil
		}

		var existing []model.QuestionOption
		if err := tx.Where("question_id = ?", q.ID).Find(&existing).Error; err != nil {
			return err
		}
		keep := make(map[uint]bool, len(options))
		for i := range options {
			options[i].QuestionID = q.ID
			if options[i].ID != 0 {
				keep[options[i].ID] = true
				if err := tx.Save(&options[i]).Error; err != nil {
					return err
				}
			} else {
				if err := tx.Create(&options[i]).Error; err != nil {
					return err
				}
			}
		}
		for _, opt := range existing {
			if !keep[opt.ID] {
				if err := tx.Delete(&model.QuestionOption{}, opt.ID).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.InvalidateExamCache(q.ExamID)
	return nil
}

func (r *QuestionRepository) Delete(q *model.Question) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", q.ID).Delete(&model.QuestionOption{}).Error; err != nil {
			return err
		}
		return tx.Delete(q).Error
	})
	if err != nil {
		return err
	}
	r.InvalidateExamCache(q.ExamID)
	return nil
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var q model.Question
	if err := r.DB.First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) ListOptions(questionID uint) ([]model.QuestionOption, error) {
	var options []model.QuestionOption
	err := r.DB.Where("question_id = ?", questionID).Order("`order` asc, id asc").Find(&options).Error
	return options, err
}

// ListByExam returns the exam's questions with options, read-through cached
// in redis. Every authoring write and every key propagation invalidates the
// cache first, so grading never sees a stale key.
func (r *QuestionRepository) ListByExam(examID uint) ([]QuestionWithOptions, error) {
	key := questionCacheKey(examID)

	if r.RDB != nil {
		if raw, err := r.RDB.Get(context.Background(), key).Bytes(); err == nil {
			var cached []QuestionWithOptions
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var qs []model.Question
	if err := r.DB.Where("exam_id = ?", examID).Order("`order` asc, id asc").Find(&qs).Error; err != nil {
		return nil, err
	}

	out := make([]QuestionWithOptions, 0, len(qs))
	for _, q := range qs {
		options, err := r.ListOptions(q.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, QuestionWithOptions{Question: q, Options: options})
	}

	if r.RDB != nil {
		if raw, err := json.Marshal(out); err == nil {
			r.RDB.Set(context.Background(), key, raw, questionCacheTTL)
		}
	}
	return out, nil
}

func (r *QuestionRepository) InvalidateExamCache(examID uint) {
	if r.RDB == nil {
		return
	}
	r.RDB.Del(context.Background(), questionCacheKey(examID))
}

func (r *QuestionRepository) SumMarks(examID uint) (int, error) {
	var total int64
	err := r.DB.Model(&model.Question{}).Where("exam_id = ?", examID).
		Select("COALESCE(SUM(marks), 0)").Scan(&total).Error
	return int(total), err
}

func questionCacheKey(examID uint) string {
	return fmt.Sprintf("exam:%d:questions", examID)
}
