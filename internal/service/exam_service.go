package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExamService owns authoring: exam CRUD, status transitions, the question
// bank with its answer keys, and the allow-list. It is the only writer of
// answer keys, and every key edit invokes the propagator synchronously
// before the edit call returns.
type ExamService struct {
	ExamRepo     *repository.ExamRepository
	QuestionRepo *repository.QuestionRepository
	Propagation  *PropagationService
}

func NewExamService(examRepo *repository.ExamRepository, questionRepo *repository.QuestionRepository, propagation *PropagationService) *ExamService {
	return &ExamService{ExamRepo: examRepo, QuestionRepo: questionRepo, Propagation: propagation}
}

type ExamRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Duration     *int       `json:"duration"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	PassingMarks *int       `json:"passingMarks"`
	MaxAttempts  *int       `json:"maxAttempts"`
	IsPublic     *bool      `json:"isPublic"`
}

func (s *ExamService) CreateExam(creatorID uint, req ExamRequest) (*model.Exam, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrInvalidExam)
	}
	if req.Duration == nil || *req.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", util.ErrInvalidExam)
	}
	if req.StartDate == nil || req.EndDate == nil || !req.EndDate.After(*req.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", util.ErrInvalidExam)
	}

	exam := &model.Exam{
		Title:       *req.Title,
		Duration:    *req.Duration,
		StartDate:   *req.StartDate,
		EndDate:     *req.EndDate,
		MaxAttempts: 1,
		Status:      model.ExamDraft,
		IsPublic:    true,
		CreatorID:   creatorID,
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.PassingMarks != nil {
		exam.PassingMarks = *req.PassingMarks
	}
	if req.MaxAttempts != nil && *req.MaxAttempts > 0 {
		exam.MaxAttempts = *req.MaxAttempts
	}
	if req.IsPublic != nil {
		exam.IsPublic = *req.IsPublic
	}

	if err := s.ExamRepo.Create(exam); err != nil {
		return nil, err
	}
	return exam, nil
}

func (s *ExamService) UpdateExam(examID uint, req ExamRequest) (*model.Exam, error) {
	exam, err := s.findExam(examID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.Duration != nil {
		exam.Duration = *req.Duration
	}
	if req.StartDate != nil {
		exam.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		exam.EndDate = *req.EndDate
	}
	if req.PassingMarks != nil {
		exam.PassingMarks = *req.PassingMarks
	}
	if req.MaxAttempts != nil {
		exam.MaxAttempts = *req.MaxAttempts
	}
	if req.IsPublic != nil {
		exam.IsPublic = *req.IsPublic
	}

	if !exam.EndDate.After(exam.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", util.ErrInvalidExam)
	}
	if exam.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", util.ErrInvalidExam)
	}

	if err := s.ExamRepo.Update(exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// allowed author-driven forward transitions
var examTransitions = map[model.ExamStatus]model.ExamStatus{
	model.ExamDraft:      model.ExamPublished,
	model.ExamPublished:  model.ExamInProgress,
	model.ExamInProgress: model.ExamCompleted,
	model.ExamCompleted:  model.ExamArchived,
}

// TransitionStatus advances the exam one step. Publishing also checks the
// passingMarks <= totalMarks invariant, which only becomes meaningful once
// the question bank carries marks.
func (s *ExamService) TransitionStatus(examID uint, to model.ExamStatus) (*model.Exam, error) {
	exam, err := s.findExam(examID)
	if err != nil {
		return nil, err
	}

	next, ok := examTransitions[exam.Status]
	if !ok || next != to {
		return nil, fmt.Errorf("%w: cannot move exam from %s to %s", util.ErrInvalidExam, exam.Status, to)
	}
	if to == model.ExamPublished && exam.PassingMarks > exam.TotalMarks {
		return nil, fmt.Errorf("%w: passing marks %d exceed total marks %d", util.ErrInvalidExam, exam.PassingMarks, exam.TotalMarks)
	}

	moved, err := s.ExamRepo.UpdateStatus(examID, exam.Status, to)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: exam status changed concurrently", util.ErrInvalidExam)
	}
	exam.Status = to
	return exam, nil
}

// SweepCompleted is the time-driven in_progress -> completed transition.
func (s *ExamService) SweepCompleted() (int, error) {
	exams, err := s.ExamRepo.ListRunningPastEnd()
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, exam := range exams {
		moved, err := s.ExamRepo.UpdateStatus(exam.ID, model.ExamInProgress, model.ExamCompleted)
		if err != nil {
			logger.Log.Error("exam completion sweep failed", zap.Uint("examId", exam.ID), zap.Error(err))
			continue
		}
		if moved {
			completed++
		}
	}
	return completed, nil
}

func (s *ExamService) GetExam(examID uint) (*model.Exam, []repository.QuestionWithOptions, error) {
	exam, err := s.findExam(examID)
	if err != nil {
		return nil, nil, err
	}
	qs, err := s.QuestionRepo.ListByExam(examID)
	return exam, qs, err
}

// StudentQuestion is a question as served to students: no correctness
// flags, no canonical answers.
type StudentQuestion struct {
	ID      uint               `json:"id"`
	Type    model.QuestionType `json:"type"`
	Content string             `json:"content"`
	Marks   int                `json:"marks"`
	Order   int                `json:"order"`
	Options []StudentOption    `json:"options,omitempty"`
}

type StudentOption struct {
	ID    uint   `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// GetExamForStudent strips every answer-key field from the question set.
func (s *ExamService) GetExamForStudent(examID uint) (*model.Exam, []StudentQuestion, error) {
	exam, qs, err := s.GetExam(examID)
	if err != nil {
		return nil, nil, err
	}

	out := make([]StudentQuestion, 0, len(qs))
	for _, q := range qs {
		sq := StudentQuestion{
			ID:      q.ID,
			Type:    q.Type,
			Content: q.Content,
			Marks:   q.Marks,
			Order:   q.Order,
		}
		for _, opt := range q.Options {
			sq.Options = append(sq.Options, StudentOption{ID: opt.ID, Text: opt.Text, Order: opt.Order})
		}
		out = append(out, sq)
	}
	return exam, out, nil
}

func (s *ExamService) ListExams(page, limit int, status model.ExamStatus) ([]model.Exam, int64, error) {
	return s.ExamRepo.List(page, limit, status)
}

func (s *ExamService) GrantAccess(examID, studentID uint) error {
	if _, err := s.findExam(examID); err != nil {
		return err
	}
	return s.ExamRepo.GrantAccess(examID, studentID)
}

func (s *ExamService) RevokeAccess(examID, studentID uint) error {
	return s.ExamRepo.RevokeAccess(examID, studentID)
}

type QuestionOptionRequest struct {
	ID        uint   `json:"id"`
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
	Order     int    `json:"order"`
}

type QuestionRequest struct {
	Type        model.QuestionType      `json:"type" binding:"required"`
	Content     string                  `json:"content" binding:"required"`
	Marks       int                     `json:"marks"`
	Answer      string                  `json:"answer"`
	Explanation string                  `json:"explanation"`
	Order       int                     `json:"order"`
	Options     []QuestionOptionRequest `json:"options"`
}

// validateKey rejects a question whose answer key cannot grade anything:
// MCQ needs at least two options with exactly one flagged correct,
// true/false needs a canonical true or false answer.
func validateKey(req QuestionRequest) error {
	if req.Marks <= 0 {
		return fmt.Errorf("%w: marks must be positive", util.ErrInvalidAnswerKey)
	}
	switch req.Type {
	case model.QuestionMCQ:
		if len(req.Options) < 2 {
			return fmt.Errorf("%w: mcq needs at least two options", util.ErrInvalidAnswerKey)
		}
		correct := 0
		for _, opt := range req.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: mcq needs exactly one correct option, got %d", util.ErrInvalidAnswerKey, correct)
		}
	case model.QuestionTrueFalse:
		answer := strings.ToLower(strings.TrimSpace(req.Answer))
		if answer != "true" && answer != "false" {
			return fmt.Errorf("%w: true_false answer must be true or false", util.ErrInvalidAnswerKey)
		}
	case model.QuestionProject:
		// no key; graded manually
	default:
		return fmt.Errorf("%w: unknown question type %q", util.ErrInvalidAnswerKey, req.Type)
	}
	return nil
}

func (s *ExamService) AddQuestion(examID uint, req QuestionRequest) (*model.Question, error) {
	if _, err := s.findExam(examID); err != nil {
		return nil, err
	}
	if err := validateKey(req); err != nil {
		return nil, err
	}

	q := &model.Question{
		ExamID:      examID,
		Type:        req.Type,
		Content:     req.Content,
		Marks:       req.Marks,
		Answer:      req.Answer,
		Explanation: req.Explanation,
		Order:       req.Order,
	}
	options := make([]model.QuestionOption, 0, len(req.Options))
	for _, opt := range req.Options {
		options = append(options, model.QuestionOption{
			Text:      opt.Text,
			IsCorrect: opt.IsCorrect,
			Order:     opt.Order,
		})
	}

	if err := s.QuestionRepo.Create(q, options); err != nil {
		return nil, err
	}
	if err := s.refreshTotalMarks(examID); err != nil {
		return nil, err
	}
	return q, nil
}

// UpdateQuestion applies an authoring edit and, when the edit changed the
// answer key or the marks, synchronously re-scores every finalized
// submission. Returns the number of Submission+Result pairs updated.
func (s *ExamService) UpdateQuestion(questionID uint, req QuestionRequest) (*model.Question, int, error) {
	q, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, util.ErrQuestionNotFound
		}
		return nil, 0, err
	}
	if err := validateKey(req); err != nil {
		return nil, 0, err
	}

	oldOptions, err := s.QuestionRepo.ListOptions(questionID)
	if err != nil {
		return nil, 0, err
	}
	oldKey := keyForQuestion(repository.QuestionWithOptions{Question: *q, Options: oldOptions})

	q.Type = req.Type
	q.Content = req.Content
	q.Marks = req.Marks
	q.Answer = req.Answer
	q.Explanation = req.Explanation
	q.Order = req.Order

	options := make([]model.QuestionOption, 0, len(req.Options))
	for _, opt := range req.Options {
		options = append(options, model.QuestionOption{
			BaseModel: model.BaseModel{ID: opt.ID},
			Text:      opt.Text,
			IsCorrect: opt.IsCorrect,
			Order:     opt.Order,
		})
	}

	if err := s.QuestionRepo.Update(q, options); err != nil {
		return nil, 0, err
	}
	if err := s.refreshTotalMarks(q.ExamID); err != nil {
		return nil, 0, err
	}

	newOptions, err := s.QuestionRepo.ListOptions(questionID)
	if err != nil {
		return nil, 0, err
	}
	newKey := keyForQuestion(repository.QuestionWithOptions{Question: *q, Options: newOptions})

	updated, err := s.Propagation.OnAnswerKeyChanged(questionID, oldKey, newKey)
	if err != nil {
		return nil, updated, err
	}
	return q, updated, nil
}

func (s *ExamService) DeleteQuestion(questionID uint) error {
	q, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}
	if err := s.QuestionRepo.Delete(q); err != nil {
		return err
	}
	return s.refreshTotalMarks(q.ExamID)
}

// refreshTotalMarks keeps exam.totalMarks equal to the sum of its
// questions' marks.
func (s *ExamService) refreshTotalMarks(examID uint) error {
	total, err := s.QuestionRepo.SumMarks(examID)
	if err != nil {
		return err
	}
	return s.ExamRepo.SetTotalMarks(examID, total)
}

func (s *ExamService) findExam(examID uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	return exam, nil
}
