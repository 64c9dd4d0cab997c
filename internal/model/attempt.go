package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptExpired    AttemptStatus = "expired"
)

// swagger:model Attempt
type Attempt struct {
	UUIDBase
	ExamID        uint          `gorm:"uniqueIndex:idx_attempt_exam_student_no" json:"examId"`
	StudentID     uint          `gorm:"uniqueIndex:idx_attempt_exam_student_no" json:"studentId"`
	AttemptNumber int           `gorm:"uniqueIndex:idx_attempt_exam_student_no" json:"attemptNumber"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       time.Time     `json:"endTime"`
	Status        AttemptStatus `gorm:"type:varchar(20);default:'in_progress'" json:"status"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// AttemptAnswer stores the working answer for one question while the attempt
// is in progress. Upserted on (attempt_id, question_id).
type AttemptAnswer struct {
	BaseModel
	AttemptID  string `gorm:"uniqueIndex:idx_attempt_question;type:varchar(36)" json:"attemptId"`
	QuestionID uint   `gorm:"uniqueIndex:idx_attempt_question" json:"questionId"`
	Value      string `gorm:"type:text" json:"value"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
