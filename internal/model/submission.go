package model

type SubmissionStatus string

const (
	SubmissionSubmitted     SubmissionStatus = "submitted"
	SubmissionPendingReview SubmissionStatus = "pending_review"
	SubmissionEvaluated     SubmissionStatus = "evaluated"
)

// Submission is the finalized record of one attempt. The compound unique
// index on (exam_id, student_id, attempt_number) is the arbitration
// mechanism that makes finalization exactly-once: the losing writer of a
// race gets a duplicate-key error and returns the existing row instead.
//
// swagger:model Submission
type Submission struct {
	UUIDBase
	ExamID             uint             `gorm:"uniqueIndex:idx_submission_exam_student_no" json:"examId"`
	StudentID          uint             `gorm:"uniqueIndex:idx_submission_exam_student_no" json:"studentId"`
	AttemptNumber      int              `gorm:"uniqueIndex:idx_submission_exam_student_no" json:"attemptNumber"`
	TotalMarksObtained int              `gorm:"default:0" json:"totalMarksObtained"`
	Status             SubmissionStatus `gorm:"type:varchar(20);default:'submitted'" json:"status"`
}

func (Submission) TableName() string {
	return "submissions"
}

// SubmissionAnswer is one scored answer. NeedsReview marks project answers
// awaiting manual grading.
type SubmissionAnswer struct {
	BaseModel
	SubmissionID  string `gorm:"uniqueIndex:idx_submission_question;type:varchar(36)" json:"submissionId"`
	QuestionID    uint   `gorm:"uniqueIndex:idx_submission_question;index" json:"questionId"`
	Given         string `gorm:"type:text" json:"given"`
	IsCorrect     bool   `gorm:"default:false" json:"isCorrect"`
	MarksObtained int    `gorm:"default:0" json:"marksObtained"`
	NeedsReview   bool   `gorm:"default:false" json:"needsReview"`
}

func (SubmissionAnswer) TableName() string {
	return "submission_answers"
}
