package model

import "encoding/json"

type ResultStatus string

const (
	ResultPass          ResultStatus = "pass"
	ResultFail          ResultStatus = "fail"
	ResultPendingReview ResultStatus = "pending_review"
)

// Result is derived entirely from its Submission and the current answer
// keys; it is rewritten in place whenever either changes.
//
// swagger:model Result
type Result struct {
	UUIDBase
	SubmissionID  string          `gorm:"uniqueIndex;type:varchar(36)" json:"submissionId"`
	ExamID        uint            `gorm:"index" json:"examId"`
	StudentID     uint            `gorm:"index" json:"studentId"`
	TotalMarks    int             `gorm:"default:0" json:"totalMarks"`
	ObtainedMarks int             `gorm:"default:0" json:"obtainedMarks"`
	Percentage    float64         `gorm:"default:0" json:"percentage"`
	Status        ResultStatus    `gorm:"type:varchar(20);default:'pending_review'" json:"status"`
	Breakdown     json.RawMessage `gorm:"type:json" json:"breakdown"`
	IsReleased    bool            `gorm:"default:false" json:"isReleased"`
}

func (Result) TableName() string {
	return "results"
}

// ResultLine is one entry of the per-question breakdown JSON, mirroring a
// SubmissionAnswer row.
type ResultLine struct {
	QuestionID    uint   `json:"questionId"`
	Given         string `json:"given"`
	IsCorrect     bool   `json:"isCorrect"`
	MarksObtained int    `json:"marksObtained"`
	NeedsReview   bool   `json:"needsReview,omitempty"`
}
