package model

import "time"

type ExamStatus string

const (
	ExamDraft      ExamStatus = "draft"
	ExamPublished  ExamStatus = "published"
	ExamInProgress ExamStatus = "in_progress"
	ExamCompleted  ExamStatus = "completed"
	ExamArchived   ExamStatus = "archived"
)

// swagger:model Exam
type Exam struct {
	BaseModel
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Duration     int        `gorm:"not null" json:"duration"` // Minutes
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	TotalMarks   int        `gorm:"default:0" json:"totalMarks"`
	PassingMarks int        `gorm:"default:0" json:"passingMarks"`
	MaxAttempts  int        `gorm:"default:1" json:"maxAttempts"`
	Status       ExamStatus `gorm:"type:varchar(20);default:'draft'" json:"status"`
	IsPublic     bool       `gorm:"default:true" json:"isPublic"`
	CreatorID    uint       `gorm:"index" json:"creatorId"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamAccess is the allow-list for private exams.
type ExamAccess struct {
	BaseModel
	ExamID    uint `gorm:"uniqueIndex:idx_exam_access" json:"examId"`
	StudentID uint `gorm:"uniqueIndex:idx_exam_access" json:"studentId"`
}

func (ExamAccess) TableName() string {
	return "exam_accesses"
}
