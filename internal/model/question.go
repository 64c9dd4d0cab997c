package model

type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "true_false"
	QuestionProject   QuestionType = "project"
)

// swagger:model Question
type Question struct {
	BaseModel
	ExamID      uint         `gorm:"index" json:"examId"`
	Type        QuestionType `gorm:"type:varchar(20);not null" json:"type"`
	Content     string       `gorm:"type:text;not null" json:"content"`
	Marks       int          `gorm:"not null" json:"marks"`
	Answer      string       `gorm:"type:text" json:"answer,omitempty"` // canonical answer for true_false
	Explanation string       `gorm:"type:text" json:"explanation,omitempty"`
	Order       int          `gorm:"default:0" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}

// QuestionOption holds one MCQ choice; exactly one row per question carries IsCorrect.
type QuestionOption struct {
	BaseModel
	QuestionID uint   `gorm:"index" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
