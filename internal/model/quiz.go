package model

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// HasOptions reports whether questions of this type are answered by picking an option.
func (t QuestionType) HasOptions() bool {
	return t == MultipleChoice || t == TrueFalse
}

// swagger:model Quiz
type Quiz struct {
	Model
	CourseID     uint       `gorm:"index;not null" json:"courseId"`
	ModuleID     *uint      `gorm:"index" json:"moduleId"` // nil for the final course-level quiz
	Title        string     `gorm:"size:255" json:"title"`
	PassingScore int        `gorm:"default:0" json:"passingScore"`
	Questions    []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

func (q *Quiz) IsFinal() bool {
	return q.ModuleID == nil
}

// swagger:model Question
type Question struct {
	Model
	QuizID   uint         `gorm:"index;not null" json:"quizId"`
	Prompt   string       `gorm:"type:text" json:"prompt"`
	Type     QuestionType `gorm:"size:32;not null" json:"type"`
	Ordering int          `gorm:"default:0" json:"ordering"`
	Options  []Option     `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Option
type Option struct {
	Model
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect,omitempty"`
	Ordering   int    `gorm:"default:0" json:"ordering"`
}

func (Option) TableName() string {
	return "options"
}
