package model

import "time"

// swagger:model Module
type Module struct {
	Model
	CourseID uint     `gorm:"uniqueIndex:idx_modules_course_ordering;not null" json:"courseId"`
	Title    string   `gorm:"size:255;not null" json:"title"`
	Ordering int      `gorm:"uniqueIndex:idx_modules_course_ordering;not null" json:"ordering"`
	Lessons  []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}

// swagger:model Lesson
type Lesson struct {
	Model
	ModuleID uint   `gorm:"uniqueIndex:idx_lessons_module_ordering;not null" json:"moduleId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
	Ordering int    `gorm:"uniqueIndex:idx_lessons_module_ordering;not null" json:"ordering"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// LessonCompletion is an append-only fact. Rows are never updated.
type LessonCompletion struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:idx_lesson_completions_user_lesson" json:"userId"`
	LessonID    uint      `gorm:"uniqueIndex:idx_lesson_completions_user_lesson;index" json:"lessonId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (LessonCompletion) TableName() string {
	return "lesson_completions"
}
