package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model Course
type Course struct {
	Model
	Title        string         `gorm:"size:255;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	InstructorID uint           `gorm:"index" json:"instructorId"`
	Archived     bool           `gorm:"default:false" json:"archived"`
	ArchivedAt   *time.Time     `json:"archivedAt,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type Enrollment struct {
	Model
	UserID     uint      `gorm:"uniqueIndex:idx_enrollments_user_course" json:"userId"`
	CourseID   uint      `gorm:"uniqueIndex:idx_enrollments_user_course;index" json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
