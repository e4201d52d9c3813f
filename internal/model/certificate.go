package model

import (
	"time"

	"gorm.io/datatypes"
)

// Certificate is immutable once issued: TemplateID and IssuedAt never change.
// swagger:model Certificate
type Certificate struct {
	Model
	UserID     uint      `gorm:"uniqueIndex:idx_certificates_user_course;not null" json:"userId"`
	CourseID   uint      `gorm:"uniqueIndex:idx_certificates_user_course;index;not null" json:"courseId"`
	TemplateID uint      `gorm:"not null" json:"templateId"`
	Serial     string    `gorm:"size:64;uniqueIndex" json:"serial"`
	IssuedAt   time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}

// CertificateLayout is the rendering metadata stored in CertificateTemplate.Layout.
type CertificateLayout struct {
	Width  int                    `json:"width"`
	Height int                    `json:"height"`
	Fields []CertificateLayoutBox `json:"fields"`
}

type CertificateLayoutBox struct {
	Name     string  `json:"name"` // learner_name, course_title, issued_at, serial
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Font     string  `json:"font"`
	FontSize float64 `json:"fontSize"`
	Color    string  `json:"color,omitempty"`
	Align    string  `json:"align,omitempty"`
}

// swagger:model CertificateTemplate
type CertificateTemplate struct {
	Model
	Name          string                                `gorm:"size:255;not null" json:"name"`
	IsActive      bool                                  `gorm:"index;default:false" json:"isActive"`
	BackgroundKey string                                `gorm:"size:255" json:"backgroundKey,omitempty"`
	Layout        datatypes.JSONType[CertificateLayout] `json:"layout"`
}

func (CertificateTemplate) TableName() string {
	return "certificate_templates"
}
