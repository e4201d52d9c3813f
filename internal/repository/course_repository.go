package repository

import (
	"context"
	"errors"
	"time"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint) (*model.Course, error) {
	var c model.Course
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CourseRepository) Archive(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.Course{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"archived": true, "archived_at": at}).Error
}

// Enroll is idempotent: a second call returns the existing enrollment.
func (r *CourseRepository) Enroll(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := model.Enrollment{UserID: userID, CourseID: courseID, EnrolledAt: time.Now()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *CourseRepository) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}
