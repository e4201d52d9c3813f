package repository

import (
	"context"
	"time"

	"coursecraft_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionRepository stores lesson completions. Rows are only ever inserted.
type CompletionRepository struct {
	DB *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{DB: db}
}

// Record inserts the (user, lesson) fact. created is false when it already existed.
func (r *CompletionRepository) Record(ctx context.Context, userID, lessonID uint, at time.Time) (created bool, err error) {
	row := model.LessonCompletion{UserID: userID, LessonID: lessonID, CompletedAt: at}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompletedLessonIDs filters lessonIDs down to those the user completed.
func (r *CompletionRepository) CompletedLessonIDs(ctx context.Context, userID uint, lessonIDs []uint) ([]uint, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.LessonCompletion{}).
		Where("user_id = ? AND lesson_id IN ?", userID, lessonIDs).
		Pluck("lesson_id", &ids).Error
	return ids, err
}
