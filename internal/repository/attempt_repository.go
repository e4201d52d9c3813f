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

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *model.Attempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *AttemptRepository) FindByID(ctx context.Context, id uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).
		Preload("Responses", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&a, id).Error
	if err != nil {
		return nil, notFoundAs(err, util.ErrAttemptNotFound)
	}
	return &a, nil
}

// CurrentResult returns the user's most recently finished attempt for a quiz:
// newest finished_at, then newest created_at. Take keeps gorm from adding its
// own primary key ordering ahead of ours.
func (r *AttemptRepository) CurrentResult(ctx context.Context, userID, quizID uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND finished_at IS NOT NULL", userID, quizID).
		Order("finished_at desc, created_at desc, id desc").
		Take(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) ListByUserQuiz(ctx context.Context, userID, quizID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("created_at desc, id desc").
		Find(&attempts).Error
	return attempts, err
}

// PassedQuizIDs returns which of quizIDs the user holds at least one passing attempt for.
func (r *AttemptRepository) PassedQuizIDs(ctx context.Context, userID uint, quizIDs []uint) ([]uint, error) {
	if len(quizIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("user_id = ? AND quiz_id IN ? AND passed = ? AND finished_at IS NOT NULL", userID, quizIDs, true).
		Distinct().
		Pluck("quiz_id", &ids).Error
	return ids, err
}

// Finalize writes the responses and then marks the attempt finished. It must
// run inside a transaction. Responses are keyed by (attempt, question), so a
// rerun after a partial failure never duplicates them, and the attempt row
// only moves to finished once: finalized is false when another writer got
// there first, in which case the caller must reload the stored grade.
func (r *AttemptRepository) Finalize(ctx context.Context, attemptID uint, responses []model.Response, score int, passed bool, at time.Time) (finalized bool, err error) {
	db := r.DB.WithContext(ctx)
	if len(responses) > 0 {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&responses).Error; err != nil {
			return false, err
		}
	}
	res := db.Model(&model.Attempt{}).
		Where("id = ? AND finished_at IS NULL", attemptID).
		Updates(map[string]interface{}{
			"score":       score,
			"passed":      passed,
			"finished_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
