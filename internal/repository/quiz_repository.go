package repository

import (
	"context"
	"errors"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func withQuestions(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Questions", byOrdering).
		Preload("Questions.Options", byOrdering)
}

func notFoundAs(err, as error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return as
	}
	return err
}

func (r *QuizRepository) FindByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.DB.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, notFoundAs(err, util.ErrQuizNotFound)
	}
	return &q, nil
}

// FindWithQuestions loads the quiz with questions and options in order.
func (r *QuizRepository) FindWithQuestions(ctx context.Context, id uint) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.DB.WithContext(ctx).Scopes(withQuestions).First(&q, id).Error; err != nil {
		return nil, notFoundAs(err, util.ErrQuizNotFound)
	}
	return &q, nil
}

func (r *QuizRepository) FindFinalByCourse(ctx context.Context, courseID uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.WithContext(ctx).
		Where("course_id = ? AND module_id IS NULL", courseID).
		Order("id asc").
		First(&q).Error
	if err != nil {
		return nil, notFoundAs(err, util.ErrQuizNotFound)
	}
	return &q, nil
}

func (r *QuizRepository) FindByModule(ctx context.Context, moduleID uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.WithContext(ctx).Where("module_id = ?", moduleID).Order("id asc").First(&q).Error
	if err != nil {
		return nil, notFoundAs(err, util.ErrQuizNotFound)
	}
	return &q, nil
}

func (r *QuizRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.WithContext(ctx).Where("course_id = ?", courseID).Order("id asc").Find(&quizzes).Error
	return quizzes, err
}

// ReplaceQuestions drops the quiz's questions and options and writes the
// given set. Run it inside a transaction.
func (r *QuizRepository) ReplaceQuestions(ctx context.Context, quizID uint, questions []model.Question) error {
	db := r.DB.WithContext(ctx)
	sub := db.Model(&model.Question{}).Select("id").Where("quiz_id = ?", quizID)
	if err := db.Where("question_id IN (?)", sub).Delete(&model.Option{}).Error; err != nil {
		return err
	}
	if err := db.Where("quiz_id = ?", quizID).Delete(&model.Question{}).Error; err != nil {
		return err
	}
	for i := range questions {
		questions[i].ID = 0
		questions[i].QuizID = quizID
		opts := questions[i].Options
		questions[i].Options = nil
		if err := db.Create(&questions[i]).Error; err != nil {
			return err
		}
		for j := range opts {
			opts[j].ID = 0
			opts[j].QuestionID = questions[i].ID
		}
		if len(opts) > 0 {
			if err := db.Create(&opts).Error; err != nil {
				return err
			}
		}
		questions[i].Options = opts
	}
	return nil
}
