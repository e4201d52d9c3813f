package repository

import (
	"context"
	"errors"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"

	"gorm.io/gorm"
)

// ModuleRepository reads modules and their lessons. Positional writes go
// through the ordering manager.
type ModuleRepository struct {
	DB *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: db}
}

func (r *ModuleRepository) WithTx(tx *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: tx}
}

func byOrdering(db *gorm.DB) *gorm.DB {
	return db.Order("ordering asc, id asc")
}

func (r *ModuleRepository) FindByID(ctx context.Context, id uint) (*model.Module, error) {
	var m model.Module
	if err := r.DB.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListByCourse returns the course's modules in order with their lessons in order.
func (r *ModuleRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Module, error) {
	var modules []model.Module
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Preload("Lessons", byOrdering).
		Scopes(byOrdering).
		Find(&modules).Error
	return modules, err
}

func (r *ModuleRepository) FindLesson(ctx context.Context, id uint) (*model.Lesson, error) {
	var l model.Lesson
	if err := r.DB.WithContext(ctx).First(&l, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *ModuleRepository) UpdateModuleTitle(ctx context.Context, id uint, title string) error {
	return r.DB.WithContext(ctx).Model(&model.Module{}).Where("id = ?", id).Update("title", title).Error
}

func (r *ModuleRepository) UpdateLessonFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(&model.Lesson{}).Where("id = ?", id).Updates(fields).Error
}
