package service

import (
	"context"
	"strings"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/ordering"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ModuleService struct {
	ModuleRepo    *repository.ModuleRepository
	CourseService *CourseService
	Ordering      *ordering.Manager
}

func NewModuleService(moduleRepo *repository.ModuleRepository, courseService *CourseService, manager *ordering.Manager) *ModuleService {
	return &ModuleService{
		ModuleRepo:    moduleRepo,
		CourseService: courseService,
		Ordering:      manager,
	}
}

type ModuleCreateRequest struct {
	CourseID uint   `json:"courseId" form:"course_id" binding:"required"`
	Title    string `json:"title" form:"title" binding:"required,max=255"`
	// Ordering is the desired 1-based position; nil appends.
	Ordering *int `json:"ordering" form:"-"`
}

type ModuleUpdateRequest struct {
	ID       uint    `json:"id" form:"id" binding:"required"`
	CourseID uint    `json:"courseId" form:"course_id"`
	Title    *string `json:"title" form:"title"`
	Ordering *int    `json:"ordering" form:"-"`
}

// managedModule loads a module and the course it belongs to, checking the
// actor may edit that course.
func (s *ModuleService) managedModule(ctx context.Context, actor model.Actor, moduleID uint) (*model.Module, *model.Course, error) {
	module, err := s.ModuleRepo.FindByID(ctx, moduleID)
	if err != nil {
		return nil, nil, err
	}
	course, err := s.CourseService.Editable(ctx, actor, module.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return module, course, nil
}

func (s *ModuleService) List(ctx context.Context, courseID uint) ([]model.Module, error) {
	if _, err := s.CourseService.Get(ctx, courseID); err != nil {
		return nil, err
	}
	return s.ModuleRepo.ListByCourse(ctx, courseID)
}

func (s *ModuleService) Create(ctx context.Context, actor model.Actor, req ModuleCreateRequest) (*model.Module, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, util.Invalidf("title is required")
	}
	if _, err := s.CourseService.Editable(ctx, actor, req.CourseID); err != nil {
		return nil, err
	}

	var created *model.Module
	_, err := s.Ordering.Insert(ctx, ordering.CourseModules(req.CourseID), req.Ordering, func(tx *gorm.DB, position int) error {
		m := &model.Module{CourseID: req.CourseID, Title: title, Ordering: position}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("module created",
		zap.Uint("courseId", req.CourseID),
		zap.Uint("moduleId", created.ID),
		zap.Int("ordering", created.Ordering))
	return created, nil
}

// Update renames and/or repositions a module. Both changes commit together.
func (s *ModuleService) Update(ctx context.Context, actor model.Actor, req ModuleUpdateRequest) (*model.Module, error) {
	module, _, err := s.managedModule(ctx, actor, req.ID)
	if err != nil {
		return nil, err
	}
	if req.CourseID != 0 && req.CourseID != module.CourseID {
		return nil, util.ErrModuleNotInCourse
	}
	var title string
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, util.Invalidf("title must not be empty")
		}
	}

	scope := ordering.CourseModules(module.CourseID)
	err = s.Ordering.Run(ctx, "move", func(tx *gorm.DB) error {
		if req.Ordering != nil {
			if _, err := ordering.MoveTx(tx, scope, module.ID, *req.Ordering); err != nil {
				return err
			}
		}
		if req.Title != nil {
			return s.ModuleRepo.WithTx(tx).UpdateModuleTitle(ctx, module.ID, title)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ModuleRepo.FindByID(ctx, module.ID)
}

// Delete removes the module with its lessons and quiz and closes the gap in
// the course's module ordering.
func (s *ModuleService) Delete(ctx context.Context, actor model.Actor, moduleID uint) error {
	module, _, err := s.managedModule(ctx, actor, moduleID)
	if err != nil {
		return err
	}
	err = s.Ordering.Remove(ctx, ordering.CourseModules(module.CourseID), module.ID, func(tx *gorm.DB) error {
		if err := deleteModuleContents(tx, module.ID); err != nil {
			return err
		}
		return tx.Delete(&model.Module{}, module.ID).Error
	})
	if err != nil {
		return err
	}
	logger.Log.Info("module deleted", zap.Uint("courseId", module.CourseID), zap.Uint("moduleId", module.ID))
	return nil
}

// Compact repairs the course's module ordering to 1..N.
func (s *ModuleService) Compact(ctx context.Context, actor model.Actor, courseID uint) error {
	if _, err := s.CourseService.Editable(ctx, actor, courseID); err != nil {
		return err
	}
	return s.Ordering.Compact(ctx, ordering.CourseModules(courseID))
}
