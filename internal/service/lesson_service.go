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

type LessonService struct {
	ModuleRepo    *repository.ModuleRepository
	CourseService *CourseService
	Ordering      *ordering.Manager
}

func NewLessonService(moduleRepo *repository.ModuleRepository, courseService *CourseService, manager *ordering.Manager) *LessonService {
	return &LessonService{
		ModuleRepo:    moduleRepo,
		CourseService: courseService,
		Ordering:      manager,
	}
}

type LessonCreateRequest struct {
	ModuleID uint   `json:"moduleId" form:"module_id" binding:"required"`
	Title    string `json:"title" form:"title" binding:"required,max=255"`
	Content  string `json:"content" form:"content"`
	Ordering *int   `json:"ordering" form:"-"`
}

type LessonUpdateRequest struct {
	ID uint `json:"id" form:"id" binding:"required"`
	// ModuleID, when set and different, moves the lesson to that module. The
	// target must belong to the same course.
	ModuleID *uint   `json:"moduleId" form:"-"`
	Title    *string `json:"title" form:"title"`
	Content  *string `json:"content" form:"content"`
	Ordering *int    `json:"ordering" form:"-"`
}

func (s *LessonService) editableModule(ctx context.Context, actor model.Actor, moduleID uint) (*model.Module, error) {
	module, err := s.ModuleRepo.FindByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if _, err := s.CourseService.Editable(ctx, actor, module.CourseID); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *LessonService) Get(ctx context.Context, id uint) (*model.Lesson, error) {
	return s.ModuleRepo.FindLesson(ctx, id)
}

func (s *LessonService) Create(ctx context.Context, actor model.Actor, req LessonCreateRequest) (*model.Lesson, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, util.Invalidf("title is required")
	}
	module, err := s.editableModule(ctx, actor, req.ModuleID)
	if err != nil {
		return nil, err
	}

	var created *model.Lesson
	_, err = s.Ordering.Insert(ctx, ordering.ModuleLessons(module.ID), req.Ordering, func(tx *gorm.DB, position int) error {
		l := &model.Lesson{ModuleID: module.ID, Title: title, Content: req.Content, Ordering: position}
		if err := tx.Create(l).Error; err != nil {
			return err
		}
		created = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("lesson created",
		zap.Uint("moduleId", module.ID),
		zap.Uint("lessonId", created.ID),
		zap.Int("ordering", created.Ordering))
	return created, nil
}

func (s *LessonService) Update(ctx context.Context, actor model.Actor, req LessonUpdateRequest) (*model.Lesson, error) {
	lesson, err := s.ModuleRepo.FindLesson(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	source, err := s.editableModule(ctx, actor, lesson.ModuleID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, util.Invalidf("title must not be empty")
		}
		fields["title"] = title
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}

	var target *model.Module
	if req.ModuleID != nil && *req.ModuleID != source.ID {
		target, err = s.ModuleRepo.FindByID(ctx, *req.ModuleID)
		if err != nil {
			return nil, err
		}
		if target.CourseID != source.CourseID {
			return nil, util.ErrModuleNotInCourse
		}
	}

	op := "move"
	if target != nil {
		op = "relocate"
	}
	err = s.Ordering.Run(ctx, op, func(tx *gorm.DB) error {
		if target != nil {
			if err := relocateLesson(tx, lesson.ID, source.ID, target.ID, req.Ordering); err != nil {
				return err
			}
		} else if req.Ordering != nil {
			if _, err := ordering.MoveTx(tx, ordering.ModuleLessons(source.ID), lesson.ID, *req.Ordering); err != nil {
				return err
			}
		}
		if len(fields) > 0 {
			return s.ModuleRepo.WithTx(tx).UpdateLessonFields(ctx, lesson.ID, fields)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ModuleRepo.FindLesson(ctx, lesson.ID)
}

// relocateLesson moves a lesson between two modules: the lesson is inserted
// into the target set (nil position appends) and the gap it leaves in the
// source set is closed. Both parents are locked up front in id order.
func relocateLesson(tx *gorm.DB, lessonID, fromModule, toModule uint, position *int) error {
	from := ordering.ModuleLessons(fromModule)
	to := ordering.ModuleLessons(toModule)
	if err := ordering.Lock(tx, from, to); err != nil {
		return err
	}
	return ordering.RemoveTx(tx, from, lessonID, func() error {
		_, err := ordering.InsertTx(tx, to, position, func(pos int) error {
			res := tx.Model(&model.Lesson{}).
				Where("id = ? AND module_id = ?", lessonID, fromModule).
				Updates(map[string]interface{}{"module_id": toModule, "ordering": pos})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return ordering.ErrConcurrentChange
			}
			return nil
		})
		return err
	})
}

func (s *LessonService) Delete(ctx context.Context, actor model.Actor, lessonID uint) error {
	lesson, err := s.ModuleRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if _, err := s.editableModule(ctx, actor, lesson.ModuleID); err != nil {
		return err
	}
	err = s.Ordering.Remove(ctx, ordering.ModuleLessons(lesson.ModuleID), lesson.ID, func(tx *gorm.DB) error {
		if err := tx.Where("lesson_id = ?", lesson.ID).Delete(&model.LessonCompletion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Lesson{}, lesson.ID).Error
	})
	if err != nil {
		return err
	}
	logger.Log.Info("lesson deleted", zap.Uint("moduleId", lesson.ModuleID), zap.Uint("lessonId", lesson.ID))
	return nil
}

// Compact repairs the module's lesson ordering to 1..N.
func (s *LessonService) Compact(ctx context.Context, actor model.Actor, moduleID uint) error {
	if _, err := s.editableModule(ctx, actor, moduleID); err != nil {
		return err
	}
	return s.Ordering.Compact(ctx, ordering.ModuleLessons(moduleID))
}
