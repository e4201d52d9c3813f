package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/ordering"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo      *repository.CourseRepository
	CertificateRepo *repository.CertificateRepository
	DB              *gorm.DB
}

func NewCourseService(courseRepo *repository.CourseRepository, certRepo *repository.CertificateRepository, db *gorm.DB) *CourseService {
	return &CourseService{
		CourseRepo:      courseRepo,
		CertificateRepo: certRepo,
		DB:              db,
	}
}

type CourseCreateRequest struct {
	Title        string                 `json:"title" form:"title" binding:"required,max=255"`
	Description  string                 `json:"description" form:"description"`
	Metadata     map[string]interface{} `json:"metadata" form:"-"`
	InstructorID uint                   `json:"instructorId" form:"instructor_id"`
}

// CanManage is the ownership rule: admins, or the course's instructor.
func CanManage(actor model.Actor, course *model.Course) bool {
	return actor.IsAdmin() || course.InstructorID == actor.UserID
}

func (s *CourseService) Get(ctx context.Context, id uint) (*model.Course, error) {
	return s.CourseRepo.FindByID(ctx, id)
}

// Managed loads a course the actor owns or administers.
func (s *CourseService) Managed(ctx context.Context, actor model.Actor, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !CanManage(actor, course) {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

// Editable is Managed plus a check that the course still accepts edits.
func (s *CourseService) Editable(ctx context.Context, actor model.Actor, courseID uint) (*model.Course, error) {
	course, err := s.Managed(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if course.Archived {
		return nil, util.ErrCourseArchived
	}
	return course, nil
}

// RequireLearner lets managers through and otherwise requires an enrollment.
func (s *CourseService) RequireLearner(ctx context.Context, actor model.Actor, course *model.Course) error {
	if CanManage(actor, course) {
		return nil
	}
	ok, err := s.CourseRepo.IsEnrolled(ctx, actor.UserID, course.ID)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrNotEnrolled
	}
	return nil
}

func (s *CourseService) Create(ctx context.Context, actor model.Actor, req CourseCreateRequest) (*model.Course, error) {
	if !actor.CanAuthor() {
		return nil, util.ErrPermissionDenied
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, util.Invalidf("title is required")
	}
	instructor := actor.UserID
	if req.InstructorID != 0 && req.InstructorID != actor.UserID {
		if !actor.IsAdmin() {
			return nil, util.ErrPermissionDenied
		}
		instructor = req.InstructorID
	}
	course := &model.Course{
		Title:        title,
		Description:  req.Description,
		InstructorID: instructor,
	}
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, util.Invalidf("invalid metadata: %v", err)
		}
		course.Metadata = datatypes.JSON(raw)
	}
	if err := s.CourseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Archive(ctx context.Context, actor model.Actor, courseID uint) (*model.Course, error) {
	course, err := s.Managed(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if course.Archived {
		return course, nil
	}
	now := time.Now()
	if err := s.CourseRepo.Archive(ctx, courseID, now); err != nil {
		return nil, err
	}
	course.Archived = true
	course.ArchivedAt = &now
	return course, nil
}

func (s *CourseService) Enroll(ctx context.Context, actor model.Actor, courseID uint) (*model.Enrollment, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.Archived {
		return nil, util.ErrCourseArchived
	}
	return s.CourseRepo.Enroll(ctx, actor.UserID, courseID)
}

// Delete removes the course and everything under it in one transaction.
// Courses with issued certificates are refused; archive them instead.
func (s *CourseService) Delete(ctx context.Context, actor model.Actor, courseID uint) error {
	if _, err := s.Managed(ctx, actor, courseID); err != nil {
		return err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ordering.Lock(tx, ordering.CourseModules(courseID)); err != nil {
			return err
		}
		n, err := s.CertificateRepo.WithTx(tx).CountByCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if n > 0 {
			return util.ErrCourseHasCertificates
		}
		return deleteCourseTree(tx, courseID)
	})
	if err != nil {
		return err
	}
	logger.Log.Info("course deleted", zap.Uint("courseId", courseID), zap.Uint("by", actor.UserID))
	return nil
}
