package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/logger"
	"coursecraft_backend/pkg/monitoring"
	"coursecraft_backend/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CertificateService struct {
	CertificateRepo *repository.CertificateRepository
	CourseService   *CourseService
	ProgressService *ProgressService
	Storage         *StorageService
	DB              *gorm.DB
	SerialPrefix    string
}

func NewCertificateService(
	certRepo *repository.CertificateRepository,
	courseService *CourseService,
	progressService *ProgressService,
	storage *StorageService,
	db *gorm.DB,
	serialPrefix string,
) *CertificateService {
	if serialPrefix == "" {
		serialPrefix = "CERT"
	}
	return &CertificateService{
		CertificateRepo: certRepo,
		CourseService:   courseService,
		ProgressService: progressService,
		Storage:         storage,
		DB:              db,
		SerialPrefix:    serialPrefix,
	}
}

func (s *CertificateService) newSerial() string {
	return fmt.Sprintf("%s-%s", s.SerialPrefix, strings.ToUpper(model.GenerateUUID()))
}

// Issue returns the user's certificate for the course, creating it when the
// course is finished. Calling it again, concurrently or later, returns the
// same row. Template and issue time are fixed at creation.
func (s *CertificateService) Issue(ctx context.Context, userID, courseID uint) (cert *model.Certificate, created bool, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "certificate.issue")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", int64(userID)), attribute.Int64("course.id", int64(courseID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			monitoring.CertificatesIssued.WithLabelValues("error").Inc()
			return
		}
		outcome := "existing"
		if created {
			outcome = "created"
		}
		monitoring.CertificatesIssued.WithLabelValues(outcome).Inc()
	}()

	existing, err := s.CertificateRepo.FindByUserCourse(ctx, userID, courseID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, util.ErrCertificateMissing) {
		return nil, false, err
	}

	course, err := s.CourseService.Get(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	ev, err := s.ProgressService.Evaluate(ctx, userID, course)
	if err != nil {
		return nil, false, err
	}
	if !ev.Snapshot.AssessmentUnlocked {
		return nil, false, util.ErrAssessmentLocked
	}
	if !ev.FinalPassed() {
		return nil, false, util.ErrFinalQuizNotPassed
	}

	tmpl, err := s.CertificateRepo.ActiveTemplate(ctx)
	if err != nil {
		return nil, false, err
	}
	// the upsert is the first statement so no earlier read pins the snapshot
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cert, created, err = s.CertificateRepo.WithTx(tx).Issue(ctx, &model.Certificate{
			UserID:     userID,
			CourseID:   courseID,
			TemplateID: tmpl.ID,
			Serial:     s.newSerial(),
			IssuedAt:   time.Now(),
		})
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.Log.Info("certificate issued",
			zap.Uint("userId", userID),
			zap.Uint("courseId", courseID),
			zap.Uint("certificateId", cert.ID),
			zap.String("serial", cert.Serial))
	}
	return cert, created, nil
}

// IssueFor is Issue for the acting user, who must be enrolled.
func (s *CertificateService) IssueFor(ctx context.Context, actor model.Actor, courseID uint) (*model.Certificate, error) {
	course, err := s.CourseService.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.CourseService.RequireLearner(ctx, actor, course); err != nil {
		return nil, err
	}
	cert, _, err := s.Issue(ctx, actor.UserID, courseID)
	return cert, err
}

// CertificateView is everything a client needs to render a certificate.
type CertificateView struct {
	Certificate   *model.Certificate      `json:"certificate"`
	CourseTitle   string                  `json:"courseTitle"`
	TemplateName  string                  `json:"templateName"`
	Layout        model.CertificateLayout `json:"layout"`
	BackgroundURL string                  `json:"backgroundUrl,omitempty"`
}

func (s *CertificateService) view(ctx context.Context, cert *model.Certificate) (*CertificateView, error) {
	course, err := s.CourseService.Get(ctx, cert.CourseID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.CertificateRepo.FindTemplate(ctx, cert.TemplateID)
	if err != nil {
		return nil, err
	}
	v := &CertificateView{
		Certificate:  cert,
		CourseTitle:  course.Title,
		TemplateName: tmpl.Name,
		Layout:       tmpl.Layout.Data(),
	}
	if s.Storage != nil && tmpl.BackgroundKey != "" {
		url, err := s.Storage.URL(ctx, tmpl.BackgroundKey)
		if err != nil {
			logger.Log.Warn("resolve certificate background failed",
				zap.Uint("templateId", tmpl.ID),
				zap.Error(err))
		} else {
			v.BackgroundURL = url
		}
	}
	return v, nil
}

// Get returns the actor's own certificate for a course.
func (s *CertificateService) Get(ctx context.Context, actor model.Actor, courseID uint) (*CertificateView, error) {
	cert, err := s.CertificateRepo.FindByUserCourse(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cert)
}

// VerifiedCertificate is the public answer to a serial lookup.
type VerifiedCertificate struct {
	Serial      string    `json:"serial"`
	UserID      uint      `json:"userId"`
	CourseID    uint      `json:"courseId"`
	CourseTitle string    `json:"courseTitle"`
	IssuedAt    time.Time `json:"issuedAt"`
}

func (s *CertificateService) Verify(ctx context.Context, serial string) (*VerifiedCertificate, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, util.Invalidf("serial is required")
	}
	cert, err := s.CertificateRepo.FindBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	course, err := s.CourseService.Get(ctx, cert.CourseID)
	if err != nil {
		return nil, err
	}
	return &VerifiedCertificate{
		Serial:      cert.Serial,
		UserID:      cert.UserID,
		CourseID:    cert.CourseID,
		CourseTitle: course.Title,
		IssuedAt:    cert.IssuedAt,
	}, nil
}

type TemplateCreateRequest struct {
	Name     string                  `json:"name" form:"name" binding:"required,max=255"`
	Layout   model.CertificateLayout `json:"layout" form:"-"`
	Activate bool                    `json:"activate" form:"activate"`
}

// Background is an optional uploaded template image.
type Background struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

func (s *CertificateService) CreateTemplate(ctx context.Context, actor model.Actor, req TemplateCreateRequest, bg *Background) (*model.CertificateTemplate, error) {
	if !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	if req.Layout.Width < 0 || req.Layout.Height < 0 {
		return nil, util.Invalidf("layout size must not be negative")
	}
	for i, f := range req.Layout.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, util.Invalidf("layout field %d: name is required", i+1)
		}
	}

	tmpl := &model.CertificateTemplate{
		Name:   strings.TrimSpace(req.Name),
		Layout: datatypes.NewJSONType(req.Layout),
	}
	if bg != nil {
		key := path.Join("certificate-templates", uuid.NewString()+path.Ext(bg.Filename))
		if _, err := s.Storage.Upload(ctx, key, bg.Reader, bg.Size, bg.ContentType); err != nil {
			return nil, fmt.Errorf("upload template background: %w", err)
		}
		tmpl.BackgroundKey = key
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.CertificateRepo.WithTx(tx)
		if err := repo.CreateTemplate(ctx, tmpl); err != nil {
			return err
		}
		if req.Activate {
			if err := repo.ActivateTemplate(ctx, tmpl.ID); err != nil {
				return err
			}
			tmpl.IsActive = true
		}
		return nil
	})
	if err != nil {
		if tmpl.BackgroundKey != "" {
			if derr := s.Storage.Delete(ctx, tmpl.BackgroundKey); derr != nil {
				logger.Log.Warn("remove orphaned template background failed", zap.String("key", tmpl.BackgroundKey), zap.Error(derr))
			}
		}
		return nil, err
	}
	return tmpl, nil
}

// ActivateTemplate switches new issuances to the given template. Existing
// certificates keep the template they were issued with.
func (s *CertificateService) ActivateTemplate(ctx context.Context, actor model.Actor, id uint) (*model.CertificateTemplate, error) {
	if !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.CertificateRepo.WithTx(tx).ActivateTemplate(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("certificate template activated", zap.Uint("templateId", id), zap.Uint("by", actor.UserID))
	return s.CertificateRepo.FindTemplate(ctx, id)
}

func (s *CertificateService) ListTemplates(ctx context.Context, actor model.Actor) ([]model.CertificateTemplate, error) {
	if !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	return s.CertificateRepo.ListTemplates(ctx)
}
