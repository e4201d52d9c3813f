package repository

import (
	"context"
	"errors"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) WithTx(tx *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: tx}
}

// ActiveTemplate picks the newest active template.
func (r *CertificateRepository) ActiveTemplate(ctx context.Context) (*model.CertificateTemplate, error) {
	var t model.CertificateTemplate
	err := r.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at desc, id desc").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNoActiveTemplate
		}
		return nil, err
	}
	return &t, nil
}

// Issue inserts cert unless a certificate for (user, course) already exists,
// then returns the stored row. created tells the two cases apart. Run it in a
// transaction so the insert and the read form one operation. The read is a
// locking read: under repeatable read a plain SELECT would use the
// transaction's snapshot and miss a row another transaction committed while
// the insert was waiting on it.
func (r *CertificateRepository) Issue(ctx context.Context, cert *model.Certificate) (stored *model.Certificate, created bool, err error) {
	db := r.DB.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(cert)
	if res.Error != nil {
		return nil, false, res.Error
	}
	var row model.Certificate
	err = db.Clauses(clause.Locking{Strength: "SHARE"}).
		Where("user_id = ? AND course_id = ?", cert.UserID, cert.CourseID).
		Take(&row).Error
	if err != nil {
		return nil, false, err
	}
	return &row, res.RowsAffected == 1, nil
}

func (r *CertificateRepository) FindByUserCourse(ctx context.Context, userID, courseID uint) (*model.Certificate, error) {
	var c model.Certificate
	err := r.DB.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).First(&c).Error
	if err != nil {
		return nil, notFoundAs(err, util.ErrCertificateMissing)
	}
	return &c, nil
}

func (r *CertificateRepository) FindBySerial(ctx context.Context, serial string) (*model.Certificate, error) {
	var c model.Certificate
	if err := r.DB.WithContext(ctx).Where("serial = ?", serial).First(&c).Error; err != nil {
		return nil, notFoundAs(err, util.ErrCertificateMissing)
	}
	return &c, nil
}

func (r *CertificateRepository) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Certificate{}).Where("course_id = ?", courseID).Count(&n).Error
	return n, err
}

func (r *CertificateRepository) FindTemplate(ctx context.Context, id uint) (*model.CertificateTemplate, error) {
	var t model.CertificateTemplate
	if err := r.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFoundAs(err, util.ErrTemplateNotFound)
	}
	return &t, nil
}

func (r *CertificateRepository) CreateTemplate(ctx context.Context, t *model.CertificateTemplate) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *CertificateRepository) ListTemplates(ctx context.Context) ([]model.CertificateTemplate, error) {
	var ts []model.CertificateTemplate
	err := r.DB.WithContext(ctx).Order("created_at desc, id desc").Find(&ts).Error
	return ts, err
}

// ActivateTemplate makes id the only active template. Run it in a transaction.
func (r *CertificateRepository) ActivateTemplate(ctx context.Context, id uint) error {
	db := r.DB.WithContext(ctx)
	if err := db.Model(&model.CertificateTemplate{}).Where("id <> ? AND is_active = ?", id, true).Update("is_active", false).Error; err != nil {
		return err
	}
	res := db.Model(&model.CertificateTemplate{}).Where("id = ?", id).Update("is_active", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrTemplateNotFound
	}
	return nil
}
