package repository_test

import (
	"context"
	"testing"
	"time"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIssueReturnsExistingRowOnConflict(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, db, "student", model.Student)
	course := testutil.CreateCourse(t, db, student.ID)
	repo := repository.NewCertificateRepository(db)
	tmpl, err := repo.ActiveTemplate(ctx)
	require.NoError(t, err)

	issuedAt := time.Now().Add(-time.Hour).Truncate(time.Second)
	existing := &model.Certificate{UserID: student.ID, CourseID: course.ID, TemplateID: tmpl.ID, Serial: "CERT-FIRST", IssuedAt: issuedAt}
	require.NoError(t, db.Create(existing).Error)

	var (
		stored  *model.Certificate
		created bool
	)
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		stored, created, err = repo.WithTx(tx).Issue(ctx, &model.Certificate{
			UserID:     student.ID,
			CourseID:   course.ID,
			TemplateID: tmpl.ID,
			Serial:     "CERT-SECOND",
			IssuedAt:   time.Now(),
		})
		return err
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, stored.ID)
	assert.Equal(t, "CERT-FIRST", stored.Serial)
	assert.True(t, issuedAt.Equal(stored.IssuedAt))

	var n int64
	require.NoError(t, db.Model(&model.Certificate{}).Where("user_id = ? AND course_id = ?", student.ID, course.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestIssueCreatesWhenAbsent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, db, "student", model.Student)
	course := testutil.CreateCourse(t, db, student.ID)
	repo := repository.NewCertificateRepository(db)
	tmpl, err := repo.ActiveTemplate(ctx)
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		stored, created, err := repo.WithTx(tx).Issue(ctx, &model.Certificate{
			UserID: student.ID, CourseID: course.ID, TemplateID: tmpl.ID, Serial: "CERT-NEW", IssuedAt: time.Now(),
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotZero(t, stored.ID)
		assert.Equal(t, "CERT-NEW", stored.Serial)
		return nil
	})
	require.NoError(t, err)
}
