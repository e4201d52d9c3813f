package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passFinal(t *testing.T, e *env, f *fixture) {
	t.Helper()
	e.finishModules(t, f)
	// start and finalize without going through SubmitFinal, so no certificate
	// is issued yet
	a, err := e.attempt.Start(context.Background(), f.student, f.qf.ID)
	require.NoError(t, err)
	ok, err := e.attempt.AttemptRepo.Finalize(context.Background(), a.ID, nil, 1, true, a.StartedAt)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIssueChecksPreconditions(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	ctx := context.Background()

	_, _, err := e.certificate.Issue(ctx, f.student.UserID, f.course.ID)
	assert.ErrorIs(t, err, util.ErrAssessmentLocked)

	e.finishModules(t, f)
	_, _, err = e.certificate.Issue(ctx, f.student.UserID, f.course.ID)
	assert.ErrorIs(t, err, util.ErrFinalQuizNotPassed)
	assert.Zero(t, count(t, e.db, &model.Certificate{}, ""))
}

func TestIssueIsIdempotent(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	passFinal(t, e, f)
	ctx := context.Background()

	first, created, err := e.certificate.Issue(ctx, f.student.UserID, f.course.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, strings.HasPrefix(first.Serial, "TEST-"))

	second, created, err := e.certificate.Issue(ctx, f.student.UserID, f.course.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Serial, second.Serial)
	assert.True(t, first.IssuedAt.Equal(second.IssuedAt))
}

func TestConcurrentIssueCreatesOneCertificate(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	passFinal(t, e, f)

	const n = 12
	ids := make([]uint, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cert, _, err := e.certificate.Issue(context.Background(), f.student.UserID, f.course.ID)
			errs[i] = err
			if err == nil {
				ids[i] = cert.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.EqualValues(t, 1, count(t, e.db, &model.Certificate{}, "user_id = ? AND course_id = ?", f.student.UserID, f.course.ID))
}

func TestIssuedCertificateKeepsItsTemplate(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	passFinal(t, e, f)
	ctx := context.Background()
	admin := e.user(t, "admin", model.Admin)

	cert, _, err := e.certificate.Issue(ctx, f.student.UserID, f.course.ID)
	require.NoError(t, err)

	tmpl, err := e.certificate.CreateTemplate(ctx, admin, TemplateCreateRequest{Name: "Autumn", Activate: true}, nil)
	require.NoError(t, err)
	assert.True(t, tmpl.IsActive)
	assert.NotEqual(t, cert.TemplateID, tmpl.ID)

	view, err := e.certificate.Get(ctx, f.student, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.TemplateID, view.Certificate.TemplateID)
	assert.Equal(t, "Default", view.TemplateName)
	assert.Equal(t, "Go basics", view.CourseTitle)

	templates, err := e.certificate.ListTemplates(ctx, admin)
	require.NoError(t, err)
	active := 0
	for _, tpl := range templates {
		if tpl.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestIssueWithoutActiveTemplateFails(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	passFinal(t, e, f)
	require.NoError(t, e.db.Model(&model.CertificateTemplate{}).Where("1 = 1").Update("is_active", false).Error)

	_, _, err := e.certificate.Issue(context.Background(), f.student.UserID, f.course.ID)
	assert.ErrorIs(t, err, util.ErrNoActiveTemplate)
	assert.Zero(t, count(t, e.db, &model.Certificate{}, ""))
}

func TestVerifyBySerial(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	passFinal(t, e, f)
	ctx := context.Background()

	cert, _, err := e.certificate.Issue(ctx, f.student.UserID, f.course.ID)
	require.NoError(t, err)

	v, err := e.certificate.Verify(ctx, " "+cert.Serial+" ")
	require.NoError(t, err)
	assert.Equal(t, f.student.UserID, v.UserID)
	assert.Equal(t, "Go basics", v.CourseTitle)

	_, err = e.certificate.Verify(ctx, "TEST-NOPE")
	assert.ErrorIs(t, err, util.ErrCertificateMissing)
	_, err = e.certificate.Verify(ctx, "")
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestTemplateManagementIsAdminOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tutor := e.user(t, "tutor", model.Tutor)
	admin := e.user(t, "admin", model.SuperAdmin)

	_, err := e.certificate.CreateTemplate(ctx, tutor, TemplateCreateRequest{Name: "X"}, nil)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = e.certificate.ListTemplates(ctx, tutor)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	tmpl, err := e.certificate.CreateTemplate(ctx, admin, TemplateCreateRequest{
		Name:   "With background",
		Layout: model.CertificateLayout{Width: 800, Height: 600, Fields: []model.CertificateLayoutBox{{Name: "serial"}}},
	}, &Background{Filename: "bg.png", ContentType: "image/png", Size: int64(len(png)), Reader: bytes.NewReader(png)})
	require.NoError(t, err)
	assert.False(t, tmpl.IsActive)
	assert.True(t, strings.HasPrefix(tmpl.BackgroundKey, "certificate-templates/"))
	assert.Equal(t, 800, tmpl.Layout.Data().Width)

	_, err = e.certificate.CreateTemplate(ctx, admin, TemplateCreateRequest{
		Name:   "Broken",
		Layout: model.CertificateLayout{Fields: []model.CertificateLayoutBox{{Name: " "}}},
	}, nil)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	activated, err := e.certificate.ActivateTemplate(ctx, admin, tmpl.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
}
