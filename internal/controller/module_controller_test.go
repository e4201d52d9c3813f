package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/ordering"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/service"
	"coursecraft_backend/internal/testutil"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moduleFixture struct {
	router  *gin.Engine
	svc     *service.ModuleService
	course  *model.Course
	modules []*model.Module
}

func newModuleFixture(t *testing.T) *moduleFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	tutor := testutil.CreateUser(t, db, "tutor", model.Tutor)
	course := testutil.CreateCourse(t, db, tutor.ID)

	courses := service.NewCourseService(repository.NewCourseRepository(db), repository.NewCertificateRepository(db), db)
	svc := service.NewModuleService(repository.NewModuleRepository(db), courses, ordering.NewManager(db, 3))
	f := &moduleFixture{svc: svc, course: course}
	for _, title := range []string{"Basics", "Concurrency", "Testing"} {
		m, err := svc.Create(context.Background(), testutil.Actor(tutor), service.ModuleCreateRequest{CourseID: course.ID, Title: title})
		require.NoError(t, err)
		f.modules = append(f.modules, m)
	}

	ctrl := NewModuleController(svc)
	r := gin.New()
	r.Use(func(ctx *gin.Context) {
		util.SetActor(ctx, testutil.Actor(tutor))
	})
	r.POST("/api/modules/update", ctrl.Update)
	f.router = r
	return f
}

func (f *moduleFixture) post(form url.Values, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/modules/update", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *moduleFixture) titles(t *testing.T) []string {
	modules, err := f.svc.List(context.Background(), f.course.ID)
	require.NoError(t, err)
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = m.Title
	}
	return out
}

func TestModuleUpdateFormRedirects(t *testing.T) {
	f := newModuleFixture(t)
	w := f.post(url.Values{
		"id":       {fmt.Sprint(f.modules[2].ID)},
		"ordering": {"1"},
	}, "")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, fmt.Sprintf("/courses/%d/edit", f.course.ID), w.Header().Get("Location"))
	assert.Equal(t, []string{"Testing", "Basics", "Concurrency"}, f.titles(t))
}

func TestModuleUpdateJSONReply(t *testing.T) {
	f := newModuleFixture(t)
	w := f.post(url.Values{
		"id":          {fmt.Sprint(f.modules[0].ID)},
		"title":       {"Fundamentals"},
		"ordering":    {""},
		"redirect_to": {"/courses/1/modules"},
	}, "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		OK         bool   `json:"ok"`
		ID         uint   `json:"id"`
		RedirectTo string `json:"redirect_to"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, f.modules[0].ID, body.ID)
	assert.Equal(t, "/courses/1/modules", body.RedirectTo)
	assert.Equal(t, []string{"Fundamentals", "Concurrency", "Testing"}, f.titles(t))
}

func TestModuleUpdateIgnoresOffsiteRedirect(t *testing.T) {
	f := newModuleFixture(t)
	w := f.post(url.Values{
		"id":          {fmt.Sprint(f.modules[1].ID)},
		"redirect_to": {"//evil.example"},
	}, "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, fmt.Sprintf("/courses/%d/edit", f.course.ID), w.Header().Get("Location"))
}

func TestModuleUpdateErrors(t *testing.T) {
	f := newModuleFixture(t)

	w := f.post(url.Values{"id": {fmt.Sprint(f.modules[0].ID)}, "ordering": {"abc"}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.post(url.Values{"id": {"99999"}}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.post(url.Values{"title": {"x"}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"Basics", "Concurrency", "Testing"}, f.titles(t))
}
