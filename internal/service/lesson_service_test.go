package service

import (
	"context"
	"testing"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lessonOrder(t *testing.T, e *env, moduleID uint) []string {
	t.Helper()
	var lessons []model.Lesson
	require.NoError(t, e.db.Where("module_id = ?", moduleID).Order("ordering").Find(&lessons).Error)
	out := make([]string, len(lessons))
	for i, l := range lessons {
		require.Equal(t, i+1, l.Ordering, "lesson %q", l.Title)
		out[i] = l.Title
	}
	return out
}

func TestLessonInsertAtPosition(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	one := 1
	_, err := e.lesson.Create(context.Background(), f.tutor, LessonCreateRequest{ModuleID: f.m1.ID, Title: "Intro", Ordering: &one})
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro", "Variables", "Functions"}, lessonOrder(t, e, f.m1.ID))
}

func TestLessonMoveWithinModule(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	e.addLesson(t, f.tutor, f.m1.ID, "Types")
	title := "Funcs"
	one := 1

	l, err := e.lesson.Update(context.Background(), f.tutor, LessonUpdateRequest{ID: f.l2.ID, Title: &title, Ordering: &one})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Ordering)
	assert.Equal(t, "Funcs", l.Title)
	assert.Equal(t, []string{"Funcs", "Variables", "Types"}, lessonOrder(t, e, f.m1.ID))
}

func TestLessonRelocatesAcrossModules(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	one := 1

	l, err := e.lesson.Update(context.Background(), f.tutor, LessonUpdateRequest{ID: f.l1.ID, ModuleID: &f.m2.ID, Ordering: &one})
	require.NoError(t, err)
	assert.Equal(t, f.m2.ID, l.ModuleID)
	assert.Equal(t, []string{"Functions"}, lessonOrder(t, e, f.m1.ID))
	assert.Equal(t, []string{"Variables", "Goroutines"}, lessonOrder(t, e, f.m2.ID))

	// appends when no position is given
	_, err = e.lesson.Update(context.Background(), f.tutor, LessonUpdateRequest{ID: f.l2.ID, ModuleID: &f.m2.ID})
	require.NoError(t, err)
	assert.Empty(t, lessonOrder(t, e, f.m1.ID))
	assert.Equal(t, []string{"Variables", "Goroutines", "Functions"}, lessonOrder(t, e, f.m2.ID))
}

func TestLessonCannotLeaveItsCourse(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	other := e.fixture(t)

	_, err := e.lesson.Update(context.Background(), f.tutor, LessonUpdateRequest{ID: f.l1.ID, ModuleID: &other.m1.ID})
	assert.ErrorIs(t, err, util.ErrModuleNotInCourse)
	assert.Equal(t, []string{"Variables", "Functions"}, lessonOrder(t, e, f.m1.ID))
}

func TestLessonDeleteClosesGap(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	ctx := context.Background()
	_, err := e.progress.CompleteLesson(ctx, f.student, f.l1.ID)
	require.NoError(t, err)

	require.NoError(t, e.lesson.Delete(ctx, f.tutor, f.l1.ID))
	assert.Equal(t, []string{"Functions"}, lessonOrder(t, e, f.m1.ID))
	assert.Zero(t, count(t, e.db, &model.LessonCompletion{}, "lesson_id = ?", f.l1.ID))

	err = e.lesson.Delete(ctx, f.student, f.l2.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestModuleReorderAndDelete(t *testing.T) {
	e := newEnv(t)
	f := e.fixture(t)
	ctx := context.Background()
	m3, err := e.module.Create(ctx, f.tutor, ModuleCreateRequest{CourseID: f.course.ID, Title: "Testing"})
	require.NoError(t, err)
	assert.Equal(t, 3, m3.Ordering)

	one := 1
	moved, err := e.module.Update(ctx, f.tutor, ModuleUpdateRequest{ID: m3.ID, Ordering: &one})
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Ordering)

	require.NoError(t, e.module.Delete(ctx, f.tutor, f.m2.ID))
	modules, err := e.module.List(ctx, f.course.ID)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, m3.ID, modules[0].ID)
	assert.Equal(t, f.m1.ID, modules[1].ID)
	assert.Equal(t, 2, modules[1].Ordering)

	// the module's lessons and quiz went with it
	assert.Zero(t, count(t, e.db, &model.Lesson{}, "module_id = ?", f.m2.ID))
	assert.Zero(t, count(t, e.db, &model.Quiz{}, "id = ?", f.q2.ID))
	assert.Zero(t, count(t, e.db, &model.Question{}, "quiz_id = ?", f.q2.ID))

	_, err = e.module.Update(ctx, f.tutor, ModuleUpdateRequest{ID: f.m1.ID, CourseID: f.course.ID + 100})
	assert.ErrorIs(t, err, util.ErrModuleNotInCourse)
}
