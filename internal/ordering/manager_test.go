package ordering_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/ordering"
	"coursecraft_backend/internal/testutil"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func modulePositions(t *testing.T, db *gorm.DB, courseID uint) map[string]int {
	t.Helper()
	var modules []model.Module
	require.NoError(t, db.Where("course_id = ?", courseID).Order("ordering").Find(&modules).Error)
	out := make(map[string]int, len(modules))
	for _, m := range modules {
		out[m.Title] = m.Ordering
	}
	return out
}

func insertModule(ctx context.Context, m *ordering.Manager, courseID uint, title string, at *int) (int, error) {
	return m.Insert(ctx, ordering.CourseModules(courseID), at, func(tx *gorm.DB, position int) error {
		return tx.Create(&model.Module{CourseID: courseID, Title: title, Ordering: position}).Error
	})
}

func setup(t *testing.T) (*gorm.DB, *ordering.Manager, *model.Course) {
	db := testutil.NewDB(t)
	course := testutil.CreateCourse(t, db, 1)
	return db, ordering.NewManager(db, 3), course
}

func TestManagerInsertAppendsAndShifts(t *testing.T) {
	db, m, course := setup(t)
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		_, err := insertModule(ctx, m, course.ID, title, nil)
		require.NoError(t, err)
	}
	two := 2
	pos, err := insertModule(ctx, m, course.ID, "X", &two)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	far := 40
	pos, err = insertModule(ctx, m, course.ID, "Z", &far)
	require.NoError(t, err)
	assert.Equal(t, 5, pos)

	assert.Equal(t, map[string]int{"A": 1, "X": 2, "B": 3, "C": 4, "Z": 5}, modulePositions(t, db, course.ID))
}

func TestManagerMoveAndRemove(t *testing.T) {
	db, m, course := setup(t)
	ctx := context.Background()
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		_, err := insertModule(ctx, m, course.ID, title, nil)
		require.NoError(t, err)
	}
	var c model.Module
	require.NoError(t, db.Where("course_id = ? AND title = ?", course.ID, "C").First(&c).Error)

	pos, err := m.Move(ctx, ordering.CourseModules(course.ID), c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Equal(t, map[string]int{"C": 1, "A": 2, "B": 3, "D": 4, "E": 5}, modulePositions(t, db, course.ID))

	err = m.Remove(ctx, ordering.CourseModules(course.ID), c.ID, func(tx *gorm.DB) error {
		return tx.Delete(&model.Module{}, c.ID).Error
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "D": 3, "E": 4}, modulePositions(t, db, course.ID))
}

func TestManagerRepairsSparseSets(t *testing.T) {
	db, m, course := setup(t)
	for i, title := range []string{"A", "B", "C"} {
		require.NoError(t, db.Create(&model.Module{CourseID: course.ID, Title: title, Ordering: (i + 1) * 10}).Error)
	}

	require.NoError(t, m.Compact(context.Background(), ordering.CourseModules(course.ID)))
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, modulePositions(t, db, course.ID))
}

func TestManagerRepairsNonPositivePositions(t *testing.T) {
	db, m, course := setup(t)
	for title, pos := range map[string]int{"A": -1, "B": 1, "C": 0} {
		require.NoError(t, db.Create(&model.Module{CourseID: course.ID, Title: title, Ordering: pos}).Error)
	}

	require.NoError(t, m.Compact(context.Background(), ordering.CourseModules(course.ID)))
	assert.Equal(t, map[string]int{"A": 1, "C": 2, "B": 3}, modulePositions(t, db, course.ID))
}

func TestManagerUnknownParent(t *testing.T) {
	_, m, _ := setup(t)
	_, err := insertModule(context.Background(), m, 9999, "A", nil)
	assert.ErrorIs(t, err, ordering.ErrParentNotFound)
}

func TestManagerConcurrentInsertsStayDense(t *testing.T) {
	db, m, course := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := i%3 + 1
			_, err := insertModule(ctx, m, course.ID, string(rune('a'+i)), &at)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	items, err := ordering.Siblings(db, ordering.CourseModules(course.ID))
	require.NoError(t, err)
	assert.Len(t, items, 20)
	assert.True(t, ordering.Dense(items))
}

func TestManagerRetriesConflicts(t *testing.T) {
	_, m, _ := setup(t)
	calls := 0
	err := m.Run(context.Background(), "test", func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return gorm.ErrDuplicatedKey
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = m.Run(context.Background(), "test", func(tx *gorm.DB) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, ordering.IsRetryable(ordering.ErrConcurrentChange))
	assert.True(t, ordering.IsRetryable(&mysql.MySQLError{Number: 1213}))
	assert.True(t, ordering.IsRetryable(&mysql.MySQLError{Number: 1205}))
	assert.False(t, ordering.IsRetryable(&mysql.MySQLError{Number: 1146}))
	assert.False(t, ordering.IsRetryable(ordering.ErrParentNotFound))
}
