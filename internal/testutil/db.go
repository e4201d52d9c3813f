// Package testutil opens throwaway SQLite databases carrying the production
// schema.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory database private to the test. A single
// connection serializes transactions the way row locks do on MySQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:coursecraft_%d?mode=memory&cache=shared&_busy_timeout=5000", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, name string, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: fmt.Sprintf("%s_%d@example.com", name, dbSeq.Add(1)), Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateCourse(t testing.TB, db *gorm.DB, instructorID uint) *model.Course {
	t.Helper()
	c := &model.Course{Title: "Course", InstructorID: instructorID}
	require.NoError(t, db.Create(c).Error)
	return c
}

func Enroll(t testing.TB, db *gorm.DB, userID, courseID uint) {
	t.Helper()
	require.NoError(t, db.Create(&model.Enrollment{UserID: userID, CourseID: courseID}).Error)
}

// Actor is a shorthand for the caller a service sees.
func Actor(u *model.User) model.Actor {
	return model.Actor{UserID: u.ID, Role: u.Role}
}
