package service

import (
	"context"
	"testing"
	"time"

	"coursecraft_backend/internal/config"
	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/ordering"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type env struct {
	db          *gorm.DB
	redis       *miniredis.Miniredis
	cache       *ResultCache
	course      *CourseService
	module      *ModuleService
	lesson      *LessonService
	quiz        *QuizService
	progress    *ProgressService
	certificate *CertificateService
	attempt     *AttemptService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	courseRepo := repository.NewCourseRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	completionRepo := repository.NewCompletionRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	manager := ordering.NewManager(db, 3)
	storage := &StorageService{Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}}}

	e := &env{db: db, redis: mr}
	e.cache = NewResultCache(rdb, time.Minute)
	e.course = NewCourseService(courseRepo, certRepo, db)
	e.module = NewModuleService(moduleRepo, e.course, manager)
	e.lesson = NewLessonService(moduleRepo, e.course, manager)
	e.quiz = NewQuizService(quizRepo, moduleRepo, e.course, db)
	e.progress = NewProgressService(e.course, moduleRepo, quizRepo, attemptRepo, completionRepo, certRepo)
	e.certificate = NewCertificateService(certRepo, e.course, e.progress, storage, db, "TEST")
	e.attempt = NewAttemptService(attemptRepo, quizRepo, e.course, e.progress, e.certificate, e.cache, db)
	return e
}

// fixture is a two-module course:
//
//	m1: lessons l1, l2, no quiz
//	m2: lesson l3, quiz q2 (one multiple choice question, passing score 1)
//	final quiz qf (one true/false question, passing score 1)
type fixture struct {
	tutor, student model.Actor
	course         *model.Course
	m1, m2         *model.Module
	l1, l2, l3     *model.Lesson
	q2, qf         *model.Quiz
}

func (e *env) user(t *testing.T, name string, role model.UserRole) model.Actor {
	return testutil.Actor(testutil.CreateUser(t, e.db, name, role))
}

func (e *env) fixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		tutor:   e.user(t, "tutor", model.Tutor),
		student: e.user(t, "student", model.Student),
	}
	var err error
	f.course, err = e.course.Create(ctx, f.tutor, CourseCreateRequest{Title: "Go basics"})
	require.NoError(t, err)

	f.m1, err = e.module.Create(ctx, f.tutor, ModuleCreateRequest{CourseID: f.course.ID, Title: "Syntax"})
	require.NoError(t, err)
	f.m2, err = e.module.Create(ctx, f.tutor, ModuleCreateRequest{CourseID: f.course.ID, Title: "Concurrency"})
	require.NoError(t, err)

	f.l1 = e.addLesson(t, f.tutor, f.m1.ID, "Variables")
	f.l2 = e.addLesson(t, f.tutor, f.m1.ID, "Functions")
	f.l3 = e.addLesson(t, f.tutor, f.m2.ID, "Goroutines")

	f.q2, err = e.quiz.Save(ctx, f.tutor, QuizSaveRequest{
		Quiz: QuizInput{CourseID: f.course.ID, ModuleID: &f.m2.ID, Title: "Concurrency check", PassingScore: 1},
		Questions: []QuestionInput{{
			Prompt: "Which keyword starts a goroutine?",
			Type:   model.MultipleChoice,
			Options: []OptionInput{
				{Text: "go", IsCorrect: true},
				{Text: "async"},
				{Text: "spawn"},
			},
		}},
	})
	require.NoError(t, err)

	f.qf, err = e.quiz.Save(ctx, f.tutor, QuizSaveRequest{
		Quiz: QuizInput{CourseID: f.course.ID, Title: "Final", PassingScore: 1},
		Questions: []QuestionInput{{
			Prompt:  "Channels can be closed.",
			Type:    model.TrueFalse,
			Options: []OptionInput{{Text: "True", IsCorrect: true}, {Text: "False"}},
		}},
	})
	require.NoError(t, err)

	_, err = e.course.Enroll(ctx, f.student, f.course.ID)
	require.NoError(t, err)
	return f
}

func (e *env) addLesson(t *testing.T, actor model.Actor, moduleID uint, title string) *model.Lesson {
	t.Helper()
	l, err := e.lesson.Create(context.Background(), actor, LessonCreateRequest{ModuleID: moduleID, Title: title})
	require.NoError(t, err)
	return l
}

// answers picks the option of each question whose correctness matches correct.
func answers(quiz *model.Quiz, correct bool) []AnswerInput {
	var out []AnswerInput
	for _, q := range quiz.Questions {
		for _, o := range q.Options {
			if o.IsCorrect == correct {
				id := o.ID
				out = append(out, AnswerInput{QuestionID: q.ID, OptionID: &id})
				break
			}
		}
	}
	return out
}

// finishModules completes every module so the final assessment unlocks.
func (e *env) finishModules(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	for _, l := range []*model.Lesson{f.l1, f.l2, f.l3} {
		_, err := e.progress.CompleteLesson(ctx, f.student, l.ID)
		require.NoError(t, err)
	}
	res, err := e.attempt.SubmitQuiz(ctx, f.student, f.q2.ID, answers(f.q2, true))
	require.NoError(t, err)
	require.True(t, res.Passed)
}

func count(t *testing.T, db *gorm.DB, m interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(m)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
