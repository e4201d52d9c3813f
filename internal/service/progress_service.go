package service

import (
	"context"
	"errors"
	"time"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/progression"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/logger"

	"go.uber.org/zap"
)

type ProgressService struct {
	CourseService   *CourseService
	ModuleRepo      *repository.ModuleRepository
	QuizRepo        *repository.QuizRepository
	AttemptRepo     *repository.AttemptRepository
	CompletionRepo  *repository.CompletionRepository
	CertificateRepo *repository.CertificateRepository
}

func NewProgressService(
	courseService *CourseService,
	moduleRepo *repository.ModuleRepository,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	completionRepo *repository.CompletionRepository,
	certRepo *repository.CertificateRepository,
) *ProgressService {
	return &ProgressService{
		CourseService:   courseService,
		ModuleRepo:      moduleRepo,
		QuizRepo:        quizRepo,
		AttemptRepo:     attemptRepo,
		CompletionRepo:  completionRepo,
		CertificateRepo: certRepo,
	}
}

// Evaluation is one user's progression through one course, derived fresh
// from the stored completions and passed attempts.
type Evaluation struct {
	Course     *model.Course
	Modules    []model.Module
	ModuleQuiz map[uint]*model.Quiz
	FinalQuiz  *model.Quiz
	Facts      progression.Facts
	Snapshot   progression.Snapshot
}

// FinalPassed is true when the course has no final quiz or the user passed it.
func (e *Evaluation) FinalPassed() bool {
	return e.FinalQuiz == nil || e.Facts.PassedQuizzes.Has(e.FinalQuiz.ID)
}

// QuizOpen reports whether the user may attempt quiz.
func (e *Evaluation) QuizOpen(quiz *model.Quiz) error {
	if quiz.IsFinal() {
		if !e.Snapshot.AssessmentUnlocked {
			return util.ErrAssessmentLocked
		}
		return nil
	}
	if !e.Snapshot.Unlocked(*quiz.ModuleID) {
		return util.ErrModuleLocked
	}
	return nil
}

func (s *ProgressService) Evaluate(ctx context.Context, userID uint, course *model.Course) (*Evaluation, error) {
	modules, err := s.ModuleRepo.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	quizzes, err := s.QuizRepo.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		Course:     course,
		Modules:    modules,
		ModuleQuiz: make(map[uint]*model.Quiz),
	}
	quizIDs := make([]uint, 0, len(quizzes))
	for i := range quizzes {
		q := &quizzes[i]
		quizIDs = append(quizIDs, q.ID)
		if q.IsFinal() {
			if ev.FinalQuiz == nil {
				ev.FinalQuiz = q
			}
			continue
		}
		if _, ok := ev.ModuleQuiz[*q.ModuleID]; !ok {
			ev.ModuleQuiz[*q.ModuleID] = q
		}
	}

	var lessonIDs []uint
	gating := make([]progression.Module, len(modules))
	for i, m := range modules {
		gm := progression.Module{ID: m.ID}
		for _, l := range m.Lessons {
			gm.LessonIDs = append(gm.LessonIDs, l.ID)
		}
		if q, ok := ev.ModuleQuiz[m.ID]; ok {
			id := q.ID
			gm.QuizID = &id
		}
		lessonIDs = append(lessonIDs, gm.LessonIDs...)
		gating[i] = gm
	}

	completed, err := s.CompletionRepo.CompletedLessonIDs(ctx, userID, lessonIDs)
	if err != nil {
		return nil, err
	}
	passed, err := s.AttemptRepo.PassedQuizIDs(ctx, userID, quizIDs)
	if err != nil {
		return nil, err
	}
	ev.Facts = progression.Facts{
		CompletedLessons: progression.NewIDSet(completed...),
		PassedQuizzes:    progression.NewIDSet(passed...),
	}
	ev.Snapshot = progression.Evaluate(gating, ev.Facts)
	return ev, nil
}

type LessonProgress struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Ordering  int    `json:"ordering"`
	Completed bool   `json:"completed"`
}

type ModuleProgress struct {
	ModuleID   uint             `json:"moduleId"`
	Title      string           `json:"title"`
	Ordering   int              `json:"ordering"`
	Unlocked   bool             `json:"unlocked"`
	Complete   bool             `json:"complete"`
	Lessons    []LessonProgress `json:"lessons"`
	QuizID     *uint            `json:"quizId,omitempty"`
	QuizPassed bool             `json:"quizPassed"`
}

type CourseProgress struct {
	CourseID           uint             `json:"courseId"`
	Modules            []ModuleProgress `json:"modules"`
	AssessmentUnlocked bool             `json:"assessmentUnlocked"`
	FinalQuizID        *uint            `json:"finalQuizId,omitempty"`
	FinalQuizPassed    bool             `json:"finalQuizPassed"`
	CertificateID      *uint            `json:"certificateId,omitempty"`
}

func (s *ProgressService) Progress(ctx context.Context, actor model.Actor, courseID uint) (*CourseProgress, error) {
	course, err := s.CourseService.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.CourseService.RequireLearner(ctx, actor, course); err != nil {
		return nil, err
	}
	ev, err := s.Evaluate(ctx, actor.UserID, course)
	if err != nil {
		return nil, err
	}

	out := &CourseProgress{
		CourseID:           course.ID,
		Modules:            make([]ModuleProgress, len(ev.Modules)),
		AssessmentUnlocked: ev.Snapshot.AssessmentUnlocked,
	}
	for i, m := range ev.Modules {
		mp := ModuleProgress{
			ModuleID: m.ID,
			Title:    m.Title,
			Ordering: m.Ordering,
			Unlocked: ev.Snapshot.Modules[i].Unlocked,
			Complete: ev.Snapshot.Modules[i].Complete,
			Lessons:  make([]LessonProgress, len(m.Lessons)),
		}
		for j, l := range m.Lessons {
			mp.Lessons[j] = LessonProgress{
				ID:        l.ID,
				Title:     l.Title,
				Ordering:  l.Ordering,
				Completed: ev.Facts.CompletedLessons.Has(l.ID),
			}
		}
		if q, ok := ev.ModuleQuiz[m.ID]; ok {
			id := q.ID
			mp.QuizID = &id
			mp.QuizPassed = ev.Facts.PassedQuizzes.Has(q.ID)
		}
		out.Modules[i] = mp
	}
	if ev.FinalQuiz != nil {
		id := ev.FinalQuiz.ID
		out.FinalQuizID = &id
		out.FinalQuizPassed = ev.Facts.PassedQuizzes.Has(id)
	}

	cert, err := s.CertificateRepo.FindByUserCourse(ctx, actor.UserID, course.ID)
	switch {
	case err == nil:
		id := cert.ID
		out.CertificateID = &id
	case !errors.Is(err, util.ErrCertificateMissing):
		return nil, err
	}
	return out, nil
}

// CompleteLesson records that the actor finished a lesson. Repeating the call
// is harmless; created reports whether this call wrote the fact.
func (s *ProgressService) CompleteLesson(ctx context.Context, actor model.Actor, lessonID uint) (created bool, err error) {
	lesson, err := s.ModuleRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return false, err
	}
	module, err := s.ModuleRepo.FindByID(ctx, lesson.ModuleID)
	if err != nil {
		return false, err
	}
	course, err := s.CourseService.Get(ctx, module.CourseID)
	if err != nil {
		return false, err
	}
	if err := s.CourseService.RequireLearner(ctx, actor, course); err != nil {
		return false, err
	}
	if !CanManage(actor, course) {
		ev, err := s.Evaluate(ctx, actor.UserID, course)
		if err != nil {
			return false, err
		}
		if !ev.Snapshot.Unlocked(module.ID) {
			return false, util.ErrModuleLocked
		}
	}

	created, err = s.CompletionRepo.Record(ctx, actor.UserID, lesson.ID, time.Now())
	if err != nil {
		return false, err
	}
	if created {
		logger.Log.Info("lesson completed",
			zap.Uint("userId", actor.UserID),
			zap.Uint("courseId", course.ID),
			zap.Uint("lessonId", lesson.ID))
	}
	return created, nil
}
