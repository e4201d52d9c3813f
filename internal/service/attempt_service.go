package service

import (
	"context"
	"errors"
	"time"

	"coursecraft_backend/internal/grading"
	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/logger"
	"coursecraft_backend/pkg/monitoring"
	"coursecraft_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AttemptService struct {
	AttemptRepo        *repository.AttemptRepository
	QuizRepo           *repository.QuizRepository
	CourseService      *CourseService
	ProgressService    *ProgressService
	CertificateService *CertificateService
	Cache              *ResultCache
	DB                 *gorm.DB
}

func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	quizRepo *repository.QuizRepository,
	courseService *CourseService,
	progressService *ProgressService,
	certificateService *CertificateService,
	cache *ResultCache,
	db *gorm.DB,
) *AttemptService {
	return &AttemptService{
		AttemptRepo:        attemptRepo,
		QuizRepo:           quizRepo,
		CourseService:      courseService,
		ProgressService:    progressService,
		CertificateService: certificateService,
		Cache:              cache,
		DB:                 db,
	}
}

type AnswerInput struct {
	QuestionID uint    `json:"questionId" binding:"required"`
	OptionID   *uint   `json:"optionId"`
	Text       *string `json:"text"`
}

func toAnswers(in []AnswerInput) []grading.Answer {
	out := make([]grading.Answer, len(in))
	for i, a := range in {
		out[i] = grading.Answer{QuestionID: a.QuestionID, OptionID: a.OptionID, Text: a.Text}
	}
	return out
}

type SubmitRequest struct {
	Answers []AnswerInput `json:"answers" binding:"dive"`
}

type SubmitFinalRequest struct {
	CourseID uint          `json:"courseId" binding:"required"`
	Answers  []AnswerInput `json:"answers" binding:"dive"`
}

// SubmitResult is the graded outcome of one attempt.
type SubmitResult struct {
	AttemptID     uint                     `json:"attempt_id"`
	QuizID        uint                     `json:"quiz_id"`
	State         model.AttemptState       `json:"state"`
	Score         int                      `json:"score"`
	MaxScore      int                      `json:"max_score"`
	PassingScore  int                      `json:"passing_score"`
	Passed        bool                     `json:"passed"`
	FinishedAt    *time.Time               `json:"finished_at,omitempty"`
	Responses     []grading.ResponseResult `json:"responses"`
	CertificateID *uint                    `json:"certificate_id,omitempty"`
}

// quizContext loads a quiz with its course and checks that the actor may
// attempt it now.
func (s *AttemptService) quizContext(ctx context.Context, actor model.Actor, quiz *model.Quiz) (*model.Course, error) {
	course, err := s.CourseService.Get(ctx, quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.CourseService.RequireLearner(ctx, actor, course); err != nil {
		return nil, err
	}
	if course.Archived {
		return nil, util.ErrCourseArchived
	}
	if CanManage(actor, course) {
		return course, nil
	}
	ev, err := s.ProgressService.Evaluate(ctx, actor.UserID, course)
	if err != nil {
		return nil, err
	}
	if err := ev.QuizOpen(quiz); err != nil {
		return nil, err
	}
	return course, nil
}

// Start opens a new attempt. Earlier attempts, finished or not, never block a
// retake.
func (s *AttemptService) Start(ctx context.Context, actor model.Actor, quizID uint) (*model.Attempt, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if _, err := s.quizContext(ctx, actor, quiz); err != nil {
		return nil, err
	}
	attempt := &model.Attempt{
		QuizID:    quiz.ID,
		UserID:    actor.UserID,
		StartedAt: time.Now(),
	}
	if err := s.AttemptRepo.Create(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// Submit grades a started attempt. Responses and the finished attempt row are
// written in one transaction. Submitting an attempt that is already finished
// returns the stored grade untouched.
func (s *AttemptService) Submit(ctx context.Context, actor model.Actor, attemptID uint, answers []AnswerInput) (*SubmitResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "attempt.submit")
	defer span.End()
	span.SetAttributes(attribute.Int64("attempt.id", int64(attemptID)))

	attempt, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != actor.UserID {
		return nil, util.ErrAttemptNotOwned
	}
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	if attempt.Finished() {
		return storedResult(attempt, quiz), nil
	}

	result := grading.Grade(*quiz, quiz.Questions, toAnswers(answers))
	responses := make([]model.Response, len(result.Responses))
	for i, r := range result.Responses {
		responses[i] = model.Response{
			AttemptID:        attempt.ID,
			QuestionID:       r.QuestionID,
			SelectedOptionID: r.SelectedOptionID,
			AnswerText:       r.AnswerText,
			IsCorrect:        r.Correct,
			PointsAwarded:    r.Points,
		}
	}

	now := time.Now()
	var finalized bool
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.AttemptRepo.WithTx(tx).Finalize(ctx, attempt.ID, responses, result.Score, result.Passed, now)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race to another submit; leave its rows alone.
			return errAlreadyFinalized
		}
		finalized = true
		return nil
	})
	if err != nil && !errors.Is(err, errAlreadyFinalized) {
		span.RecordError(err)
		return nil, err
	}
	if !finalized {
		stored, err := s.AttemptRepo.FindByID(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}
		return storedResult(stored, quiz), nil
	}

	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	monitoring.AttemptsGraded.WithLabelValues(outcome).Inc()
	s.Cache.Invalidate(ctx, actor.UserID, quiz.ID)
	logger.Log.Info("attempt graded",
		zap.Uint("attemptId", attempt.ID),
		zap.Uint("quizId", quiz.ID),
		zap.Uint("userId", actor.UserID),
		zap.Int("score", result.Score),
		zap.Int("passingScore", result.PassingScore),
		zap.Bool("passed", result.Passed))

	out := &SubmitResult{
		AttemptID:    attempt.ID,
		QuizID:       quiz.ID,
		Score:        result.Score,
		MaxScore:     result.MaxScore,
		PassingScore: result.PassingScore,
		Passed:       result.Passed,
		FinishedAt:   &now,
		Responses:    result.Responses,
	}
	out.State = model.AttemptFailed
	if result.Passed {
		out.State = model.AttemptPassed
	}

	// The grade is committed; issuance is a separate, retryable fact.
	if result.Passed && quiz.IsFinal() {
		cert, _, err := s.CertificateService.Issue(ctx, actor.UserID, quiz.CourseID)
		if err != nil {
			logger.Log.Error("certificate issuance after final quiz failed",
				zap.Uint("attemptId", attempt.ID),
				zap.Uint("courseId", quiz.CourseID),
				zap.Uint("userId", actor.UserID),
				zap.Error(err))
		} else {
			id := cert.ID
			out.CertificateID = &id
		}
	}
	return out, nil
}

var errAlreadyFinalized = errors.New("attempt already finalized")

// storedResult rebuilds a SubmitResult from persisted rows.
func storedResult(a *model.Attempt, quiz *model.Quiz) *SubmitResult {
	out := &SubmitResult{
		AttemptID:    a.ID,
		QuizID:       a.QuizID,
		State:        a.State(),
		Score:        a.Score,
		MaxScore:     grading.AutoGradable(quiz.Questions),
		PassingScore: quiz.PassingScore,
		Passed:       a.Passed,
		FinishedAt:   a.FinishedAt,
		Responses:    make([]grading.ResponseResult, len(a.Responses)),
	}
	for i, r := range a.Responses {
		out.Responses[i] = grading.ResponseResult{
			QuestionID:       r.QuestionID,
			SelectedOptionID: r.SelectedOptionID,
			AnswerText:       r.AnswerText,
			Correct:          r.IsCorrect,
			Points:           r.PointsAwarded,
		}
	}
	return out
}

// SubmitQuiz starts and grades an attempt in one call.
func (s *AttemptService) SubmitQuiz(ctx context.Context, actor model.Actor, quizID uint, answers []AnswerInput) (*SubmitResult, error) {
	attempt, err := s.Start(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, actor, attempt.ID, answers)
}

// SubmitFinal grades an attempt at the course's final quiz. A pass triggers
// certificate issuance.
func (s *AttemptService) SubmitFinal(ctx context.Context, actor model.Actor, req SubmitFinalRequest) (*SubmitResult, error) {
	quiz, err := s.QuizRepo.FindFinalByCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	return s.SubmitQuiz(ctx, actor, quiz.ID, req.Answers)
}

// CurrentResult is the actor's most recently finished attempt on a quiz.
func (s *AttemptService) CurrentResult(ctx context.Context, actor model.Actor, quizID uint) (*QuizResult, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return s.Cache.Get(ctx, actor.UserID, quiz.ID, func(ctx context.Context) (*QuizResult, error) {
		a, err := s.AttemptRepo.CurrentResult(ctx, actor.UserID, quiz.ID)
		if err != nil {
			return nil, err
		}
		return &QuizResult{
			AttemptID:    a.ID,
			QuizID:       a.QuizID,
			Score:        a.Score,
			PassingScore: quiz.PassingScore,
			Passed:       a.Passed,
			FinishedAt:   *a.FinishedAt,
		}, nil
	})
}

// History lists the actor's attempts on a quiz, newest first.
func (s *AttemptService) History(ctx context.Context, actor model.Actor, quizID uint) ([]model.Attempt, error) {
	if _, err := s.QuizRepo.FindByID(ctx, quizID); err != nil {
		return nil, err
	}
	return s.AttemptRepo.ListByUserQuiz(ctx, actor.UserID, quizID)
}
