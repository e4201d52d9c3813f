package service

import (
	"context"
	"errors"
	"strings"

	"coursecraft_backend/internal/grading"
	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/ordering"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuizService struct {
	QuizRepo      *repository.QuizRepository
	ModuleRepo    *repository.ModuleRepository
	CourseService *CourseService
	DB            *gorm.DB
}

func NewQuizService(quizRepo *repository.QuizRepository, moduleRepo *repository.ModuleRepository, courseService *CourseService, db *gorm.DB) *QuizService {
	return &QuizService{
		QuizRepo:      quizRepo,
		ModuleRepo:    moduleRepo,
		CourseService: courseService,
		DB:            db,
	}
}

type OptionInput struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionInput struct {
	Prompt  string             `json:"prompt" binding:"required"`
	Type    model.QuestionType `json:"type" binding:"required,questiontype"`
	Options []OptionInput      `json:"options" binding:"dive"`
}

type QuizInput struct {
	// ID selects an existing quiz to overwrite. Without it the quiz occupying
	// the (course, module) slot is overwritten, or a new one is created.
	ID           *uint  `json:"id"`
	CourseID     uint   `json:"courseId" binding:"required"`
	ModuleID     *uint  `json:"moduleId"`
	Title        string `json:"title" binding:"max=255"`
	PassingScore int    `json:"passingScore" binding:"min=0"`
}

type QuizSaveRequest struct {
	Quiz      QuizInput       `json:"quiz" binding:"required"`
	Questions []QuestionInput `json:"questions" binding:"dive"`
}

// validateQuestions checks the per-type option rules before anything is written.
func validateQuestions(in []QuestionInput) ([]model.Question, error) {
	out := make([]model.Question, len(in))
	for i, q := range in {
		n := i + 1
		prompt := strings.TrimSpace(q.Prompt)
		if prompt == "" {
			return nil, util.Invalidf("question %d: prompt is required", n)
		}
		if !q.Type.Valid() {
			return nil, util.Invalidf("question %d: unknown type %q", n, q.Type)
		}
		if q.Type.HasOptions() {
			if len(q.Options) == 0 {
				return nil, util.Invalidf("question %d: %s needs options", n, q.Type)
			}
			if q.Type == model.TrueFalse && len(q.Options) != 2 {
				return nil, util.Invalidf("question %d: true_false needs exactly two options", n)
			}
			correct := 0
			for _, o := range q.Options {
				if o.IsCorrect {
					correct++
				}
			}
			if correct == 0 {
				return nil, util.Invalidf("question %d: at least one option must be correct", n)
			}
		} else if len(q.Options) > 0 {
			return nil, util.Invalidf("question %d: short_answer takes no options", n)
		}

		question := model.Question{Prompt: prompt, Type: q.Type, Ordering: n}
		for j, o := range q.Options {
			text := strings.TrimSpace(o.Text)
			if text == "" {
				return nil, util.Invalidf("question %d option %d: text is required", n, j+1)
			}
			question.Options = append(question.Options, model.Option{
				Text:      text,
				IsCorrect: o.IsCorrect,
				Ordering:  j + 1,
			})
		}
		out[i] = question
	}
	return out, nil
}

// Save overwrites a quiz's full question set. The previous questions and
// options are deleted, not merged. Past attempts keep their stored grades.
func (s *QuizService) Save(ctx context.Context, actor model.Actor, req QuizSaveRequest) (*model.Quiz, error) {
	in := req.Quiz
	if in.PassingScore < 0 {
		return nil, util.Invalidf("passing score must not be negative")
	}
	questions, err := validateQuestions(req.Questions)
	if err != nil {
		return nil, err
	}
	if _, err := s.CourseService.Editable(ctx, actor, in.CourseID); err != nil {
		return nil, err
	}
	if in.ModuleID != nil {
		module, err := s.ModuleRepo.FindByID(ctx, *in.ModuleID)
		if err != nil {
			return nil, err
		}
		if module.CourseID != in.CourseID {
			return nil, util.ErrModuleNotInCourse
		}
	}

	var saved *model.Quiz
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The course row lock serialises saves so the one-quiz-per-slot
		// check below cannot race.
		if err := ordering.Lock(tx, ordering.CourseModules(in.CourseID)); err != nil {
			return err
		}
		repo := s.QuizRepo.WithTx(tx)

		occupant, err := s.slotOccupant(ctx, repo, in.CourseID, in.ModuleID)
		if err != nil {
			return err
		}
		quiz := occupant
		if in.ID != nil {
			quiz, err = repo.FindByID(ctx, *in.ID)
			if err != nil {
				return err
			}
			if quiz.CourseID != in.CourseID {
				return util.ErrQuizNotInCourse
			}
			if occupant != nil && occupant.ID != quiz.ID {
				return util.ErrQuizExists
			}
		}

		if quiz == nil {
			quiz = &model.Quiz{CourseID: in.CourseID}
		}
		quiz.ModuleID = in.ModuleID
		quiz.Title = strings.TrimSpace(in.Title)
		quiz.PassingScore = in.PassingScore
		quiz.Questions = nil
		if quiz.ID == 0 {
			if err := tx.Create(quiz).Error; err != nil {
				return err
			}
		} else {
			err := tx.Model(quiz).Select("module_id", "title", "passing_score").Updates(quiz).Error
			if err != nil {
				return err
			}
		}
		if err := repo.ReplaceQuestions(ctx, quiz.ID, questions); err != nil {
			return err
		}
		quiz.Questions = questions
		saved = quiz
		return nil
	})
	if err != nil {
		return nil, err
	}

	if auto := grading.AutoGradable(saved.Questions); saved.PassingScore > auto {
		logger.Log.Warn("quiz passing score exceeds auto-gradable questions",
			zap.Uint("quizId", saved.ID),
			zap.Int("passingScore", saved.PassingScore),
			zap.Int("autoGradable", auto))
	}
	logger.Log.Info("quiz saved",
		zap.Uint("quizId", saved.ID),
		zap.Uint("courseId", saved.CourseID),
		zap.Int("questions", len(saved.Questions)))
	return saved, nil
}

func (s *QuizService) slotOccupant(ctx context.Context, repo *repository.QuizRepository, courseID uint, moduleID *uint) (*model.Quiz, error) {
	var (
		q   *model.Quiz
		err error
	)
	if moduleID == nil {
		q, err = repo.FindFinalByCourse(ctx, courseID)
	} else {
		q, err = repo.FindByModule(ctx, *moduleID)
	}
	if errors.Is(err, util.ErrQuizNotFound) {
		return nil, nil
	}
	return q, err
}

// Get returns the quiz with its questions. Learners do not see which
// options are correct.
func (s *QuizService) Get(ctx context.Context, actor model.Actor, quizID uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	course, err := s.CourseService.Get(ctx, quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.CourseService.RequireLearner(ctx, actor, course); err != nil {
		return nil, err
	}
	if !CanManage(actor, course) {
		for i := range quiz.Questions {
			for j := range quiz.Questions[i].Options {
				quiz.Questions[i].Options[j].IsCorrect = false
			}
		}
	}
	return quiz, nil
}
