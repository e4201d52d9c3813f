package controller

import (
	"coursecraft_backend/internal/service"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService    *service.QuizService
	AttemptService *service.AttemptService
}

func NewQuizController(quizService *service.QuizService, attemptService *service.AttemptService) *QuizController {
	return &QuizController{QuizService: quizService, AttemptService: attemptService}
}

// @Summary Save quiz
// @Description Creates or overwrites a quiz. The question and option set is replaced as a whole.
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quiz body service.QuizSaveRequest true "Quiz with questions"
// @Success 200 {object} util.Response
// @Router /api/quizzes/save [post]
func (c *QuizController) Save(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	var req service.QuizSaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	quiz, err := c.QuizService.Save(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary Get quiz
// @Description Learners receive the quiz without correct-answer flags
// @Tags Quizzes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quiz ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *QuizController) Get(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	quiz, err := c.QuizService.Get(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary Start attempt
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quiz ID"
// @Success 201 {object} util.Response
// @Router /api/quizzes/{id}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	attempt, err := c.AttemptService.Start(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// @Summary Submit attempt
// @Description Grades a started attempt. Resubmitting a graded attempt returns the stored grade.
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attempt ID"
// @Param answers body service.SubmitRequest true "Answers"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *QuizController) SubmitAttempt(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.AttemptService.Submit(ctx.Request.Context(), actor, id, req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Submit quiz
// @Description Starts and grades an attempt in one call
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quiz ID"
// @Param answers body service.SubmitRequest true "Answers"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.AttemptService.SubmitQuiz(ctx.Request.Context(), actor, id, req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Submit final quiz
// @Description Grades the course's final quiz. A pass issues the certificate.
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.SubmitFinalRequest true "Course and answers"
// @Success 200 {object} util.Response
// @Router /api/quizzes/submit-final [post]
func (c *QuizController) SubmitFinal(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	var req service.SubmitFinalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.AttemptService.SubmitFinal(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Current result
// @Description The most recently finished attempt on the quiz
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quiz ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/result [get]
func (c *QuizController) Result(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	result, err := c.AttemptService.CurrentResult(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Attempt history
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quiz ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/attempts [get]
func (c *QuizController) History(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	attempts, err := c.AttemptService.History(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
