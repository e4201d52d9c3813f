package controller

import (
	"coursecraft_backend/internal/service"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// @Summary Course progress
// @Description Which modules are unlocked and complete, and whether the final assessment is open
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress [get]
func (c *ProgressController) Progress(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	progress, err := c.ProgressService.Progress(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary Complete lesson
// @Description Records that the caller finished a lesson. Repeat calls are harmless.
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id}/complete [post]
func (c *ProgressController) CompleteLesson(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	created, err := c.ProgressService.CompleteLesson(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"lessonId": id,
		"created":  created,
	})
}
