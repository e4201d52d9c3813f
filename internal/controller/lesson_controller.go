package controller

import (
	"fmt"

	"coursecraft_backend/internal/service"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	LessonService *service.LessonService
	ModuleService *service.ModuleService
}

func NewLessonController(lessonService *service.LessonService, moduleService *service.ModuleService) *LessonController {
	return &LessonController{LessonService: lessonService, ModuleService: moduleService}
}

func (c *LessonController) redirectFor(ctx *gin.Context, moduleID uint) string {
	module, err := c.ModuleService.ModuleRepo.FindByID(ctx.Request.Context(), moduleID)
	if err != nil {
		return fmt.Sprintf("/modules/%d/edit", moduleID)
	}
	return courseEditPath(module.CourseID)
}

// @Summary Create lesson
// @Description Inserts a lesson into a module at the requested position (append when omitted)
// @Tags Lessons
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Security BearerAuth
// @Param module_id formData int true "Module ID"
// @Param title formData string true "Title"
// @Param content formData string false "Content"
// @Param ordering formData int false "1-based position"
// @Param redirect_to formData string false "Where to send the browser afterwards"
// @Success 200 {object} map[string]interface{}
// @Success 303
// @Router /api/lessons/create [post]
func (c *LessonController) Create(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	var req service.LessonCreateRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if isFormRequest(ctx) {
		ordering, err := formInt(ctx, "ordering")
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
		req.Ordering = ordering
	}
	lesson, err := c.LessonService.Create(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	formResult(ctx, lesson.ID, c.redirectFor(ctx, lesson.ModuleID))
}

// @Summary Update lesson
// @Description Edits a lesson, reorders it, or moves it to another module of the same course
// @Tags Lessons
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Security BearerAuth
// @Param id formData int true "Lesson ID"
// @Param module_id formData int false "Target module ID"
// @Param title formData string false "Title"
// @Param content formData string false "Content"
// @Param ordering formData int false "1-based position"
// @Param redirect_to formData string false "Where to send the browser afterwards"
// @Success 200 {object} map[string]interface{}
// @Success 303
// @Router /api/lessons/update [post]
func (c *LessonController) Update(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	var req service.LessonUpdateRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if isFormRequest(ctx) {
		ordering, err := formInt(ctx, "ordering")
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
		moduleID, err := formUint(ctx, "module_id")
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
		req.Ordering = ordering
		req.ModuleID = moduleID
	}
	lesson, err := c.LessonService.Update(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	formResult(ctx, lesson.ID, c.redirectFor(ctx, lesson.ModuleID))
}

// @Summary Get lesson
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id} [get]
func (c *LessonController) Get(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	lesson, err := c.LessonService.Get(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// @Summary Delete lesson
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id} [delete]
func (c *LessonController) Delete(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.LessonService.Delete(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// @Summary Compact lesson ordering
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param id path int true "Module ID"
// @Success 200 {object} util.Response
// @Router /api/modules/{id}/lessons/compact [post]
func (c *LessonController) Compact(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.LessonService.Compact(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"moduleId": id})
}
