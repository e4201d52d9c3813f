package controller

import (
	"coursecraft_backend/internal/service"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ModuleController struct {
	ModuleService *service.ModuleService
}

func NewModuleController(moduleService *service.ModuleService) *ModuleController {
	return &ModuleController{ModuleService: moduleService}
}

// @Summary Create module
// @Description Inserts a module at the requested position (append when omitted); later modules shift down
// @Tags Modules
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param module body service.ModuleCreateRequest true "Module"
// @Success 201 {object} util.Response
// @Router /api/modules [post]
func (c *ModuleController) Create(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	var req service.ModuleCreateRequest
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
	module, err := c.ModuleService.Create(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, module)
}

// @Summary Update module
// @Description Renames and/or moves a module. Form posts are redirected, JSON callers receive {ok, id, redirect_to}
// @Tags Modules
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Security BearerAuth
// @Param id formData int true "Module ID"
// @Param course_id formData int false "Expected course ID"
// @Param title formData string false "New title"
// @Param ordering formData int false "New 1-based position"
// @Param redirect_to formData string false "Where to send the browser afterwards"
// @Success 200 {object} map[string]interface{}
// @Success 303
// @Router /api/modules/update [post]
func (c *ModuleController) Update(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	var req service.ModuleUpdateRequest
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
	module, err := c.ModuleService.Update(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	formResult(ctx, module.ID, courseEditPath(module.CourseID))
}

// @Summary Delete module
// @Description Deletes a module with its lessons and quiz and closes the ordering gap
// @Tags Modules
// @Produce json
// @Security BearerAuth
// @Param id path int true "Module ID"
// @Success 200 {object} util.Response
// @Router /api/modules/{id} [delete]
func (c *ModuleController) Delete(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.ModuleService.Delete(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// @Summary Compact module ordering
// @Description Renumbers a course's modules to 1..N
// @Tags Modules
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/modules/compact [post]
func (c *ModuleController) Compact(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.ModuleService.Compact(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	modules, err := c.ModuleService.List(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}
