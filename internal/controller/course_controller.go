package controller

import (
	"coursecraft_backend/internal/service"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
	ModuleService *service.ModuleService
}

func NewCourseController(courseService *service.CourseService, moduleService *service.ModuleService) *CourseController {
	return &CourseController{CourseService: courseService, ModuleService: moduleService}
}

// @Summary Create course
// @Description Tutors and admins create a course they will own
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course body service.CourseCreateRequest true "Course"
// @Success 201 {object} util.Response
// @Router /api/courses [post]
func (c *CourseController) Create(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	var req service.CourseCreateRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.Create(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// @Summary Get course
// @Description Course with its modules and lessons in order
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id} [get]
func (c *CourseController) Get(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	course, err := c.CourseService.Get(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	modules, err := c.ModuleService.List(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"course":  course,
		"modules": modules,
	})
}

// @Summary Archive course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/archive [post]
func (c *CourseController) Archive(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	course, err := c.CourseService.Archive(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// @Summary Delete course
// @Description Removes the course and all of its content. Refused once certificates exist.
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id} [delete]
func (c *CourseController) Delete(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.Delete(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// @Summary Enroll in course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	enrollment, err := c.CourseService.Enroll(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}
