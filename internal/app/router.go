package app

import (
	"coursecraft_backend/internal/config"
	"coursecraft_backend/internal/middleware"
	"coursecraft_backend/internal/model"
	"coursecraft_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/certificates/verify/:serial", c.certificate.Verify)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.AttachRole(repos.user))
	{
		registerLearnerRoutes(authGroup, c)
		registerAuthoringRoutes(authGroup, c)
		registerAdminRoutes(authGroup, c)
	}
}

func registerLearnerRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/courses/:id", c.course.Get)
	rg.POST("/courses/:id/enroll", c.course.Enroll)
	rg.GET("/courses/:id/progress", c.progress.Progress)
	rg.GET("/courses/:id/certificate", c.certificate.Get)

	rg.GET("/lessons/:id", c.lesson.Get)
	rg.POST("/lessons/:id/complete", c.progress.CompleteLesson)

	rg.GET("/quizzes/:id", c.quiz.Get)
	rg.POST("/quizzes/:id/attempts", c.quiz.StartAttempt)
	rg.GET("/quizzes/:id/attempts", c.quiz.History)
	rg.POST("/quizzes/:id/submit", c.quiz.Submit)
	rg.GET("/quizzes/:id/result", c.quiz.Result)
	rg.POST("/quizzes/submit-final", c.quiz.SubmitFinal)
	rg.POST("/attempts/:id/submit", c.quiz.SubmitAttempt)

	rg.POST("/certificates/issue", c.certificate.Issue)
}

// Authoring routes need a tutor or admin; ownership of the course is checked
// by the services.
func registerAuthoringRoutes(rg *gin.RouterGroup, c *controllers) {
	author := rg.Group("")
	author.Use(middleware.RoleMiddleware(model.Tutor))
	{
		author.POST("/courses", c.course.Create)
		author.POST("/courses/:id/archive", c.course.Archive)
		author.DELETE("/courses/:id", c.course.Delete)
		author.POST("/courses/:id/modules/compact", c.module.Compact)

		author.POST("/modules", c.module.Create)
		author.POST("/modules/update", c.module.Update)
		author.DELETE("/modules/:id", c.module.Delete)
		author.POST("/modules/:id/lessons/compact", c.lesson.Compact)

		author.POST("/lessons/create", c.lesson.Create)
		author.POST("/lessons/update", c.lesson.Update)
		author.DELETE("/lessons/:id", c.lesson.Delete)

		author.POST("/quizzes/save", c.quiz.Save)
	}
}

func registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin, model.SuperAdmin))
	{
		admin.GET("/certificate-templates", c.certificate.ListTemplates)
		admin.POST("/certificate-templates", c.certificate.CreateTemplate)
		admin.POST("/certificate-templates/:id/activate", c.certificate.ActivateTemplate)
	}
}
