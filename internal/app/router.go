package app

import (
	"examhub_backend/docs"
	"examhub_backend/internal/config"
	"examhub_backend/internal/middleware"
	"examhub_backend/internal/model"
	"examhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	rg.GET("/exams", c.exam.ListExams)
	rg.GET("/exams/:id", c.exam.GetExamForStudent)
	rg.GET("/exams/:id/result", c.result.GetResult)

	rg.POST("/exams/:id/attempts", c.attempt.StartAttempt)
	rg.GET("/attempts/:id", c.attempt.GetAttempt)
	rg.PUT("/attempts/:id/answers/:questionId", c.attempt.RecordAnswer)
	rg.POST("/attempts/:id/finalize", c.attempt.FinalizeAttempt)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/exams", c.exam.CreateExam)
		teacher.GET("/exams/:id", c.exam.GetExam)
		teacher.PUT("/exams/:id", c.exam.UpdateExam)
		teacher.PUT("/exams/:id/status", c.exam.TransitionStatus)

		teacher.POST("/exams/:id/questions", c.exam.AddQuestion)
		teacher.PUT("/exams/:id/questions/:qid", c.exam.UpdateQuestion)
		teacher.DELETE("/exams/:id/questions/:qid", c.exam.DeleteQuestion)

		teacher.POST("/exams/:id/access", c.exam.GrantAccess)
		teacher.DELETE("/exams/:id/access/:studentId", c.exam.RevokeAccess)

		teacher.GET("/exams/:id/submissions", c.result.ListSubmissions)
		teacher.GET("/exams/:id/results", c.result.ListResults)
		teacher.PUT("/exams/:id/results/release", c.result.Release)
		teacher.GET("/submissions/:id", c.result.GetSubmission)
		teacher.PUT("/submissions/:id/grade", c.result.GradeProjectAnswer)
	}
}
