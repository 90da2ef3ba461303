package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/codexam/internal/config"
	"github.com/stemsi/codexam/internal/handler"
	"github.com/stemsi/codexam/internal/metrics"
	"github.com/stemsi/codexam/internal/middleware"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/response"
)

const systemMetricsPath = "/api/v1/admin/system/metrics"

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentExam  *handler.StudentExamHandler
	ExamQuestion *handler.ExamQuestionHandler
	AdminExam    *handler.AdminExamHandler
	System       *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// sandboxLimiter throttles the routes that call the code execution sandbox.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	sandboxLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when configured, otherwise allow all.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Metrics())

	// Streams and the scrape endpoint must not be buffered.
	brotliCfg := middleware.DefaultBrotliConfig
	brotliCfg.Skipper = func(c *gin.Context) bool {
		p := c.Request.URL.Path
		return p == "/metrics" || strings.HasPrefix(p, systemMetricsPath)
	}
	router.Use(middleware.BrotliWithConfig(brotliCfg))

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Student Exam Group (Student JWT) ───────────────────────────
	sameStudent := middleware.RequireSameStudent("email")
	sandbox := sandboxLimiter.Middleware()

	studentExam := router.Group("/api/v1/student-exam")
	studentExam.Use(middleware.RequireStudentJWT(auth), middleware.NoStore())
	{
		studentExam.GET("/find-exam/:email", sameStudent, handlers.StudentExam.FindExams)
		studentExam.POST("/create-exam/:email/:exam_id", sameStudent, handlers.StudentExam.CreateExam)
		studentExam.PUT("/submit-exam/:id", handlers.StudentExam.SubmitExam)
		studentExam.POST("/auto-save/:exam_id", handlers.StudentExam.AutoSave)
		studentExam.POST("/run-code", sandbox, handlers.StudentExam.RunCode)
		studentExam.POST("/submit-code/:email/:exam_id", sameStudent, sandbox, handlers.StudentExam.SubmitCode)
	}

	// ─── 2. Exam Question Group (Student JWT) ──────────────────────────
	examQuestions := router.Group("/api/v1/exam-questions")
	examQuestions.Use(middleware.RequireStudentJWT(auth), middleware.NoStore())
	{
		examQuestions.GET("/:exam_id/mcq/:email", sameStudent, handlers.ExamQuestion.ListMCQ)
		examQuestions.GET("/:exam_id/code/:email", sameStudent, handlers.ExamQuestion.ListCoding)
	}

	// ─── 3. Admin Group (Admin JWT + RBAC) ─────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth))
	{
		adminAPI.PATCH("/exams/:exam_id/status",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.AdminExam.UpdateStatus,
		)
		adminAPI.POST("/exams/:exam_id/questions",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.AdminExam.AssignQuestions,
		)
		adminAPI.GET("/exams/:exam_id/results",
			middleware.RequireAnyPermission(model.PermissionExamsRead, model.PermissionExamsWrite),
			handlers.AdminExam.ListResults,
		)
		adminAPI.GET("/system/metrics",
			middleware.RequirePermission(model.PermissionExamsRead),
			handlers.System.SystemMetricsSSE,
		)
	}

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	return router
}
