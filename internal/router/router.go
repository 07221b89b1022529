package router

import (
	"net/http"
	"time"

	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/handler"
	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt    *handler.AttemptHandler
	ExamConfig *handler.ExamConfigHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.POST("/exam-configs/:config_id/attempts", handlers.Attempt.Start)
		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetState)
		studentAPI.PUT("/attempts/:attempt_id/answers/:question_id", handlers.Attempt.SaveAnswer)
		studentAPI.POST("/attempts/:attempt_id/violations", handlers.Attempt.ReportViolation)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1/student")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/exam-configs", handlers.ExamConfig.List)
		adminAPI.POST("/exam-configs", handlers.ExamConfig.Create)
		adminAPI.GET("/exam-configs/:config_id", handlers.ExamConfig.Get)
		adminAPI.PATCH("/exam-configs/:config_id", handlers.ExamConfig.Update)
		adminAPI.POST("/exam-configs/:config_id/publish", handlers.ExamConfig.Publish)
		adminAPI.POST("/exam-configs/:config_id/archive", handlers.ExamConfig.Archive)

		adminAPI.GET("/exam-configs/:config_id/questions", handlers.ExamConfig.ListQuestions)
		adminAPI.POST("/exam-configs/:config_id/questions", handlers.ExamConfig.AddQuestion)
		adminAPI.PUT("/exam-configs/:config_id/questions", handlers.ExamConfig.ReplaceQuestions)

		adminAPI.GET("/exam-configs/:config_id/results", handlers.ExamConfig.Results)
	}

	return router
}
