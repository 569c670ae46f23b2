package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/config"
	"github.com/stemsi/quizsync/internal/handler"
	"github.com/stemsi/quizsync/internal/middleware"
	"github.com/stemsi/quizsync/internal/response"
	"github.com/stemsi/quizsync/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health     *handler.HealthHandler
	Quiz       *handler.QuizHandler
	Submission *handler.SubmissionHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	submitLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Empty AllowedOrigins allows every origin.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))

	router.GET("/health", handlers.Health.Health)

	api := router.Group("/api/v1")

	// ─── 1. Quizzes ────────────────────────────────────────────────────
	quizzes := api.Group("/quizzes")
	{
		quizzes.GET("", handlers.Quiz.ListQuizzes)
		quizzes.GET("/search/:query", handlers.Quiz.SearchQuizzes)
		quizzes.GET("/:id", handlers.Quiz.GetQuiz)
		quizzes.POST("", middleware.RequireJWT(authService), handlers.Quiz.CreateQuiz)
		quizzes.PUT("/:id", middleware.RequireJWT(authService), handlers.Quiz.UpdateQuiz)
		quizzes.DELETE("/:id", middleware.RequireJWT(authService), handlers.Quiz.DeleteQuiz)
	}

	// ─── 2. Submissions (JWT + rate limit) ─────────────────────────────
	api.POST("/quiz-submissions",
		middleware.RequireJWT(authService),
		submitLimiter.Middleware(),
		handlers.Submission.SubmitQuiz,
	)

	// ─── 3. Caller ─────────────────────────────────────────────────────
	me := api.Group("/me")
	me.Use(middleware.RequireJWT(authService))
	{
		me.GET("/attempts", handlers.Submission.ListMyAttempts)
	}

	return router
}
