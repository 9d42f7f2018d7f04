package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/handler"
	"github.com/stemsi/exstem-grading/internal/middleware"
	"github.com/stemsi/exstem-grading/internal/observability"
	"github.com/stemsi/exstem-grading/internal/response"
	"github.com/stemsi/exstem-grading/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt    *handler.AttemptHandler
	Submission *handler.SubmissionHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the lifetime of the rate limiter's eviction loop.
func SetupRouter(
	ctx context.Context,
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(log))
	router.Use(observability.Middleware())

	// ─── Operational ───────────────────────────────────────────────────
	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", observability.MetricsHandler())

	submitLimiter := middleware.NewRateLimiter(ctx, cfg.SubmitRatePerMinute, time.Minute)

	// ─── 1. Attempt Admission (Student) ────────────────────────────────
	attempts := router.Group("/api/v1/attempts")
	attempts.Use(
		middleware.RequireJWT(auth),
		middleware.RequireRole(service.RoleStudent),
	)
	{
		attempts.POST("/exams/:assignment_id/start", handlers.Attempt.StartExam)
		attempts.POST("/homework/:assignment_id/start", handlers.Attempt.StartHomework)
	}

	// ─── 2. Submission Lifecycle (Student) ─────────────────────────────
	submissions := router.Group("/api/v1/submissions")
	submissions.Use(
		middleware.RequireJWT(auth),
		middleware.RequireRole(service.RoleStudent),
	)
	{
		submissions.PUT("/:submission_id/progress", handlers.Submission.SaveProgress)
		submissions.GET("/:submission_id/state", handlers.Submission.GetState)
		submissions.POST("/:submission_id/submit", submitLimiter.Middleware(), handlers.Submission.Submit)
		submissions.POST("/:submission_id/preview", handlers.Submission.Preview)
		submissions.GET("/:submission_id/result", handlers.Submission.GetResult)
	}

	// ─── 3. Admin Reporting ────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(auth),
		middleware.RequireRole(service.RoleAdmin),
	)
	{
		adminAPI.GET("/submissions/:submission_id/result", handlers.Submission.AdminGetResult)
	}

	return router
}
