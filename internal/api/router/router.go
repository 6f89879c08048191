package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"course-advisor/backend/config"
	"course-advisor/backend/internal/api/handler"
	"course-advisor/backend/internal/api/middleware"
	"course-advisor/backend/internal/model"
	"course-advisor/backend/pkg/jwt"
	"course-advisor/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时黑名单与限流降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	var (
		checker middleware.TokenChecker
		limiter middleware.RateLimiter
	)
	if rdb != nil {
		checker = rdb
		limiter = rdb
	}
	return setup(cfg, h, jwtMgr, checker, limiter, logger)
}

func setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	checker middleware.TokenChecker,
	limiter middleware.RateLimiter,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, checker))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 学生模块（本人或管理员，Handler 层鉴权）
			students := authorized.Group("/students")
			{
				students.GET("", middleware.RoleAuth(model.RoleAdmin), h.Student.List)
				students.GET("/:id", h.Student.Get)
				students.PATCH("/:id", h.Student.Update)
				students.DELETE("/:id", h.Student.Delete)

				students.GET("/:id/completions", h.Student.ListCompletions)
				students.POST("/:id/completions", h.Student.AddCompletion)
				students.DELETE("/:id/completions/:number", h.Student.RemoveCompletion)

				students.GET("/:id/availability", h.Student.GetAvailability)
				students.PUT("/:id/availability", h.Student.SetAvailability)
				students.POST("/:id/availability/ics", h.Student.ImportAvailabilityICS)
			}

			// 课程目录模块
			courses := authorized.Group("/courses")
			{
				courses.GET("", h.Catalog.ListCourses)
				courses.GET("/core", h.Catalog.ListCore)
				courses.GET("/sections", h.Catalog.ListSections)
				courses.GET("/sections/:id", h.Catalog.GetSection)
				courses.GET("/:number", h.Catalog.GetCourse)
				courses.POST("/import", middleware.RoleAuth(model.RoleAdmin), h.Catalog.Import)
			}

			// 课表模块
			schedules := authorized.Group("/schedules")
			{
				schedules.POST("/generate",
					middleware.RateLimit(limiter, cfg.RateLimit.GeneratePerMinute, time.Minute),
					h.Schedule.Generate)
				schedules.GET("/student/:id", h.Schedule.ListByStudent)
				schedules.GET("/student/:id/:scheduleId", h.Schedule.Get)
				schedules.DELETE("/student/:id/:scheduleId", h.Schedule.Delete)
				schedules.GET("/student/:id/:scheduleId/export", h.Export.ExportSchedule)
			}
		}
	}

	return r
}
