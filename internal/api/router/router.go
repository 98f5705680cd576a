package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/config"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/api/handler"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/api/middleware"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/pkg/jwt"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20)) // 日记条目上限远小于 1MB

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── 服务间接口 ──
	// 日记提交路径在条目落库后同步回调分析
	internal := r.Group("/internal/v1")
	internal.Use(middleware.InternalAuth(cfg.Auth.InternalToken))
	{
		internal.POST("/entries/analyze", h.Safeguarding.AnalyzeEntry)
	}

	// ── API v1（终端用户） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	v1.Use(middleware.RateLimit(rdb, 120, time.Minute))
	{
		// 条目升级等级：监护人端门禁共享/标记条目时查询
		v1.GET("/entries/:id/escalation", h.Safeguarding.GetEscalationTier)

		// 监护人面板
		dependents := v1.Group("/dependents")
		dependents.Use(middleware.RoleAuth("guardian", "admin"))
		{
			dependents.GET("/:id/safeguarding-logs", h.Safeguarding.ListSafeguardingLogs)
			dependents.GET("/:id/safeguarding-logs/export", h.Export.ExportSafeguardingLogs)
		}
	}

	return r
}
