package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/config"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/api/handler"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/api/router"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/repository"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/service"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/worker"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/pkg/database"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/pkg/jwt"
	applogger "github.com/Calm-Connection/calm-spark-buddy-sub000/pkg/logger"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，判定缓存与限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 管理器（只验证主服务签发的令牌）
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 初始化外部分类服务客户端（未配置时停用，引擎走关键词兜底）
	classifier, err := service.NewLLMClassifier(&cfg.Classifier)
	if err != nil {
		logger.Fatal("初始化分类服务客户端失败", zap.Error(err))
	}
	if classifier == nil {
		logger.Warn("分类服务未配置，升级判定仅依赖关键词检测")
	}

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, classifier, rdb, logger)
	h := handler.NewHandler(svc)

	// 8. 启动通知调度工作器
	workerCtx, stopWorker := context.WithCancel(context.Background())
	dispatcher := worker.NewDispatcher(svc.Dispatch, &cfg.Dispatcher, logger)
	go dispatcher.Run(workerCtx)

	// 9. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
