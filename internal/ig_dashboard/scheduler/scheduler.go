package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Worker 按固定间隔重新解析凭据，使托管平台轮换后的密钥无需重启即可生效
type Worker struct {
	Log      *zap.Logger
	Interval time.Duration
	// Reload 每个周期调用一次
	Reload func(ctx context.Context)
}

// Run 阻塞直到 ctx 结束；Interval <= 0 时直接返回
func (w *Worker) Run(ctx context.Context) {
	if w.Interval <= 0 || w.Reload == nil {
		return
	}

	w.Log.Info("Credential refresh started", zap.Duration("interval", w.Interval))
	for {
		timer := time.NewTimer(w.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.Log.Info("Credential refresh stopped")
			return
		case <-timer.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	start := time.Now()
	w.Reload(ctx)
	w.Log.Debug("Credentials refreshed", zap.Duration("took", time.Since(start)))
}
