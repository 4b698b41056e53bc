package task

import (
	"time"

	"go.uber.org/zap"
)

// Purger 可清理过期条目的缓存
type Purger interface {
	Purge() int
}

// IdleCleaner 可清理闲置条目的组件（如按客户端的限流器）
type IdleCleaner interface {
	Cleanup(idle time.Duration) int
}

// SweepTask 定期清理内存缓存与闲置限流条目
type SweepTask struct {
	caches  map[string]Purger
	limiter IdleCleaner
	idle    time.Duration
	logger  *zap.Logger
}

func NewSweepTask(caches map[string]Purger, limiter IdleCleaner, idle time.Duration, logger *zap.Logger) *SweepTask {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &SweepTask{caches: caches, limiter: limiter, idle: idle, logger: logger}
}

// SweepResult 单次清理结果
type SweepResult struct {
	Caches  map[string]int
	Clients int
}

// Run 执行一次清理
func (t *SweepTask) Run() SweepResult {
	res := SweepResult{Caches: make(map[string]int, len(t.caches))}
	for name, c := range t.caches {
		res.Caches[name] = c.Purge()
	}
	if t.limiter != nil {
		res.Clients = t.limiter.Cleanup(t.idle)
	}

	t.logger.Debug("[Cron] 内存清理完成",
		zap.Any("caches", res.Caches),
		zap.Int("clients", res.Clients),
	)
	return res
}
