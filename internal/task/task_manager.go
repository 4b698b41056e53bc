package task

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"qrm_chatbot_api/internal/repository"
)

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一管理后台定时任务
// 管理范围：会话保留期清理、内存缓存清理
type TaskManager struct {
	cron      *cron.Cron
	retention *RetentionTask
	sweep     *SweepTask
	cfg       *TaskManagerConfig
	logger    *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	ConvRepo repository.ConversationRepository
	Caches   map[string]Purger
	Limiter  IdleCleaner
	Logger   *zap.Logger
}

// TaskManagerConfig 任务管理器配置，cron 表达式带秒字段
type TaskManagerConfig struct {
	RetentionEnabled bool
	RetentionDays    int
	RetentionSpec    string
	RetentionTimeout time.Duration

	SweepEnabled bool
	SweepSpec    string
	ClientIdle   time.Duration
}

// DefaultConfig 默认配置：每天 03:30 清理会话，每 10 分钟清理内存
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		RetentionEnabled: true,
		RetentionDays:    90,
		RetentionSpec:    "0 30 3 * * *",
		RetentionTimeout: 10 * time.Minute,

		SweepEnabled: true,
		SweepSpec:    "0 */10 * * * *",
		ClientIdle:   10 * time.Minute,
	}
}

// NewTaskManager 创建任务管理器并注册任务
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) (*TaskManager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TaskManager{
		cron:   cron.New(cron.WithSeconds()), // 支持秒级控制
		cfg:    cfg,
		logger: logger,
	}

	// 会话保留期清理
	if cfg.RetentionEnabled && cfg.RetentionDays > 0 && deps.ConvRepo != nil {
		tm.retention = NewRetentionTask(deps.ConvRepo, cfg.RetentionDays, logger)
		_, err := tm.cron.AddFunc(cfg.RetentionSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.RetentionTimeout)
			defer cancel()
			_, _ = tm.retention.Run(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("注册会话清理任务失败: %w", err)
		}
	}

	// 内存清理
	if cfg.SweepEnabled {
		tm.sweep = NewSweepTask(deps.Caches, deps.Limiter, cfg.ClientIdle, logger)
		if _, err := tm.cron.AddFunc(cfg.SweepSpec, func() { tm.sweep.Run() }); err != nil {
			return nil, fmt.Errorf("注册内存清理任务失败: %w", err)
		}
	}

	return tm, nil
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	tm.cron.Start()
	tm.logger.Info("[TaskManager] 定时任务已启动", zap.Any("status", tm.Status()))
}

// Stop 停止调度并等待运行中的任务结束
func (tm *TaskManager) Stop(ctx context.Context) {
	tm.logger.Info("[TaskManager] 正在停止定时任务...")
	select {
	case <-tm.cron.Stop().Done():
	case <-ctx.Done():
		tm.logger.Warn("[TaskManager] 等待任务结束超时")
	}
}

// ==================== 手动触发接口 ====================

// TriggerRetention 立即执行一次会话清理
func (tm *TaskManager) TriggerRetention(ctx context.Context) (int64, error) {
	if tm.retention == nil {
		return 0, ErrTaskDisabled
	}
	return tm.retention.Run(ctx)
}

// TriggerSweep 立即执行一次内存清理
func (tm *TaskManager) TriggerSweep() (SweepResult, error) {
	if tm.sweep == nil {
		return SweepResult{}, ErrTaskDisabled
	}
	return tm.sweep.Run(), nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"retention": tm.retention != nil,
		"sweep":     tm.sweep != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
