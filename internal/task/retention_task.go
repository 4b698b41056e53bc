package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"qrm_chatbot_api/internal/repository"
)

// RetentionTask 清理长期不活跃的会话及其消息
type RetentionTask struct {
	convRepo      repository.ConversationRepository
	retentionDays int
	logger        *zap.Logger
	now           func() time.Time
}

func NewRetentionTask(convRepo repository.ConversationRepository, retentionDays int, logger *zap.Logger) *RetentionTask {
	return &RetentionTask{
		convRepo:      convRepo,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// Run 删除 retentionDays 天内没有更新的会话，返回删除数量
func (t *RetentionTask) Run(ctx context.Context) (int64, error) {
	if t.retentionDays <= 0 {
		return 0, ErrTaskDisabled
	}

	before := t.now().AddDate(0, 0, -t.retentionDays)
	deleted, err := t.convRepo.DeleteInactiveBefore(ctx, before)
	if err != nil {
		t.logger.Error("[Cron] 会话清理失败", zap.Error(err))
		return 0, err
	}

	t.logger.Info("[Cron] 会话清理完成",
		zap.Int64("deleted", deleted),
		zap.Time("before", before),
	)
	return deleted, nil
}
