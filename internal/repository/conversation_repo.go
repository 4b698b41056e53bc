package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/pkg/database"
)

// ==================== 接口定义 ====================

// ConversationRepository 会话仓储接口
type ConversationRepository interface {
	GetByConversationID(ctx context.Context, conversationID string) (*model.Conversation, error)
	// GetOrCreate 不存在则创建，并发创建时返回已存在的记录；created 表示本次是否新建
	GetOrCreate(ctx context.Context, conv *model.Conversation) (result *model.Conversation, created bool, err error)
	// AppendMessage 追加消息并刷新会话 updated_at
	AppendMessage(ctx context.Context, msg *model.ConversationMessage) error
	// ListRecentMessages 最近 limit 条消息，按时间正序返回
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]model.ConversationMessage, error)
	CountMessages(ctx context.Context, conversationID string) (int64, error)
	// DeleteInactiveBefore 删除 updated_at 早于 before 的会话及其消息，返回删除的会话数
	DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error)
}

// ==================== 实现 ====================

type conversationRepo struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话仓储
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) GetByConversationID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) GetOrCreate(ctx context.Context, conv *model.Conversation) (*model.Conversation, bool, error) {
	existing, err := r.GetByConversationID(ctx, conv.ConversationID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		// 另一个请求抢先创建了同一会话
		if database.IsDuplicateKey(err) {
			existing, err := r.GetByConversationID(ctx, conv.ConversationID)
			return existing, false, err
		}
		return nil, false, err
	}
	return conv, true, nil
}

func (r *conversationRepo) AppendMessage(ctx context.Context, msg *model.ConversationMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("conversation_id = ?", msg.ConversationID).
			Update("updated_at", time.Now()).Error
	})
}

func (r *conversationRepo) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]model.ConversationMessage, error) {
	var list []model.ConversationMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}

	// 倒序查询后翻转为时间正序
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

func (r *conversationRepo) CountMessages(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ConversationMessage{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

func (r *conversationRepo) DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&model.Conversation{}).Select("conversation_id").Where("updated_at < ?", before)
		if err := tx.Where("conversation_id IN (?)", stale).Delete(&model.ConversationMessage{}).Error; err != nil {
			return err
		}

		res := tx.Where("updated_at < ?", before).Delete(&model.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
