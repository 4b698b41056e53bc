package model

import "github.com/lib/pq"

// AICallLog AI调用日志
type AICallLog struct {
	BaseModel

	// 关联
	SiteID         int64  `gorm:"index;comment:站点ID"`
	ConversationID string `gorm:"size:255;index;comment:会话ID"`

	// 调用信息
	CallType  string `gorm:"size:32;index;comment:调用类型(chat/search_terms/embedding)"`
	Provider  string `gorm:"size:32;comment:供应商"`
	ModelName string `gorm:"size:64;comment:模型名称"`

	// 检索词提取结果
	SearchTerms pq.StringArray `gorm:"type:text;comment:提取的检索词"`

	// 用量统计
	InputTokens  int `gorm:"default:0;comment:输入token数"`
	OutputTokens int `gorm:"default:0;comment:输出token数"`

	// 性能
	DurationMs int64 `gorm:"comment:耗时(毫秒)"`
	Attempts   int   `gorm:"default:1;comment:尝试次数"`

	// 状态
	Status   string `gorm:"size:32;index;default:success;comment:状态(success/failed)"`
	ErrorMsg string `gorm:"size:1024;comment:错误信息"`
}

func (AICallLog) TableName() string {
	return "ai_call_logs"
}

// ==================== 调用类型常量 ====================

const (
	AICallTypeChat        = "chat"
	AICallTypeSearchTerms = "search_terms"
	AICallTypeEmbedding   = "embedding"
)

// ==================== 状态常量 ====================

const (
	AICallStatusSuccess = "success"
	AICallStatusFailed  = "failed"
)
