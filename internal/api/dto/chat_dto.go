package dto

import (
	"time"

	"qrm_chatbot_api/pkg/shipping"
)

// ==================== 请求 DTO ====================

// ChatReq 聊天请求
type ChatReq struct {
	Message        string `json:"message" binding:"required,min=1,max=2000"`
	SiteName       string `json:"site_name"` // 默认 store1
	ConversationID string `json:"conversation_id" binding:"omitempty,max=100"`
	UserID         string `json:"user_id" binding:"omitempty,max=100"`
}

// ChatHistoryQuery 历史消息查询参数
type ChatHistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"` // 默认 50
}

// ==================== 响应 DTO ====================

// ChatResp 聊天回复
type ChatResp struct {
	Response         string           `json:"response"`
	ConversationID   string           `json:"conversation_id"`
	Products         []ProductResp    `json:"products"`
	Categories       []CategoryResp   `json:"categories"`
	ShippingOptions  []shipping.Quote `json:"shipping_options"`
	SuggestedActions []string         `json:"suggested_actions"`
	Timestamp        time.Time        `json:"timestamp"`
}

// ChatMessageResp 单条历史消息
type ChatMessageResp struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatHistoryResp 会话历史
type ChatHistoryResp struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []ChatMessageResp `json:"messages"`
}
