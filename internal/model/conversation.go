package model

import "time"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation 会话
type Conversation struct {
	ID             int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	SiteID         int64     `gorm:"index;not null" json:"site_id"`
	ConversationID string    `gorm:"size:255;uniqueIndex;not null" json:"conversation_id"`
	UserID         *string   `gorm:"size:255" json:"user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ConversationMessage 会话消息，只追加不修改
type ConversationMessage struct {
	ID             int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ConversationID string    `gorm:"size:255;index;not null" json:"conversation_id"`
	Role           string    `gorm:"size:20;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}
