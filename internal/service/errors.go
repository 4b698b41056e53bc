package service

import (
	"errors"

	"qrm_chatbot_api/pkg/shipping"
)

// 业务错误，控制器据此映射 HTTP 状态码
var (
	ErrSiteNotFound         = shipping.ErrSiteNotFound
	ErrProductNotFound      = errors.New("product not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrLLMNotConfigured     = errors.New("llm provider not configured")
)

// DefaultSiteName 请求未指定站点时使用
const DefaultSiteName = "store1"

func siteNameOrDefault(name string) string {
	if name == "" {
		return DefaultSiteName
	}
	return name
}
