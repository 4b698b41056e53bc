package dto

import "time"

// SiteResp 站点信息
type SiteResp struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	IsActive bool   `json:"is_active"`
	// DisplayName 来自站点人设配置
	DisplayName string `json:"display_name,omitempty"`
}

// SiteListResp 站点列表
type SiteListResp struct {
	Total int64      `json:"total"`
	List  []SiteResp `json:"list"`
}

// ==================== 健康检查 ====================

// ComponentStatus 组件状态
type ComponentStatus struct {
	Status  string `json:"status"` // healthy | unhealthy | disabled
	Message string `json:"message,omitempty"`
}

// HealthResp 健康检查
type HealthResp struct {
	Status     string                     `json:"status"`
	Service    string                     `json:"service"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// TestSearchReq 管理员检索调试
type TestSearchReq struct {
	Query    string `json:"query" binding:"required"`
	SiteName string `json:"site_name"`
}

// RootResp 根路径状态，兼容旧版部署的探活脚本
type RootResp struct {
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	Database      string    `json:"database"`
	LLMConfigured bool      `json:"llm_configured"`
	Timestamp     time.Time `json:"timestamp"`
}

// TestSearchResp 管理员检索调试结果
type TestSearchResp struct {
	Query         string        `json:"query"`
	SiteName      string        `json:"site_name"`
	Source        string        `json:"source"`
	ProductsFound int           `json:"products_found"`
	Products      []ProductResp `json:"products"`
}
