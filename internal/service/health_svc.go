package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/pkg/database"
)

// 组件状态
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
	StatusDegraded  = "degraded"
)

const (
	serviceName    = "qrm-chatbot-api"
	serviceVersion = "2.0.0"
)

// HealthService 依赖组件健康检查
type HealthService struct {
	db     *gorm.DB
	sites  *SiteService
	vector VectorSearcher
	ai     *AIService
	now    func() time.Time
}

func NewHealthService(db *gorm.DB, sites *SiteService, vector VectorSearcher, ai *AIService) *HealthService {
	return &HealthService{db: db, sites: sites, vector: vector, ai: ai, now: time.Now}
}

// Basic 进程存活
func (s *HealthService) Basic() *dto.HealthResp {
	return &dto.HealthResp{
		Status:    StatusHealthy,
		Service:   serviceName,
		Version:   serviceVersion,
		Timestamp: s.now().UTC(),
	}
}

// Detailed 数据库不可用为 unhealthy；向量库或大模型不可用为 degraded
func (s *HealthService) Detailed(ctx context.Context) *dto.HealthResp {
	resp := s.Basic()
	resp.Components = map[string]dto.ComponentStatus{
		"database":     s.checkDatabase(ctx),
		"vector_store": s.checkVector(ctx),
		"llm":          s.checkLLM(),
	}

	switch {
	case resp.Components["database"].Status != StatusHealthy:
		resp.Status = StatusUnhealthy
	case resp.Components["vector_store"].Status == StatusUnhealthy,
		resp.Components["llm"].Status != StatusHealthy:
		resp.Status = StatusDegraded
	}
	return resp
}

func (s *HealthService) checkDatabase(ctx context.Context) dto.ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := database.Ping(ctx, s.db); err != nil {
		return dto.ComponentStatus{Status: StatusUnhealthy, Message: err.Error()}
	}
	count, err := s.sites.CountSites(ctx)
	if err != nil {
		return dto.ComponentStatus{Status: StatusUnhealthy, Message: err.Error()}
	}
	return dto.ComponentStatus{Status: StatusHealthy, Message: fmt.Sprintf("%d sites", count)}
}

func (s *HealthService) checkVector(ctx context.Context) dto.ComponentStatus {
	if s.vector == nil {
		return dto.ComponentStatus{Status: StatusDisabled, Message: "CHROMA_URL not set, using SQL search"}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.vector.Heartbeat(ctx); err != nil {
		return dto.ComponentStatus{Status: StatusUnhealthy, Message: err.Error()}
	}
	return dto.ComponentStatus{Status: StatusHealthy}
}

func (s *HealthService) checkLLM() dto.ComponentStatus {
	if !s.ai.Configured() {
		return dto.ComponentStatus{Status: StatusUnhealthy, Message: "API key not configured"}
	}
	return dto.ComponentStatus{Status: StatusHealthy, Message: s.ai.ProviderName()}
}

// Root 根路径状态，数据库异常时仍返回 healthy 并在 database 字段说明
func (s *HealthService) Root(ctx context.Context) *dto.RootResp {
	db := s.checkDatabase(ctx)
	dbStatus := "connected (" + db.Message + ")"
	if db.Status != StatusHealthy {
		dbStatus = "error: " + db.Message
	}
	return &dto.RootResp{
		Status:        StatusHealthy,
		Message:       "QRM Chatbot API is running",
		Database:      dbStatus,
		LLMConfigured: s.ai.Configured(),
		Timestamp:     s.now().UTC(),
	}
}

// ==================== 调试 ====================

// debugTables 调试接口检查的表
var debugTables = []string{
	"sites", "products", "product_variations", "categories",
	"shipping_zones", "shipping_methods", "shipping_classes", "shipping_class_rates",
	"conversations", "conversation_messages", "ai_call_logs",
}

// DebugInfo 管理员调试信息
type DebugInfo struct {
	DatabaseType  string              `json:"database_type"`
	LLMProvider   string              `json:"llm_provider"`
	LLMConfigured bool                `json:"llm_configured"`
	VectorStore   dto.ComponentStatus `json:"vector_store"`
	Tables        map[string][]string `json:"tables"`
	MissingTables []string            `json:"missing_tables"`
	Site          string              `json:"site"`
	AIUsage       *AIUsageReport      `json:"ai_usage,omitempty"`
}

// Debug 表结构与最近 7 天的模型调用统计
func (s *HealthService) Debug(ctx context.Context, siteName string) (*DebugInfo, error) {
	info := &DebugInfo{
		DatabaseType:  s.db.Dialector.Name(),
		LLMProvider:   s.ai.ProviderName(),
		LLMConfigured: s.ai.Configured(),
		VectorStore:   s.checkVector(ctx),
		Tables:        make(map[string][]string),
		MissingTables: []string{},
		Site:          siteNameOrDefault(siteName),
	}

	migrator := s.db.WithContext(ctx).Migrator()
	for _, table := range debugTables {
		if !migrator.HasTable(table) {
			info.MissingTables = append(info.MissingTables, table)
			continue
		}
		columns, err := migrator.ColumnTypes(table)
		if err != nil {
			return nil, fmt.Errorf("读取表结构失败 %s: %w", table, err)
		}
		for _, c := range columns {
			info.Tables[table] = append(info.Tables[table], c.Name())
		}
	}

	site, err := s.sites.GetSite(ctx, siteName)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return info, nil
		}
		return nil, err
	}
	if info.AIUsage, err = s.ai.Usage(ctx, site.ID, 7); err != nil {
		return nil, err
	}
	return info, nil
}
