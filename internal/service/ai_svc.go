package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
	"qrm_chatbot_api/pkg/utils"
)

// ==================== 配置 ====================

// AIConfig AI 服务配置
type AIConfig struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // 单次调用超时
	Retry       utils.RetryConfig
}

const searchTermsPrompt = "Extract product search terms from the user message. Return as JSON array of strings."

// ==================== 服务 ====================

// AIService 封装大模型调用：重试、超时、调用日志
type AIService struct {
	provider    LLMProvider // 未配置密钥时为 nil
	cfg         AIConfig
	callLogRepo repository.AICallLogRepository
	logger      *zap.Logger
}

// CallMeta 调用日志关联信息
type CallMeta struct {
	SiteID         int64
	ConversationID string
}

// NewAIService 创建 AI 服务
func NewAIService(provider LLMProvider, cfg AIConfig, callLogRepo repository.AICallLogRepository, logger *zap.Logger) *AIService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = utils.DefaultRetryConfig()
	}
	return &AIService{provider: provider, cfg: cfg, callLogRepo: callLogRepo, logger: logger}
}

// Configured 是否可用
func (s *AIService) Configured() bool {
	return s.provider != nil
}

// ProviderName 健康检查展示
func (s *AIService) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name() + "/" + s.provider.Model()
}

// Chat 生成客服回复，失败按配置重试
func (s *AIService) Chat(ctx context.Context, meta CallMeta, messages []LLMMessage) (string, error) {
	out, err := s.call(ctx, meta, model.AICallTypeChat, CompletionReq{
		Messages:    messages,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}, s.cfg.Retry, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

// ExtractSearchTerms 从用户消息中提取商品检索词，不重试
func (s *AIService) ExtractSearchTerms(ctx context.Context, meta CallMeta, message string) ([]string, error) {
	var terms []string
	_, err := s.call(ctx, meta, model.AICallTypeSearchTerms, CompletionReq{
		Messages: []LLMMessage{
			{Role: model.RoleSystem, Content: searchTermsPrompt},
			{Role: model.RoleUser, Content: message},
		},
		Temperature: 0.3,
		MaxTokens:   100,
	}, utils.RetryConfig{MaxAttempts: 1}, func(c *Completion) error {
		parsed, err := ParseSearchTerms(c.Text)
		if err != nil {
			return err
		}
		terms = parsed
		return nil
	})
	return terms, err
}

// call 执行一次逻辑调用（可能多次尝试）并写调用日志；check 用于校验结果，失败计为本次调用失败
func (s *AIService) call(ctx context.Context, meta CallMeta, callType string, req CompletionReq, retry utils.RetryConfig, check func(*Completion) error) (*Completion, error) {
	if s.provider == nil {
		return nil, ErrLLMNotConfigured
	}

	start := time.Now()
	var out *Completion
	attempts, err := utils.Retry(ctx, retry, func(ctx context.Context) error {
		if s.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
		}
		c, err := s.provider.Complete(ctx, req)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err == nil && check != nil {
		err = check(out)
	}

	entry := &model.AICallLog{
		SiteID:         meta.SiteID,
		ConversationID: meta.ConversationID,
		CallType:       callType,
		Provider:       s.provider.Name(),
		ModelName:      s.provider.Model(),
		DurationMs:     time.Since(start).Milliseconds(),
		Attempts:       attempts,
		Status:         model.AICallStatusSuccess,
	}
	if out != nil {
		entry.InputTokens = out.InputTokens
		entry.OutputTokens = out.OutputTokens
	}
	if err != nil {
		entry.Status = model.AICallStatusFailed
		entry.ErrorMsg = truncate(err.Error(), 1024)
	} else if callType == model.AICallTypeSearchTerms {
		if terms, perr := ParseSearchTerms(out.Text); perr == nil {
			entry.SearchTerms = pq.StringArray(terms)
		}
	}
	s.writeLog(ctx, entry)

	if err != nil {
		return nil, fmt.Errorf("%s 调用失败: %w", callType, err)
	}
	return out, nil
}

// writeLog 日志写入失败不影响主流程
func (s *AIService) writeLog(ctx context.Context, entry *model.AICallLog) {
	if s.callLogRepo == nil {
		return
	}
	if err := s.callLogRepo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("写入 AI 调用日志失败", zap.String("call_type", entry.CallType), zap.Error(err))
	}
}

// ParseSearchTerms 解析模型返回的 JSON 字符串数组，兼容 ```json 代码块
func ParseSearchTerms(text string) ([]string, error) {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var terms []string
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		return nil, fmt.Errorf("检索词解析失败: %w", err)
	}

	return lo.Uniq(lo.FilterMap(terms, func(t string, _ int) (string, bool) {
		t = strings.TrimSpace(t)
		return t, t != ""
	})), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ==================== 用量统计 ====================

// AIUsageReport 站点用量与每日明细
type AIUsageReport struct {
	Site  *repository.AIUsageStats      `json:"site"`
	Daily []repository.DailyUsageStats `json:"daily"`
}

// Usage 最近 days 天的调用统计
func (s *AIService) Usage(ctx context.Context, siteID int64, days int) (*AIUsageReport, error) {
	if s.callLogRepo == nil {
		return &AIUsageReport{}, nil
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	site, err := s.callLogRepo.GetUsageBySite(ctx, siteID, start, end)
	if err != nil {
		return nil, err
	}
	daily, err := s.callLogRepo.GetDailyUsage(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &AIUsageReport{Site: site, Daily: daily}, nil
}
