package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/config"
	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
	"qrm_chatbot_api/pkg/shipping"
)

// FallbackReply 大模型不可用时的固定回复
const FallbackReply = "I'm sorry, I'm having trouble processing your request right now. Please try again later."

const (
	maxSearchTerms      = 3
	productsPerTerm     = 5
	maxContextProducts  = 5
	maxResponseProducts = 5
	maxCategories       = 5
	maxShippingOptions  = 3
	maxQuotedProducts   = 3
	promptHistorySize   = 5
	defaultHistoryLimit = 50
)

var postcodePattern = regexp.MustCompile(`\b\d{4}\b`)

// ChatService 客服对话
type ChatService struct {
	sites        *SiteService
	knowledge    *KnowledgeService
	shipping     *ShippingService
	convRepo     repository.ConversationRepository
	ai           *AIService
	historyLimit int
	logger       *zap.Logger

	newConversationID func() string
	now               func() time.Time
}

func NewChatService(
	sites *SiteService,
	knowledge *KnowledgeService,
	shippingSvc *ShippingService,
	convRepo repository.ConversationRepository,
	ai *AIService,
	historyLimit int,
	logger *zap.Logger,
) *ChatService {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &ChatService{
		sites:             sites,
		knowledge:         knowledge,
		shipping:          shippingSvc,
		convRepo:          convRepo,
		ai:                ai,
		historyLimit:      historyLimit,
		logger:            logger,
		newConversationID: NewConversationID,
		now:               time.Now,
	}
}

// NewConversationID qrm_ + 12 位十六进制
func NewConversationID() string {
	return "qrm_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ==================== 对话 ====================

// GetResponse 处理一条用户消息。历史记录读写失败只记录日志，不中断对话
func (s *ChatService) GetResponse(ctx context.Context, req *dto.ChatReq) (*dto.ChatResp, error) {
	site, err := s.sites.GetSite(ctx, req.SiteName)
	if err != nil {
		return nil, err
	}

	convID := strings.TrimSpace(req.ConversationID)
	if convID == "" {
		convID = s.newConversationID()
	}
	meta := CallMeta{SiteID: site.ID, ConversationID: convID}
	log := s.logger.With(zap.String("site", site.Name), zap.String("conversation_id", convID))

	history := s.loadHistory(ctx, site, convID, req.UserID, log)
	s.saveMessage(ctx, convID, model.RoleUser, req.Message, log)

	products, err := s.findProducts(ctx, meta, site, req.Message, log)
	if err != nil {
		return nil, err
	}

	categories, err := s.knowledge.categoriesForSite(ctx, site.ID)
	if err != nil {
		log.Warn("加载分类失败", zap.Error(err))
		categories = nil
	}
	categories = lo.Slice(categories, 0, maxCategories)

	postcode := ExtractPostcode(req.Message)
	quotes := s.shippingQuotes(ctx, site, products, postcode, log)

	messages := s.buildMessages(site, history, BuildContext(products, categories, quotes, postcode), req.Message)
	reply, err := s.ai.Chat(ctx, meta, messages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("生成回复失败", zap.Error(err))
		reply = FallbackReply
		products = nil
	}

	s.saveMessage(ctx, convID, model.RoleAssistant, reply, log)

	return &dto.ChatResp{
		Response:         reply,
		ConversationID:   convID,
		Products:         lo.Slice(products, 0, maxResponseProducts),
		Categories:       categories,
		ShippingOptions:  lo.Slice(quotes, 0, maxShippingOptions),
		SuggestedActions: SuggestActions(len(products) > 0),
		Timestamp:        s.now().UTC(),
	}, nil
}

// loadHistory 新会话返回空历史
func (s *ChatService) loadHistory(ctx context.Context, site *model.Site, convID, userID string, log *zap.Logger) []model.ConversationMessage {
	conv := &model.Conversation{SiteID: site.ID, ConversationID: convID}
	if userID != "" {
		conv.UserID = &userID
	}

	_, created, err := s.convRepo.GetOrCreate(ctx, conv)
	if err != nil {
		log.Warn("会话历史不可用", zap.Error(err))
		return nil
	}
	if created {
		return nil
	}

	history, err := s.convRepo.ListRecentMessages(ctx, convID, s.historyLimit)
	if err != nil {
		log.Warn("读取会话历史失败", zap.Error(err))
		return nil
	}
	return history
}

func (s *ChatService) saveMessage(ctx context.Context, convID, role, content string, log *zap.Logger) {
	err := s.convRepo.AppendMessage(ctx, &model.ConversationMessage{
		ConversationID: convID,
		Role:           role,
		Content:        content,
	})
	if err != nil {
		log.Warn("保存会话消息失败", zap.String("role", role), zap.Error(err))
	}
}

// findProducts 提取检索词后逐个检索，按 WooCommerce ID 去重
func (s *ChatService) findProducts(ctx context.Context, meta CallMeta, site *model.Site, message string, log *zap.Logger) ([]dto.ProductResp, error) {
	terms, err := s.ai.ExtractSearchTerms(ctx, meta, message)
	if err != nil && !errors.Is(err, ErrLLMNotConfigured) {
		log.Debug("检索词提取失败，使用原始消息", zap.Error(err))
	}
	if len(terms) == 0 {
		terms = []string{message}
	}

	var products []dto.ProductResp
	for _, term := range lo.Slice(terms, 0, maxSearchTerms) {
		found, _, err := s.knowledge.search(ctx, site, term, productsPerTerm)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("商品检索失败", zap.String("term", term), zap.Error(err))
			continue
		}
		products = append(products, found...)
	}
	return lo.UniqBy(products, func(p dto.ProductResp) int64 { return p.WooID }), nil
}

// shippingQuotes 消息含邮编且检索到商品时按前 3 个商品报价，否则给出站点通用报价
func (s *ChatService) shippingQuotes(ctx context.Context, site *model.Site, products []dto.ProductResp, postcode string, log *zap.Logger) []shipping.Quote {
	var items []CartItem
	if postcode != "" {
		items = lo.Map(lo.Slice(products, 0, maxQuotedProducts), func(p dto.ProductResp, _ int) CartItem {
			return CartItem{ProductID: p.WooID, Quantity: 1}
		})
	}

	quotes, _, err := s.shipping.Quote(ctx, site.Name, items, postcode, nil)
	if err != nil {
		log.Warn("运费报价失败", zap.String("postcode", postcode), zap.Error(err))
		return []shipping.Quote{}
	}
	return quotes
}

func (s *ChatService) buildMessages(site *model.Site, history []model.ConversationMessage, contextText, message string) []LLMMessage {
	messages := []LLMMessage{{Role: model.RoleSystem, Content: SystemPrompt(s.sites.Profile(site.Name))}}

	for _, m := range lo.Subset(history, -promptHistorySize, promptHistorySize) {
		messages = append(messages, LLMMessage{Role: m.Role, Content: m.Content})
	}
	if contextText != "" {
		messages = append(messages, LLMMessage{Role: model.RoleSystem, Content: "Context:\n" + contextText})
	}
	return append(messages, LLMMessage{Role: model.RoleUser, Content: message})
}

// ==================== 历史 ====================

// GetHistory 会话不存在返回 ErrConversationNotFound
func (s *ChatService) GetHistory(ctx context.Context, conversationID string, limit int) (*dto.ChatHistoryResp, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	if _, err := s.convRepo.GetByConversationID(ctx, conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	list, err := s.convRepo.ListRecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	return &dto.ChatHistoryResp{
		ConversationID: conversationID,
		Messages: lo.Map(list, func(m model.ConversationMessage, _ int) dto.ChatMessageResp {
			return dto.ChatMessageResp{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt}
		}),
	}, nil
}

// ==================== 提示词 ====================

// SystemPrompt 客服人设
func SystemPrompt(profile config.SiteProfile) string {
	return fmt.Sprintf(`You are a helpful customer service assistant for %s.

Your role:
- Help customers find the right products for their needs
- Provide accurate pricing and product information
- Explain shipping options and costs
- Answer questions about %s
- Be friendly, professional, and knowledgeable

Guidelines:
- Always use the provided product context when available
- Include specific product names, SKUs, and prices when relevant
- If you don't have specific information, say so and offer to help find it
- Keep responses concise but helpful
- Focus on solving the customer's problem
- Use HTML <a> tags for product links

When recommending products:
- Explain why the product fits their needs
- Mention key features and benefits
- Include pricing information
- Suggest related or complementary products when appropriate`, profile.Description, focusOrDefault(profile.Focus))
}

func focusOrDefault(focus string) string {
	if focus == "" {
		return "our products"
	}
	return focus
}

// BuildContext 拼接商品、分类、运费上下文
func BuildContext(products []dto.ProductResp, categories []dto.CategoryResp, quotes []shipping.Quote, postcode string) string {
	var parts []string

	if len(products) > 0 {
		parts = append(parts, "Found Products:")
		for _, p := range lo.Slice(products, 0, maxContextProducts) {
			stock := "out of stock"
			if p.InStock {
				stock = "in stock"
			}
			line := fmt.Sprintf("- %s: %s (%s)", p.Name, p.Price, stock)
			if p.SKU != "" {
				line += " SKU: " + p.SKU
			}
			if p.Permalink != "" {
				line += " Link: " + p.Permalink
			}
			parts = append(parts, line)
		}
	}

	if len(categories) > 0 {
		parts = append(parts, "\nAvailable Categories:")
		for _, c := range lo.Slice(categories, 0, maxCategories) {
			desc := c.Description
			if desc == "" {
				desc = "No description"
			}
			parts = append(parts, fmt.Sprintf("- %s: %s", c.Name, desc))
		}
	}

	if len(quotes) > 0 {
		if postcode != "" {
			parts = append(parts, fmt.Sprintf("\nShipping to %s:", postcode))
		} else {
			parts = append(parts, "\nShipping Options:")
		}
		for _, q := range lo.Slice(quotes, 0, maxShippingOptions) {
			parts = append(parts, fmt.Sprintf("- %s: %s", q.Title, q.Cost))
		}
	}

	return strings.Join(parts, "\n")
}

// ExtractPostcode 消息中的第一个 4 位数字
func ExtractPostcode(message string) string {
	return postcodePattern.FindString(message)
}

// SuggestActions 推荐的后续操作，最多 3 个
func SuggestActions(hasProducts bool) []string {
	if hasProducts {
		return []string{"View product details", "Check availability", "Calculate shipping"}
	}
	return []string{"Browse categories", "Search for products"}
}
