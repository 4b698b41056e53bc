package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/api/option"

	"qrm_chatbot_api/internal/model"
)

// ==================== 通用结构 ====================

// LLMMessage 对话消息，Role 取值同 model.RoleUser 等
type LLMMessage struct {
	Role    string
	Content string
}

// CompletionReq 补全请求
type CompletionReq struct {
	Messages    []LLMMessage
	Temperature float64
	MaxTokens   int
}

// Completion 补全结果
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// LLMProvider 大模型供应商
type LLMProvider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req CompletionReq) (*Completion, error)
}

// ==================== OpenAI（langchaingo） ====================

type openAIProvider struct {
	llm   *openai.LLM
	model string
}

// NewOpenAIProvider 返回的 *openai.LLM 同时用于生成检索向量
func NewOpenAIProvider(apiKey, modelName, embeddingModel string) (LLMProvider, *openai.LLM, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
		openai.WithEmbeddingModel(embeddingModel),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("OpenAI 初始化失败: %w", err)
	}
	return &openAIProvider{llm: llm, model: modelName}, llm, nil
}

func (p *openAIProvider) Name() string  { return "openai" }
func (p *openAIProvider) Model() string { return p.model }

func (p *openAIProvider) Complete(ctx context.Context, req CompletionReq) (*Completion, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		content = append(content, llms.TextParts(langchainRole(m.Role), m.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, content,
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(req.MaxTokens),
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI 返回为空")
	}

	choice := resp.Choices[0]
	return &Completion{
		Text:         choice.Content,
		InputTokens:  intFromInfo(choice.GenerationInfo, "PromptTokens"),
		OutputTokens: intFromInfo(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

func langchainRole(role string) llms.ChatMessageType {
	switch role {
	case model.RoleSystem:
		return llms.ChatMessageTypeSystem
	case model.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// ==================== Gemini ====================

type geminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider 调用方负责 Close
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (LLMProvider, func() error, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, fmt.Errorf("Gemini 初始化失败: %w", err)
	}
	return &geminiProvider{client: client, model: modelName}, client.Close, nil
}

func (p *geminiProvider) Name() string  { return "gemini" }
func (p *geminiProvider) Model() string { return p.model }

func (p *geminiProvider) Complete(ctx context.Context, req CompletionReq) (*Completion, error) {
	gm := p.client.GenerativeModel(p.model)
	gm.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	// system 消息合并为 SystemInstruction，最后一条作为本轮输入
	var system []string
	var turns []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, m.Content)
		case model.RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("缺少用户消息")
	}

	cs := gm.StartChat()
	cs.History = turns[:len(turns)-1]
	resp, err := cs.SendMessage(ctx, turns[len(turns)-1].Parts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("Gemini 返回为空")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	out := &Completion{Text: sb.String()}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
