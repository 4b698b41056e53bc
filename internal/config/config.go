package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ==================== 配置结构 ====================

// Config 应用配置
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	LLM          LLMConfig
	Vector       VectorConfig
	Security     SecurityConfig
	Conversation ConversationConfig
	LogLevel     string
	Sites        map[string]SiteProfile
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Host               string
	Port               string
	Debug              bool
	CORSOrigins        []string
	RateLimitPerMinute int
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig 数据库
type DatabaseConfig struct {
	URL         string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	AutoMigrate bool
}

// LLMConfig 大模型
type LLMConfig struct {
	Provider       string // openai | gemini
	OpenAIKey      string
	Model          string
	EmbeddingModel string
	GeminiKey      string
	GeminiModel    string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
}

// Configured 是否配置了可用的模型密钥
func (c LLMConfig) Configured() bool {
	if c.Provider == ProviderGemini {
		return c.GeminiKey != ""
	}
	return c.OpenAIKey != ""
}

// 模型供应商
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// VectorConfig Chroma 向量库
type VectorConfig struct {
	ChromaURL string
	Timeout   time.Duration
}

// Enabled 是否启用向量检索
func (c VectorConfig) Enabled() bool {
	return c.ChromaURL != ""
}

// SecurityConfig 管理接口鉴权
type SecurityConfig struct {
	SecretKey      string
	AccessTokenTTL time.Duration
}

// ConversationConfig 会话历史
type ConversationConfig struct {
	HistoryLimit  int
	RetentionDays int
}

// SiteProfile 站点人设，用于拼接系统提示词
type SiteProfile struct {
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	Focus       string `yaml:"focus"`
}

// DefaultSites 内置站点人设
func DefaultSites() map[string]SiteProfile {
	return map[string]SiteProfile{
		"store1": {
			DisplayName: "Mass Loaded Vinyl",
			Description: "Mass Loaded Vinyl - specializing in soundproofing materials and acoustic solutions",
			Focus:       "soundproofing and acoustic materials",
		},
	}
}

// ==================== 加载 ====================

// Load 加载 .env 与环境变量；SITES_CONFIG 指向的 YAML 文件会覆盖内置站点人设
func Load() (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("API_HOST", "0.0.0.0"),
			Port:               getEnv("API_PORT", "8000"),
			Debug:              getEnvBool("API_DEBUG", false),
			CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			MaxIdle:     getEnvInt("DB_MAX_IDLE", 10),
			MaxOpen:     getEnvInt("DB_MAX_OPEN", 100),
			MaxLifetime: time.Hour,
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			GeminiKey:      getEnv("GEMINI_API_KEY", ""),
			GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature:    getEnvFloat("OPENAI_TEMPERATURE", 0.7),
			MaxTokens:      getEnvInt("OPENAI_MAX_TOKENS", 500),
			Timeout:        time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Vector: VectorConfig{
			ChromaURL: strings.TrimRight(getEnv("CHROMA_URL", ""), "/"),
			Timeout:   10 * time.Second,
		},
		Security: SecurityConfig{
			SecretKey:      getEnv("SECRET_KEY", ""),
			AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		},
		Conversation: ConversationConfig{
			HistoryLimit:  getEnvInt("CONVERSATION_HISTORY_LIMIT", 10),
			RetentionDays: getEnvInt("CONVERSATION_RETENTION_DAYS", 90),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sites:    DefaultSites(),
	}

	if path := getEnv("SITES_CONFIG", ""); path != "" {
		sites, err := LoadSiteProfiles(path)
		if err != nil {
			return nil, err
		}
		for name, profile := range sites {
			cfg.Sites[name] = profile
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL 未配置")
	}
	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderGemini {
		return fmt.Errorf("不支持的 LLM_PROVIDER: %s", c.LLM.Provider)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE 不能为负数")
	}
	return nil
}

// siteFile 站点 YAML 文件结构
type siteFile struct {
	Sites map[string]SiteProfile `yaml:"sites"`
}

// LoadSiteProfiles 读取站点人设 YAML
func LoadSiteProfiles(path string) (map[string]SiteProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取站点配置失败: %w", err)
	}

	var f siteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析站点配置失败: %w", err)
	}
	return f.Sites, nil
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
