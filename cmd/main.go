package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qrm_chatbot_api/internal/config"
	"qrm_chatbot_api/internal/controller"
	"qrm_chatbot_api/internal/middleware"
	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
	"qrm_chatbot_api/internal/router"
	"qrm_chatbot_api/internal/service"
	"qrm_chatbot_api/internal/task"
	"qrm_chatbot_api/pkg/database"
	"qrm_chatbot_api/pkg/logger"
	"qrm_chatbot_api/pkg/shipping"
	"qrm_chatbot_api/pkg/utils"
)

// costCacheTTL 运费表达式解析结果缓存时间
const costCacheTTL = time.Hour

func main() {
	issueToken := flag.String("issue-admin-token", "", "为指定 subject 签发管理员 Token 后退出")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		token, err := middleware.GenerateAdminToken(jwtConfig(cfg), *issueToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "签发 Token 失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log, err := logger.New(cfg.LogLevel, cfg.Server.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// 1. 初始化数据库
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	// 2. 初始化依赖
	deps, cleanup, err := initDependencies(cfg, db, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. 启动定时任务
	tasks, err := initTasks(cfg, deps, log)
	if err != nil {
		return err
	}
	tasks.Start()

	// 4. 初始化路由
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.SetupRouter(deps.Controllers, router.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Limiter:     deps.Limiter,
		JWT:         jwtConfig(cfg),
		Logger:      log,
	})

	// 5. 启动服务
	return startServer(cfg, r, tasks, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers router.Controllers
	Limiter     *middleware.ClientLimiter
	CostCache   *utils.Cache[string, shipping.CostExpression]
}

// Repositories 仓库集合
type Repositories struct {
	Site         repository.SiteRepository
	Product      repository.ProductRepository
	Category     repository.CategoryRepository
	Shipping     repository.ShippingRepository
	Conversation repository.ConversationRepository
	AICallLog    repository.AICallLogRepository
}

// Services 服务集合
type Services struct {
	Site      *service.SiteService
	Shipping  *service.ShippingService
	Knowledge *service.KnowledgeService
	AI        *service.AIService
	Chat      *service.ChatService
	Health    *service.HealthService
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库；商品与运费表由爬虫维护，这里只迁移本服务自有的表
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	opts := database.Options{
		URL:         cfg.Database.URL,
		MaxIdle:     cfg.Database.MaxIdle,
		MaxOpen:     cfg.Database.MaxOpen,
		MaxLifetime: cfg.Database.MaxLifetime,
		Debug:       cfg.Server.Debug,
	}
	if cfg.Database.AutoMigrate {
		opts.Models = []interface{}{
			&model.Conversation{}, &model.ConversationMessage{},
			&model.AICallLog{},
		}
	}
	return database.InitDB(opts)
}

// initDependencies 初始化所有依赖，返回的 cleanup 用于释放模型客户端
func initDependencies(cfg *config.Config, db *gorm.DB, log *zap.Logger) (*Dependencies, func(), error) {
	// -------- Repo 层 --------
	repos := &Repositories{
		Site:         repository.NewSiteRepository(db),
		Product:      repository.NewProductRepository(db),
		Category:     repository.NewCategoryRepository(db),
		Shipping:     repository.NewShippingRepository(db),
		Conversation: repository.NewConversationRepository(db),
		AICallLog:    repository.NewAICallLogRepository(db),
	}

	// -------- 模型 & 向量检索 --------
	provider, embedder, cleanup, err := initLLM(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	vector := initVector(cfg, embedder, log)

	// -------- 业务服务 --------
	costCache := utils.NewCache[string, shipping.CostExpression](costCacheTTL)
	svc := &Services{}
	svc.Site = service.NewSiteService(repos.Site, cfg.Sites)
	svc.Shipping = service.NewShippingService(repos.Site, repos.Shipping, repos.Product, costCache, log)
	svc.Knowledge = service.NewKnowledgeService(svc.Site, repos.Product, repos.Category, vector, log)
	svc.AI = service.NewAIService(provider, service.AIConfig{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		Retry:       utils.DefaultRetryConfig(),
	}, repos.AICallLog, log)
	svc.Chat = service.NewChatService(svc.Site, svc.Knowledge, svc.Shipping, repos.Conversation, svc.AI,
		cfg.Conversation.HistoryLimit, log)
	svc.Health = service.NewHealthService(db, svc.Site, vector, svc.AI)

	// -------- Controller 层 --------
	controllers := router.Controllers{
		Chat:     controller.NewChatController(svc.Chat),
		Product:  controller.NewProductController(svc.Knowledge),
		Shipping: controller.NewShippingController(svc.Shipping),
		Site:     controller.NewSiteController(svc.Site),
		Health:   controller.NewHealthController(svc.Health),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    svc,
		Controllers: controllers,
		Limiter:     middleware.NewClientLimiter(cfg.Server.RateLimitPerMinute),
		CostCache:   costCache,
	}, cleanup, nil
}

// initLLM 按 LLM_PROVIDER 创建模型；未配置密钥时返回 nil，对话走兜底回复。
// 向量检索的 embedding 固定使用 OpenAI
func initLLM(cfg *config.Config, log *zap.Logger) (service.LLMProvider, service.Embedder, func(), error) {
	cleanup := func() {}

	var embedder service.Embedder
	var provider service.LLMProvider
	if cfg.LLM.OpenAIKey != "" {
		openaiProvider, llm, err := service.NewOpenAIProvider(cfg.LLM.OpenAIKey, cfg.LLM.Model, cfg.LLM.EmbeddingModel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("初始化 OpenAI 失败: %w", err)
		}
		if embedder, err = embeddings.NewEmbedder(llm); err != nil {
			return nil, nil, nil, fmt.Errorf("初始化 embedding 失败: %w", err)
		}
		if cfg.LLM.Provider == config.ProviderOpenAI {
			provider = openaiProvider
		}
	}

	if cfg.LLM.Provider == config.ProviderGemini && cfg.LLM.GeminiKey != "" {
		geminiProvider, closeFn, err := service.NewGeminiProvider(context.Background(), cfg.LLM.GeminiKey, cfg.LLM.GeminiModel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("初始化 Gemini 失败: %w", err)
		}
		provider = geminiProvider
		cleanup = func() {
			if err := closeFn(); err != nil {
				log.Warn("关闭 Gemini 客户端失败", zap.Error(err))
			}
		}
	}

	if provider == nil {
		log.Warn("未配置模型密钥，对话将返回兜底回复", zap.String("provider", cfg.LLM.Provider))
	} else {
		log.Info("模型已就绪", zap.String("provider", provider.Name()), zap.String("model", provider.Model()))
	}
	return provider, embedder, cleanup, nil
}

// initVector CHROMA_URL 与 OpenAI 密钥都配置时启用向量检索
func initVector(cfg *config.Config, embedder service.Embedder, log *zap.Logger) service.VectorSearcher {
	if !cfg.Vector.Enabled() {
		log.Info("未配置 CHROMA_URL，商品检索使用 SQL")
		return nil
	}
	if embedder == nil {
		log.Warn("向量检索需要 OPENAI_API_KEY，已回退到 SQL")
		return nil
	}

	client := utils.NewHTTPClient(utils.HTTPClientOptions{
		BaseURL: cfg.Vector.ChromaURL,
		Timeout: cfg.Vector.Timeout,
		Debug:   cfg.Server.Debug,
	})
	return service.NewVectorService(client, embedder, log)
}

func jwtConfig(cfg *config.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SecretKey:      cfg.Security.SecretKey,
		AccessTokenTTL: cfg.Security.AccessTokenTTL,
		Issuer:         "qrm-chatbot",
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(cfg *config.Config, deps *Dependencies, log *zap.Logger) (*task.TaskManager, error) {
	taskCfg := task.DefaultConfig()
	taskCfg.RetentionDays = cfg.Conversation.RetentionDays

	return task.NewTaskManager(&task.TaskManagerDeps{
		ConvRepo: deps.Repos.Conversation,
		Caches:   map[string]task.Purger{"cost_expression": deps.CostCache},
		Limiter:  deps.Limiter,
		Logger:   log,
	}, taskCfg)
}

// ==================== 服务启动 ====================

// startServer 启动服务并等待退出信号
func startServer(cfg *config.Config, r *gin.Engine, tasks *task.TaskManager, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	case <-quit:
	}

	log.Info("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tasks.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务强制关闭: %w", err)
	}

	log.Info("服务已退出")
	return nil
}
