package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qrm_chatbot_api/internal/config"
	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
	"qrm_chatbot_api/pkg/shipping"
	"qrm_chatbot_api/pkg/utils"
)

// ==================== 测试数据库 ====================

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.Site{}, &model.Product{}, &model.ProductVariation{}, &model.Category{},
		&model.ShippingZone{}, &model.ShippingMethod{}, &model.ShippingClass{}, &model.ShippingClassRate{},
		&model.Conversation{}, &model.ConversationMessage{}, &model.AICallLog{},
	)
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

// fixture 测试站点数据
type fixture struct {
	site        *model.Site
	metroZone   *model.ShippingZone
	auZone      *model.ShippingZone
	metroMethod *model.ShippingMethod
	auMethod    *model.ShippingMethod
	heavy       *model.ShippingClass
}

// seedStore store1：
//   - Melbourne Metro（MELBOURNE）: Courier $15，heavy 类别 $45
//   - Australia（AU）: Freight 10%，最低 $20
//   - 商品 101 MLV Roll $100 heavy，102 Acoustic Foam $50，103 Door Seal 可变商品
func seedStore(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{}

	f.site = &model.Site{Name: "store1", URL: "https://store1.example", IsActive: true}
	mustCreate(t, db, f.site)

	f.metroZone = &model.ShippingZone{SiteID: f.site.ID, WooID: 1, Name: "Melbourne Metro", Order: 1,
		Locations: datatypes.JSON(`[{"code":"MELBOURNE","type":"city"}]`)}
	f.auZone = &model.ShippingZone{SiteID: f.site.ID, WooID: 2, Name: "Australia", Order: 2,
		Locations: datatypes.JSON(`[{"code":"AU","type":"country"}]`)}
	mustCreate(t, db, f.metroZone, f.auZone)

	f.metroMethod = &model.ShippingMethod{ZoneID: f.metroZone.ID, WooID: "3", Title: "Courier", MethodID: "flat_rate",
		Settings: datatypes.JSON(`{"cost":{"value":"15"}}`), Enabled: true}
	f.auMethod = &model.ShippingMethod{ZoneID: f.auZone.ID, WooID: "4", Title: "Freight", MethodID: "flat_rate",
		Settings: datatypes.JSON(`{"cost":"[fee percent=\"10\" min_fee=\"20\"]"}`), Enabled: true}
	disabled := &model.ShippingMethod{ZoneID: f.auZone.ID, WooID: "5", Title: "Express", MethodID: "flat_rate",
		Cost: "30", Enabled: false}
	mustCreate(t, db, f.metroMethod, f.auMethod, disabled)

	f.heavy = &model.ShippingClass{SiteID: f.site.ID, WooID: 40, Name: "Heavy", Slug: "heavy"}
	mustCreate(t, db, f.heavy)
	mustCreate(t, db, &model.ShippingClassRate{ShippingMethodID: f.metroMethod.ID, ShippingClassID: &f.heavy.ID, Cost: "45"})

	roll := &model.Product{SiteID: f.site.ID, WooID: 101, Name: "MLV Roll", SKU: "MLV-45", Price: "100.00",
		StockStatus: "instock", ShippingClass: "heavy", Permalink: "https://store1.example/mlv-roll",
		Description: "Mass loaded vinyl for walls"}
	foam := &model.Product{SiteID: f.site.ID, WooID: 102, Name: "Acoustic Foam", Price: "50",
		StockStatus: "outofstock", Description: "Studio foam panels"}
	seal := &model.Product{SiteID: f.site.ID, WooID: 103, Name: "Door Seal", Type: "variable", StockStatus: "instock"}
	mustCreate(t, db, roll, foam, seal)
	mustCreate(t, db,
		&model.ProductVariation{ProductID: seal.ID, WooID: 201, Price: "24.5"},
		&model.ProductVariation{ProductID: seal.ID, WooID: 202, Price: "19"},
	)

	mustCreate(t, db,
		&model.Category{SiteID: f.site.ID, WooID: 7, Name: "Soundproofing", Description: "Block noise"},
		&model.Category{SiteID: f.site.ID, WooID: 8, Name: "Acoustics"},
	)
	return f
}

func mustCreate(t *testing.T, db *gorm.DB, values ...interface{}) {
	t.Helper()
	for _, v := range values {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("写入测试数据失败: %v", err)
		}
	}
}

// ==================== 服务装配 ====================

type testServices struct {
	db        *gorm.DB
	sites     *SiteService
	shipping  *ShippingService
	knowledge *KnowledgeService
	ai        *AIService
	chat      *ChatService
	provider  *fakeProvider
}

func newTestServices(t *testing.T, db *gorm.DB, provider *fakeProvider, vector VectorSearcher) *testServices {
	t.Helper()
	log := zap.NewNop()

	siteRepo := repository.NewSiteRepository(db)
	productRepo := repository.NewProductRepository(db)
	shippingRepo := repository.NewShippingRepository(db)

	sites := NewSiteService(siteRepo, config.DefaultSites())
	shippingSvc := NewShippingService(siteRepo, shippingRepo, productRepo, utils.NewCache[string, shipping.CostExpression](time.Minute), log)
	knowledge := NewKnowledgeService(sites, productRepo, repository.NewCategoryRepository(db), vector, log)

	var p LLMProvider
	if provider != nil {
		p = provider
	}
	ai := NewAIService(p, AIConfig{
		Temperature: 0.7,
		MaxTokens:   500,
		Retry:       utils.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	}, repository.NewAICallLogRepository(db), log)

	chat := NewChatService(sites, knowledge, shippingSvc, repository.NewConversationRepository(db), ai, 10, log)
	return &testServices{db: db, sites: sites, shipping: shippingSvc, knowledge: knowledge, ai: ai, chat: chat, provider: provider}
}

// ==================== 假实现 ====================

// fakeProvider 按调用类型返回预设结果，并记录收到的请求
type fakeProvider struct {
	mu         sync.Mutex
	searchText string // 检索词提取返回
	reply      string
	chatErrs   int // 前 n 次对话调用失败
	requests   []CompletionReq
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-1" }

func (p *fakeProvider) Complete(_ context.Context, req CompletionReq) (*Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)

	if len(req.Messages) > 0 && req.Messages[0].Content == searchTermsPrompt {
		return &Completion{Text: p.searchText, InputTokens: 20, OutputTokens: 5}, nil
	}
	if p.chatErrs > 0 {
		p.chatErrs--
		return nil, errors.New("upstream 503")
	}
	return &Completion{Text: p.reply, InputTokens: 300, OutputTokens: 80}, nil
}

// lastChat 最后一次对话请求（非检索词提取）
func (p *fakeProvider) lastChat() (CompletionReq, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.requests) - 1; i >= 0; i-- {
		if p.requests[i].Messages[0].Content != searchTermsPrompt {
			return p.requests[i], true
		}
	}
	return CompletionReq{}, false
}

type fakeVector struct {
	ids   []int64
	err   error
	calls int
}

func (v *fakeVector) SearchProductIDs(context.Context, string, int64, string, int) ([]int64, error) {
	v.calls++
	return v.ids, v.err
}

func (v *fakeVector) Heartbeat(context.Context) error { return v.err }
