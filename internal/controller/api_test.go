package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/config"
	"qrm_chatbot_api/internal/controller"
	"qrm_chatbot_api/internal/middleware"
	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
	"qrm_chatbot_api/internal/router"
	"qrm_chatbot_api/internal/service"
	"qrm_chatbot_api/pkg/shipping"
	"qrm_chatbot_api/pkg/utils"
)

// ==================== 测试辅助 ====================

var testJWT = middleware.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: time.Minute, Issuer: "qrm-chatbot"}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Site{}, &model.Product{}, &model.ProductVariation{}, &model.Category{},
		&model.ShippingZone{}, &model.ShippingMethod{}, &model.ShippingClass{}, &model.ShippingClassRate{},
		&model.Conversation{}, &model.ConversationMessage{}, &model.AICallLog{},
	))

	site := &model.Site{Name: "store1", URL: "https://store1.example", IsActive: true}
	require.NoError(t, db.Create(site).Error)

	zone := &model.ShippingZone{SiteID: site.ID, WooID: 1, Name: "Victoria", Order: 1,
		Locations: datatypes.JSON(`[{"code":"AU:VIC","type":"state"}]`)}
	require.NoError(t, db.Create(zone).Error)
	require.NoError(t, db.Create(&model.ShippingMethod{ZoneID: zone.ID, WooID: "9", Title: "Standard",
		MethodID: "flat_rate", Cost: "12.5", Enabled: true}).Error)

	require.NoError(t, db.Create(&model.Product{SiteID: site.ID, WooID: 501, Name: "Acoustic Panel",
		Price: "80", StockStatus: "instock"}).Error)
	require.NoError(t, db.Create(&model.Category{SiteID: site.ID, WooID: 3, Name: "Panels"}).Error)
	return db
}

func setupRouter(t *testing.T, limiter *middleware.ClientLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	log := zap.NewNop()

	siteRepo := repository.NewSiteRepository(db)
	productRepo := repository.NewProductRepository(db)
	shippingRepo := repository.NewShippingRepository(db)

	sites := service.NewSiteService(siteRepo, config.DefaultSites())
	shippingSvc := service.NewShippingService(siteRepo, shippingRepo, productRepo,
		utils.NewCache[string, shipping.CostExpression](time.Minute), log)
	knowledge := service.NewKnowledgeService(sites, productRepo, repository.NewCategoryRepository(db), nil, log)
	ai := service.NewAIService(nil, service.AIConfig{}, repository.NewAICallLogRepository(db), log)
	chat := service.NewChatService(sites, knowledge, shippingSvc, repository.NewConversationRepository(db), ai, 10, log)
	health := service.NewHealthService(db, sites, nil, ai)

	return router.SetupRouter(router.Controllers{
		Chat:     controller.NewChatController(chat),
		Product:  controller.NewProductController(knowledge),
		Shipping: controller.NewShippingController(shippingSvc),
		Site:     controller.NewSiteController(sites),
		Health:   controller.NewHealthController(health),
	}, router.Options{
		CORSOrigins: []string{"*"},
		Limiter:     limiter,
		JWT:         testJWT,
		Logger:      log,
	})
}

func doJSON(r http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// ==================== 健康检查 ====================

func TestHealthEndpoints(t *testing.T) {
	r := setupRouter(t, nil)

	w := doJSON(r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	root := decode[dto.RootResp](t, w)
	assert.Equal(t, "connected (1 sites)", root.Database)
	assert.False(t, root.LLMConfigured)

	w = doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[dto.HealthResp](t, w).Status)

	w = doJSON(r, http.MethodGet, "/health/detailed", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	detailed := decode[dto.HealthResp](t, w)
	assert.Equal(t, "degraded", detailed.Status)
	assert.Equal(t, "disabled", detailed.Components["vector_store"].Status)
}

func TestPreflight(t *testing.T) {
	r := setupRouter(t, nil)

	w := doJSON(r, http.MethodOptions, "/chat", nil, "Origin", "https://store1.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// ==================== 对话 ====================

func TestChat(t *testing.T) {
	r := setupRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/chat", map[string]string{"message": "panel to 3000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.ChatResp](t, w)
	assert.Equal(t, service.FallbackReply, resp.Response)
	assert.Regexp(t, `^qrm_[0-9a-f]{12}$`, resp.ConversationID)
	require.Len(t, resp.ShippingOptions, 1)
	assert.Equal(t, "$12.50", resp.ShippingOptions[0].Cost)

	w = doJSON(r, http.MethodGet, "/chat/history/"+resp.ConversationID+"?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[dto.ChatHistoryResp](t, w)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "user", history.Messages[0].Role)
	assert.Equal(t, "assistant", history.Messages[1].Role)
}

func TestChat_Errors(t *testing.T) {
	r := setupRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/chat", map[string]string{"site_name": "store1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/chat", map[string]string{"message": "hi", "site_name": "store9"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Site 'store9' not found"}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/chat/history/qrm_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/chat/history/qrm_missing?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ==================== 商品 ====================

func TestProductEndpoints(t *testing.T) {
	r := setupRouter(t, nil)

	for _, path := range []string{"/products/search", "/search/products"} {
		w := doJSON(r, http.MethodPost, path, map[string]interface{}{"query": "panel", "site_name": "store1"})
		require.Equal(t, http.StatusOK, w.Code, path)
		resp := decode[dto.ProductSearchResp](t, w)
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "sql", resp.Source)
		assert.Equal(t, "$80.00", resp.Products[0].Price)
	}

	for _, prefix := range []string{"/products/store1", "/sites/store1/products"} {
		w := doJSON(r, http.MethodGet, prefix+"/501", nil)
		require.Equal(t, http.StatusOK, w.Code, prefix)
		assert.Equal(t, "Acoustic Panel", decode[dto.ProductResp](t, w).Name)

		assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, prefix+"/999", nil).Code, prefix)
		assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, prefix+"/abc", nil).Code, prefix)
	}

	for _, path := range []string{"/products/store1/categories", "/sites/store1/categories"} {
		w := doJSON(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Len(t, decode[dto.CategoryListResp](t, w).Categories, 1)
	}
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/products/store9/categories", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/sites/store9/categories", nil).Code)

	w := doJSON(r, http.MethodGet, "/sites", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[dto.SiteListResp](t, w).Total)
}

// ==================== 运费 ====================

func TestShippingEndpoints(t *testing.T) {
	r := setupRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/shipping/calculate", map[string]interface{}{
		"site_name": "store1",
		"items":     []map[string]interface{}{{"product_id": 501, "quantity": 2}},
		"postcode":  "3000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.ShippingCalculateResp](t, w)
	require.Len(t, resp.ShippingOptions, 1)
	assert.Equal(t, "$12.50", resp.ShippingOptions[0].Cost)
	require.NotNil(t, resp.CartTotal)
	assert.Equal(t, "160", resp.CartTotal.String())

	// 没有区域命中时回退到全部区域
	w = doJSON(r, http.MethodPost, "/shipping/calculate", map[string]interface{}{"product_ids": []int{501}, "postcode": "2000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[dto.ShippingCalculateResp](t, w).ShippingOptions, 1)

	// 站点不存在返回空列表
	w = doJSON(r, http.MethodPost, "/shipping/calculate", map[string]interface{}{"site_name": "store9", "product_ids": []int{501}, "postcode": "3000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.ShippingCalculateResp](t, w).ShippingOptions)

	w = doJSON(r, http.MethodPost, "/shipping/calculate", map[string]interface{}{"items": []map[string]interface{}{{"quantity": 1}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 未传任何商品
	w = doJSON(r, http.MethodPost, "/shipping/calculate", map[string]interface{}{"site_name": "store1", "postcode": "3000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "product_ids or items is required")

	for _, path := range []string{"/shipping/store1/zones", "/sites/store1/shipping/zones"} {
		w = doJSON(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		zones := decode[dto.ShippingZonesResp](t, w)
		require.Len(t, zones.Zones, 1)
		assert.Equal(t, "$12.50", zones.Zones[0].Methods[0].Cost)
	}
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/shipping/store9/zones", nil).Code)
}

// ==================== 管理接口与限流 ====================

func TestAdminEndpoints(t *testing.T) {
	r := setupRouter(t, nil)

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/debug", nil).Code)

	token, err := middleware.GenerateAdminToken(testJWT, "ops")
	require.NoError(t, err)
	auth := "Bearer " + token

	w := doJSON(r, http.MethodGet, "/debug", nil, "Authorization", auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"database_type":"sqlite"`)

	w = doJSON(r, http.MethodPost, "/test-search", map[string]string{"query": "panel"}, "Authorization", auth)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.TestSearchResp](t, w)
	assert.Equal(t, "store1", resp.SiteName)
	assert.Equal(t, 1, resp.ProductsFound)
}

func TestRateLimit(t *testing.T) {
	r := setupRouter(t, middleware.NewClientLimiter(1))

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/sites", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(r, http.MethodGet, "/sites", nil).Code)
	// 健康检查不限流
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/health", nil).Code)
}
