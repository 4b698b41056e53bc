package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrm_chatbot_api/internal/controller"
	"qrm_chatbot_api/internal/middleware"
)

// Controllers 所有控制器
type Controllers struct {
	Chat     *controller.ChatController
	Product  *controller.ProductController
	Shipping *controller.ShippingController
	Site     *controller.SiteController
	Health   *controller.HealthController
}

// Options 中间件配置
type Options struct {
	CORSOrigins []string
	Limiter     *middleware.ClientLimiter
	JWT         middleware.JWTConfig
	Logger      *zap.Logger
}

// SetupRouter 创建 gin 引擎并注册所有路由
func SetupRouter(ctl Controllers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(opts.Logger),
		middleware.Recovery(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)
	InitRoutes(r, ctl, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctl Controllers, opts Options) {
	// 1. 健康检查不限流
	r.GET("/", ctl.Health.Root)
	r.GET("/health", ctl.Health.Health)
	r.GET("/health/detailed", ctl.Health.Detailed)

	// 2. 业务接口
	api := r.Group("")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimit(opts.Limiter))
	}
	{
		// chat 对话
		api.POST("/chat", ctl.Chat.Chat)
		api.GET("/chat/history/:conversation_id", ctl.Chat.GetHistory)

		// products 商品；/search/products 为旧版路径
		api.POST("/products/search", ctl.Product.SearchProducts)
		api.POST("/search/products", ctl.Product.SearchProducts)
		api.GET("/products/:site_name/categories", ctl.Product.GetCategories)
		api.GET("/products/:site_name/:product_id", ctl.Product.GetProduct)

		// shipping 运费
		api.POST("/shipping/calculate", ctl.Shipping.Calculate)
		api.GET("/shipping/:site_name/zones", ctl.Shipping.GetZones)

		// sites 站点；/sites/:site_name 下为上面站点接口的别名
		api.GET("/sites", ctl.Site.ListSites)
		sites := api.Group("/sites/:site_name")
		{
			sites.GET("/categories", ctl.Product.GetCategories)
			sites.GET("/products/:product_id", ctl.Product.GetProduct)
			sites.GET("/shipping/zones", ctl.Shipping.GetZones)
		}
	}

	// 3. 管理接口
	admin := r.Group("", middleware.AdminAuth(opts.JWT))
	{
		admin.GET("/debug", ctl.Health.Debug)
		admin.POST("/test-search", ctl.Product.TestSearch)
	}
}
