package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
	"qrm_chatbot_api/pkg/shipping"
	"qrm_chatbot_api/pkg/utils"
)

// ==================== 报价数据源 ====================

// shippingStore 基于仓储实现 shipping.Store
type shippingStore struct {
	siteRepo     repository.SiteRepository
	shippingRepo repository.ShippingRepository
	logger       *zap.Logger
}

func (s *shippingStore) FindSite(ctx context.Context, name string) (*shipping.Site, error) {
	site, err := s.siteRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shipping.ErrSiteNotFound
		}
		return nil, err
	}
	return &shipping.Site{ID: site.ID, Name: site.Name}, nil
}

func (s *shippingStore) ListZones(ctx context.Context, siteID int64) ([]shipping.Zone, error) {
	list, err := s.shippingRepo.GetZonesWithMethods(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("加载配送区域失败: %w", err)
	}

	zones := make([]shipping.Zone, 0, len(list))
	for _, z := range list {
		zones = append(zones, shipping.Zone{
			ID:        z.ID,
			Name:      z.Name,
			Order:     z.Order,
			Locations: s.decodeLocations(z),
			Methods: lo.Map(z.Methods, func(m model.ShippingMethod, _ int) shipping.Method {
				return toShippingMethod(m)
			}),
		})
	}
	return zones, nil
}

// decodeLocations 格式错误按"不限地址"处理
func (s *shippingStore) decodeLocations(z model.ShippingZone) []shipping.Location {
	if len(z.Locations) == 0 {
		return nil
	}
	var locations []shipping.Location
	if err := json.Unmarshal(z.Locations, &locations); err != nil {
		s.logger.Warn("配送区域 locations 格式错误",
			zap.Int64("zone_id", z.ID),
			zap.String("zone", z.Name),
			zap.Error(err),
		)
		return nil
	}
	return locations
}

func (s *shippingStore) ClassRates(ctx context.Context, methodID int64, classIDs []int64) ([]shipping.ClassRate, error) {
	rates, err := s.shippingRepo.GetClassRates(ctx, methodID, classIDs)
	if err != nil {
		return nil, err
	}
	return lo.Map(rates, func(r model.ShippingClassRate, _ int) shipping.ClassRate {
		return shipping.ClassRate{MethodID: r.ShippingMethodID, ShippingClassID: r.ShippingClassID, Cost: r.Cost}
	}), nil
}

func (s *shippingStore) DefaultClassRate(ctx context.Context, methodID int64) (*shipping.ClassRate, error) {
	rate, err := s.shippingRepo.GetDefaultClassRate(ctx, methodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shipping.ClassRate{MethodID: rate.ShippingMethodID, Cost: rate.Cost}, nil
}

func toShippingMethod(m model.ShippingMethod) shipping.Method {
	return shipping.Method{
		ID:          m.ID,
		InstanceID:  m.WooID,
		MethodType:  m.MethodID,
		Title:       m.Title,
		MethodTitle: m.MethodTitle,
		Enabled:     m.Enabled,
		Cost:        m.Cost,
		Settings:    json.RawMessage(m.Settings),
	}
}

// ==================== 服务 ====================

// CartItem 购物车条目，ProductID 与 VariationID 均为 WooCommerce ID，VariationID 为 0 表示无规格
type CartItem struct {
	ProductID   int64
	VariationID int64
	Quantity    int
}

// ShippingService 运费计算
type ShippingService struct {
	store        *shippingStore
	productRepo  repository.ProductRepository
	shippingRepo repository.ShippingRepository
	quoter       *shipping.Quoter
	costCache    *utils.Cache[string, shipping.CostExpression]
	logger       *zap.Logger
}

func NewShippingService(
	siteRepo repository.SiteRepository,
	shippingRepo repository.ShippingRepository,
	productRepo repository.ProductRepository,
	costCache *utils.Cache[string, shipping.CostExpression],
	logger *zap.Logger,
) *ShippingService {
	store := &shippingStore{siteRepo: siteRepo, shippingRepo: shippingRepo, logger: logger}
	s := &ShippingService{
		store:        store,
		productRepo:  productRepo,
		shippingRepo: shippingRepo,
		costCache:    costCache,
		logger:       logger,
	}
	s.quoter = shipping.NewQuoter(store, shipping.WithLogger(logger), shipping.WithParser(s.parseCost))
	return s
}

// parseCost 相同的费用字符串只解析一次
func (s *ShippingService) parseCost(raw string) shipping.CostExpression {
	if s.costCache == nil {
		return shipping.ParseCost(raw)
	}
	return s.costCache.GetOrCompute(raw, func() shipping.CostExpression {
		return shipping.ParseCost(raw)
	})
}

// Quote 按 WooCommerce 商品 ID 报价。站点不存在返回空列表；
// cartTotal 为 nil 时尝试用商品单价 x 数量估算，返回实际使用的合计
func (s *ShippingService) Quote(ctx context.Context, siteName string, items []CartItem, postcode string, cartTotal *decimal.Decimal) ([]shipping.Quote, *decimal.Decimal, error) {
	siteName = siteNameOrDefault(siteName)

	site, err := s.store.FindSite(ctx, siteName)
	if err != nil {
		if errors.Is(err, shipping.ErrSiteNotFound) {
			return []shipping.Quote{}, cartTotal, nil
		}
		return nil, nil, err
	}

	cart, estimated, err := s.buildCart(ctx, site.ID, items)
	if err != nil {
		return nil, nil, err
	}
	if cartTotal == nil {
		cartTotal = estimated
	}

	quotes, err := s.quoter.Quote(ctx, shipping.QuoteRequest{
		SiteName:  siteName,
		Site:      site,
		Cart:      cart,
		Postcode:  postcode,
		CartTotal: cartTotal,
	})
	if err != nil {
		return nil, nil, err
	}
	return quotes, cartTotal, nil
}

// CalculateShipping POST /shipping/calculate
func (s *ShippingService) CalculateShipping(ctx context.Context, req *dto.ShippingCalculateReq) (*dto.ShippingCalculateResp, error) {
	items := mergeCartItems(req.ProductIDs, req.Items)

	quotes, total, err := s.Quote(ctx, req.SiteName, items, req.Postcode, req.CartTotal)
	if err != nil {
		return nil, err
	}

	return &dto.ShippingCalculateResp{
		SiteName:        siteNameOrDefault(req.SiteName),
		Postcode:        req.Postcode,
		ProductIDs:      lo.Uniq(lo.Map(items, func(it CartItem, _ int) int64 { return it.ProductID })),
		CartTotal:       total,
		ShippingOptions: quotes,
	}, nil
}

// GetZones 站点下的区域与启用的配送方式
func (s *ShippingService) GetZones(ctx context.Context, siteName string) (*dto.ShippingZonesResp, error) {
	site, err := s.store.FindSite(ctx, siteName)
	if err != nil {
		return nil, err
	}

	zones, err := s.store.ListZones(ctx, site.ID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ShippingZonesResp{SiteName: site.Name, Zones: make([]dto.ShippingZoneResp, 0, len(zones))}
	for _, z := range zones {
		zr := dto.ShippingZoneResp{
			ID:        z.ID,
			Name:      z.Name,
			Order:     z.Order,
			Locations: z.Locations,
			Methods:   []dto.ShippingMethodResp{},
		}
		if zr.Locations == nil {
			zr.Locations = []shipping.Location{}
		}

		for _, m := range z.Methods {
			if !m.Enabled {
				continue
			}
			raw, err := shipping.BaseCost(m)
			if err != nil {
				s.logger.Warn("配送方式 settings 格式错误", zap.Int64("method_id", m.ID), zap.Error(err))
			}
			zr.Methods = append(zr.Methods, dto.ShippingMethodResp{
				MethodID:   fmt.Sprintf("%d_%d", z.ID, m.ID),
				InstanceID: m.InstanceID,
				MethodType: m.MethodType,
				Title:      m.DisplayTitle(),
				Cost:       s.parseCost(raw).Evaluate(nil).Display(),
				RawCost:    raw,
			})
		}
		resp.Zones = append(resp.Zones, zr)
	}
	return resp, nil
}

// buildCart 商品映射为报价所需的运费类别；同时估算购物车合计，
// 任一商品或规格缺失、价格无法解析时合计返回 nil
func (s *ShippingService) buildCart(ctx context.Context, siteID int64, items []CartItem) ([]shipping.CartProduct, *decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}

	ids := lo.Uniq(lo.Map(items, func(it CartItem, _ int) int64 { return it.ProductID }))
	products, err := s.productRepo.GetByWooIDs(ctx, siteID, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("加载商品失败: %w", err)
	}
	byWooID := lo.KeyBy(products, func(p model.Product) int64 { return p.WooID })

	classes, err := s.shippingRepo.GetClassesBySite(ctx, siteID)
	if err != nil {
		return nil, nil, fmt.Errorf("加载运费类别失败: %w", err)
	}
	classBySlug := lo.SliceToMap(classes, func(c model.ShippingClass) (string, int64) { return c.Slug, c.ID })

	cart := make([]shipping.CartProduct, 0, len(products))
	for _, p := range products {
		cp := shipping.CartProduct{ProductID: p.WooID, ShippingClass: p.ShippingClass}
		if id, ok := classBySlug[p.ShippingClass]; ok && p.ShippingClass != "" {
			cp.ShippingClassID = &id
		}
		cart = append(cart, cp)
	}

	total := decimal.Zero
	for _, it := range items {
		p, ok := byWooID[it.ProductID]
		if !ok {
			return cart, nil, nil
		}
		price, ok := unitPrice(p, it.VariationID)
		if !ok {
			s.logger.Debug("无法估算购物车合计",
				zap.Int64("product_id", it.ProductID),
				zap.Int64("variation_id", it.VariationID),
			)
			return cart, nil, nil
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return cart, &total, nil
}

// unitPrice 单价：指定规格时取规格价，否则取商品价
func unitPrice(p model.Product, variationID int64) (decimal.Decimal, bool) {
	raw := p.Price
	if variationID != 0 {
		v, found := lo.Find(p.Variations, func(v model.ProductVariation) bool { return v.WooID == variationID })
		if !found {
			return decimal.Zero, false
		}
		raw = v.Price
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// cartKey 商品 + 规格
type cartKey struct {
	productID   int64
	variationID int64
}

// mergeCartItems 合并 product_ids 与 items，数量缺省为 1，同一商品同一规格数量累加
func mergeCartItems(productIDs []int64, reqItems []dto.ShippingItemReq) []CartItem {
	qty := make(map[cartKey]int)
	order := make([]cartKey, 0, len(productIDs)+len(reqItems))
	add := func(key cartKey, n int) {
		if n <= 0 {
			n = 1
		}
		if _, ok := qty[key]; !ok {
			order = append(order, key)
		}
		qty[key] += n
	}

	for _, id := range productIDs {
		add(cartKey{productID: id}, 1)
	}
	for _, it := range reqItems {
		add(cartKey{productID: it.ProductID, variationID: lo.FromPtr(it.VariationID)}, it.Quantity)
	}

	return lo.Map(order, func(key cartKey, _ int) CartItem {
		return CartItem{ProductID: key.productID, VariationID: key.variationID, Quantity: qty[key]}
	})
}
