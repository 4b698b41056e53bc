package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
	"qrm_chatbot_api/pkg/shipping"
)

// 检索来源
const (
	SearchSourceVector = "vector"
	SearchSourceSQL    = "sql"
)

const defaultSearchLimit = 10

// KnowledgeService 商品知识库：检索、详情、分类
type KnowledgeService struct {
	sites        *SiteService
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	vector       VectorSearcher // 未配置向量库时为 nil
	logger       *zap.Logger
}

func NewKnowledgeService(
	sites *SiteService,
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	vector VectorSearcher,
	logger *zap.Logger,
) *KnowledgeService {
	return &KnowledgeService{
		sites:        sites,
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		vector:       vector,
		logger:       logger,
	}
}

// ==================== 商品检索 ====================

// SearchProducts 先走向量检索，无结果时回退到 SQL 模糊匹配
func (s *KnowledgeService) SearchProducts(ctx context.Context, req *dto.ProductSearchReq) (*dto.ProductSearchResp, error) {
	start := time.Now()

	site, err := s.sites.GetSite(ctx, req.SiteName)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	products, source, err := s.search(ctx, site, req.Query, limit)
	if err != nil {
		return nil, err
	}

	return &dto.ProductSearchResp{
		Products:     products,
		Count:        len(products),
		Query:        req.Query,
		Source:       source,
		SearchTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

func (s *KnowledgeService) search(ctx context.Context, site *model.Site, query string, limit int) ([]dto.ProductResp, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []dto.ProductResp{}, SearchSourceSQL, nil
	}

	if s.vector != nil {
		products, err := s.vectorSearch(ctx, site, query, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			s.logger.Warn("向量检索失败，回退到 SQL 检索", zap.String("site", site.Name), zap.Error(err))
		} else if len(products) > 0 {
			return products, SearchSourceVector, nil
		}
	}

	list, err := s.productRepo.Search(ctx, site.ID, query, limit)
	if err != nil {
		return nil, "", err
	}
	return lo.Map(list, func(p model.Product, _ int) dto.ProductResp { return FormatProduct(p) }), SearchSourceSQL, nil
}

// vectorSearch 保持向量相似度顺序
func (s *KnowledgeService) vectorSearch(ctx context.Context, site *model.Site, query string, limit int) ([]dto.ProductResp, error) {
	ids, err := s.vector.SearchProductIDs(ctx, site.Name, site.ID, query, limit)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	list, err := s.productRepo.GetByWooIDs(ctx, site.ID, lo.Uniq(ids))
	if err != nil {
		return nil, err
	}
	byWooID := lo.KeyBy(list, func(p model.Product) int64 { return p.WooID })

	products := make([]dto.ProductResp, 0, len(list))
	for _, id := range lo.Uniq(ids) {
		if p, ok := byWooID[id]; ok {
			products = append(products, FormatProduct(p))
		}
	}
	return products, nil
}

// ==================== 详情与分类 ====================

// GetProduct productID 为 WooCommerce ID
func (s *KnowledgeService) GetProduct(ctx context.Context, siteName string, productID int64) (*dto.ProductResp, error) {
	site, err := s.sites.GetSite(ctx, siteName)
	if err != nil {
		return nil, err
	}

	p, err := s.productRepo.GetByWooID(ctx, site.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	resp := FormatProduct(*p)
	return &resp, nil
}

func (s *KnowledgeService) GetCategories(ctx context.Context, siteName string) (*dto.CategoryListResp, error) {
	site, err := s.sites.GetSite(ctx, siteName)
	if err != nil {
		return nil, err
	}

	categories, err := s.categoriesForSite(ctx, site.ID)
	if err != nil {
		return nil, err
	}
	return &dto.CategoryListResp{SiteName: site.Name, Categories: categories}, nil
}

func (s *KnowledgeService) categoriesForSite(ctx context.Context, siteID int64) ([]dto.CategoryResp, error) {
	list, err := s.categoryRepo.GetBySiteID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return lo.Map(list, func(c model.Category, _ int) dto.CategoryResp {
		return dto.CategoryResp{
			ID:          c.WooID,
			Name:        c.Name,
			Slug:        c.Slug,
			Description: c.Description,
			ParentID:    c.ParentID,
		}
	}), nil
}

// ==================== 格式化 ====================

// FormatProduct 转换为响应结构，并计算展示价格
func FormatProduct(p model.Product) dto.ProductResp {
	variations := make([]dto.ProductVariationResp, 0, len(p.Variations))
	for _, v := range p.Variations {
		variations = append(variations, dto.ProductVariationResp{
			ID:            v.ID,
			WooID:         v.WooID,
			SKU:           v.SKU,
			Price:         v.Price,
			RegularPrice:  v.RegularPrice,
			SalePrice:     v.SalePrice,
			StockStatus:   v.StockStatus,
			StockQuantity: v.StockQuantity,
			Attributes:    v.Attributes,
		})
	}

	return dto.ProductResp{
		ID:               p.ID,
		WooID:            p.WooID,
		Name:             p.Name,
		Slug:             p.Slug,
		Permalink:        p.Permalink,
		Type:             p.Type,
		Status:           p.Status,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		SKU:              p.SKU,
		Price:            DisplayPrice(p),
		RawPrice:         p.Price,
		RegularPrice:     p.RegularPrice,
		SalePrice:        p.SalePrice,
		StockStatus:      p.StockStatus,
		StockQuantity:    p.StockQuantity,
		InStock:          p.StockStatus == "instock",
		ShippingClass:    p.ShippingClass,
		Weight:           p.Weight,
		Categories:       p.Categories,
		Tags:             p.Tags,
		Images:           p.Images,
		Attributes:       p.Attributes,
		Variations:       variations,
	}
}

// DisplayPrice 有规格时显示 "from $最低价"，否则 "$X.XX"；无价格为 "Price on request"
func DisplayPrice(p model.Product) string {
	prices := lo.FilterMap(p.Variations, func(v model.ProductVariation, _ int) (decimal.Decimal, bool) {
		d, err := decimal.NewFromString(strings.TrimSpace(v.Price))
		return d, err == nil
	})
	if len(prices) > 0 {
		return "from " + shipping.FormatMoney(decimal.Min(prices[0], prices[1:]...))
	}

	raw := strings.TrimSpace(p.Price)
	if raw == "" {
		return "Price on request"
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return shipping.FormatMoney(d)
}
