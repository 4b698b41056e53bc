package dto

import "gorm.io/datatypes"

// ==================== 请求 DTO ====================

// ProductSearchReq 商品检索请求
type ProductSearchReq struct {
	Query    string `json:"query" binding:"required,min=1,max=500"`
	SiteName string `json:"site_name"`                            // 默认 store1
	Limit    int    `json:"limit" binding:"omitempty,min=1,max=100"` // 默认 10
}

// ==================== 响应 DTO ====================

// ProductResp 商品详情
type ProductResp struct {
	ID               int64                  `json:"id"`
	WooID            int64                  `json:"woo_id"`
	Name             string                 `json:"name"`
	Slug             string                 `json:"slug"`
	Permalink        string                 `json:"permalink"`
	Type             string                 `json:"type"`
	Status           string                 `json:"status"`
	Description      string                 `json:"description"`
	ShortDescription string                 `json:"short_description"`
	SKU              string                 `json:"sku"`
	Price            string                 `json:"price"` // 展示价格：$12.00 / from $9.50 / Price on request
	RawPrice         string                 `json:"raw_price"`
	RegularPrice     string                 `json:"regular_price"`
	SalePrice        string                 `json:"sale_price"`
	StockStatus      string                 `json:"stock_status"`
	StockQuantity    *int                   `json:"stock_quantity"`
	InStock          bool                   `json:"in_stock"`
	ShippingClass    string                 `json:"shipping_class"`
	Weight           string                 `json:"weight"`
	Categories       datatypes.JSON         `json:"categories,omitempty"`
	Tags             datatypes.JSON         `json:"tags,omitempty"`
	Images           datatypes.JSON         `json:"images,omitempty"`
	Attributes       datatypes.JSON         `json:"attributes,omitempty"`
	Variations       []ProductVariationResp `json:"variations"`
}

// ProductVariationResp 商品规格
type ProductVariationResp struct {
	ID            int64          `json:"id"`
	WooID         int64          `json:"woo_id"`
	SKU           string         `json:"sku"`
	Price         string         `json:"price"`
	RegularPrice  string         `json:"regular_price"`
	SalePrice     string         `json:"sale_price"`
	StockStatus   string         `json:"stock_status"`
	StockQuantity *int           `json:"stock_quantity"`
	Attributes    datatypes.JSON `json:"attributes,omitempty"`
}

// ProductSearchResp 商品检索结果
type ProductSearchResp struct {
	Products     []ProductResp `json:"products"`
	Count        int           `json:"count"`
	Query        string        `json:"query"`
	Source       string        `json:"source"` // vector | sql
	SearchTimeMs float64       `json:"search_time_ms"`
}

// CategoryResp 商品分类
type CategoryResp struct {
	ID          int64  `json:"id"` // WooCommerce ID
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ParentID    int64  `json:"parent_id"`
}

// CategoryListResp 分类列表
type CategoryListResp struct {
	SiteName   string         `json:"site_name"`
	Categories []CategoryResp `json:"categories"`
}
