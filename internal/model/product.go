package model

import (
	"gorm.io/datatypes"
)

// Product 商品（由爬虫同步，价格以原始字符串保存）
type Product struct {
	CrawlerModel
	SiteID int64 `gorm:"index;not null"`
	WooID  int64 `gorm:"index;not null"`

	Name             string `gorm:"size:500;not null"`
	Slug             string `gorm:"size:500"`
	SKU              string `gorm:"column:sku;size:255"`
	Type             string `gorm:"size:50"`
	Permalink        string `gorm:"size:1000"`
	Price            string `gorm:"size:50"`
	RegularPrice     string `gorm:"size:50"`
	SalePrice        string `gorm:"size:50"`
	Description      string `gorm:"type:text"`
	ShortDescription string `gorm:"type:text"`
	Status           string `gorm:"size:50"`
	StockStatus      string `gorm:"size:50"`
	StockQuantity    *int
	ShippingClass    string `gorm:"size:255"` // 运费类别 slug
	Weight           string `gorm:"size:50"`

	// WooCommerce 原样 JSON
	Categories datatypes.JSON
	Tags       datatypes.JSON
	Images     datatypes.JSON
	Attributes datatypes.JSON

	Variations []ProductVariation `gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string {
	return "products"
}

// ProductVariation 可变商品的规格
type ProductVariation struct {
	CrawlerModel
	ProductID     int64  `gorm:"index;not null"`
	WooID         int64  `gorm:"index"`
	SKU           string `gorm:"column:sku;size:255"`
	Price         string `gorm:"size:50"`
	RegularPrice  string `gorm:"size:50"`
	SalePrice     string `gorm:"size:50"`
	StockStatus   string `gorm:"size:50"`
	StockQuantity *int
	Attributes    datatypes.JSON
}

func (ProductVariation) TableName() string {
	return "product_variations"
}

// Category 商品分类
type Category struct {
	CrawlerModel
	SiteID      int64  `gorm:"index;not null"`
	WooID       int64  `gorm:"index;not null"`
	Name        string `gorm:"size:255;not null"`
	Slug        string `gorm:"size:255"`
	Description string `gorm:"type:text"`
	ParentID    int64
}

func (Category) TableName() string {
	return "categories"
}
