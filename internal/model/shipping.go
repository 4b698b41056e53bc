package model

import (
	"gorm.io/datatypes"
)

// ShippingZone 配送区域
type ShippingZone struct {
	CrawlerModel
	SiteID int64  `gorm:"index;not null"`
	WooID  int64  `gorm:"not null"`
	Name   string `gorm:"size:255;not null"`
	Order  int    `gorm:"column:order"`
	// Locations [{"code":"VIC","type":"state"}]，为空表示不限地址
	Locations datatypes.JSON

	Methods []ShippingMethod `gorm:"foreignKey:ZoneID"`
}

func (ShippingZone) TableName() string {
	return "shipping_zones"
}

// ShippingMethod 区域下的配送方式
type ShippingMethod struct {
	CrawlerModel
	ZoneID      int64  `gorm:"index;not null"`
	WooID       string `gorm:"size:100;not null"`
	Title       string `gorm:"size:255;not null"`
	MethodID    string `gorm:"size:100"` // flat_rate / free_shipping / local_pickup
	MethodTitle string `gorm:"size:255"`
	Cost        string `gorm:"size:50"`
	Settings    datatypes.JSON
	Enabled     bool
}

func (ShippingMethod) TableName() string {
	return "shipping_methods"
}

// ShippingClass 运费类别
type ShippingClass struct {
	CrawlerModel
	SiteID      int64  `gorm:"index;not null"`
	WooID       int64  `gorm:"index"`
	Name        string `gorm:"size:255"`
	Slug        string `gorm:"size:255;index"`
	Description string `gorm:"type:text"`
}

func (ShippingClass) TableName() string {
	return "shipping_classes"
}

// ShippingClassRate 配送方式在某类别下的费用，ShippingClassID 为空表示"无类别"费率
type ShippingClassRate struct {
	CrawlerModel
	ShippingMethodID int64  `gorm:"index;not null"`
	ShippingClassID  *int64 `gorm:"index"`
	Cost             string `gorm:"size:255"`
}

func (ShippingClassRate) TableName() string {
	return "shipping_class_rates"
}
