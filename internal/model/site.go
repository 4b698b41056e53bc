package model

// Site WooCommerce 站点（由爬虫同步）
type Site struct {
	CrawlerModel
	Name     string `gorm:"size:255;uniqueIndex;not null" json:"name"`
	URL      string `gorm:"column:url;size:500;not null" json:"url"`
	IsActive bool   `json:"is_active"`
}

func (Site) TableName() string {
	return "sites"
}
