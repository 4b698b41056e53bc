package repository

import (
	"context"

	"gorm.io/gorm"

	"qrm_chatbot_api/internal/model"
)

// SiteRepository 站点仓储接口
type SiteRepository interface {
	GetByName(ctx context.Context, name string) (*model.Site, error)
	List(ctx context.Context, activeOnly bool) ([]model.Site, error)
	Count(ctx context.Context) (int64, error)
}

type siteRepo struct {
	db *gorm.DB
}

// NewSiteRepository 创建站点仓储
func NewSiteRepository(db *gorm.DB) SiteRepository {
	return &siteRepo{db: db}
}

// GetByName 不存在时返回 gorm.ErrRecordNotFound
func (r *siteRepo) GetByName(ctx context.Context, name string) (*model.Site, error) {
	var site model.Site
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *siteRepo) List(ctx context.Context, activeOnly bool) ([]model.Site, error) {
	var sites []model.Site
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("name ASC").Find(&sites).Error
	return sites, err
}

func (r *siteRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Site{}).Count(&count).Error
	return count, err
}
