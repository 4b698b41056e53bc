package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"qrm_chatbot_api/internal/model"
)

// ==================== 接口定义 ====================

// ShippingRepository 配送数据仓储接口（只读，数据由爬虫维护）
type ShippingRepository interface {
	// GetZonesWithMethods 站点下的区域，按 order 排序，附带配送方式（按 id 排序）
	GetZonesWithMethods(ctx context.Context, siteID int64) ([]model.ShippingZone, error)
	// GetClassesBySite 站点下的运费类别
	GetClassesBySite(ctx context.Context, siteID int64) ([]model.ShippingClass, error)
	// GetClassRates 配送方式在指定类别下的费率
	GetClassRates(ctx context.Context, methodID int64, classIDs []int64) ([]model.ShippingClassRate, error)
	// GetDefaultClassRate 配送方式的"无类别"费率，不存在时返回 gorm.ErrRecordNotFound
	GetDefaultClassRate(ctx context.Context, methodID int64) (*model.ShippingClassRate, error)
}

// ==================== 实现 ====================

type shippingRepo struct {
	db *gorm.DB
}

// NewShippingRepository 创建配送数据仓储
func NewShippingRepository(db *gorm.DB) ShippingRepository {
	return &shippingRepo{db: db}
}

func (r *shippingRepo) GetZonesWithMethods(ctx context.Context, siteID int64) ([]model.ShippingZone, error) {
	var list []model.ShippingZone
	err := r.db.WithContext(ctx).
		Preload("Methods", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("site_id = ?", siteID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *shippingRepo) GetClassesBySite(ctx context.Context, siteID int64) ([]model.ShippingClass, error) {
	var list []model.ShippingClass
	err := r.db.WithContext(ctx).Where("site_id = ?", siteID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *shippingRepo) GetClassRates(ctx context.Context, methodID int64, classIDs []int64) ([]model.ShippingClassRate, error) {
	var list []model.ShippingClassRate
	if len(classIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Where("shipping_method_id = ? AND shipping_class_id IN ?", methodID, classIDs).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *shippingRepo) GetDefaultClassRate(ctx context.Context, methodID int64) (*model.ShippingClassRate, error) {
	var rate model.ShippingClassRate
	err := r.db.WithContext(ctx).
		Where("shipping_method_id = ? AND shipping_class_id IS NULL", methodID).
		First(&rate).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}
