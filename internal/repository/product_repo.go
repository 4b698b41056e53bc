package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"qrm_chatbot_api/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	GetByWooID(ctx context.Context, siteID, wooID int64) (*model.Product, error)
	// GetByWooIDs 按 WooCommerce ID 批量查询，附带规格
	GetByWooIDs(ctx context.Context, siteID int64, wooIDs []int64) ([]model.Product, error)
	// Search 名称/描述模糊匹配（不区分大小写）
	Search(ctx context.Context, siteID int64, keyword string, limit int) ([]model.Product, error)
}

// CategoryRepository 分类仓储接口
type CategoryRepository interface {
	GetBySiteID(ctx context.Context, siteID int64) ([]model.Category, error)
}

// ==================== 商品实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByWooID(ctx context.Context, siteID, wooID int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Variations").
		Where("site_id = ? AND woo_id = ?", siteID, wooID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) GetByWooIDs(ctx context.Context, siteID int64, wooIDs []int64) ([]model.Product, error) {
	var list []model.Product
	if len(wooIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Variations").
		Where("site_id = ? AND woo_id IN ?", siteID, wooIDs).
		Find(&list).Error
	return list, err
}

func (r *productRepo) Search(ctx context.Context, siteID int64, keyword string, limit int) ([]model.Product, error) {
	var list []model.Product
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(keyword))) + "%"

	err := r.db.WithContext(ctx).
		Preload("Variations").
		Where("site_id = ?", siteID).
		Where(
			r.db.Where("LOWER(name) LIKE ? ESCAPE '!'", pattern).
				Or("LOWER(description) LIKE ? ESCAPE '!'", pattern).
				Or("LOWER(short_description) LIKE ? ESCAPE '!'", pattern),
		).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// escapeLike 转义 LIKE 通配符，使用 '!' 作为转义符以兼容 MySQL/Postgres/SQLite
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// ==================== 分类实现 ====================

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) GetBySiteID(ctx context.Context, siteID int64) ([]model.Category, error) {
	var list []model.Category
	err := r.db.WithContext(ctx).Where("site_id = ?", siteID).Order("name ASC").Find(&list).Error
	return list, err
}
