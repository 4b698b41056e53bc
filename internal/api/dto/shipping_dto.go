package dto

import (
	"github.com/shopspring/decimal"

	"qrm_chatbot_api/pkg/shipping"
)

// ==================== 请求 DTO ====================

// ShippingItemReq 购物车商品；VariationID 为 WooCommerce 规格 ID，估算合计时按规格价计
type ShippingItemReq struct {
	ProductID   int64  `json:"product_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"omitempty,min=1"` // 默认 1
	VariationID *int64 `json:"variation_id" binding:"omitempty,min=1"`
}

// ShippingCalculateReq 运费计算请求，product_ids 与 items 至少传一个（控制器校验）
type ShippingCalculateReq struct {
	SiteName   string            `json:"site_name"`
	ProductIDs []int64           `json:"product_ids"`
	Items      []ShippingItemReq `json:"items" binding:"omitempty,dive"`
	Postcode   string            `json:"postcode" binding:"omitempty,max=20"`
	// CartTotal 为空时按商品单价 x 数量估算
	CartTotal *decimal.Decimal `json:"cart_total"`
}

// HasItems 是否传了商品
func (r *ShippingCalculateReq) HasItems() bool {
	return len(r.ProductIDs) > 0 || len(r.Items) > 0
}

// ==================== 响应 DTO ====================

// ShippingCalculateResp 运费计算结果
type ShippingCalculateResp struct {
	SiteName        string           `json:"site_name"`
	Postcode        string           `json:"postcode,omitempty"`
	ProductIDs      []int64          `json:"product_ids"`
	CartTotal       *decimal.Decimal `json:"cart_total,omitempty"`
	ShippingOptions []shipping.Quote `json:"shipping_options"`
}

// ShippingMethodResp 区域下的配送方式
type ShippingMethodResp struct {
	MethodID   string `json:"method_id"` // zoneID_methodID
	InstanceID string `json:"instance_id"`
	MethodType string `json:"method_type"`
	Title      string `json:"title"`
	Cost       string `json:"cost"`
	RawCost    string `json:"raw_cost"`
}

// ShippingZoneResp 配送区域
type ShippingZoneResp struct {
	ID        int64                `json:"id"`
	Name      string               `json:"name"`
	Order     int                  `json:"order"`
	Locations []shipping.Location  `json:"locations"`
	Methods   []ShippingMethodResp `json:"methods"`
}

// ShippingZonesResp 站点配送区域列表
type ShippingZonesResp struct {
	SiteName string             `json:"site_name"`
	Zones    []ShippingZoneResp `json:"zones"`
}
