package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/service"
)

var errNoItems = errors.New("product_ids or items is required")

type ShippingController struct {
	shippingSvc *service.ShippingService
}

func NewShippingController(shippingSvc *service.ShippingService) *ShippingController {
	return &ShippingController{shippingSvc: shippingSvc}
}

// ==================== 运费 ====================

// Calculate 运费报价
// @Summary 计算购物车运费
// @Description 按邮编匹配区域，返回各配送方式的报价；站点不存在时返回空列表
// @Tags Shipping
// @Accept json
// @Produce json
// @Param request body dto.ShippingCalculateReq true "购物车与邮编"
// @Success 200 {object} dto.ShippingCalculateResp
// @Failure 400 {object} map[string]string "参数错误"
// @Router /shipping/calculate [post]
func (c *ShippingController) Calculate(ctx *gin.Context) {
	var req dto.ShippingCalculateReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	if !req.HasItems() {
		badRequest(ctx, errNoItems)
		return
	}

	resp, err := c.shippingSvc.CalculateShipping(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err, req.SiteName)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

// GetZones 站点运费区域
// @Summary 获取站点运费区域与启用的配送方式
// @Tags Shipping
// @Produce json
// @Param site_name path string true "站点"
// @Success 200 {object} dto.ShippingZonesResp
// @Failure 404 {object} map[string]string "站点不存在"
// @Router /shipping/{site_name}/zones [get]
func (c *ShippingController) GetZones(ctx *gin.Context) {
	siteName := ctx.Param("site_name")
	resp, err := c.shippingSvc.GetZones(ctx.Request.Context(), siteName)
	if err != nil {
		respondError(ctx, err, siteName)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}
