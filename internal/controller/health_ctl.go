package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrm_chatbot_api/internal/service"
)

type HealthController struct {
	healthSvc *service.HealthService
}

func NewHealthController(healthSvc *service.HealthService) *HealthController {
	return &HealthController{healthSvc: healthSvc}
}

// Root 根路径状态
// @Summary 服务状态（含数据库与模型配置）
// @Tags Health
// @Produce json
// @Success 200 {object} dto.RootResp
// @Router / [get]
func (c *HealthController) Root(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.healthSvc.Root(ctx.Request.Context()))
}

// Health 存活检查
// @Summary 存活检查
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResp
// @Router /health [get]
func (c *HealthController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.healthSvc.Basic())
}

// Detailed 依赖组件检查，数据库不可用时返回 503
// @Summary 依赖组件检查
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResp
// @Failure 503 {object} dto.HealthResp
// @Router /health/detailed [get]
func (c *HealthController) Detailed(ctx *gin.Context) {
	resp := c.healthSvc.Detailed(ctx.Request.Context())
	status := http.StatusOK
	if resp.Status == service.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, resp)
}

// Debug 调试信息
// @Summary 表结构与模型调用统计（管理员）
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param site_name query string false "站点" default(store1)
// @Success 200 {object} service.DebugInfo
// @Router /debug [get]
func (c *HealthController) Debug(ctx *gin.Context) {
	resp, err := c.healthSvc.Debug(ctx.Request.Context(), ctx.Query("site_name"))
	if err != nil {
		respondError(ctx, err, "")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
