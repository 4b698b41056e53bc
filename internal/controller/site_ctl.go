package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrm_chatbot_api/internal/service"
)

type SiteController struct {
	siteSvc *service.SiteService
}

func NewSiteController(siteSvc *service.SiteService) *SiteController {
	return &SiteController{siteSvc: siteSvc}
}

// ListSites 站点列表
// @Summary 获取全部站点
// @Tags Site
// @Produce json
// @Success 200 {object} dto.SiteListResp
// @Router /sites [get]
func (c *SiteController) ListSites(ctx *gin.Context) {
	resp, err := c.siteSvc.ListSites(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, "")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
