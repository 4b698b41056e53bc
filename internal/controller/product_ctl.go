package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/service"
)

// testSearchLimit 管理员检索调试返回条数
const testSearchLimit = 5

type ProductController struct {
	knowledgeSvc *service.KnowledgeService
}

func NewProductController(knowledgeSvc *service.KnowledgeService) *ProductController {
	return &ProductController{knowledgeSvc: knowledgeSvc}
}

// ==================== 查询接口 ====================

// SearchProducts 商品检索
// @Summary 商品检索（向量检索优先，SQL 兜底）
// @Tags Product
// @Accept json
// @Produce json
// @Param request body dto.ProductSearchReq true "检索条件"
// @Success 200 {object} dto.ProductSearchResp
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 404 {object} map[string]string "站点不存在"
// @Router /products/search [post]
func (ctrl *ProductController) SearchProducts(c *gin.Context) {
	var req dto.ProductSearchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := ctrl.knowledgeSvc.SearchProducts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, req.SiteName)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetProduct 商品详情
// @Summary 按 WooCommerce ID 获取商品
// @Tags Product
// @Produce json
// @Param site_name path string true "站点"
// @Param product_id path int true "WooCommerce 商品ID"
// @Success 200 {object} dto.ProductResp
// @Failure 404 {object} map[string]string "站点或商品不存在"
// @Router /products/{site_name}/{product_id} [get]
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	siteName := c.Param("site_name")
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product_id"})
		return
	}

	resp, err := ctrl.knowledgeSvc.GetProduct(c.Request.Context(), siteName, productID)
	if err != nil {
		respondError(c, err, siteName)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetCategories 站点分类
// @Summary 获取站点商品分类
// @Tags Product
// @Produce json
// @Param site_name path string true "站点"
// @Success 200 {object} dto.CategoryListResp
// @Router /products/{site_name}/categories [get]
func (ctrl *ProductController) GetCategories(c *gin.Context) {
	siteName := c.Param("site_name")
	resp, err := ctrl.knowledgeSvc.GetCategories(c.Request.Context(), siteName)
	if err != nil {
		respondError(c, err, siteName)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ==================== 管理接口 ====================

// TestSearch 检索调试
// @Summary 检索调试（管理员）
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.TestSearchReq true "检索条件"
// @Success 200 {object} dto.TestSearchResp
// @Router /test-search [post]
func (ctrl *ProductController) TestSearch(c *gin.Context) {
	var req dto.TestSearchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := ctrl.knowledgeSvc.SearchProducts(c.Request.Context(), &dto.ProductSearchReq{
		Query:    req.Query,
		SiteName: req.SiteName,
		Limit:    testSearchLimit,
	})
	if err != nil {
		respondError(c, err, req.SiteName)
		return
	}

	siteName := req.SiteName
	if siteName == "" {
		siteName = service.DefaultSiteName
	}
	c.JSON(http.StatusOK, dto.TestSearchResp{
		Query:         req.Query,
		SiteName:      siteName,
		Source:        resp.Source,
		ProductsFound: resp.Count,
		Products:      resp.Products,
	})
}
