package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrm_chatbot_api/internal/service"
)

// respondError 业务错误映射为 HTTP 状态码；未知错误只记录到 c.Errors，不对外暴露细节
func respondError(c *gin.Context, err error, siteName string) {
	switch {
	case errors.Is(err, service.ErrSiteNotFound):
		if siteName == "" {
			siteName = service.DefaultSiteName
		}
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Site '%s' not found", siteName)})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, service.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// badRequest 参数校验失败
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
}
