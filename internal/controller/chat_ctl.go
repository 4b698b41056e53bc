package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/service"
)

type ChatController struct {
	chatSvc *service.ChatService
}

func NewChatController(chatSvc *service.ChatService) *ChatController {
	return &ChatController{chatSvc: chatSvc}
}

// Chat 客服对话
// @Summary 发送消息并获取客服回复
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.ChatReq true "对话请求"
// @Success 200 {object} dto.ChatResp
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 404 {object} map[string]string "站点不存在"
// @Failure 500 {object} map[string]string "服务异常"
// @Router /chat [post]
func (ctl *ChatController) Chat(c *gin.Context) {
	var req dto.ChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := ctl.chatSvc.GetResponse(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, req.SiteName)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetHistory 会话历史
// @Summary 获取会话历史
// @Tags Chat
// @Produce json
// @Param conversation_id path string true "会话ID"
// @Param limit query int false "条数" default(50)
// @Success 200 {object} dto.ChatHistoryResp
// @Failure 404 {object} map[string]string "会话不存在"
// @Router /chat/history/{conversation_id} [get]
func (ctl *ChatController) GetHistory(c *gin.Context) {
	var q dto.ChatHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := ctl.chatSvc.GetHistory(c.Request.Context(), c.Param("conversation_id"), q.Limit)
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, resp)
}
