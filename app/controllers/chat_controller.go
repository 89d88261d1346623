package controllers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aihub/rag-gateway/internal/di"
	"github.com/aihub/rag-gateway/internal/logger"
	"github.com/aihub/rag-gateway/internal/relay"
	"github.com/aihub/rag-gateway/internal/services"
)

// ChatController 流式问答控制器
type ChatController struct {
	BaseController
	chatService *services.ChatService
}

// Prepare 从DI容器取问答服务（beego每个请求重建controller实例）
func (c *ChatController) Prepare() {
	if c.chatService != nil {
		return
	}
	if err := di.Invoke(func(s *services.ChatService) {
		c.chatService = s
	}); err != nil {
		logger.Error("failed to resolve chat service", zap.Error(err))
	}
}

// Stream 处理流式问答请求
// 准备阶段（校验、检索、组装）失败返回JSON错误；
// 准备成功后切换到SSE，之后的一切结果都通过事件协议传达
func (c *ChatController) Stream() {
	if c.chatService == nil {
		c.JSONError(http.StatusInternalServerError, "service unavailable")
		return
	}

	ctx := c.Ctx.Request.Context()
	body := c.Ctx.Input.RequestBody

	prepared, err := c.chatService.Prepare(ctx, body)
	if err != nil {
		logger.Warn("chat prepare failed", zap.Error(err))
		c.JSONAppError(err)
		return
	}

	sink, err := relay.NewSSEWriter(c.Ctx.ResponseWriter)
	if err != nil {
		logger.Error("sse not supported by response writer", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "streaming not supported")
		return
	}

	c.chatService.Stream(ctx, prepared, sink)

	// 响应已通过SSE写完，跳过beego的默认渲染
	c.EnableRender = false
}
