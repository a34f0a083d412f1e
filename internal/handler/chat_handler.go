// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ks-chat-go/internal/model"
	"ks-chat-go/internal/service"
	"ks-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理聊天中继请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Handle 处理 POST /api/chat：以 text/event-stream 下发若干条 delta
// 事件和一条终止的 done 事件。
//
// 响应码约定：未携带 userId 返回 401；历史中无用户消息返回 400；
// 对话创建失败或拿不到提供方的流返回 500。一旦有事件写出，
// 后续错误只能通过中断连接暴露，客户端表现为读取中断。
func (h *ChatHandler) Handle(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid request body")
		return
	}

	writer := &sseEventWriter{c: c}
	err := h.chatService.StreamTurn(c.Request.Context(), &req, writer)
	if err == nil {
		return
	}

	if writer.wrote {
		// 流已经打开，只能就地终止：不补发 done，客户端将观察到流中断
		log.Errorf("Streaming error after stream opened: %v", err)
		return
	}

	switch {
	case errors.Is(err, service.ErrMissingUserID):
		c.String(http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrNoUserMessage):
		c.String(http.StatusBadRequest, "No user message provided")
	default:
		log.Errorf("Chat turn setup failed: %v", err)
		c.String(http.StatusInternalServerError, "Internal error")
	}
}

// sseEventWriter 把流事件编码为 `data: <json>` 加空行的帧并立即刷出。
// 响应头推迟到第一条事件写出时才发送，此前的失败仍可返回普通 HTTP 错误。
type sseEventWriter struct {
	c     *gin.Context
	wrote bool
}

// WriteEvent 满足 service.EventWriter 接口。
func (w *sseEventWriter) WriteEvent(event model.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}
	if !w.wrote {
		w.c.Header("Content-Type", "text/event-stream; charset=utf-8")
		w.c.Header("Cache-Control", "no-cache, no-transform")
		w.c.Header("Connection", "keep-alive")
	}
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write stream event: %w", err)
	}
	w.wrote = true
	w.c.Writer.Flush()
	return nil
}
