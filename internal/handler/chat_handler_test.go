package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ks-chat-go/internal/model"
	"ks-chat-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatService 回放预设的事件序列，或在指定阶段返回错误。
type fakeChatService struct {
	events       []model.StreamEvent
	setupErr     error
	failAfterAll bool
}

func (f *fakeChatService) StreamTurn(ctx context.Context, req *model.ChatRequest, w service.EventWriter) error {
	if f.setupErr != nil {
		return f.setupErr
	}
	for _, ev := range f.events {
		if err := w.WriteEvent(ev); err != nil {
			return err
		}
	}
	if f.failAfterAll {
		return assert.AnError
	}
	return nil
}

func newChatRouter(svc service.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/chat", NewChatHandler(svc).Handle)
	return r
}

func postChat(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChatHandlerMissingUserID(t *testing.T) {
	r := newChatRouter(&fakeChatService{setupErr: service.ErrMissingUserID})

	rec := postChat(r, `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "data:")
}

func TestChatHandlerNoUserMessage(t *testing.T) {
	r := newChatRouter(&fakeChatService{setupErr: service.ErrNoUserMessage})

	rec := postChat(r, `{"userId":"u1","messages":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerInvalidBody(t *testing.T) {
	r := newChatRouter(&fakeChatService{})

	rec := postChat(r, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerSetupFailure(t *testing.T) {
	r := newChatRouter(&fakeChatService{setupErr: assert.AnError})

	rec := postChat(r, `{"userId":"u1","messages":[{"role":"user","content":"hi"}]}`)

	// 流尚未打开，直接以 HTTP 500 返回，不产生任何事件行
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "data:")
}

func TestChatHandlerStreamsEvents(t *testing.T) {
	tokens := 1
	svc := &fakeChatService{events: []model.StreamEvent{
		{Type: model.EventDelta, Text: "he"},
		{Type: model.EventDelta, Text: "llo"},
		{Type: model.EventDone, Metrics: &model.Metrics{OutputTokens: &tokens, TotalTokens: &tokens}, ConversationID: "conv-1"},
	}}
	r := newChatRouter(svc)

	rec := postChat(r, `{"userId":"u1","messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	body := rec.Body.String()
	// 每条事件一行 data: 前缀加 JSON，事件之间以空行分隔
	assert.Contains(t, body, `data: {"type":"delta","text":"he"}`+"\n\n")
	assert.Contains(t, body, `data: {"type":"delta","text":"llo"}`+"\n\n")
	assert.Contains(t, body, `"type":"done"`)
	assert.Contains(t, body, `"conversationId":"conv-1"`)
	assert.Contains(t, body, `"inputTokens":null`)
}

func TestChatHandlerMidStreamFailureAborts(t *testing.T) {
	svc := &fakeChatService{
		events:       []model.StreamEvent{{Type: model.EventDelta, Text: "partial"}},
		failAfterAll: true,
	}
	r := newChatRouter(svc)

	rec := postChat(r, `{"userId":"u1","messages":[{"role":"user","content":"hi"}]}`)

	// 已写出的 delta 保留，连接中断，不补发 done
	body := rec.Body.String()
	assert.Contains(t, body, `"text":"partial"`)
	assert.NotContains(t, body, `"type":"done"`)
}
