// Package chatclient 实现了聊天中继的流式客户端。
// 它维护一份可见的消息记录：发送一轮对话时先乐观地追加用户消息和
// 一个空的助手占位，然后增量解码中继下发的事件流，把 delta 文本
// 逐段写入占位消息，最后以 done 事件携带的统计信息收尾。
package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"ks-chat-go/internal/model"
	"ks-chat-go/pkg/log"

	"github.com/google/uuid"
)

// 流式过程中出现任何网络或解码层面的失败时展示给用户的固定文案，
// 不暴露底层错误细节。
const apologyMessage = "Sorry, something went wrong. Please try again."

// ErrTurnInProgress 表示上一轮对话尚未结束，同一时刻只允许一轮在途请求。
var ErrTurnInProgress = errors.New("a turn is already in progress")

// TranscriptMessage 是客户端本地消息记录中的一条消息。
type TranscriptMessage struct {
	ID      string
	Role    string
	Content string
}

// Client 是聊天中继的流式客户端，并发安全。
type Client struct {
	baseURL string
	userID  string
	http    *http.Client

	mu             sync.Mutex
	conversationID string
	transcript     []TranscriptMessage
	conversations  []model.Conversation
	metrics        *model.Metrics
	streaming      bool
}

// New 创建一个指向 baseURL 的客户端，userID 为调用方身份标识。
func New(baseURL, userID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{},
	}
}

// SendMessage 发送一轮对话并阻塞到流结束或失败。
// 无论成败，返回时本轮一定已终结，可以继续发起下一轮。
func (c *Client) SendMessage(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return ErrTurnInProgress
	}
	c.streaming = true

	// 在网络调用返回之前就把用户消息和空的助手占位追加进记录
	assistantID := uuid.NewString()
	c.transcript = append(c.transcript,
		TranscriptMessage{ID: uuid.NewString(), Role: "user", Content: content},
		TranscriptMessage{ID: assistantID, Role: "assistant", Content: ""},
	)
	c.metrics = nil
	turn := c.buildTurnRequest()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
	}()

	if err := c.streamTurn(ctx, turn, assistantID); err != nil {
		c.setAssistantContent(assistantID, apologyMessage)
		return err
	}
	return nil
}

// buildTurnRequest 由当前记录构造请求体。调用方需持有 c.mu。
func (c *Client) buildTurnRequest() *model.ChatRequest {
	req := &model.ChatRequest{
		UserID:         c.userID,
		ConversationID: c.conversationID,
	}
	for _, m := range c.transcript {
		req.Messages = append(req.Messages, model.ChatTurnMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

// streamTurn 发出请求并消费整个事件流。
func (c *Client) streamTurn(ctx context.Context, turn *model.ChatRequest, assistantID string) error {
	body, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("turn request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("turn request returned status %s", resp.Status)
	}

	// 逐行读取：一行可能跨越多次网络读取，bufio 负责跨读缓冲
	reader := bufio.NewReader(resp.Body)
	var assistantText strings.Builder
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			c.handleLine(line, &assistantText, assistantID)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read event stream: %w", readErr)
		}
	}
}

// handleLine 解析一行事件记录。非 data: 前缀的行（包括空行分隔符）
// 一律忽略，JSON 解码失败的行静默跳过，不中断整个流。
func (c *Client) handleLine(line string, assistantText *strings.Builder, assistantID string) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "data:") {
		return
	}
	jsonStr := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
	if jsonStr == "" {
		return
	}

	var event model.StreamEvent
	if err := json.Unmarshal([]byte(jsonStr), &event); err != nil {
		return
	}

	switch event.Type {
	case model.EventDelta:
		assistantText.WriteString(event.Text)
		c.setAssistantContent(assistantID, assistantText.String())
	case model.EventDone:
		c.mu.Lock()
		c.metrics = event.Metrics
		adopted := false
		if c.conversationID == "" && event.ConversationID != "" {
			c.conversationID = event.ConversationID
			adopted = true
		}
		c.mu.Unlock()
		if adopted {
			// 新对话已落库，刷新侧边栏的对话列表
			if err := c.RefreshConversations(context.Background()); err != nil {
				log.Warnf("Failed to refresh conversations: %v", err)
			}
		}
	}
}

// setAssistantContent 以最新累计文本替换助手占位消息的内容。
func (c *Client) setAssistantContent(assistantID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.transcript {
		if c.transcript[i].ID == assistantID {
			c.transcript[i].Content = content
			return
		}
	}
}

// listEnvelope 是非流式接口统一的响应包装。
type listEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RefreshConversations 重新拉取当前用户的对话列表。
func (c *Client) RefreshConversations(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/conversations?userId="+c.userID, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch conversations: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conversations request returned status %s", resp.Status)
	}

	var envelope listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode conversations response: %w", err)
	}
	var convs []model.Conversation
	if err := json.Unmarshal(envelope.Data, &convs); err != nil {
		return fmt.Errorf("failed to decode conversations list: %w", err)
	}

	c.mu.Lock()
	c.conversations = convs
	c.mu.Unlock()
	return nil
}

// LoadConversation 加载一个历史对话的消息记录并切换为当前对话。
func (c *Client) LoadConversation(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return ErrTurnInProgress
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/conversations/"+conversationID+"/messages", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("messages request returned status %s", resp.Status)
	}

	var envelope listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode messages response: %w", err)
	}
	var msgs []model.Message
	if err := json.Unmarshal(envelope.Data, &msgs); err != nil {
		return fmt.Errorf("failed to decode messages list: %w", err)
	}

	transcript := make([]TranscriptMessage, 0, len(msgs))
	for _, m := range msgs {
		transcript = append(transcript, TranscriptMessage{ID: m.ID, Role: m.Role, Content: m.Content})
	}

	c.mu.Lock()
	c.transcript = transcript
	c.conversationID = conversationID
	c.metrics = nil
	c.mu.Unlock()
	return nil
}

// NewChat 清空当前对话状态，下一轮发送将懒创建新对话。
func (c *Client) NewChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return
	}
	c.transcript = nil
	c.conversationID = ""
	c.metrics = nil
}

// Transcript 返回当前消息记录的副本。
func (c *Client) Transcript() []TranscriptMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TranscriptMessage, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Conversations 返回最近一次拉取到的对话列表。
func (c *Client) Conversations() []model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Conversation, len(c.conversations))
	copy(out, c.conversations)
	return out
}

// Metrics 返回最近一轮对话的统计信息，未完成任何一轮时为 nil。
func (c *Client) Metrics() *model.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// ConversationID 返回当前对话 id，尚未进入任何对话时为空串。
func (c *Client) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// IsStreaming 报告是否有一轮对话在途。
func (c *Client) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}
