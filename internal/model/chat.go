package model

// ChatTurnMessage 是聊天请求中携带的一条历史消息。
type ChatTurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 是 POST /api/chat 的请求体。
type ChatRequest struct {
	Messages       []ChatTurnMessage `json:"messages"`
	UserID         string            `json:"userId"`
	ConversationID string            `json:"conversationId"`
}

// Metrics 是每轮对话结束时下发的统计信息。各字段均可为 null。
// 数值来自累计回复长度与流式耗时的粗略估算，并非真实分词结果。
type Metrics struct {
	InputTokens     *int     `json:"inputTokens"`
	OutputTokens    *int     `json:"outputTokens"`
	TotalTokens     *int     `json:"totalTokens"`
	TokensPerSecond *float64 `json:"tokensPerSecond"`
}

// 流事件类型。
const (
	EventDelta = "delta"
	EventDone  = "done"
)

// StreamEvent 是中继下发给客户端的事件：若干条 delta 之后固定跟随一条 done。
// delta 只使用 Text；done 只使用 Metrics 与可选的 ConversationID。
type StreamEvent struct {
	Type           string   `json:"type"`
	Text           string   `json:"text,omitempty"`
	Metrics        *Metrics `json:"metrics,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
}
