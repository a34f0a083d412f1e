// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"ks-chat-go/internal/model"
	"ks-chat-go/internal/repository"
	"ks-chat-go/pkg/llm"
	"ks-chat-go/pkg/log"
)

// 对话标题的最大长度（按 rune 计）。超长时截断为前 77 个字符加省略号。
const maxTitleLen = 80

// 首条用户消息为空时的标题兜底。
const defaultTitle = "New chat"

var (
	// ErrMissingUserID 表示请求未携带调用方身份。
	ErrMissingUserID = errors.New("missing user id")
	// ErrNoUserMessage 表示请求历史中没有可提取的用户消息。
	ErrNoUserMessage = errors.New("no user message provided")
)

// EventWriter 是流事件的下发出口，由传输层实现。
// 每次 WriteEvent 对应协议中的一条事件记录。
type EventWriter interface {
	WriteEvent(event model.StreamEvent) error
}

// ChatService 定义了聊天中继的接口。
type ChatService interface {
	StreamTurn(ctx context.Context, req *model.ChatRequest, w EventWriter) error
}

type chatService struct {
	llmClient        llm.Client
	profileRepo      repository.ProfileRepository
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(llmClient llm.Client, profileRepo repository.ProfileRepository, conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository) ChatService {
	return &chatService{
		llmClient:        llmClient,
		profileRepo:      profileRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

// StreamTurn 处理一轮完整的对话中继：
// 校验请求、保证对话记录存在、持久化用户消息、把提供方的流式分块
// 逐条转发给客户端，流结束后持久化完整回复并下发一条 done 事件。
//
// 在任何事件写出之前返回的错误由传输层映射为 HTTP 错误；
// 事件写出之后的错误由传输层通过中断连接来暴露给客户端。
// 持久化失败只记日志，不影响本轮对话。
func (s *chatService) StreamTurn(ctx context.Context, req *model.ChatRequest, w EventWriter) error {
	if req.UserID == "" {
		return ErrMissingUserID
	}

	prompt := lastUserMessage(req.Messages)
	if prompt == "" {
		return ErrNoUserMessage
	}

	// 最小档案建档，失败不阻断本轮对话
	if err := s.profileRepo.Upsert(req.UserID); err != nil {
		log.Errorf("Failed to upsert profile for user %s: %v", req.UserID, err)
	}

	// 未携带 conversationId 时懒创建对话；后续写入都依赖这个 id，失败即终止
	conversationID := req.ConversationID
	created := false
	if conversationID == "" {
		conv, err := s.conversationRepo.Create(req.UserID, deriveTitle(prompt))
		if err != nil {
			return fmt.Errorf("could not create conversation: %w", err)
		}
		conversationID = conv.ID
		created = true
	}

	if err := s.messageRepo.Insert(conversationID, req.UserID, "user", prompt); err != nil {
		log.Errorf("Failed to insert user message: %v", err)
	}

	stream, err := s.llmClient.StreamGenerate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("llm streaming unavailable: %w", err)
	}
	defer stream.Close()

	// 逐块读取并立即转发，顺序与提供方产出一致；空分块不下发
	var reply strings.Builder
	startTime := time.Now()
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("llm stream read failed: %w", err)
		}
		if chunk.Text == "" {
			continue
		}
		reply.WriteString(chunk.Text)
		if err := w.WriteEvent(model.StreamEvent{Type: model.EventDelta, Text: chunk.Text}); err != nil {
			return err
		}
	}

	fullReply := reply.String()
	metrics := computeMetrics(fullReply, time.Since(startTime).Seconds())

	if err := s.messageRepo.Insert(conversationID, req.UserID, "assistant", fullReply); err != nil {
		log.Errorf("Failed to insert assistant message: %v", err)
	}

	done := model.StreamEvent{Type: model.EventDone, Metrics: &metrics}
	if created {
		done.ConversationID = conversationID
	}
	return w.WriteEvent(done)
}

// lastUserMessage 从历史中提取最近一条 role 为 user 的消息内容。
func lastUserMessage(messages []model.ChatTurnMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// deriveTitle 从首条用户消息派生对话标题。
func deriveTitle(firstMessage string) string {
	if firstMessage == "" {
		return defaultTitle
	}
	runes := []rune(firstMessage)
	if len(runes) > maxTitleLen {
		return string(runes[:77]) + "..."
	}
	return firstMessage
}

// computeMetrics 由累计回复长度与耗时估算 token 统计。
// 输出 token 数按"每 4 个字符约一个 token"粗估，输入 token 不统计。
func computeMetrics(reply string, elapsedSeconds float64) model.Metrics {
	outputTokens := int(math.Round(float64(utf8.RuneCountInString(reply)) / 4))
	totalTokens := outputTokens

	var tokensPerSecond *float64
	if elapsedSeconds > 0 && outputTokens > 0 {
		tps := float64(outputTokens) / elapsedSeconds
		tokensPerSecond = &tps
	}

	return model.Metrics{
		InputTokens:     nil,
		OutputTokens:    &outputTokens,
		TotalTokens:     &totalTokens,
		TokensPerSecond: tokensPerSecond,
	}
}
