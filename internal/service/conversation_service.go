package service

import (
	"ks-chat-go/internal/model"
	"ks-chat-go/internal/repository"
)

// ConversationService 定义了对话列表与消息查询的接口。
type ConversationService interface {
	ListConversations(userID string) ([]model.Conversation, error)
	ListMessages(conversationID string) ([]model.Message, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

// ListConversations 按创建时间倒序返回用户的对话列表。
func (s *conversationService) ListConversations(userID string) ([]model.Conversation, error) {
	return s.conversationRepo.FindByUserID(userID)
}

// ListMessages 按创建时间升序返回一个对话的全部消息。
func (s *conversationService) ListMessages(conversationID string) ([]model.Message, error) {
	return s.messageRepo.FindByConversationID(conversationID)
}
