package repository

import (
	"ks-chat-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepository 接口定义了消息记录的持久化操作。
type MessageRepository interface {
	Insert(conversationID, userID, role, content string) error
	FindByConversationID(conversationID string) ([]model.Message, error)
}

// messageRepository 是 MessageRepository 接口的 GORM 实现。
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Insert 插入一条消息记录。
func (r *messageRepository) Insert(conversationID, userID, role, content string) error {
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
	}
	return r.db.Create(&msg).Error
}

// FindByConversationID 按创建时间升序返回一个对话的全部消息。
func (r *messageRepository) FindByConversationID(conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.Where("conversation_id = ?", conversationID).Order("created_at ASC").Find(&msgs).Error
	return msgs, err
}
