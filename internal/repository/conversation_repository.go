package repository

import (
	"ks-chat-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationRepository 接口定义了对话记录的持久化操作。
type ConversationRepository interface {
	Create(userID, title string) (*model.Conversation, error)
	FindByUserID(userID string) ([]model.Conversation, error)
}

// conversationRepository 是 ConversationRepository 接口的 GORM 实现。
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 创建一条新的对话记录并返回。主键为应用侧生成的 UUID。
func (r *conversationRepository) Create(userID, title string) (*model.Conversation, error) {
	conv := model.Conversation{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
	}
	if err := r.db.Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByUserID 按创建时间倒序返回一个用户的全部对话。
func (r *conversationRepository) FindByUserID(userID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&convs).Error
	return convs, err
}
