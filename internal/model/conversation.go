// Package model 包含了应用的数据模型定义。
package model

import "time"

// Profile 代表一个最小化的用户档案，按调用方提供的 userId 建档。
type Profile struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Conversation 代表一个属于单个用户的、有标题的消息序列。
// 仅在首轮对话且客户端未携带 conversationId 时懒创建，创建后不再修改。
type Conversation struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message 代表对话中的一条消息，role 为 "user" 或 "assistant"。
// 每轮对话各插入一条：用户提问一条，助手完整回复一条（流结束后写入）。
type Message struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);index;not null" json:"conversationId"`
	UserID         string    `gorm:"type:varchar(36);not null" json:"userId"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
