// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"ks-chat-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository 接口定义了用户档案的持久化操作。
type ProfileRepository interface {
	Upsert(userID string) error
}

// profileRepository 是 ProfileRepository 接口的 GORM 实现。
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建一个新的 ProfileRepository 实例。
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Upsert 以 userID 为主键写入档案记录，已存在时不做任何修改。
func (r *profileRepository) Upsert(userID string) error {
	profile := model.Profile{ID: userID}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&profile).Error
}
