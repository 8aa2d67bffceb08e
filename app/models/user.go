package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an end user of the client app, identified by the app-side user id
// that the storefronts carry in their notifications (Apple appAccountToken,
// Google obfuscated account id / purchase token fallback).
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UUID      string         `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	AppUserID string         `gorm:"type:varchar(191);uniqueIndex;not null" json:"app_user_id" validate:"required,min=1,max=191"`
	Email     string         `gorm:"type:varchar(200);default:null" json:"email,omitempty" validate:"omitempty,email,max=200"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == "" {
		u.UUID = uuid.New().String()
	}
	return nil
}
