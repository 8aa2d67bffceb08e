package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Entitlement is a named capability the app gates on, for example "premium"
// or "no_ads". Products confer entitlements; users hold grants of them.
type Entitlement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name" validate:"required,min=1,max=100"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Entitlement) Validate() error {
	v := validator.New()

	return v.Struct(e)
}
