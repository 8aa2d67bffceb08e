package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ProductTypeSubscription = "subscription"
	ProductTypeOneTime      = "one_time"
)

// Product is one sellable catalog entry, mapped to the storefront product
// identifiers the webhook notifications carry.
type Product struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=1,max=200"`
	Description     string    `gorm:"type:text" json:"description,omitempty"`
	AppleProductID  string    `gorm:"type:varchar(191);default:null;index" json:"apple_product_id,omitempty" validate:"omitempty,max=191"`
	GoogleProductID string    `gorm:"type:varchar(191);default:null;index" json:"google_product_id,omitempty" validate:"omitempty,max=191"`
	Type            string    `gorm:"type:varchar(20);not null;default:'subscription'" json:"type" validate:"required,oneof=subscription one_time"`
	PriceUSD        *float64  `gorm:"type:decimal(10,2);default:null" json:"price_usd,omitempty" validate:"omitempty,gte=0"`
	DurationDays    *int      `gorm:"default:null" json:"duration_days,omitempty" validate:"omitempty,gt=0"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// ProductEntitlement links a product to an entitlement it confers
type ProductEntitlement struct {
	ProductID     uint      `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	EntitlementID uint      `gorm:"primaryKey;autoIncrement:false" json:"entitlement_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
