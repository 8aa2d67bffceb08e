package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StoreApple  = "apple"
	StoreGoogle = "google"
)

const (
	SubscriptionStatusActive      = "active"
	SubscriptionStatusExpired     = "expired"
	SubscriptionStatusCancelled   = "cancelled"
	SubscriptionStatusGracePeriod = "grace_period"
	SubscriptionStatusRefunded    = "refunded"
	SubscriptionStatusPaused      = "paused"
)

// Subscription is one storefront purchase lineage. Renewals mutate the row in
// place; (store, original_transaction_id) is the stable external key.
type Subscription struct {
	ID                            uint       `gorm:"primaryKey" json:"id"`
	UUID                          string     `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	UserID                        uint       `gorm:"not null;index" json:"user_id"`
	ProductID                     uint       `gorm:"not null;index" json:"product_id"`
	Store                         string     `gorm:"type:varchar(20);not null;index:ux_subscriptions_store_original_tx,unique,priority:1;index:idx_subscriptions_store_tx,priority:1" json:"store"`
	OriginalTransactionID         string     `gorm:"type:varchar(191);not null;index:ux_subscriptions_store_original_tx,unique,priority:2" json:"original_transaction_id"`
	StoreTransactionID            string     `gorm:"type:varchar(191);not null;default:'';index:idx_subscriptions_store_tx,priority:2" json:"store_transaction_id"`
	Status                        string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	PurchaseDate                  time.Time  `gorm:"not null" json:"purchase_date"`
	ExpiresDate                   *time.Time `gorm:"type:timestamp;default:null" json:"expires_date,omitempty"`
	CancellationDate              *time.Time `gorm:"type:timestamp;default:null" json:"cancellation_date,omitempty"`
	RenewalGracePeriodExpiresDate *time.Time `gorm:"type:timestamp;default:null" json:"renewal_grace_period_expires_date,omitempty"`
	AutoRenew                     bool       `gorm:"default:false" json:"auto_renew"`
	PricePaid                     *float64   `gorm:"type:decimal(10,2);default:null" json:"price_paid,omitempty"`
	Currency                      string     `gorm:"type:varchar(8);default:''" json:"currency,omitempty"`
	IsTrial                       bool       `gorm:"default:false" json:"is_trial"`
	IsIntroOffer                  bool       `gorm:"default:false" json:"is_intro_offer"`
	LastEventAt                   time.Time  `gorm:"not null" json:"last_event_at"`
	CreatedAt                     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.New().String()
	}
	return nil
}

// IsEntitling reports whether the subscription status still carries access.
// Cancellation and grace period are soft: the user keeps access until the
// term actually lapses.
func (s *Subscription) IsEntitling() bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusGracePeriod:
		return true
	default:
		return false
	}
}
