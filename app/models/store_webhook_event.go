package models

import "time"

// StoreWebhookEvent records every storefront notification we accepted, keyed
// for deduplication. The unique (store, event_key) pair is the idempotency
// guard: a redelivered notification inserts nothing and is acknowledged
// without side effects.
type StoreWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Store           string     `gorm:"type:varchar(20);not null;index:ux_store_webhook_events_store_key,unique,priority:1" json:"store"`
	EventKey        string     `gorm:"type:varchar(255);not null;index:ux_store_webhook_events_store_key,unique,priority:2" json:"event_key"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
