package models

import "time"

// UserEntitlement is one grant of a capability to a user, optionally owned by
// a subscription. Grants are never deleted by the reconciliation engine, only
// expired, so the table doubles as an access audit trail.
type UserEntitlement struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index:idx_user_entitlements_user_ent,priority:1;index" json:"user_id"`
	EntitlementID  uint       `gorm:"not null;index:idx_user_entitlements_user_ent,priority:2" json:"entitlement_id"`
	SubscriptionID *uint      `gorm:"default:null;index" json:"subscription_id,omitempty"`
	StartsAt       time.Time  `gorm:"not null" json:"starts_at"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActiveAt reports whether the grant carries access at the given instant.
// A nil ExpiresAt means lifetime access.
func (ue *UserEntitlement) IsActiveAt(now time.Time) bool {
	if ue.StartsAt.After(now) {
		return false
	}
	return ue.ExpiresAt == nil || ue.ExpiresAt.After(now)
}
