package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/subsync/subsync/app/models"
)

// userEntitlementRepository implements the UserEntitlementRepository interface
type userEntitlementRepository struct {
	db *gorm.DB
}

// NewUserEntitlementRepository creates a new user entitlement repository instance
func NewUserEntitlementRepository(db *gorm.DB) UserEntitlementRepository {
	return &userEntitlementRepository{db: db}
}

// GetByUserID retrieves all grants ever issued to a user
func (r *userEntitlementRepository) GetByUserID(userID uint) ([]models.UserEntitlement, error) {
	var grants []models.UserEntitlement
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&grants).Error
	return grants, err
}

// GetActiveByUserID retrieves the grants carrying access at the given instant
func (r *userEntitlementRepository) GetActiveByUserID(userID uint, now time.Time) ([]models.UserEntitlement, error) {
	var grants []models.UserEntitlement
	err := r.db.
		Where("user_id = ? AND starts_at <= ? AND (expires_at IS NULL OR expires_at > ?)", userID, now, now).
		Find(&grants).Error
	return grants, err
}

// GetActiveByUserAndEntitlement retrieves the active grants of one
// entitlement for one user
func (r *userEntitlementRepository) GetActiveByUserAndEntitlement(userID, entitlementID uint, now time.Time) ([]models.UserEntitlement, error) {
	var grants []models.UserEntitlement
	err := r.db.
		Where("user_id = ? AND entitlement_id = ? AND starts_at <= ? AND (expires_at IS NULL OR expires_at > ?)",
			userID, entitlementID, now, now).
		Find(&grants).Error
	return grants, err
}

// GetBySubscriptionID retrieves the grants owned by a subscription
func (r *userEntitlementRepository) GetBySubscriptionID(subscriptionID uint) ([]models.UserEntitlement, error) {
	var grants []models.UserEntitlement
	err := r.db.Where("subscription_id = ?", subscriptionID).Find(&grants).Error
	return grants, err
}

// Create inserts a grant row. Used for manual grants only.
func (r *userEntitlementRepository) Create(grant *models.UserEntitlement) error {
	return r.db.Create(grant).Error
}

// UpdateExpiry moves a grant's expiry. Used for manual revocation only.
func (r *userEntitlementRepository) UpdateExpiry(id uint, expiresAt *time.Time) error {
	return r.db.Model(&models.UserEntitlement{}).Where("id = ?", id).
		Update("expires_at", expiresAt).Error
}
