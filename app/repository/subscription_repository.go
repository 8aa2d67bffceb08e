package repository

import (
	"gorm.io/gorm"

	"github.com/subsync/subsync/app/models"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// GetByID retrieves a subscription by its ID
func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUUID retrieves a subscription by its public UUID
func (r *subscriptionRepository) GetByUUID(uuid string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("uuid = ?", uuid).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUserID retrieves all subscriptions for a user
func (r *subscriptionRepository) GetByUserID(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

// GetActiveByUserID retrieves the subscriptions still carrying access
// (active, cancelled-but-not-lapsed, grace period)
func (r *subscriptionRepository) GetActiveByUserID(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("user_id = ? AND status IN ?", userID, []string{
			models.SubscriptionStatusActive,
			models.SubscriptionStatusCancelled,
			models.SubscriptionStatusGracePeriod,
		}).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// GetByOriginalTransaction retrieves the subscription for a purchase lineage
func (r *subscriptionRepository) GetByOriginalTransaction(store, originalTransactionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("store = ? AND original_transaction_id = ?", store, originalTransactionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// List retrieves a paginated list of subscriptions
func (r *subscriptionRepository) List(offset, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&subs).Error
	return subs, err
}

// Count returns the total number of subscriptions
func (r *subscriptionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Count(&count).Error
	return count, err
}
