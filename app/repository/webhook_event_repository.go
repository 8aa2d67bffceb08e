package repository

import (
	"gorm.io/gorm"

	"github.com/subsync/subsync/app/models"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// GetByID retrieves a stored notification by its ID
func (r *webhookEventRepository) GetByID(id uint) (*models.StoreWebhookEvent, error) {
	var event models.StoreWebhookEvent
	err := r.db.First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// List retrieves stored notifications, newest first, optionally filtered by store
func (r *webhookEventRepository) List(store string, offset, limit int) ([]models.StoreWebhookEvent, error) {
	var events []models.StoreWebhookEvent
	q := r.db.Order("created_at DESC").Offset(offset).Limit(limit)
	if store != "" {
		q = q.Where("store = ?", store)
	}
	err := q.Find(&events).Error
	return events, err
}

// Count returns the number of stored notifications, optionally filtered by store
func (r *webhookEventRepository) Count(store string) (int64, error) {
	var count int64
	q := r.db.Model(&models.StoreWebhookEvent{})
	if store != "" {
		q = q.Where("store = ?", store)
	}
	err := q.Count(&count).Error
	return count, err
}
