package iap

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subsync/subsync/app/models"
)

// Repository provides the DB operations the reconciliation engine needs.
type Repository interface {
	ProductByStoreID(store, storeProductID string) (*models.Product, error)
	EntitlementsForProduct(productID uint) ([]models.Entitlement, error)

	UserByAppUserID(appUserID string) (*models.User, error)
	CreateUser(user *models.User) error

	SubscriptionByOriginalTransaction(store, originalTransactionID string) (*models.Subscription, error)
	UpsertSubscription(sub *models.Subscription) error

	GrantsBySubscription(subscriptionID uint) ([]models.UserEntitlement, error)
	CreateUserEntitlement(grant *models.UserEntitlement) error
	UpdateGrantExpiry(id uint, expiresAt *time.Time) error

	CreateWebhookEventIfNotExists(event *models.StoreWebhookEvent) (bool, *models.StoreWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error

	// Transaction runs fn against a repository bound to a DB transaction.
	Transaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an engine repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ProductByStoreID(store, storeProductID string) (*models.Product, error) {
	var p models.Product
	var err error
	switch store {
	case models.StoreApple:
		err = r.db.Where("apple_product_id = ?", storeProductID).First(&p).Error
	case models.StoreGoogle:
		err = r.db.Where("google_product_id = ?", storeProductID).First(&p).Error
	default:
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) EntitlementsForProduct(productID uint) ([]models.Entitlement, error) {
	var ents []models.Entitlement
	err := r.db.
		Joins("JOIN product_entitlements pe ON pe.entitlement_id = entitlements.id").
		Where("pe.product_id = ?", productID).
		Find(&ents).Error
	return ents, err
}

func (r *gormRepository) UserByAppUserID(appUserID string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("app_user_id = ?", appUserID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *gormRepository) SubscriptionByOriginalTransaction(store, originalTransactionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("store = ? AND original_transaction_id = ?", store, originalTransactionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "store"},
			{Name: "original_transaction_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"product_id",
			"store_transaction_id",
			"status",
			"purchase_date",
			"expires_date",
			"cancellation_date",
			"renewal_grace_period_expires_date",
			"auto_renew",
			"price_paid",
			"currency",
			"is_trial",
			"is_intro_offer",
			"last_event_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("store = ? AND original_transaction_id = ?", sub.Store, sub.OriginalTransactionID).
		First(sub).Error
}

func (r *gormRepository) GrantsBySubscription(subscriptionID uint) ([]models.UserEntitlement, error) {
	var grants []models.UserEntitlement
	err := r.db.Where("subscription_id = ?", subscriptionID).Find(&grants).Error
	return grants, err
}

func (r *gormRepository) CreateUserEntitlement(grant *models.UserEntitlement) error {
	return r.db.Create(grant).Error
}

func (r *gormRepository) UpdateGrantExpiry(id uint, expiresAt *time.Time) error {
	return r.db.Model(&models.UserEntitlement{}).Where("id = ?", id).
		Update("expires_at", expiresAt).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.StoreWebhookEvent) (bool, *models.StoreWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "store"},
			{Name: "event_key"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.StoreWebhookEvent
	if err := r.db.Where("store = ? AND event_key = ?", event.Store, event.EventKey).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.StoreWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
