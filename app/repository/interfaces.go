package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/subsync/subsync/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUUID(uuid string) (*models.User, error)
	GetByAppUserID(appUserID string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// ProductRepository defines the interface for catalog operations
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetByStoreProductID(store, storeProductID string) (*models.Product, error)
	Update(product *models.Product) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Product, error)
	Count() (int64, error)
	GetEntitlements(productID uint) ([]models.Entitlement, error)
	SetEntitlements(productID uint, entitlementIDs []uint) error
	AddEntitlement(productID, entitlementID uint) error
	RemoveEntitlement(productID, entitlementID uint) error
}

// EntitlementRepository defines the interface for entitlement definitions
type EntitlementRepository interface {
	Create(ent *models.Entitlement) error
	GetByID(id uint) (*models.Entitlement, error)
	GetByName(name string) (*models.Entitlement, error)
	Update(ent *models.Entitlement) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Entitlement, error)
	Count() (int64, error)
}

// SubscriptionRepository defines the read side for subscription rows. Writes
// go through the reconciliation engine only.
type SubscriptionRepository interface {
	GetByID(id uint) (*models.Subscription, error)
	GetByUUID(uuid string) (*models.Subscription, error)
	GetByUserID(userID uint) ([]models.Subscription, error)
	GetActiveByUserID(userID uint) ([]models.Subscription, error)
	GetByOriginalTransaction(store, originalTransactionID string) (*models.Subscription, error)
	List(offset, limit int) ([]models.Subscription, error)
	Count() (int64, error)
}

// UserEntitlementRepository defines grant reads plus the manual grant and
// revoke operations. Subscription-driven grants go through the
// reconciliation engine only.
type UserEntitlementRepository interface {
	GetByUserID(userID uint) ([]models.UserEntitlement, error)
	GetActiveByUserID(userID uint, now time.Time) ([]models.UserEntitlement, error)
	GetActiveByUserAndEntitlement(userID, entitlementID uint, now time.Time) ([]models.UserEntitlement, error)
	GetBySubscriptionID(subscriptionID uint) ([]models.UserEntitlement, error)
	Create(grant *models.UserEntitlement) error
	UpdateExpiry(id uint, expiresAt *time.Time) error
}

// WebhookEventRepository exposes the stored notification log for inspection
type WebhookEventRepository interface {
	GetByID(id uint) (*models.StoreWebhookEvent, error)
	List(store string, offset, limit int) ([]models.StoreWebhookEvent, error)
	Count(store string) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User            UserRepository
	Product         ProductRepository
	Entitlement     EntitlementRepository
	Subscription    SubscriptionRepository
	UserEntitlement UserEntitlementRepository
	WebhookEvent    WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		Product:         NewProductRepository(db),
		Entitlement:     NewEntitlementRepository(db),
		Subscription:    NewSubscriptionRepository(db),
		UserEntitlement: NewUserEntitlementRepository(db),
		WebhookEvent:    NewWebhookEventRepository(db),
	}
}
