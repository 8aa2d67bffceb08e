package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subsync/subsync/app/models"
)

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create creates a new product in the database
func (r *productRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// GetByID retrieves a product by its ID
func (r *productRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetByStoreProductID resolves a storefront product identifier to the catalog
// entry
func (r *productRepository) GetByStoreProductID(store, storeProductID string) (*models.Product, error) {
	var product models.Product
	var err error
	switch store {
	case models.StoreApple:
		err = r.db.Where("apple_product_id = ?", storeProductID).First(&product).Error
	case models.StoreGoogle:
		err = r.db.Where("google_product_id = ?", storeProductID).First(&product).Error
	default:
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Update updates an existing product
func (r *productRepository) Update(product *models.Product) error {
	return r.db.Save(product).Error
}

// Delete removes a product by its ID
func (r *productRepository) Delete(id uint) error {
	return r.db.Delete(&models.Product{}, id).Error
}

// List retrieves a paginated list of products
func (r *productRepository) List(offset, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Order("id").Offset(offset).Limit(limit).Find(&products).Error
	return products, err
}

// Count returns the total number of products
func (r *productRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Product{}).Count(&count).Error
	return count, err
}

// GetEntitlements returns the entitlements a product confers
func (r *productRepository) GetEntitlements(productID uint) ([]models.Entitlement, error) {
	var ents []models.Entitlement
	err := r.db.
		Joins("JOIN product_entitlements pe ON pe.entitlement_id = entitlements.id").
		Where("pe.product_id = ?", productID).
		Find(&ents).Error
	return ents, err
}

// AddEntitlement attaches one entitlement to a product, idempotently
func (r *productRepository) AddEntitlement(productID, entitlementID uint) error {
	pe := models.ProductEntitlement{ProductID: productID, EntitlementID: entitlementID}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pe).Error
}

// RemoveEntitlement detaches one entitlement from a product
func (r *productRepository) RemoveEntitlement(productID, entitlementID uint) error {
	return r.db.Where("product_id = ? AND entitlement_id = ?", productID, entitlementID).
		Delete(&models.ProductEntitlement{}).Error
}

// SetEntitlements replaces the entitlement set a product confers
func (r *productRepository) SetEntitlements(productID uint, entitlementIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).
			Delete(&models.ProductEntitlement{}).Error; err != nil {
			return err
		}
		for _, entID := range entitlementIDs {
			pe := models.ProductEntitlement{ProductID: productID, EntitlementID: entID}
			if err := tx.Create(&pe).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
