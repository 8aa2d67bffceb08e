package repository

import (
	"gorm.io/gorm"

	"github.com/subsync/subsync/app/models"
)

// entitlementRepository implements the EntitlementRepository interface
type entitlementRepository struct {
	db *gorm.DB
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

// Create creates a new entitlement definition
func (r *entitlementRepository) Create(ent *models.Entitlement) error {
	return r.db.Create(ent).Error
}

// GetByID retrieves an entitlement by its ID
func (r *entitlementRepository) GetByID(id uint) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := r.db.First(&ent, id).Error
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

// GetByName retrieves an entitlement by its unique name
func (r *entitlementRepository) GetByName(name string) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := r.db.Where("name = ?", name).First(&ent).Error
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

// Update updates an existing entitlement
func (r *entitlementRepository) Update(ent *models.Entitlement) error {
	return r.db.Save(ent).Error
}

// Delete removes an entitlement by its ID
func (r *entitlementRepository) Delete(id uint) error {
	return r.db.Delete(&models.Entitlement{}, id).Error
}

// List retrieves a paginated list of entitlements
func (r *entitlementRepository) List(offset, limit int) ([]models.Entitlement, error) {
	var ents []models.Entitlement
	err := r.db.Order("id").Offset(offset).Limit(limit).Find(&ents).Error
	return ents, err
}

// Count returns the total number of entitlements
func (r *entitlementRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Entitlement{}).Count(&count).Error
	return count, err
}
