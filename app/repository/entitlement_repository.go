package repository

import (
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// entitlementRepository implements the EntitlementRepository interface
type entitlementRepository struct {
	db *gorm.DB
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

// GetByUserAndBeat retrieves a user's entitlement for a beat, if any
func (r *entitlementRepository) GetByUserAndBeat(userID, beatID uint) (*models.Entitlement, error) {
	var entitlement models.Entitlement
	err := r.db.Preload("License").Where("user_id = ? AND beat_id = ?", userID, beatID).
		First(&entitlement).Error
	if err != nil {
		return nil, err
	}
	return &entitlement, nil
}

// ListByUser retrieves all entitlements held by a user
func (r *entitlementRepository) ListByUser(userID uint) ([]models.Entitlement, error) {
	var entitlements []models.Entitlement
	err := r.db.Preload("License").Where("user_id = ?", userID).
		Order("created_at DESC").Find(&entitlements).Error
	return entitlements, err
}
