package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// licenseRepository implements the LicenseRepository interface
type licenseRepository struct {
	db *gorm.DB
}

// NewLicenseRepository creates a new license repository instance
func NewLicenseRepository(db *gorm.DB) LicenseRepository {
	return &licenseRepository{db: db}
}

// GetByID retrieves a license by its ID
func (r *licenseRepository) GetByID(id uint) (*models.License, error) {
	var license models.License
	err := r.db.First(&license, id).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// GetByName retrieves a license by name, case-insensitively
func (r *licenseRepository) GetByName(name string) (*models.License, error) {
	var license models.License
	err := r.db.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// GetByLegacyType retrieves a license by its legacy storefront type name
func (r *licenseRepository) GetByLegacyType(legacyType string) (*models.License, error) {
	var license models.License
	err := r.db.Where("legacy_type = ? AND legacy_type <> ''",
		strings.ToLower(strings.TrimSpace(legacyType))).First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// GetDefaultExclusive returns the priciest license allowed for exclusive sales
func (r *licenseRepository) GetDefaultExclusive() (*models.License, error) {
	var license models.License
	err := r.db.Where("exclusive_allowed = ?", true).
		Order("price_cents DESC").First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// GetOldest returns the earliest-created license in the catalog
func (r *licenseRepository) GetOldest() (*models.License, error) {
	var license models.License
	err := r.db.Order("created_at ASC, id ASC").First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// List retrieves the whole catalog ordered by price
func (r *licenseRepository) List() ([]models.License, error) {
	var licenses []models.License
	err := r.db.Order("price_cents ASC").Find(&licenses).Error
	return licenses, err
}
