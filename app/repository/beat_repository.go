package repository

import (
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// beatRepository implements the BeatRepository interface
type beatRepository struct {
	db *gorm.DB
}

// NewBeatRepository creates a new beat repository instance
func NewBeatRepository(db *gorm.DB) BeatRepository {
	return &beatRepository{db: db}
}

// Create creates a new beat in the database
func (r *beatRepository) Create(beat *models.Beat) error {
	return r.db.Create(beat).Error
}

// GetByID retrieves a beat by its ID
func (r *beatRepository) GetByID(id uint) (*models.Beat, error) {
	var beat models.Beat
	err := r.db.Preload("Producer").First(&beat, id).Error
	if err != nil {
		return nil, err
	}
	return &beat, nil
}

// GetByUUID retrieves a beat by its public UUID
func (r *beatRepository) GetByUUID(uuid string) (*models.Beat, error) {
	var beat models.Beat
	err := r.db.Preload("Producer").Where("uuid = ?", uuid).First(&beat).Error
	if err != nil {
		return nil, err
	}
	return &beat, nil
}

// GetByProducerID retrieves beats belonging to a specific producer with pagination
func (r *beatRepository) GetByProducerID(producerID uint, offset, limit int) ([]models.Beat, error) {
	var beats []models.Beat
	err := r.db.Where("producer_id = ?", producerID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&beats).Error
	return beats, err
}

// ListAvailable retrieves purchasable beats matching the filter
func (r *beatRepository) ListAvailable(filter BeatFilter, offset, limit int) ([]models.Beat, error) {
	var beats []models.Beat
	err := r.filtered(filter).Preload("Producer").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&beats).Error
	return beats, err
}

// CountAvailable returns the number of purchasable beats matching the filter
func (r *beatRepository) CountAvailable(filter BeatFilter) (int64, error) {
	var count int64
	err := r.filtered(filter).Model(&models.Beat{}).Count(&count).Error
	return count, err
}

func (r *beatRepository) filtered(filter BeatFilter) *gorm.DB {
	query := r.db.Where("status = ?", models.BeatStatusAvailable)
	if filter.Genre != "" {
		query = query.Where("genre = ?", filter.Genre)
	}
	if filter.ProducerID != 0 {
		query = query.Where("producer_id = ?", filter.ProducerID)
	}
	if filter.ExclusiveOnly {
		query = query.Where("is_exclusive = ?", true)
	}
	if filter.MaxPriceCents > 0 {
		query = query.Where("price_cents <= ?", filter.MaxPriceCents)
	}
	return query
}

// Update updates an existing beat in the database
func (r *beatRepository) Update(beat *models.Beat) error {
	return r.db.Save(beat).Error
}

// Delete soft deletes a beat by its ID
func (r *beatRepository) Delete(id uint) error {
	return r.db.Delete(&models.Beat{}, id).Error
}
