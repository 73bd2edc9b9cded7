package payments

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// Repository provides DB operations for the webhook event ledger.
type Repository interface {
	CreateEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkEventProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateEventIfNotExists inserts the ledger row unless the unique
// (provider, provider_event_id) pair already exists. The insert itself is
// the idempotency check: RowsAffected == 0 means a replay. The stored row is
// re-read either way so callers always see the canonical record.
func (r *gormRepository) CreateEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// MarkEventProcessed finalizes an event outside the lease path: processed is
// set, any claim timestamp is cleared, and the error text (possibly empty)
// is stored.
func (r *gormRepository) MarkEventProcessed(id uint, processingError string) error {
	updates := map[string]interface{}{
		"processed":             true,
		"processing_started_at": nil,
		"processing_error":      processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
