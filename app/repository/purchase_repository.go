package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// purchaseRepository implements the PurchaseRepository interface
type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new purchase repository instance
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// GetByID retrieves a purchase by its ID
func (r *purchaseRepository) GetByID(id uint) (*models.BeatPurchase, error) {
	var purchase models.BeatPurchase
	err := r.db.Preload("Beat").Preload("License").First(&purchase, id).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// GetByUUID retrieves a purchase by its public UUID
func (r *purchaseRepository) GetByUUID(uuid string) (*models.BeatPurchase, error) {
	var purchase models.BeatPurchase
	err := r.db.Preload("Beat").Preload("License").Where("uuid = ?", uuid).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// GetByCheckoutSessionID retrieves the purchase created for a checkout session
func (r *purchaseRepository) GetByCheckoutSessionID(sessionID string) (*models.BeatPurchase, error) {
	var purchase models.BeatPurchase
	err := r.db.Where("checkout_session_id = ?", sessionID).First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ListByBuyer retrieves a buyer's purchases, newest first
func (r *purchaseRepository) ListByBuyer(buyerID uint, offset, limit int) ([]models.BeatPurchase, error) {
	var purchases []models.BeatPurchase
	err := r.db.Preload("Beat").Preload("License").Where("buyer_id = ?", buyerID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&purchases).Error
	return purchases, err
}

// ListByProducer retrieves sales of a producer's beats, newest first
func (r *purchaseRepository) ListByProducer(producerID uint, offset, limit int) ([]models.BeatPurchase, error) {
	var purchases []models.BeatPurchase
	err := r.db.Preload("Beat").Preload("License").Where("producer_id = ?", producerID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&purchases).Error
	return purchases, err
}

// SumCompletedByProducer returns the gross completed revenue for a producer in cents
func (r *purchaseRepository) SumCompletedByProducer(producerID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.BeatPurchase{}).
		Where("producer_id = ? AND status = ?", producerID, models.PurchaseStatusCompleted).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&total).Error
	return total, err
}

// DailySalesByProducer aggregates completed sales per day for the given range
func (r *purchaseRepository) DailySalesByProducer(producerID uint, startDate, endDate time.Time) ([]DailySales, error) {
	var rows []DailySales
	err := r.db.Model(&models.BeatPurchase{}).
		Select("DATE(created_at) as date, COUNT(*) as sale_count, COALESCE(SUM(amount_cents), 0) as total_cents").
		Where("producer_id = ? AND status = ? AND created_at BETWEEN ? AND ?",
			producerID, models.PurchaseStatusCompleted, startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&rows).Error
	return rows, err
}

// TopBeatsByProducer aggregates completed sales per beat, best sellers first
func (r *purchaseRepository) TopBeatsByProducer(producerID uint, limit int) ([]BeatSales, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []BeatSales
	err := r.db.Model(&models.BeatPurchase{}).
		Select("beat_purchases.beat_id, beats.uuid as beat_uuid, beats.title, COUNT(*) as sale_count, COALESCE(SUM(beat_purchases.amount_cents), 0) as total_cents").
		Joins("JOIN beats ON beats.id = beat_purchases.beat_id").
		Where("beat_purchases.producer_id = ? AND beat_purchases.status = ?", producerID, models.PurchaseStatusCompleted).
		Group("beat_purchases.beat_id, beats.uuid, beats.title").
		Order("total_cents DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// CountCompletedByProducer returns the number of completed sales for a producer
func (r *purchaseRepository) CountCompletedByProducer(producerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.BeatPurchase{}).
		Where("producer_id = ? AND status = ?", producerID, models.PurchaseStatusCompleted).
		Count(&count).Error
	return count, err
}

// MarkRefunded flips a completed purchase to refunded and removes its download
// grant in the same transaction. The status flip is guarded so two concurrent
// refund calls converge: only the one whose UPDATE matched deletes the
// entitlement and reports changed.
func (r *purchaseRepository) MarkRefunded(purchaseID uint) (bool, error) {
	var changed bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BeatPurchase{}).
			Where("id = ? AND status = ?", purchaseID, models.PurchaseStatusCompleted).
			Update("status", models.PurchaseStatusRefunded)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		if !changed {
			return nil
		}
		return tx.Where("purchase_id = ?", purchaseID).Delete(&models.Entitlement{}).Error
	})
	return changed, err
}
