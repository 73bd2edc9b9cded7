package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// BeatRepository defines the interface for beat catalog operations
type BeatRepository interface {
	Create(beat *models.Beat) error
	GetByID(id uint) (*models.Beat, error)
	GetByUUID(uuid string) (*models.Beat, error)
	GetByProducerID(producerID uint, offset, limit int) ([]models.Beat, error)
	ListAvailable(filter BeatFilter, offset, limit int) ([]models.Beat, error)
	CountAvailable(filter BeatFilter) (int64, error)
	Update(beat *models.Beat) error
	Delete(id uint) error
}

// LicenseRepository defines the interface for the license catalog
type LicenseRepository interface {
	GetByID(id uint) (*models.License, error)
	GetByName(name string) (*models.License, error)
	GetByLegacyType(legacyType string) (*models.License, error)
	GetDefaultExclusive() (*models.License, error)
	GetOldest() (*models.License, error)
	List() ([]models.License, error)
}

// PurchaseRepository defines the interface for completed-sale records
type PurchaseRepository interface {
	GetByID(id uint) (*models.BeatPurchase, error)
	GetByUUID(uuid string) (*models.BeatPurchase, error)
	GetByCheckoutSessionID(sessionID string) (*models.BeatPurchase, error)
	ListByBuyer(buyerID uint, offset, limit int) ([]models.BeatPurchase, error)
	ListByProducer(producerID uint, offset, limit int) ([]models.BeatPurchase, error)
	SumCompletedByProducer(producerID uint) (int64, error)
	CountCompletedByProducer(producerID uint) (int64, error)
	DailySalesByProducer(producerID uint, startDate, endDate time.Time) ([]DailySales, error)
	TopBeatsByProducer(producerID uint, limit int) ([]BeatSales, error)
	MarkRefunded(purchaseID uint) (bool, error)
}

// EntitlementRepository defines the interface for download-access grants
type EntitlementRepository interface {
	GetByUserAndBeat(userID, beatID uint) (*models.Entitlement, error)
	ListByUser(userID uint) ([]models.Entitlement, error)
}

// BeatFilter narrows catalog listings.
type BeatFilter struct {
	Genre         string
	ProducerID    uint
	ExclusiveOnly bool
	MaxPriceCents int64
}

// DailySales is one day of a producer's completed sales.
type DailySales struct {
	Date       time.Time
	SaleCount  int64
	TotalCents int64
}

// BeatSales aggregates a single beat's completed sales.
type BeatSales struct {
	BeatID     uint
	BeatUUID   string
	Title      string
	SaleCount  int64
	TotalCents int64
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	Beat        BeatRepository
	License     LicenseRepository
	Purchase    PurchaseRepository
	Entitlement EntitlementRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Beat:        NewBeatRepository(db),
		License:     NewLicenseRepository(db),
		Purchase:    NewPurchaseRepository(db),
		Entitlement: NewEntitlementRepository(db),
	}
}
