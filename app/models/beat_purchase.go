package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PurchaseStatusCompleted = "completed"
	PurchaseStatusRefunded  = "refunded"
)

// BeatPurchase records one completed sale. CheckoutSessionID carries a unique
// index so a replayed completion event can only ever map onto the same row;
// completion code treats a duplicate-key insert as "already completed" and
// returns the existing purchase.
//
// ContractEmailSentAt doubles as the send lease for the license contract
// email: NULL means never attempted, a timestamp pushed ~100 years into the
// future marks an in-flight claim, and a genuine near-present timestamp means
// the email went out. The column is DATETIME rather than TIMESTAMP so the
// century-out sentinel fits. See internal/pkg/contracts.
type BeatPurchase struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UUID                string     `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	BuyerID             uint       `gorm:"not null;index" json:"buyer_id"`
	Buyer               User       `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	BeatID              uint       `gorm:"not null;index" json:"beat_id"`
	Beat                Beat       `gorm:"foreignKey:BeatID" json:"beat,omitempty"`
	ProducerID          uint       `gorm:"not null;index" json:"producer_id"`
	LicenseID           uint       `gorm:"not null;index" json:"license_id"`
	License             License    `gorm:"foreignKey:LicenseID" json:"license,omitempty"`
	CheckoutSessionID   string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_beat_purchases_checkout_session" json:"checkout_session_id"`
	PaymentIntentID     string     `gorm:"type:varchar(191);index" json:"payment_intent_id"`
	AmountCents         int64      `gorm:"type:bigint;not null" json:"amount_cents"`
	Currency            string     `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	Status              string     `gorm:"type:varchar(20);not null;default:'completed';index" json:"status"`
	ContractPath        *string    `gorm:"type:varchar(255);default:null" json:"contract_path,omitempty"`
	ContractEmailSentAt *time.Time `gorm:"type:datetime;default:null" json:"contract_email_sent_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *BeatPurchase) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}
