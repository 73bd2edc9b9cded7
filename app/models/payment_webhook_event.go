package models

import "time"

// Payment provider constants used across payment-related models.
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderMollie = "mollie"
)

// PaymentWebhookEvent is the durable ledger row for one inbound processor
// event. The unique (provider, provider_event_id) pair is what makes webhook
// processing idempotent: inserts for a replayed event hit the index and are
// dropped. Only signature-verified events are ever written here.
type PaymentWebhookEvent struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Provider            string     `gorm:"type:varchar(20);not null;index:ux_payment_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID     string     `gorm:"type:varchar(191);not null;default:'';index:ux_payment_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType           string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON         string     `gorm:"type:longtext;not null" json:"payload_json"`
	Processed           bool       `gorm:"default:false;index" json:"processed"`
	ProcessingStartedAt *time.Time `gorm:"type:timestamp;default:null" json:"processing_started_at,omitempty"`
	ProcessingError     string     `gorm:"type:text" json:"processing_error"`
	CreatedAt           time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
