package models

import "time"

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusUnpaid     = "unpaid"
)

// BillingSubscription mirrors the processor-side subscription state for one
// account. There is exactly one row per user (unique UserID); every sync
// upserts that row and recomputes Active from scratch, so a stale Active flag
// cannot survive the next event.
type BillingSubscription struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"not null;uniqueIndex:ux_billing_subscriptions_user" json:"user_id"`
	BillingCustomerID     string     `gorm:"type:varchar(191);not null;index" json:"billing_customer_id"`
	BillingSubscriptionID string     `gorm:"type:varchar(191);not null;index" json:"billing_subscription_id"`
	Status                string     `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	Active                bool       `gorm:"default:false;index" json:"active"`
	CancelAtPeriodEnd     bool       `gorm:"default:false" json:"cancel_at_period_end"`
	RawPayloadJSON        string     `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ActiveStatus reports whether a raw processor status counts as entitling.
// Everything outside active/trialing (past_due, canceled, ...) does not.
func ActiveStatus(status string) bool {
	return status == SubscriptionStatusActive || status == SubscriptionStatusTrialing
}

// TerminalStatus reports whether a status is final. The processor never moves
// a subscription out of canceled or unpaid by itself; leaving either state
// arrives as a fresh subscription event, not as an invoice echo.
func TerminalStatus(status string) bool {
	return status == SubscriptionStatusCanceled || status == SubscriptionStatusUnpaid
}
