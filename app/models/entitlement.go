package models

import "time"

// Entitlement is the download-access grant created by a completed purchase.
// PurchaseID is unique so a purchase can grant access at most once no matter
// how often its completion event is replayed.
type Entitlement struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index:idx_entitlements_user_beat,priority:1" json:"user_id"`
	BeatID     uint      `gorm:"not null;index:idx_entitlements_user_beat,priority:2" json:"beat_id"`
	LicenseID  uint      `gorm:"not null" json:"license_id"`
	License    License   `gorm:"foreignKey:LicenseID" json:"license,omitempty"`
	PurchaseID uint      `gorm:"not null;uniqueIndex:ux_entitlements_purchase" json:"purchase_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
