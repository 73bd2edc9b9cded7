package models

import "time"

// BeatLock reserves an exclusive beat for one buyer during checkout. The
// unique index on BeatID is the whole locking mechanism: whoever inserts
// first holds the lock, every later insert fails on the index.
// CheckoutSessionID starts as a provisional "ref_..." value and is replaced
// by the processor session id once that exists; a lock still carrying its
// provisional reference is a buyer who never reached the payment page, and
// the sweeper removes those after a configurable inactivity window.
type BeatLock struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	BeatID            uint      `gorm:"not null;uniqueIndex:ux_beat_locks_beat" json:"beat_id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	CheckoutSessionID *string   `gorm:"type:varchar(191);default:null;index" json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}
