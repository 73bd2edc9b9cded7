package models

import "time"

// Legacy license type names still sent by older storefront clients. The
// resolver maps them onto catalog rows via License.LegacyType.
const (
	LicenseTypeMP3Lease  = "mp3_lease"
	LicenseTypeWAVLease  = "wav_lease"
	LicenseTypeTrackout  = "trackout"
	LicenseTypeExclusive = "exclusive"
)

// LicenseNameStandard is the catalog name the resolver falls back to for
// non-exclusive purchases when nothing else matches.
const LicenseNameStandard = "standard"

// License is an immutable catalog row describing usage terms sold with a
// beat. Rows are seeded by migration and never mutated by request handlers.
type License struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	LegacyType       string    `gorm:"type:varchar(50);index;default:''" json:"legacy_type"`
	PriceCents       int64     `gorm:"type:bigint;not null" json:"price_cents"`
	ExclusiveAllowed bool      `gorm:"default:false;index" json:"exclusive_allowed"`
	MaxStreams       int64     `gorm:"type:bigint;default:0" json:"max_streams"`
	MaxCopies        int64     `gorm:"type:bigint;default:0" json:"max_copies"`
	AllowWAV         bool      `gorm:"default:false" json:"allow_wav"`
	AllowStems       bool      `gorm:"default:false" json:"allow_stems"`
	TermsURL         string    `gorm:"type:varchar(255)" json:"terms_url"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Unlimited reports whether the license carries no stream/copy caps.
func (l *License) Unlimited() bool {
	return l.MaxStreams == 0 && l.MaxCopies == 0
}
