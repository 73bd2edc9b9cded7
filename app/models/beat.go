package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/sharecode"
)

const (
	BeatStatusAvailable = "available"
	BeatStatusSold      = "sold"
	BeatStatusArchived  = "archived"
)

// Beat is a producer's listing. Exclusive beats can be sold exactly once;
// Status flips to "sold" inside the purchase completion transaction and is
// never set back by webhook processing.
type Beat struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UUID         string `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	ProducerID   uint   `gorm:"not null;index" json:"producer_id"`
	Producer     User   `gorm:"foreignKey:ProducerID" json:"producer,omitempty"`
	Title        string `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=1,max=255"`
	Genre        string `gorm:"type:varchar(100);index" json:"genre"`
	BPM          int    `gorm:"type:int" json:"bpm" validate:"omitempty,min=20,max=300"`
	KeySignature string `gorm:"type:varchar(10)" json:"key_signature"`
	PriceCents   int64  `gorm:"type:bigint;not null" json:"price_cents" validate:"min=0"`
	IsExclusive  bool   `gorm:"default:false;index" json:"is_exclusive"`
	Status       string `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	// stored objects
	AudioPath    string `gorm:"type:varchar(255);not null" json:"-"`
	PreviewPath  string `gorm:"type:varchar(255)" json:"preview_path"`
	CoverPath    string `gorm:"type:varchar(255)" json:"cover_path"`
	DurationSecs int    `gorm:"type:int" json:"duration_secs"`
	// counters
	PlayCount     int `gorm:"default:0" json:"play_count"`
	DownloadCount int `gorm:"default:0" json:"download_count"`
	// derived, not stored
	ShareCode string `gorm:"-" json:"share_code,omitempty"`
	// bookkeeping
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Beat) Validate() error {
	v := validator.New()

	return v.Struct(b)
}

func (b *Beat) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == "" {
		b.UUID = uuid.New().String()
	}
	return nil
}

// AfterFind derives the short share code so every loaded beat carries it.
func (b *Beat) AfterFind(tx *gorm.DB) error {
	b.ShareCode = sharecode.ForBeat(b.ID)
	return nil
}

// IsAvailable reports whether the beat can still be purchased.
func (b *Beat) IsAvailable() bool {
	return b.Status == BeatStatusAvailable
}

// FindBeatByUUID looks a beat up by its public identifier.
func FindBeatByUUID(db *gorm.DB, uuid string) (*Beat, error) {
	var beat Beat
	result := db.Where("uuid = ?", uuid).First(&beat)
	return &beat, result.Error
}
