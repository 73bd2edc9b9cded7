package contracts

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

// The contract_email_sent_at column carries three states in one value:
//
//	NULL                     nothing sent, claimable
//	claim time + 100 years   send in flight (any year >= 2100)
//	a near-present time      sent, done
//
// Shifting the claim time a century out keeps it trivially separable from
// genuine send times while still recording when the claim was taken.
const sentinelYears = 100

// DefaultEmailLeaseTimeout is how long a claim may stay in flight before it
// counts as dead and becomes claimable again.
const DefaultEmailLeaseTimeout = 5 * time.Minute

var sentinelFloor = time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC)

func sentinelFor(claimedAt time.Time) time.Time {
	return claimedAt.AddDate(sentinelYears, 0, 0)
}

func isSentinel(t time.Time) bool {
	return !t.Before(sentinelFloor)
}

func claimTime(sentinel time.Time) time.Time {
	return sentinel.AddDate(-sentinelYears, 0, 0)
}

// EmailLease serializes contract email delivery per purchase. Claim is a
// single conditional UPDATE, so two workers racing on the same purchase
// cannot both win.
type EmailLease struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

// NewEmailLease creates a lease on beat_purchases.contract_email_sent_at.
func NewEmailLease(db *gorm.DB, timeout time.Duration) *EmailLease {
	if timeout <= 0 {
		timeout = DefaultEmailLeaseTimeout
	}
	return &EmailLease{db: db, timeout: timeout, now: time.Now}
}

// Claim takes the send lease for one purchase. It succeeds when the column
// is NULL or holds a sentinel whose claim time is older than the timeout.
// A genuine send time never matches, so a sent mail is final.
func (l *EmailLease) Claim(purchaseID uint) (bool, error) {
	now := l.now()
	staleBefore := sentinelFor(now.Add(-l.timeout))

	res := l.db.Model(&models.BeatPurchase{}).
		Where("id = ?", purchaseID).
		Where("contract_email_sent_at IS NULL OR (contract_email_sent_at >= ? AND contract_email_sent_at < ?)",
			sentinelFloor, staleBefore).
		Update("contract_email_sent_at", sentinelFor(now))
	if res.Error != nil {
		return false, errs.Wrap(res.Error, "claim contract email lease")
	}
	return res.RowsAffected > 0, nil
}

// MarkSent finalizes the lease with the real send time. Only a sentinel can
// transition to sent; if the claim was reclaimed in the meantime the update
// is dropped and logged rather than faking a send someone else now owns.
func (l *EmailLease) MarkSent(purchaseID uint) error {
	res := l.db.Model(&models.BeatPurchase{}).
		Where("id = ? AND contract_email_sent_at >= ?", purchaseID, sentinelFloor).
		Update("contract_email_sent_at", l.now())
	if res.Error != nil {
		return errs.Wrap(res.Error, "mark contract email sent")
	}
	if res.RowsAffected == 0 {
		log.Warnf("[Contracts] Lease on purchase %d was reclaimed before the send could be recorded", purchaseID)
	}
	return nil
}

// MarkFailed releases the lease after a failed send so the next attempt can
// claim again immediately.
func (l *EmailLease) MarkFailed(purchaseID uint) error {
	res := l.db.Model(&models.BeatPurchase{}).
		Where("id = ? AND contract_email_sent_at >= ?", purchaseID, sentinelFloor).
		Update("contract_email_sent_at", nil)
	if res.Error != nil {
		return errs.Wrap(res.Error, "release contract email lease")
	}
	return nil
}

// RecoverStale resets every lease whose claim died mid-send and returns the
// affected purchase ids so the caller can enqueue fresh delivery jobs.
func (l *EmailLease) RecoverStale() ([]uint, error) {
	staleBefore := sentinelFor(l.now().Add(-l.timeout))

	var ids []uint
	err := l.db.Model(&models.BeatPurchase{}).
		Where("contract_email_sent_at >= ? AND contract_email_sent_at < ?", sentinelFloor, staleBefore).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errs.Wrap(err, "find stale contract email leases")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	res := l.db.Model(&models.BeatPurchase{}).
		Where("id IN ? AND contract_email_sent_at >= ? AND contract_email_sent_at < ?", ids, sentinelFloor, staleBefore).
		Update("contract_email_sent_at", nil)
	if res.Error != nil {
		return nil, errs.Wrap(res.Error, "reset stale contract email leases")
	}

	log.Infof("[Contracts] Recovered %d stale contract email leases", res.RowsAffected)
	return ids, nil
}
