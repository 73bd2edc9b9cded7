// Package checkout owns the purchase path: the exclusive beat lock taken
// before a checkout session exists, and the completion flow that turns a
// paid session into a purchase, an entitlement and a sold beat.
package checkout

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/sharecode"
)

// DefaultLockMaxAge is how long an untouched lock survives before the
// sweeper assumes the buyer walked away.
const DefaultLockMaxAge = 30 * time.Minute

// LockManager guards exclusive beats during checkout. The beat_locks unique
// index on beat_id does the actual arbitration; this type just wraps the
// insert, the session binding and the sweep.
type LockManager struct {
	db *gorm.DB
}

// NewLockManager creates a lock manager on the given DB handle.
func NewLockManager(db *gorm.DB) *LockManager {
	return &LockManager{db: db}
}

// Acquire takes the lock on a beat for one buyer. provisionalRef is stored
// as the session binding until BindSession swaps in the real processor
// session id. Taking a lock the same buyer already holds refreshes it and
// succeeds; a lock held by anyone else returns ErrLockHeld. The decision is
// made by the unique-index insert, not by a prior read.
func (m *LockManager) Acquire(beatID, userID uint, provisionalRef string) (*models.BeatLock, error) {
	lock := newLock(beatID, userID, provisionalRef)
	err := m.db.Create(lock).Error
	if err == nil {
		return lock, nil
	}
	if !isDuplicateKey(err) {
		return nil, errs.Wrap(err, "acquire beat lock")
	}

	var existing models.BeatLock
	if err := m.db.Where("beat_id = ?", beatID).First(&existing).Error; err != nil {
		// Lost a race with a release; one retry via the same insert.
		if errs.Is(err, gorm.ErrRecordNotFound) {
			retry := newLock(beatID, userID, provisionalRef)
			if rerr := m.db.Create(retry).Error; rerr == nil {
				return retry, nil
			}
			return nil, errs.Mark(errs.Newf("beat %d contested", beatID), errs.ErrLockHeld)
		}
		return nil, errs.Wrap(err, "load beat lock")
	}
	if existing.UserID != userID {
		return nil, errs.Mark(errs.Newf("beat %d locked by user %d", beatID, existing.UserID), errs.ErrLockHeld)
	}

	// Same buyer retrying checkout: refresh the lock instead of failing. The
	// existing session binding stays; a bound processor session is still the
	// one the buyer will be sent back to.
	if err := m.db.Model(&existing).Update("updated_at", time.Now()).Error; err != nil {
		return nil, errs.Wrap(err, "refresh beat lock")
	}
	return &existing, nil
}

func newLock(beatID, userID uint, provisionalRef string) *models.BeatLock {
	lock := &models.BeatLock{BeatID: beatID, UserID: userID}
	if provisionalRef != "" {
		lock.CheckoutSessionID = &provisionalRef
	}
	return lock
}

// BindSession attaches the checkout session id to an already-held lock so
// the completion path and the sweeper can tell bound locks from abandoned
// ones. Provisional references are refused; binding one would leave the
// lock invisible to ReleaseBySession when the processor reports expiry.
func (m *LockManager) BindSession(beatID, userID uint, sessionID string) error {
	if sharecode.IsCheckoutRef(sessionID) {
		return errs.Newf("session id %s is a provisional reference", sessionID)
	}
	res := m.db.Model(&models.BeatLock{}).
		Where("beat_id = ? AND user_id = ?", beatID, userID).
		Updates(map[string]interface{}{
			"checkout_session_id": sessionID,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return errs.Wrap(res.Error, "bind session to beat lock")
	}
	if res.RowsAffected == 0 {
		return errs.Newf("no lock held on beat %d by user %d", beatID, userID)
	}
	return nil
}

// Release drops the lock a buyer holds on a beat. Releasing a lock that is
// gone (already swept, or consumed by completion) is a no-op.
func (m *LockManager) Release(beatID, userID uint) error {
	err := m.db.Where("beat_id = ? AND user_id = ?", beatID, userID).
		Delete(&models.BeatLock{}).Error
	if err != nil {
		return errs.Wrap(err, "release beat lock")
	}
	return nil
}

// ReleaseBySession drops the lock bound to a checkout session, used when the
// processor reports the session expired.
func (m *LockManager) ReleaseBySession(sessionID string) error {
	err := m.db.Where("checkout_session_id = ?", sessionID).
		Delete(&models.BeatLock{}).Error
	if err != nil {
		return errs.Wrap(err, "release beat lock by session")
	}
	return nil
}

// SweepAbandoned deletes locks that have not been touched within maxAge.
// Completion deletes its lock inside the purchase transaction, so anything
// this old belongs to a checkout that went nowhere.
func (m *LockManager) SweepAbandoned(maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = DefaultLockMaxAge
	}
	cutoff := time.Now().Add(-maxAge)
	res := m.db.Where("updated_at < ?", cutoff).Delete(&models.BeatLock{})
	if res.Error != nil {
		return 0, errs.Wrap(res.Error, "sweep abandoned beat locks")
	}
	if res.RowsAffected > 0 {
		log.Infof("[Checkout] Swept %d abandoned beat locks older than %s", res.RowsAffected, maxAge)
	}
	return res.RowsAffected, nil
}
