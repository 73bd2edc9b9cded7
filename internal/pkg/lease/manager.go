// Package lease implements a database-backed processing lease: a claim that
// at most one worker holds per row, taken and released with single UPDATE
// statements so there is no read-then-write window. Rows opt in by carrying
// a nullable claim timestamp, a done flag and an error column.
package lease

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

// DefaultTimeout is how long a claim protects a row before other workers may
// assume the holder died and reclaim it.
const DefaultTimeout = 5 * time.Minute

// Config describes the table a Manager operates on.
type Config struct {
	// Table is the SQL table name.
	Table string
	// ClaimColumn is a nullable timestamp, NULL when unclaimed.
	ClaimColumn string
	// DoneColumn is a bool; once true the row is never claimable again.
	DoneColumn string
	// ErrorColumn stores the last processing error text. Optional.
	ErrorColumn string
	// Timeout after which a stale claim is reclaimable. Zero means
	// DefaultTimeout.
	Timeout time.Duration
}

// Manager hands out and releases claims on one table.
type Manager struct {
	db  *gorm.DB
	cfg Config
	now func() time.Time
}

// NewManager validates the config and builds a Manager.
func NewManager(db *gorm.DB, cfg Config) (*Manager, error) {
	if cfg.Table == "" || cfg.ClaimColumn == "" || cfg.DoneColumn == "" {
		return nil, errs.New("lease config needs table, claim and done columns")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Manager{db: db, cfg: cfg, now: time.Now}, nil
}

// Claim tries to take the lease on one row. It returns true only when this
// call's UPDATE actually set the claim timestamp; false means the row is
// done, freshly claimed by someone else, or missing. All three are normal
// outcomes, not errors.
//
// The WHERE clause is the entire mutual exclusion argument: the row must be
// unclaimed or its claim must be older than the timeout, and it must not be
// done. Racing claimants run the same UPDATE and the database serializes
// them; exactly one sees RowsAffected == 1.
func (m *Manager) Claim(id uint) (bool, error) {
	now := m.now()
	cond, args := m.claimConds(now)
	res := m.db.Table(m.cfg.Table).
		Where("id = ?", id).
		Where(cond, args...).
		Update(m.cfg.ClaimColumn, now)
	if res.Error != nil {
		return false, errs.Wrap(res.Error, "claim lease")
	}
	return res.RowsAffected > 0, nil
}

// Release gives the claim back. done=true finalizes the row so it can never
// be claimed again; done=false leaves it claimable for redelivery. The error
// text is stored either way (empty on clean success), so the row always
// shows its most recent outcome.
func (m *Manager) Release(id uint, done bool, procErr error) error {
	updates := map[string]interface{}{
		m.cfg.ClaimColumn: nil,
	}
	if done {
		updates[m.cfg.DoneColumn] = true
	}
	if m.cfg.ErrorColumn != "" {
		msg := ""
		if procErr != nil {
			msg = procErr.Error()
		}
		updates[m.cfg.ErrorColumn] = msg
	}
	res := m.db.Table(m.cfg.Table).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errs.Wrap(res.Error, "release lease")
	}
	if res.RowsAffected == 0 {
		return errs.Newf("release lease: row %d not found", id)
	}
	return nil
}

// Timeout returns the effective staleness window.
func (m *Manager) Timeout() time.Duration {
	return m.cfg.Timeout
}

func (m *Manager) claimConds(now time.Time) (string, []interface{}) {
	cutoff := now.Add(-m.cfg.Timeout)
	cond := fmt.Sprintf("%s = ? AND (%s IS NULL OR %s < ?)",
		m.cfg.DoneColumn, m.cfg.ClaimColumn, m.cfg.ClaimColumn)
	return cond, []interface{}{false, cutoff}
}
