package contracts

// The lease lives entirely in one DATETIME column, so these tests need a
// real MySQL to mean anything. They skip unless TEST_DATABASE_DSN points at
// a throwaway schema. Staleness is simulated by moving the lease clock, not
// by sleeping.

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
)

func resolveTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := env.GetEnv("TEST_DATABASE_DSN", "")
	if dsn == "" {
		t.Skip("Skipping MySQL-dependent test: TEST_DATABASE_DSN is not set")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping MySQL-dependent test: cannot connect (%v)", err)
	}

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Beat{},
		&models.License{},
		&models.BeatPurchase{},
	))
	return db
}

func seedPurchase(t *testing.T, db *gorm.DB) *models.BeatPurchase {
	t.Helper()

	user := &models.User{
		Name:     "lease itest " + uuid.NewString()[:8],
		Email:    "lease-" + uuid.NewString() + "@beatmarkt.io",
		Password: "x",
		Role:     models.ROLE_PRODUCER,
		Status:   models.STATUS_ACTIVE,
	}
	require.NoError(t, db.Create(user).Error)

	beat := &models.Beat{
		ProducerID: user.ID,
		Title:      "Lease Beat " + uuid.NewString()[:8],
		PriceCents: 2999,
		Status:     models.BeatStatusSold,
		AudioPath:  "beats/itest/full.wav",
	}
	require.NoError(t, db.Create(beat).Error)

	license := &models.License{
		Name:       "lease-lic-" + uuid.NewString()[:13],
		PriceCents: 2999,
	}
	require.NoError(t, db.Create(license).Error)

	purchase := &models.BeatPurchase{
		BuyerID:           user.ID,
		BeatID:            beat.ID,
		ProducerID:        user.ID,
		LicenseID:         license.ID,
		CheckoutSessionID: "cs_lease_" + uuid.NewString(),
		AmountCents:       2999,
		Currency:          "eur",
		Status:            models.PurchaseStatusCompleted,
	}
	require.NoError(t, db.Create(purchase).Error)
	return purchase
}

func reloadSentAt(t *testing.T, db *gorm.DB, purchaseID uint) *time.Time {
	t.Helper()

	var purchase models.BeatPurchase
	require.NoError(t, db.First(&purchase, purchaseID).Error)
	return purchase.ContractEmailSentAt
}

func TestEmailLeaseClaimLifecycle(t *testing.T) {
	db := resolveTestDB(t)
	lease := NewEmailLease(db, 5*time.Minute)
	purchase := seedPurchase(t, db)

	ok, err := lease.Claim(purchase.ID)
	require.NoError(t, err)
	require.True(t, ok)

	claimed := reloadSentAt(t, db, purchase.ID)
	require.NotNil(t, claimed)
	assert.True(t, isSentinel(*claimed), "an in-flight claim is a century-out timestamp, got %v", *claimed)
	assert.GreaterOrEqual(t, claimed.Year(), 2100)

	// In flight and not stale: nobody else can claim.
	ok, err = lease.Claim(purchase.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lease.MarkSent(purchase.ID))
	sent := reloadSentAt(t, db, purchase.ID)
	require.NotNil(t, sent)
	assert.False(t, isSentinel(*sent), "the recorded send time must be a genuine timestamp, got %v", *sent)

	// Sent is final; no timeout ever reopens it.
	ok, err = lease.Claim(purchase.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmailLeaseMarkFailedReleases(t *testing.T) {
	db := resolveTestDB(t)
	lease := NewEmailLease(db, 5*time.Minute)
	purchase := seedPurchase(t, db)

	ok, err := lease.Claim(purchase.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lease.MarkFailed(purchase.ID))
	assert.Nil(t, reloadSentAt(t, db, purchase.ID))

	ok, err = lease.Claim(purchase.ID)
	require.NoError(t, err)
	assert.True(t, ok, "a released lease must be claimable again")
}

func TestEmailLeaseStaleClaimRecovery(t *testing.T) {
	db := resolveTestDB(t)
	lease := NewEmailLease(db, 5*time.Minute)
	purchase := seedPurchase(t, db)

	ok, err := lease.Claim(purchase.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// The worker died mid-send: move the lease clock past the timeout.
	lease.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	ids, err := lease.RecoverStale()
	require.NoError(t, err)
	assert.Contains(t, ids, purchase.ID)
	assert.Nil(t, reloadSentAt(t, db, purchase.ID))

	// MarkSent from the dead worker arriving late finds no sentinel and
	// must not fake a send.
	require.NoError(t, lease.MarkSent(purchase.ID))
	assert.Nil(t, reloadSentAt(t, db, purchase.ID))

	ok, err = lease.Claim(purchase.ID)
	require.NoError(t, err)
	assert.True(t, ok, "a recovered lease must be claimable again")
}

func TestEmailLeaseClaimSingleWinner(t *testing.T) {
	db := resolveTestDB(t)
	lease := NewEmailLease(db, 5*time.Minute)
	purchase := seedPurchase(t, db)

	const workers = 5
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	failures := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := lease.Claim(purchase.ID)
			if err != nil {
				failures <- err
				return
			}
			if ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	close(failures)

	for err := range failures {
		t.Errorf("claim failed: %v", err)
	}
	winCount := 0
	for range wins {
		winCount++
	}
	assert.Equal(t, 1, winCount, "exactly one worker may win the send lease")
}
