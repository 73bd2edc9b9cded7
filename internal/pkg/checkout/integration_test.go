package checkout

// These tests exercise the purchase path against a real MySQL because the
// behavior under test lives in the database: unique-index arbitration on
// beat_locks, the guarded status UPDATE and the duplicate-key convergence
// on checkout_session_id. They skip unless TEST_DATABASE_DSN points at a
// throwaway schema. The completion tests hold on both the stored-procedure
// path and the transactional fallback, so they pass whether or not the
// migrations ran against the test schema.

import (
	"context"
	"strconv"
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
	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/licensing"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/payments"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/sharecode"
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

	err = db.AutoMigrate(
		&models.User{},
		&models.Beat{},
		&models.License{},
		&models.BeatPurchase{},
		&models.BeatLock{},
		&models.Entitlement{},
	)
	require.NoError(t, err)

	return db
}

// Seeds create unique rows per call so tests can share one schema without
// truncating each other's data.

func seedUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	user := &models.User{
		Name:     "itest " + uuid.NewString()[:8],
		Email:    "itest-" + uuid.NewString() + "@beatmarkt.io",
		Password: "x",
		Role:     role,
		Status:   models.STATUS_ACTIVE,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedBeat(t *testing.T, db *gorm.DB, producerID uint, exclusive bool) *models.Beat {
	t.Helper()

	beat := &models.Beat{
		ProducerID:  producerID,
		Title:       "Integration Beat " + uuid.NewString()[:8],
		Genre:       "trap",
		BPM:         140,
		PriceCents:  49999,
		IsExclusive: exclusive,
		Status:      models.BeatStatusAvailable,
		AudioPath:   "beats/itest/full.wav",
		PreviewPath: "beats/itest/preview.mp3",
	}
	require.NoError(t, db.Create(beat).Error)
	return beat
}

func seedLicense(t *testing.T, db *gorm.DB, exclusiveAllowed bool) *models.License {
	t.Helper()

	price := int64(2999)
	if exclusiveAllowed {
		price = 49999
	}
	license := &models.License{
		Name:             "itest-lic-" + uuid.NewString()[:13],
		PriceCents:       price,
		ExclusiveAllowed: exclusiveAllowed,
		AllowWAV:         exclusiveAllowed,
		AllowStems:       exclusiveAllowed,
	}
	require.NoError(t, db.Create(license).Error)
	return license
}

func paidSession(beat *models.Beat, buyer *models.User, license *models.License) *payments.CheckoutSession {
	amount := license.PriceCents
	if beat.IsExclusive {
		amount = beat.PriceCents
	}
	return &payments.CheckoutSession{
		ID:                "cs_itest_" + uuid.NewString(),
		ClientReferenceID: strconv.FormatUint(uint64(buyer.ID), 10),
		PaymentIntent:     "pi_itest_" + uuid.NewString()[:8],
		PaymentStatus:     "paid",
		AmountTotal:       amount,
		Currency:          "eur",
		Metadata: map[string]string{
			payments.MetaBeatUUID:  beat.UUID,
			payments.MetaLicenseID: strconv.FormatUint(uint64(license.ID), 10),
			payments.MetaExclusive: strconv.FormatBool(beat.IsExclusive),
		},
	}
}

func TestLockManagerAcquireSingleWinner(t *testing.T) {
	db := resolveTestDB(t)
	locks := NewLockManager(db)

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	beat := seedBeat(t, db, producer.ID, true)

	const contenders = 6
	buyers := make([]*models.User, contenders)
	for i := range buyers {
		buyers[i] = seedUser(t, db, models.ROLE_USER)
	}

	var wg sync.WaitGroup
	winners := make(chan uint, contenders)
	failures := make(chan error, contenders)

	for _, buyer := range buyers {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			ref, err := sharecode.NewCheckoutRef()
			if err != nil {
				failures <- err
				return
			}
			_, err = locks.Acquire(beat.ID, userID, ref)
			switch {
			case err == nil:
				winners <- userID
			case errs.Is(err, errs.ErrLockHeld):
				// expected for everyone but the winner
			default:
				failures <- err
			}
		}(buyer.ID)
	}
	wg.Wait()
	close(winners)
	close(failures)

	for err := range failures {
		t.Errorf("unexpected acquire error: %v", err)
	}

	var winnerIDs []uint
	for id := range winners {
		winnerIDs = append(winnerIDs, id)
	}
	require.Len(t, winnerIDs, 1, "exactly one buyer must win the lock")

	var lock models.BeatLock
	require.NoError(t, db.Where("beat_id = ?", beat.ID).First(&lock).Error)
	assert.Equal(t, winnerIDs[0], lock.UserID)
	require.NotNil(t, lock.CheckoutSessionID)
	assert.True(t, sharecode.IsCheckoutRef(*lock.CheckoutSessionID),
		"a fresh lock must carry its provisional reference")

	var lockCount int64
	require.NoError(t, db.Model(&models.BeatLock{}).Where("beat_id = ?", beat.ID).Count(&lockCount).Error)
	assert.EqualValues(t, 1, lockCount)
}

func TestLockManagerReacquireRefreshesExistingLock(t *testing.T) {
	db := resolveTestDB(t)
	locks := NewLockManager(db)

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	buyer := seedUser(t, db, models.ROLE_USER)
	beat := seedBeat(t, db, producer.ID, true)

	ref, err := sharecode.NewCheckoutRef()
	require.NoError(t, err)
	first, err := locks.Acquire(beat.ID, buyer.ID, ref)
	require.NoError(t, err)

	// Same buyer retrying checkout gets the lock back and keeps the
	// original binding; no second row appears.
	otherRef, err := sharecode.NewCheckoutRef()
	require.NoError(t, err)
	again, err := locks.Acquire(beat.ID, buyer.ID, otherRef)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	require.NotNil(t, again.CheckoutSessionID)
	assert.Equal(t, ref, *again.CheckoutSessionID)
}

// countingCreator stands in for the payment processor and records how often
// a session create was attempted.
type countingCreator struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

// countingNotifier records which purchase ids were announced downstream.
type countingNotifier struct {
	mu  sync.Mutex
	ids []uint
}

func (n *countingNotifier) PurchaseCompletedAsync(purchaseID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, purchaseID)
}

func (n *countingNotifier) announced() []uint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint(nil), n.ids...)
}

func (c *countingCreator) CreateCheckoutSession(_ context.Context, in payments.CreateSessionInput) (*payments.CheckoutSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail {
		return nil, errs.New("processor unreachable")
	}
	id := "cs_itest_" + uuid.NewString()
	return &payments.CheckoutSession{
		ID:          id,
		URL:         "https://pay.beatmarkt.io/c/" + id,
		AmountTotal: in.AmountCents,
		Currency:    in.Currency,
	}, nil
}

func (c *countingCreator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestServiceStartHoldsLockBeforeSessionCreate(t *testing.T) {
	db := resolveTestDB(t)
	locks := NewLockManager(db)
	resolver := licensing.NewResolver(repository.NewLicenseRepository(db))

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	first := seedUser(t, db, models.ROLE_USER)
	second := seedUser(t, db, models.ROLE_USER)
	beat := seedBeat(t, db, producer.ID, true)
	license := seedLicense(t, db, true)

	creator := &countingCreator{}
	svc := NewService(db, locks, resolver, creator)

	res, err := svc.Start(context.Background(), StartInput{
		BuyerID:   first.ID,
		BeatUUID:  beat.UUID,
		LicenseID: license.ID,
	})
	require.NoError(t, err)
	require.True(t, res.Exclusive)
	assert.Equal(t, beat.PriceCents, res.AmountCents, "exclusive sales use the producer's asking price")
	assert.Equal(t, 1, creator.count())

	// The provisional reference is replaced by the real session id once the
	// processor call succeeded.
	var lock models.BeatLock
	require.NoError(t, db.Where("beat_id = ?", beat.ID).First(&lock).Error)
	require.NotNil(t, lock.CheckoutSessionID)
	assert.Equal(t, res.SessionID, *lock.CheckoutSessionID)

	// A second buyer is turned away before the processor is contacted.
	_, err = svc.Start(context.Background(), StartInput{
		BuyerID:   second.ID,
		BeatUUID:  beat.UUID,
		LicenseID: license.ID,
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrLockHeld))
	assert.Equal(t, 1, creator.count(), "no session may be created for a locked beat")
}

func TestServiceStartReleasesLockWhenSessionCreateFails(t *testing.T) {
	db := resolveTestDB(t)
	locks := NewLockManager(db)
	resolver := licensing.NewResolver(repository.NewLicenseRepository(db))

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	buyer := seedUser(t, db, models.ROLE_USER)
	beat := seedBeat(t, db, producer.ID, true)
	license := seedLicense(t, db, true)

	creator := &countingCreator{fail: true}
	svc := NewService(db, locks, resolver, creator)

	_, err := svc.Start(context.Background(), StartInput{
		BuyerID:   buyer.ID,
		BeatUUID:  beat.UUID,
		LicenseID: license.ID,
	})
	require.Error(t, err)

	var lockCount int64
	require.NoError(t, db.Model(&models.BeatLock{}).Where("beat_id = ?", beat.ID).Count(&lockCount).Error)
	assert.Zero(t, lockCount, "a failed session create must not leave the beat locked")

	// The beat is immediately retryable.
	creator.fail = false
	res, err := svc.Start(context.Background(), StartInput{
		BuyerID:   buyer.ID,
		BeatUUID:  beat.UUID,
		LicenseID: license.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
}

func TestOrchestratorCompleteReplaySameSession(t *testing.T) {
	db := resolveTestDB(t)
	locks := NewLockManager(db)
	resolver := licensing.NewResolver(repository.NewLicenseRepository(db))
	notifier := &countingNotifier{}
	orc := NewOrchestrator(db, resolver, nil, notifier)

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	buyer := seedUser(t, db, models.ROLE_USER)
	beat := seedBeat(t, db, producer.ID, true)
	license := seedLicense(t, db, true)

	ref, err := sharecode.NewCheckoutRef()
	require.NoError(t, err)
	_, err = locks.Acquire(beat.ID, buyer.ID, ref)
	require.NoError(t, err)

	session := paidSession(beat, buyer, license)

	first, err := orc.Complete(context.Background(), session)
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	assert.Equal(t, models.PurchaseStatusCompleted, first.Status)
	assert.Equal(t, session.ID, first.CheckoutSessionID)

	// Replaying the same session returns the purchase created the first
	// time instead of selling the beat twice.
	second, err := orc.Complete(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Only the first delivery announces the purchase downstream.
	assert.Equal(t, []uint{first.ID}, notifier.announced())

	var entitlements int64
	require.NoError(t, db.Model(&models.Entitlement{}).Where("purchase_id = ?", first.ID).Count(&entitlements).Error)
	assert.EqualValues(t, 1, entitlements)

	var sold models.Beat
	require.NoError(t, db.First(&sold, beat.ID).Error)
	assert.Equal(t, models.BeatStatusSold, sold.Status)

	var lockCount int64
	require.NoError(t, db.Model(&models.BeatLock{}).Where("beat_id = ?", beat.ID).Count(&lockCount).Error)
	assert.Zero(t, lockCount, "completion must consume the lock")
}

func TestOrchestratorCompleteConcurrentDeliveries(t *testing.T) {
	db := resolveTestDB(t)
	resolver := licensing.NewResolver(repository.NewLicenseRepository(db))
	orc := NewOrchestrator(db, resolver, nil, nil)

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	buyer := seedUser(t, db, models.ROLE_USER)
	beat := seedBeat(t, db, producer.ID, true)
	license := seedLicense(t, db, true)

	session := paidSession(beat, buyer, license)

	const deliveries = 4
	var wg sync.WaitGroup
	ids := make(chan uint, deliveries)
	failures := make(chan error, deliveries)

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			purchase, err := orc.Complete(context.Background(), session)
			if err != nil {
				failures <- err
				return
			}
			ids <- purchase.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(failures)

	// Every delivery must converge on the winner's purchase; none may error.
	for err := range failures {
		t.Errorf("concurrent completion failed: %v", err)
	}
	seen := make(map[uint]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 1, "all deliveries must report the same purchase")

	var purchases int64
	require.NoError(t, db.Model(&models.BeatPurchase{}).Where("checkout_session_id = ?", session.ID).Count(&purchases).Error)
	assert.EqualValues(t, 1, purchases)
}

func TestOrchestratorCompleteStandardKeepsBeatAvailable(t *testing.T) {
	db := resolveTestDB(t)
	resolver := licensing.NewResolver(repository.NewLicenseRepository(db))
	orc := NewOrchestrator(db, resolver, nil, nil)

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	beat := seedBeat(t, db, producer.ID, false)
	license := seedLicense(t, db, false)

	// Two different buyers license the same open beat through two sessions.
	for i := 0; i < 2; i++ {
		buyer := seedUser(t, db, models.ROLE_USER)
		purchase, err := orc.Complete(context.Background(), paidSession(beat, buyer, license))
		require.NoError(t, err)
		assert.Equal(t, license.PriceCents, purchase.AmountCents)
	}

	var current models.Beat
	require.NoError(t, db.First(&current, beat.ID).Error)
	assert.Equal(t, models.BeatStatusAvailable, current.Status, "non-exclusive sales must not close the listing")

	var purchases int64
	require.NoError(t, db.Model(&models.BeatPurchase{}).Where("beat_id = ?", beat.ID).Count(&purchases).Error)
	assert.EqualValues(t, 2, purchases)
}

func TestMarkRefundedRevokesGrantAndSurvivesReplay(t *testing.T) {
	db := resolveTestDB(t)
	resolver := licensing.NewResolver(repository.NewLicenseRepository(db))
	orc := NewOrchestrator(db, resolver, nil, nil)
	purchases := repository.NewPurchaseRepository(db)

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	buyer := seedUser(t, db, models.ROLE_USER)
	beat := seedBeat(t, db, producer.ID, false)
	license := seedLicense(t, db, false)

	session := paidSession(beat, buyer, license)
	purchase, err := orc.Complete(context.Background(), session)
	require.NoError(t, err)

	changed, err := purchases.MarkRefunded(purchase.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	var refunded models.BeatPurchase
	require.NoError(t, db.First(&refunded, purchase.ID).Error)
	assert.Equal(t, models.PurchaseStatusRefunded, refunded.Status)

	var entitlements int64
	require.NoError(t, db.Model(&models.Entitlement{}).Where("purchase_id = ?", purchase.ID).Count(&entitlements).Error)
	assert.Zero(t, entitlements, "refund must revoke the download grant")

	// The second refund finds no completed row to flip.
	changed, err = purchases.MarkRefunded(purchase.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	// A completion replay after the refund converges on the existing purchase
	// and must not bring the grant back.
	replayed, err := orc.Complete(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, purchase.ID, replayed.ID)

	require.NoError(t, db.Model(&models.Entitlement{}).Where("purchase_id = ?", purchase.ID).Count(&entitlements).Error)
	assert.Zero(t, entitlements)
}

func TestSweepAbandonedKeepsFreshLocks(t *testing.T) {
	db := resolveTestDB(t)
	locks := NewLockManager(db)

	producer := seedUser(t, db, models.ROLE_PRODUCER)
	buyer := seedUser(t, db, models.ROLE_USER)
	oldBeat := seedBeat(t, db, producer.ID, true)
	freshBeat := seedBeat(t, db, producer.ID, true)

	staleRef, err := sharecode.NewCheckoutRef()
	require.NoError(t, err)
	stale, err := locks.Acquire(oldBeat.ID, buyer.ID, staleRef)
	require.NoError(t, err)

	freshRef, err := sharecode.NewCheckoutRef()
	require.NoError(t, err)
	_, err = locks.Acquire(freshBeat.ID, buyer.ID, freshRef)
	require.NoError(t, err)

	// Backdate the first lock past the sweep window. UpdateColumn leaves
	// the autoUpdateTime hook out of it.
	backdated := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.BeatLock{}).Where("id = ?", stale.ID).UpdateColumn("updated_at", backdated).Error)

	swept, err := locks.SweepAbandoned(30 * time.Minute)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, swept, int64(1))

	var count int64
	require.NoError(t, db.Model(&models.BeatLock{}).Where("beat_id = ?", oldBeat.ID).Count(&count).Error)
	assert.Zero(t, count, "the abandoned lock must be gone")

	require.NoError(t, db.Model(&models.BeatLock{}).Where("beat_id = ?", freshBeat.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "an active checkout must survive the sweep")
}
