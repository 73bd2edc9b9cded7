package checkout

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/licensing"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/payments"
)

// signalBeatUnavailable is the MESSAGE_TEXT the completion procedure raises
// when the beat is no longer sellable. Must match the migration.
const signalBeatUnavailable = "beat_unavailable"

// SessionFetcher re-fetches checkout sessions whose webhook payload is
// incomplete. *payments.Client satisfies it.
type SessionFetcher interface {
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*payments.CheckoutSession, error)
}

// CompletionNotifier is told about every newly completed purchase. The
// implementation must not block and must never fail the caller.
type CompletionNotifier interface {
	PurchaseCompletedAsync(purchaseID uint)
}

// Orchestrator turns a paid checkout session into a purchase, an
// entitlement, a sold beat and a released lock, all in one atomic step.
type Orchestrator struct {
	db       *gorm.DB
	resolver *licensing.Resolver
	fetcher  SessionFetcher
	notifier CompletionNotifier
}

// NewOrchestrator wires the completion flow. fetcher and notifier may be nil
// in tests or degraded configurations.
func NewOrchestrator(db *gorm.DB, resolver *licensing.Resolver, fetcher SessionFetcher, notifier CompletionNotifier) *Orchestrator {
	return &Orchestrator{db: db, resolver: resolver, fetcher: fetcher, notifier: notifier}
}

// Complete processes one paid checkout session. Calling it again with the
// same session returns the purchase created the first time; the unique index
// on checkout_session_id backs that up even under races.
//
// The preferred path is a single stored-procedure call covering every row
// touched by a sale. When the procedure is missing (database behind the
// binary during a rollout) the flow falls back to equivalent Go
// transactions, one per exclusivity mode.
func (o *Orchestrator) Complete(ctx context.Context, session *payments.CheckoutSession) (*models.BeatPurchase, error) {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return nil, errs.Mark(errs.New("completion without session id"), errs.ErrMissingEventData)
	}

	if existing, err := o.findBySession(session.ID); err != nil {
		return nil, err
	} else if existing != nil {
		log.Infof("[Checkout] Session %s already completed as purchase %d", session.ID, existing.ID)
		return existing, nil
	}

	session, err := o.ensureSessionData(ctx, session)
	if err != nil {
		return nil, err
	}

	buyerID, err := buyerFromSession(session)
	if err != nil {
		return nil, err
	}

	beatUUID := strings.TrimSpace(session.Metadata[payments.MetaBeatUUID])
	beat, err := models.FindBeatByUUID(o.db, beatUUID)
	if err != nil {
		if errs.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Mark(errs.Newf("session %s references unknown beat %q", session.ID, beatUUID), errs.ErrMissingEventData)
		}
		return nil, errs.Wrap(err, "load beat for completion")
	}

	exclusive := exclusiveFromSession(session, beat)
	license, err := o.resolver.Resolve(licensing.Request{
		LicenseID:   parseUint(session.Metadata[payments.MetaLicenseID]),
		LicenseName: session.Metadata[payments.MetaLicenseName],
		LicenseType: session.Metadata[payments.MetaLicenseType],
		Exclusive:   exclusive,
	})
	if err != nil {
		return nil, err
	}

	sale := saleInput{
		beat:      beat,
		buyerID:   buyerID,
		license:   license,
		session:   session,
		exclusive: exclusive,
	}

	purchase, err := o.completeUnified(sale)
	if err != nil && errs.Is(err, errs.ErrUnifiedCompletionUnavailable) {
		log.Warnf("[Checkout] Completion procedure missing, falling back to transactional path for session %s", session.ID)
		if exclusive {
			purchase, err = o.completeExclusiveTx(sale)
		} else {
			purchase, err = o.completeStandardTx(sale)
		}
	}
	if err != nil {
		if isDuplicateKey(err) || errs.Is(err, errs.ErrBeatUnavailable) {
			// Lost the race against a concurrent delivery of the same
			// session, either on the purchase insert or on the sold-once
			// check; the winner's purchase is the result. A beat sold
			// through a different session misses here and the error stands.
			if existing, ferr := o.findBySession(session.ID); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	log.Infof("[Checkout] Completed purchase %d: beat %d, buyer %d, license %q, exclusive=%t",
		purchase.ID, beat.ID, buyerID, license.Name, exclusive)
	if o.notifier != nil {
		o.notifier.PurchaseCompletedAsync(purchase.ID)
	}
	return purchase, nil
}

type saleInput struct {
	beat      *models.Beat
	buyerID   uint
	license   *models.License
	session   *payments.CheckoutSession
	exclusive bool
}

func (o *Orchestrator) findBySession(sessionID string) (*models.BeatPurchase, error) {
	var purchase models.BeatPurchase
	err := o.db.Where("checkout_session_id = ?", sessionID).First(&purchase).Error
	if err == nil {
		return &purchase, nil
	}
	if errs.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, errs.Wrap(err, "look up purchase by session")
}

// ensureSessionData re-fetches the session from the processor when the
// webhook payload is missing the fields completion needs. Thin payloads
// happen with API-version skew on the processor side.
func (o *Orchestrator) ensureSessionData(ctx context.Context, session *payments.CheckoutSession) (*payments.CheckoutSession, error) {
	if sessionComplete(session) || o.fetcher == nil {
		return session, nil
	}

	fetched, err := o.fetcher.RetrieveCheckoutSession(ctx, session.ID)
	if err != nil {
		// Transient: the processor will redeliver and the fetch can succeed
		// next time.
		return nil, errs.Wrap(err, "refetch checkout session")
	}
	return fetched, nil
}

func sessionComplete(session *payments.CheckoutSession) bool {
	if strings.TrimSpace(session.Metadata[payments.MetaBeatUUID]) == "" {
		return false
	}
	if strings.TrimSpace(session.ClientReferenceID) == "" &&
		strings.TrimSpace(session.Metadata[payments.MetaUserID]) == "" {
		return false
	}
	return true
}

func buyerFromSession(session *payments.CheckoutSession) (uint, error) {
	if id := parseUint(session.ClientReferenceID); id != 0 {
		return id, nil
	}
	if id := parseUint(session.Metadata[payments.MetaUserID]); id != 0 {
		return id, nil
	}
	return 0, errs.Mark(errs.Newf("session %s carries no buyer reference", session.ID), errs.ErrMissingEventData)
}

func exclusiveFromSession(session *payments.CheckoutSession, beat *models.Beat) bool {
	raw := strings.TrimSpace(session.Metadata[payments.MetaExclusive])
	if raw == "" {
		return beat.IsExclusive
	}
	exclusive, err := strconv.ParseBool(raw)
	if err != nil {
		return beat.IsExclusive
	}
	return exclusive
}

func parseUint(raw string) uint {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

// completeUnified runs the whole sale as one stored-procedure call. The
// procedure re-checks availability, inserts the purchase and entitlement,
// marks exclusive beats sold and clears the lock, then selects the new
// purchase id.
func (o *Orchestrator) completeUnified(sale saleInput) (*models.BeatPurchase, error) {
	var purchaseID uint
	err := o.db.Raw(
		"CALL complete_beat_purchase(?, ?, ?, ?, ?, ?, ?, ?)",
		sale.beat.ID,
		sale.buyerID,
		sale.license.ID,
		sale.session.ID,
		sale.session.PaymentIntent,
		sale.session.AmountTotal,
		currencyOf(sale.session),
		sale.exclusive,
	).Row().Scan(&purchaseID)
	if err != nil {
		if isProcedureMissing(err) {
			return nil, errs.Mark(err, errs.ErrUnifiedCompletionUnavailable)
		}
		if signalMessage(err) == signalBeatUnavailable {
			return nil, errs.Mark(err, errs.ErrBeatUnavailable)
		}
		return nil, err
	}

	var purchase models.BeatPurchase
	if err := o.db.First(&purchase, purchaseID).Error; err != nil {
		return nil, errs.Wrap(err, "load purchase after unified completion")
	}
	return &purchase, nil
}

// completeExclusiveTx is the fallback for exclusive sales: flip the beat to
// sold with a guarded UPDATE, then insert purchase and entitlement and drop
// the lock, all in one transaction. The guarded UPDATE is the sold-once
// check; RowsAffected == 0 means someone else got there first.
func (o *Orchestrator) completeExclusiveTx(sale saleInput) (*models.BeatPurchase, error) {
	purchase := newPurchase(sale)
	err := o.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Beat{}).
			Where("id = ? AND status = ?", sale.beat.ID, models.BeatStatusAvailable).
			Update("status", models.BeatStatusSold)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.Mark(errs.Newf("beat %d is not available", sale.beat.ID), errs.ErrBeatUnavailable)
		}

		if err := tx.Create(purchase).Error; err != nil {
			return err
		}
		if err := tx.Create(newEntitlement(sale, purchase)).Error; err != nil {
			return err
		}
		return tx.Where("beat_id = ?", sale.beat.ID).Delete(&models.BeatLock{}).Error
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// completeStandardTx is the fallback for non-exclusive sales. The beat row
// is read under a row lock so an exclusive sale committing concurrently
// cannot slip through between check and insert.
func (o *Orchestrator) completeStandardTx(sale saleInput) (*models.BeatPurchase, error) {
	purchase := newPurchase(sale)
	err := o.db.Transaction(func(tx *gorm.DB) error {
		var current models.Beat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, sale.beat.ID).Error; err != nil {
			return err
		}
		if current.Status != models.BeatStatusAvailable {
			return errs.Mark(errs.Newf("beat %d is not available", sale.beat.ID), errs.ErrBeatUnavailable)
		}

		if err := tx.Create(purchase).Error; err != nil {
			return err
		}
		return tx.Create(newEntitlement(sale, purchase)).Error
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func newPurchase(sale saleInput) *models.BeatPurchase {
	return &models.BeatPurchase{
		BuyerID:           sale.buyerID,
		BeatID:            sale.beat.ID,
		ProducerID:        sale.beat.ProducerID,
		LicenseID:         sale.license.ID,
		CheckoutSessionID: sale.session.ID,
		PaymentIntentID:   sale.session.PaymentIntent,
		AmountCents:       sale.session.AmountTotal,
		Currency:          currencyOf(sale.session),
		Status:            models.PurchaseStatusCompleted,
	}
}

func newEntitlement(sale saleInput, purchase *models.BeatPurchase) *models.Entitlement {
	return &models.Entitlement{
		UserID:     sale.buyerID,
		BeatID:     sale.beat.ID,
		LicenseID:  sale.license.ID,
		PurchaseID: purchase.ID,
	}
}

func currencyOf(session *payments.CheckoutSession) string {
	currency := strings.ToLower(strings.TrimSpace(session.Currency))
	if currency == "" {
		currency = "eur"
	}
	return currency
}
