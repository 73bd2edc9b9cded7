package checkout

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/licensing"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/payments"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/sharecode"
)

// SessionCreator opens hosted checkout sessions at the payment processor.
// *payments.Client satisfies it.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, in payments.CreateSessionInput) (*payments.CheckoutSession, error)
}

// Service starts checkouts. For exclusive intents the beat lock is taken
// before the processor session is created, so a second buyer is turned away
// before any money can move.
type Service struct {
	db       *gorm.DB
	locks    *LockManager
	resolver *licensing.Resolver
	creator  SessionCreator
}

func NewService(db *gorm.DB, locks *LockManager, resolver *licensing.Resolver, creator SessionCreator) *Service {
	return &Service{db: db, locks: locks, resolver: resolver, creator: creator}
}

// StartInput names the beat and license a buyer wants. LicenseName is an
// alternative to LicenseID for callers that only know the tier name.
type StartInput struct {
	BuyerID     uint
	BeatUUID    string
	LicenseID   uint
	LicenseName string
}

// StartResult is what the caller needs to send the buyer to the processor's
// hosted page.
type StartResult struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	LicenseID   uint   `json:"license_id"`
	Exclusive   bool   `json:"exclusive"`
}

// Start validates the intent, reserves the beat when the sale is exclusive
// and opens the processor session. ErrLockHeld means another buyer is
// already checking out this beat; ErrBeatUnavailable means it can no longer
// be sold at all.
func (s *Service) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	if in.BuyerID == 0 {
		return nil, errs.New("buyer is required")
	}

	beat, err := models.FindBeatByUUID(s.db, strings.TrimSpace(in.BeatUUID))
	if err != nil {
		if errs.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(err, "beat not found")
		}
		return nil, errs.Wrap(err, "load beat for checkout")
	}
	if !beat.IsAvailable() {
		return nil, errs.Mark(errs.Newf("beat %s is not available", beat.UUID), errs.ErrBeatUnavailable)
	}

	license, err := s.resolver.Resolve(licensing.Request{
		LicenseID:   in.LicenseID,
		LicenseName: in.LicenseName,
		Exclusive:   beat.IsExclusive,
	})
	if err != nil {
		return nil, err
	}

	// An exclusive-capable license makes the sale exclusive even on an
	// open listing; the buyer is taking the beat off the market.
	exclusive := beat.IsExclusive || license.ExclusiveAllowed

	if exclusive {
		// The lock is bound to a provisional reference first; the real
		// session id replaces it after the processor call succeeds.
		ref, err := sharecode.NewCheckoutRef()
		if err != nil {
			return nil, errs.Wrap(err, "generate checkout reference")
		}
		if _, err := s.locks.Acquire(beat.ID, in.BuyerID, ref); err != nil {
			return nil, err
		}
	}

	amount := saleAmount(beat, license, exclusive)
	session, err := s.creator.CreateCheckoutSession(ctx, payments.CreateSessionInput{
		BuyerID:     in.BuyerID,
		BeatUUID:    beat.UUID,
		BeatTitle:   beat.Title,
		LicenseID:   license.ID,
		LicenseName: license.Name,
		AmountCents: amount,
		Currency:    "eur",
		Exclusive:   exclusive,
	})
	if err != nil {
		if exclusive {
			if rerr := s.locks.Release(beat.ID, in.BuyerID); rerr != nil {
				log.Warnf("[Checkout] Could not release lock on beat %d after failed session create: %v", beat.ID, rerr)
			}
		}
		return nil, errs.Wrap(err, "create checkout session")
	}

	if exclusive {
		if err := s.locks.BindSession(beat.ID, in.BuyerID, session.ID); err != nil {
			// The lock still protects the beat; it just cannot be released
			// by session id anymore. The sweeper covers abandonment.
			log.Warnf("[Checkout] Could not bind session %s to lock on beat %d: %v", session.ID, beat.ID, err)
		}
	}

	log.Infof("[Checkout] Started session %s: beat %s, buyer %d, license %q, exclusive=%t, amount=%d",
		session.ID, beat.UUID, in.BuyerID, license.Name, exclusive, amount)

	return &StartResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		AmountCents: amount,
		Currency:    currencyOf(session),
		LicenseID:   license.ID,
		Exclusive:   exclusive,
	}, nil
}

// Abandon drops the buyer's reservation, used when the buyer cancels on the
// processor page and comes back.
func (s *Service) Abandon(beatUUID string, userID uint) error {
	beat, err := models.FindBeatByUUID(s.db, strings.TrimSpace(beatUUID))
	if err != nil {
		if errs.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return errs.Wrap(err, "load beat for abandon")
	}
	return s.locks.Release(beat.ID, userID)
}

// saleAmount prefers the producer's own asking price for exclusive sales;
// tier pricing applies everywhere else.
func saleAmount(beat *models.Beat, license *models.License, exclusive bool) int64 {
	if exclusive && beat.PriceCents > 0 {
		return beat.PriceCents
	}
	return license.PriceCents
}
