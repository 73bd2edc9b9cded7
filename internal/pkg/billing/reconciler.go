// Package billing keeps the local mirror of processor-side subscriptions in
// step with webhook events. Whatever order events arrive in, every sync
// recomputes the Active flag from the latest status and period end instead
// of toggling it incrementally.
package billing

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/payments"
)

// Reconciler applies subscription lifecycle and invoice events to the
// billing_subscriptions mirror and backfills billing references on users.
type Reconciler struct {
	repo Repository
	now  func() time.Time
}

// NewReconciler creates a reconciler from an injected repository.
func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{repo: repo, now: time.Now}
}

// NewReconcilerFromDB creates a reconciler from a GORM DB handle.
func NewReconcilerFromDB(db *gorm.DB) *Reconciler {
	return NewReconciler(NewRepository(db))
}

// HandleEvent routes one webhook event to the matching sync. Event types the
// reconciler does not own are an error; the caller decides which types to
// send here.
func (r *Reconciler) HandleEvent(ctx context.Context, event *payments.Event) error {
	switch event.Type {
	case payments.EventSubscriptionCreated,
		payments.EventSubscriptionUpdated,
		payments.EventSubscriptionDeleted:
		sub, err := event.Subscription()
		if err != nil {
			return err
		}
		if event.Type == payments.EventSubscriptionDeleted && strings.TrimSpace(sub.Status) == "" {
			// Deletion payloads occasionally omit the status once the object
			// is gone processor-side. A deleted subscription is canceled, not
			// incomplete.
			sub.Status = models.SubscriptionStatusCanceled
		}
		_, err = r.SyncSubscription(ctx, sub, string(event.Data.Object))
		return err
	case payments.EventInvoicePaid:
		inv, err := event.Invoice()
		if err != nil {
			return err
		}
		return r.ApplyInvoice(ctx, inv, true, string(event.Data.Object))
	case payments.EventInvoicePaymentFailed:
		inv, err := event.Invoice()
		if err != nil {
			return err
		}
		return r.ApplyInvoice(ctx, inv, false, string(event.Data.Object))
	default:
		return errs.Newf("billing reconciler cannot handle event type %q", event.Type)
	}
}

// SyncSubscription writes the processor's view of a subscription into the
// per-user mirror row. Deleted subscriptions arrive as a status change, not
// as a separate code path.
func (r *Reconciler) SyncSubscription(ctx context.Context, sub *payments.Subscription, rawPayload string) (*models.BillingSubscription, error) {
	_ = ctx
	if sub == nil || strings.TrimSpace(sub.ID) == "" {
		return nil, errs.Mark(errs.New("subscription sync without subscription id"), errs.ErrMissingEventData)
	}

	user, err := r.resolveUser(sub.Customer, sub.Metadata, sub.ID)
	if err != nil {
		return nil, err
	}

	prev := r.previousMirror(user.ID)

	status := strings.ToLower(strings.TrimSpace(sub.Status))
	if status == "" {
		status = models.SubscriptionStatusIncomplete
	}

	end := r.resolvePeriodEnd(sub.CurrentPeriodEnd, prev)
	mirror := &models.BillingSubscription{
		UserID:                user.ID,
		BillingCustomerID:     firstNonEmpty(sub.Customer, user.BillingCustomerID),
		BillingSubscriptionID: sub.ID,
		Status:                status,
		CurrentPeriodEnd:      &end,
		Active:                models.ActiveStatus(status) && end.After(r.now()),
		CancelAtPeriodEnd:     sub.CancelAtPeriodEnd,
		RawPayloadJSON:        rawPayload,
	}
	if err := r.repo.UpsertSubscriptionByUser(mirror); err != nil {
		return nil, errs.Wrap(err, "upsert subscription mirror")
	}
	if err := r.backfillUserRefs(user, mirror); err != nil {
		return nil, err
	}

	log.Infof("[Billing] Synced subscription %s for user %d: status=%s active=%t", sub.ID, user.ID, status, mirror.Active)
	return mirror, nil
}

// ApplyInvoice moves the mirror forward on payment outcomes: a paid invoice
// starts a new active period, a failed one parks the subscription in
// past_due until the processor retries.
func (r *Reconciler) ApplyInvoice(ctx context.Context, inv *payments.Invoice, paid bool, rawPayload string) error {
	_ = ctx
	if inv == nil {
		return errs.Mark(errs.New("invoice event without invoice"), errs.ErrMissingEventData)
	}
	if strings.TrimSpace(inv.Subscription) == "" && strings.TrimSpace(inv.Customer) == "" {
		// One-off invoice with no account reference; nothing to reconcile.
		log.Debugf("[Billing] Ignoring invoice %s without subscription or customer", inv.ID)
		return nil
	}

	user, err := r.resolveUser(inv.Customer, nil, inv.Subscription)
	if err != nil {
		return err
	}

	prev := r.previousMirror(user.ID)
	if prev != nil && models.TerminalStatus(prev.Status) {
		// Invoice events can trail the subscription's end. A late echo must
		// not resurrect a canceled or unpaid mirror; any real way out of
		// those states arrives as a subscription event.
		log.Infof("[Billing] Ignoring invoice %s for user %d: subscription already %s", inv.ID, user.ID, prev.Status)
		return nil
	}

	status := models.SubscriptionStatusActive
	if !paid {
		status = models.SubscriptionStatusPastDue
	}

	var end time.Time
	if paid {
		end = r.resolvePeriodEnd(inv.PeriodEnd(), prev)
	} else if prev != nil && prev.CurrentPeriodEnd != nil {
		end = *prev.CurrentPeriodEnd
	} else {
		end = r.now()
	}

	subscriptionID := strings.TrimSpace(inv.Subscription)
	if subscriptionID == "" && prev != nil {
		subscriptionID = prev.BillingSubscriptionID
	}

	mirror := &models.BillingSubscription{
		UserID:                user.ID,
		BillingCustomerID:     firstNonEmpty(inv.Customer, user.BillingCustomerID),
		BillingSubscriptionID: subscriptionID,
		Status:                status,
		CurrentPeriodEnd:      &end,
		Active:                models.ActiveStatus(status) && end.After(r.now()),
		CancelAtPeriodEnd:     prev != nil && prev.CancelAtPeriodEnd,
		RawPayloadJSON:        rawPayload,
	}
	if err := r.repo.UpsertSubscriptionByUser(mirror); err != nil {
		return errs.Wrap(err, "upsert subscription mirror from invoice")
	}
	if err := r.backfillUserRefs(user, mirror); err != nil {
		return err
	}

	log.Infof("[Billing] Applied invoice %s for user %d: paid=%t status=%s active=%t", inv.ID, user.ID, paid, status, mirror.Active)
	return nil
}

// resolveUser maps processor identifiers to a local account. The cascade
// tries the stored customer id, then the event's own user_id metadata, then
// the mirror row, then the subscription reference on users. Only a missing
// row falls through to the next step; real errors stop the cascade.
func (r *Reconciler) resolveUser(customerID string, metadata map[string]string, subscriptionID string) (*models.User, error) {
	customerID = strings.TrimSpace(customerID)
	subscriptionID = strings.TrimSpace(subscriptionID)

	if customerID != "" {
		user, err := r.repo.GetUserByBillingCustomerID(customerID)
		if err == nil {
			return user, nil
		}
		if !errs.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(err, "resolve user by billing customer")
		}
	}

	if raw := strings.TrimSpace(metadata[payments.MetaUserID]); raw != "" {
		if id, perr := strconv.ParseUint(raw, 10, 64); perr == nil && id != 0 {
			user, err := r.repo.GetUserByID(uint(id))
			if err == nil {
				return user, nil
			}
			if !errs.Is(err, gorm.ErrRecordNotFound) {
				return nil, errs.Wrap(err, "resolve user by metadata")
			}
		}
	}

	if subscriptionID != "" {
		mirror, err := r.repo.FindSubscriptionByBillingID(subscriptionID)
		if err == nil {
			user, uerr := r.repo.GetUserByID(mirror.UserID)
			if uerr == nil {
				return user, nil
			}
			if !errs.Is(uerr, gorm.ErrRecordNotFound) {
				return nil, errs.Wrap(uerr, "resolve mirror owner")
			}
		} else if !errs.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(err, "resolve user by subscription mirror")
		}

		user, err := r.repo.GetUserByBillingSubscriptionID(subscriptionID)
		if err == nil {
			return user, nil
		}
		if !errs.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(err, "resolve user by subscription reference")
		}
	}

	return nil, errs.Mark(
		errs.Newf("no account for customer %q / subscription %q", customerID, subscriptionID),
		errs.ErrAccountUnresolved,
	)
}

// previousMirror returns the user's current mirror row, or nil when there is
// none yet. Read errors are treated as missing; the upsert will surface
// anything persistent.
func (r *Reconciler) previousMirror(userID uint) *models.BillingSubscription {
	prev, err := r.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return nil
	}
	return prev
}

// resolvePeriodEnd prefers the event's own timestamp, then the previous
// mirror row, then now. A missing period end must never produce a
// permanently active subscription.
func (r *Reconciler) resolvePeriodEnd(unix int64, prev *models.BillingSubscription) time.Time {
	if unix > 0 {
		return time.Unix(unix, 0)
	}
	if prev != nil && prev.CurrentPeriodEnd != nil && !prev.CurrentPeriodEnd.IsZero() {
		return *prev.CurrentPeriodEnd
	}
	return r.now()
}

// backfillUserRefs stores processor identifiers on the user row the first
// time they are seen so later events resolve on the first cascade step.
func (r *Reconciler) backfillUserRefs(user *models.User, mirror *models.BillingSubscription) error {
	changed := false
	if mirror.BillingCustomerID != "" && user.BillingCustomerID != mirror.BillingCustomerID {
		user.BillingCustomerID = mirror.BillingCustomerID
		changed = true
	}
	if mirror.BillingSubscriptionID != "" && user.BillingSubscriptionID != mirror.BillingSubscriptionID {
		user.BillingSubscriptionID = mirror.BillingSubscriptionID
		changed = true
	}
	if !changed {
		return nil
	}
	if err := r.repo.SaveUserBillingRefs(user); err != nil {
		return errs.Wrap(err, "backfill billing refs")
	}
	log.Debugf("[Billing] Backfilled billing refs for user %d", user.ID)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
