package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/billing"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/checkout"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/config"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/contracts"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/lease"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/licensing"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/payments"
)

// WebhookController receives payment processor events. Every delivery runs
// the same path: verify, record in the ledger, claim the processing lease,
// dispatch, release. Redeliveries of known events are acknowledged without
// reprocessing.
type WebhookController struct {
	cfg        config.Payments
	ledger     *payments.Service
	lease      *lease.Manager
	completer  *checkout.Orchestrator
	reconciler *billing.Reconciler
	locks      *checkout.LockManager
}

// NewWebhookController wires the webhook path from explicit collaborators.
func NewWebhookController(cfg config.Payments, ledger *payments.Service, leaseMgr *lease.Manager, completer *checkout.Orchestrator, reconciler *billing.Reconciler, locks *checkout.LockManager) *WebhookController {
	return &WebhookController{
		cfg:        cfg,
		ledger:     ledger,
		lease:      leaseMgr,
		completer:  completer,
		reconciler: reconciler,
		locks:      locks,
	}
}

// Global webhook controller instance
var webhookController *WebhookController

// InitializeWebhookController builds the global webhook controller from the
// process configuration and the shared database handle.
func InitializeWebhookController() {
	cfg := config.Get()
	db := database.GetDB()

	leaseMgr, err := lease.NewManager(db, lease.Config{
		Table:       "payment_webhook_events",
		ClaimColumn: "processing_started_at",
		DoneColumn:  "processed",
		ErrorColumn: "processing_error",
		Timeout:     cfg.Payments.LeaseTimeout,
	})
	if err != nil {
		panic(err)
	}

	resolver := licensing.NewResolver(repository.GetGlobalFactory().GetLicenseRepository())
	client := payments.NewClient(cfg.Payments)
	notifier := contracts.NewNotifier(cfg.Contracts)

	webhookController = NewWebhookController(
		cfg.Payments,
		payments.NewServiceFromDB(db),
		leaseMgr,
		checkout.NewOrchestrator(db, resolver, client, notifier),
		billing.NewReconcilerFromDB(db),
		checkout.NewLockManager(db),
	)
}

// GetWebhookController returns the global webhook controller instance
func GetWebhookController() *WebhookController {
	if webhookController == nil {
		InitializeWebhookController()
	}
	return webhookController
}

// HandlePaymentWebhook - Adapter for the payment processor webhook endpoint
func HandlePaymentWebhook(c *fiber.Ctx) error {
	return GetWebhookController().HandlePaymentWebhook(c)
}

// HandlePaymentWebhook processes one delivery. The processor retries on any
// non-2xx status, so the handler answers 200 for everything that must not
// come back (duplicates, ignored types, terminal failures) and 500 only when
// a retry can actually help.
func (wc *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	if err := payments.VerifySignature(rawBody, c.Get(payments.SignatureHeader), wc.cfg.WebhookSecret, wc.cfg.SignatureTolerance, time.Now()); err != nil {
		// Unverifiable deliveries never reach the ledger.
		log.Warnf("[Webhook] Rejected unverifiable delivery: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	event, parseErr := payments.ParseEvent(rawBody)
	if parseErr != nil {
		// Signed but undecodable. Record it so the payload is kept for
		// inspection and the redelivery is recognized as a duplicate.
		created, stored, err := wc.ledger.RecordEvent(ctx, payments.RecordInput{
			Provider:    wc.cfg.Provider,
			EventType:   "unparseable",
			PayloadJSON: string(rawBody),
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_persist_failed"})
		}
		if created {
			if err := wc.ledger.MarkProcessed(ctx, stored.ID, parseErr); err != nil {
				log.Errorf("[Webhook] Could not mark unparseable event %d: %v", stored.ID, err)
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	created, stored, err := wc.ledger.RecordEvent(ctx, payments.RecordInput{
		Provider:        wc.cfg.Provider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(rawBody),
	})
	if err != nil {
		// Nothing was recorded; redelivery is safe.
		log.Errorf("[Webhook] Could not record event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if !isDispatchedEventType(event.Type) {
		if err := wc.ledger.MarkProcessed(ctx, stored.ID, nil); err != nil {
			log.Errorf("[Webhook] Could not mark ignored event %d: %v", stored.ID, err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	claimed, err := wc.lease.Claim(stored.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lease_claim_failed"})
	}
	if !claimed {
		// Another worker holds the claim or already finished; either way
		// this delivery is done.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "skipped": true})
	}

	procErr := wc.dispatch(ctx, event)

	switch {
	case procErr == nil:
		if err := wc.lease.Release(stored.ID, true, nil); err != nil {
			log.Errorf("[Webhook] Could not release lease on event %d: %v", stored.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lease_release_failed"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	case payments.IsTerminal(procErr):
		// Retrying cannot fix this delivery; finalize with the error text.
		log.Warnf("[Webhook] Event %s failed terminally: %v", event.ID, procErr)
		if err := wc.lease.Release(stored.ID, true, procErr); err != nil {
			log.Errorf("[Webhook] Could not release lease on event %d: %v", stored.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lease_release_failed"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "failed": true})
	default:
		// Transient. Give the claim back and ask the processor to redeliver.
		log.Warnf("[Webhook] Event %s failed, keeping it claimable: %v", event.ID, procErr)
		if err := wc.lease.Release(stored.ID, false, procErr); err != nil {
			log.Errorf("[Webhook] Could not release lease on event %d: %v", stored.ID, err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}
}

func (wc *WebhookController) dispatch(ctx context.Context, event *payments.Event) error {
	switch event.Type {
	case payments.EventCheckoutSessionCompleted:
		session, err := event.CheckoutSession()
		if err != nil {
			return err
		}
		_, err = wc.completer.Complete(ctx, session)
		return err
	case payments.EventCheckoutSessionExpired:
		// The buyer never paid; free the beat for the next one. The
		// abandoned-lock sweeper would get there eventually, this is just
		// sooner.
		session, err := event.CheckoutSession()
		if err != nil {
			return err
		}
		return wc.locks.ReleaseBySession(session.ID)
	case payments.EventSubscriptionCreated,
		payments.EventSubscriptionUpdated,
		payments.EventSubscriptionDeleted,
		payments.EventInvoicePaid,
		payments.EventInvoicePaymentFailed:
		return wc.reconciler.HandleEvent(ctx, event)
	default:
		return nil
	}
}

func isDispatchedEventType(eventType string) bool {
	switch eventType {
	case payments.EventCheckoutSessionCompleted,
		payments.EventCheckoutSessionExpired,
		payments.EventSubscriptionCreated,
		payments.EventSubscriptionUpdated,
		payments.EventSubscriptionDeleted,
		payments.EventInvoicePaid,
		payments.EventInvoicePaymentFailed:
		return true
	default:
		return false
	}
}
