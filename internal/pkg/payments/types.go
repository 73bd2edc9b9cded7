package payments

import (
	"encoding/json"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

// Event types dispatched by the webhook controller. Everything else is
// acknowledged and ignored.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventCheckoutSessionExpired   = "checkout.session.expired"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// Metadata keys we set on checkout sessions at creation time and read back
// from completion events.
const (
	MetaBeatUUID    = "beat_uuid"
	MetaLicenseID   = "license_id"
	MetaLicenseName = "license_name"
	MetaLicenseType = "license_type"
	MetaExclusive   = "exclusive"
	MetaUserID      = "user_id"
)

// Event is the outer webhook envelope common to all processor events.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData wraps the typed payload object of an event.
type EventData struct {
	Object json.RawMessage `json:"object"`
}

// ParseEvent decodes the webhook envelope. The payload object stays raw
// until the dispatcher knows the event type.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errs.Wrap(err, "decode webhook envelope")
	}
	if ev.Type == "" {
		return nil, errs.Mark(errs.New("webhook envelope has no type"), errs.ErrMissingEventData)
	}
	return &ev, nil
}

// CheckoutSession mirrors the slice of the processor's checkout session
// object that purchase completion reads.
type CheckoutSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	PaymentIntent     string            `json:"payment_intent"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
	URL               string            `json:"url,omitempty"`
}

// Subscription mirrors the slice of the processor's subscription object the
// reconciler reads.
type Subscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

// Invoice mirrors the slice of the processor's invoice object the reconciler
// reads. Period end comes from the first line item when present.
type Invoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Lines        struct {
		Data []struct {
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// CheckoutSession decodes the event payload as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var cs CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &cs); err != nil {
		return nil, errs.Wrap(err, "decode checkout session object")
	}
	if cs.ID == "" {
		return nil, errs.Mark(errs.New("checkout session object has no id"), errs.ErrMissingEventData)
	}
	return &cs, nil
}

// Subscription decodes the event payload as a subscription.
func (e *Event) Subscription() (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(e.Data.Object, &sub); err != nil {
		return nil, errs.Wrap(err, "decode subscription object")
	}
	if sub.ID == "" {
		return nil, errs.Mark(errs.New("subscription object has no id"), errs.ErrMissingEventData)
	}
	return &sub, nil
}

// Invoice decodes the event payload as an invoice.
func (e *Event) Invoice() (*Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal(e.Data.Object, &inv); err != nil {
		return nil, errs.Wrap(err, "decode invoice object")
	}
	return &inv, nil
}

// PeriodEnd returns the invoice line period end, or 0 when absent.
func (i *Invoice) PeriodEnd() int64 {
	if len(i.Lines.Data) == 0 {
		return 0
	}
	return i.Lines.Data[0].Period.End
}

// RecordInput is the normalized input for ledger persistence.
type RecordInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}
