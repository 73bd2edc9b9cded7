package payments

import (
	"testing"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_42",
		"type": "checkout.session.completed",
		"created": 1748772000,
		"data": {"object": {"id": "cs_live_1", "amount_total": 4999}}
	}`)

	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ev.ID != "evt_42" || ev.Type != EventCheckoutSessionCompleted {
		t.Fatalf("parsed envelope = (%q, %q)", ev.ID, ev.Type)
	}

	cs, err := ev.CheckoutSession()
	if err != nil {
		t.Fatalf("decode session failed: %v", err)
	}
	if cs.ID != "cs_live_1" || cs.AmountTotal != 4999 {
		t.Fatalf("session = %+v", cs)
	}
}

func TestParseEventRejectsMissingType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"id":"evt_1","data":{"object":{}}}`))
	if err == nil {
		t.Fatal("expected error for envelope without type")
	}
	if !errs.Is(err, errs.ErrMissingEventData) {
		t.Fatalf("expected ErrMissingEventData, got %v", err)
	}
}

func TestParseEventRejectsGarbage(t *testing.T) {
	if _, err := ParseEvent([]byte(`not json at all`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestCheckoutSessionMissingID(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"amount_total":1}}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, err := ev.CheckoutSession(); !errs.Is(err, errs.ErrMissingEventData) {
		t.Fatalf("expected ErrMissingEventData, got %v", err)
	}
}

func TestInvoicePeriodEnd(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"id": "evt_7", "type": "invoice.paid",
		"data": {"object": {"id": "in_1", "customer": "cus_1", "subscription": "sub_1",
			"lines": {"data": [{"period": {"end": 1751450400}}]}}}
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	inv, err := ev.Invoice()
	if err != nil {
		t.Fatalf("decode invoice failed: %v", err)
	}
	if got := inv.PeriodEnd(); got != 1751450400 {
		t.Fatalf("PeriodEnd() = %d, want 1751450400", got)
	}

	empty := &Invoice{}
	if got := empty.PeriodEnd(); got != 0 {
		t.Fatalf("PeriodEnd() on empty lines = %d, want 0", got)
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "missing data", err: errs.ErrMissingEventData, want: true},
		{name: "beat unavailable wrapped", err: errs.Wrap(errs.Mark(errs.New("sold"), errs.ErrBeatUnavailable), "complete"), want: true},
		{name: "license incompatible", err: errs.ErrLicenseIncompatible, want: true},
		{name: "account unresolved", err: errs.ErrAccountUnresolved, want: true},
		{name: "random infra error", err: errs.New("dial tcp: connection refused"), want: false},
		{name: "lease contention is not terminal", err: errs.ErrLeaseHeld, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.err); got != tt.want {
				t.Fatalf("IsTerminal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
