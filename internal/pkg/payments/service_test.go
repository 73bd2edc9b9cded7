package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

var errNotFixable = errors.New("beat already sold")

// fakeRepo keeps the ledger in memory with the same uniqueness rule as the
// real table: one row per (provider, provider_event_id).
type fakeRepo struct {
	rows   map[string]*models.PaymentWebhookEvent
	nextID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*models.PaymentWebhookEvent{}}
}

func (f *fakeRepo) key(provider, eventID string) string {
	return provider + "|" + eventID
}

func (f *fakeRepo) CreateEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	k := f.key(event.Provider, event.ProviderEventID)
	if existing, ok := f.rows[k]; ok {
		return false, existing, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.rows[k] = event
	return true, event, nil
}

func (f *fakeRepo) MarkEventProcessed(id uint, processingError string) error {
	for _, row := range f.rows {
		if row.ID == id {
			row.Processed = true
			row.ProcessingStartedAt = nil
			row.ProcessingError = processingError
			return nil
		}
	}
	return nil
}

func TestRecordEventIdempotent(t *testing.T) {
	svc := NewService(newFakeRepo())
	in := RecordInput{
		Provider:        "stripe",
		ProviderEventID: "evt_123",
		EventType:       EventCheckoutSessionCompleted,
		PayloadJSON:     `{"id":"evt_123"}`,
	}

	created, first, err := svc.RecordEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	if !created {
		t.Fatal("first record should create the row")
	}

	created, second, err := svc.RecordEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("replay record failed: %v", err)
	}
	if created {
		t.Fatal("replay must not create a second row")
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned row %d, want %d", second.ID, first.ID)
	}
}

func TestRecordEventHashFallback(t *testing.T) {
	svc := NewService(newFakeRepo())

	// No provider event id: identical payloads must dedupe by hash,
	// different payloads must not.
	a1, _, err := svc.RecordEvent(context.Background(), RecordInput{
		Provider: "stripe", PayloadJSON: `{"n":1}`,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	a2, _, err := svc.RecordEvent(context.Background(), RecordInput{
		Provider: "stripe", PayloadJSON: `{"n":1}`,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	b, _, err := svc.RecordEvent(context.Background(), RecordInput{
		Provider: "stripe", PayloadJSON: `{"n":2}`,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if !a1 || a2 {
		t.Fatalf("identical payloads: created = (%v, %v), want (true, false)", a1, a2)
	}
	if !b {
		t.Fatal("different payload should create a new row")
	}
}

func TestRecordEventNormalizesProvider(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, stored, err := svc.RecordEvent(context.Background(), RecordInput{
		Provider:        "  Stripe ",
		ProviderEventID: " evt_9 ",
		PayloadJSON:     `{}`,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if stored.Provider != "stripe" || stored.ProviderEventID != "evt_9" {
		t.Fatalf("stored (%q, %q), want normalized values", stored.Provider, stored.ProviderEventID)
	}
}

func TestRecordEventRequiresProvider(t *testing.T) {
	svc := NewService(newFakeRepo())
	if _, _, err := svc.RecordEvent(context.Background(), RecordInput{PayloadJSON: `{}`}); err == nil {
		t.Fatal("expected error for missing provider")
	}
}

func TestMarkProcessedStoresError(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, stored, err := svc.RecordEvent(context.Background(), RecordInput{
		Provider: "stripe", ProviderEventID: "evt_5", PayloadJSON: `{}`,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if err := svc.MarkProcessed(context.Background(), stored.ID, errNotFixable); err != nil {
		t.Fatalf("mark processed failed: %v", err)
	}
	row := repo.rows[repo.key("stripe", "evt_5")]
	if !row.Processed {
		t.Fatal("row should be processed")
	}
	if row.ProcessingError != errNotFixable.Error() {
		t.Fatalf("stored error %q, want %q", row.ProcessingError, errNotFixable.Error())
	}

	if err := svc.MarkProcessed(context.Background(), stored.ID, nil); err != nil {
		t.Fatalf("mark processed failed: %v", err)
	}
	if row.ProcessingError != "" {
		t.Fatalf("clean completion should clear the error, got %q", row.ProcessingError)
	}
}
