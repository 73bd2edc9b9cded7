package billing

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/payments"
)

type fakeRepo struct {
	users     map[uint]*models.User
	mirrors   map[uint]*models.BillingSubscription
	savedRefs []uint
	nextID    uint
}

func newFakeRepo(users ...*models.User) *fakeRepo {
	r := &fakeRepo{
		users:   make(map[uint]*models.User),
		mirrors: make(map[uint]*models.BillingSubscription),
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeRepo) GetUserByID(id uint) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetUserByBillingCustomerID(customerID string) (*models.User, error) {
	for _, u := range r.users {
		if u.BillingCustomerID == customerID {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetUserByBillingSubscriptionID(subscriptionID string) (*models.User, error) {
	for _, u := range r.users {
		if u.BillingSubscriptionID == subscriptionID {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) SaveUserBillingRefs(user *models.User) error {
	r.users[user.ID] = user
	r.savedRefs = append(r.savedRefs, user.ID)
	return nil
}

func (r *fakeRepo) GetSubscriptionByUserID(userID uint) (*models.BillingSubscription, error) {
	if m, ok := r.mirrors[userID]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) FindSubscriptionByBillingID(subscriptionID string) (*models.BillingSubscription, error) {
	for _, m := range r.mirrors {
		if m.BillingSubscriptionID == subscriptionID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UpsertSubscriptionByUser(sub *models.BillingSubscription) error {
	if existing, ok := r.mirrors[sub.UserID]; ok {
		sub.ID = existing.ID
	} else {
		r.nextID++
		sub.ID = r.nextID
	}
	copied := *sub
	r.mirrors[sub.UserID] = &copied
	return nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(repo *fakeRepo) *Reconciler {
	rec := NewReconciler(repo)
	rec.now = func() time.Time { return testNow }
	return rec
}

func futureUnix() int64 {
	return testNow.Add(30 * 24 * time.Hour).Unix()
}

func TestSyncSubscriptionResolvesByCustomerID(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
	rec := newTestReconciler(repo)

	mirror, err := rec.SyncSubscription(context.Background(), &payments.Subscription{
		ID:               "sub_1",
		Customer:         "cus_1",
		Status:           "active",
		CurrentPeriodEnd: futureUnix(),
	}, `{"id":"sub_1"}`)
	if err != nil {
		t.Fatalf("SyncSubscription: %v", err)
	}

	want := &models.BillingSubscription{
		ID:                    1,
		UserID:                7,
		BillingCustomerID:     "cus_1",
		BillingSubscriptionID: "sub_1",
		Status:                "active",
		Active:                true,
		RawPayloadJSON:        `{"id":"sub_1"}`,
	}
	ignore := cmpopts.IgnoreFields(models.BillingSubscription{}, "CurrentPeriodEnd", "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(want, mirror, ignore); diff != "" {
		t.Fatalf("mirror mismatch (-want +got):\n%s", diff)
	}
	if got := mirror.CurrentPeriodEnd.Unix(); got != futureUnix() {
		t.Fatalf("period end = %d, want %d", got, futureUnix())
	}
	// The subscription id must be backfilled onto the user.
	if repo.users[7].BillingSubscriptionID != "sub_1" {
		t.Fatalf("user subscription ref = %q, want sub_1", repo.users[7].BillingSubscriptionID)
	}
}

func TestSyncSubscriptionResolvesByMetadataAndBackfills(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7})
	rec := newTestReconciler(repo)

	_, err := rec.SyncSubscription(context.Background(), &payments.Subscription{
		ID:               "sub_1",
		Customer:         "cus_9",
		Status:           "trialing",
		CurrentPeriodEnd: futureUnix(),
		Metadata:         map[string]string{"user_id": "7"},
	}, "{}")
	if err != nil {
		t.Fatalf("SyncSubscription: %v", err)
	}

	user := repo.users[7]
	if user.BillingCustomerID != "cus_9" {
		t.Fatalf("customer ref = %q, want cus_9", user.BillingCustomerID)
	}
	if user.BillingSubscriptionID != "sub_1" {
		t.Fatalf("subscription ref = %q, want sub_1", user.BillingSubscriptionID)
	}
	if len(repo.savedRefs) != 1 || repo.savedRefs[0] != 7 {
		t.Fatalf("saved refs = %v, want [7]", repo.savedRefs)
	}
}

func TestSyncSubscriptionResolvesThroughMirrorRow(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 3})
	repo.mirrors[3] = &models.BillingSubscription{ID: 1, UserID: 3, BillingSubscriptionID: "sub_1"}
	rec := newTestReconciler(repo)

	mirror, err := rec.SyncSubscription(context.Background(), &payments.Subscription{
		ID:               "sub_1",
		Status:           "active",
		CurrentPeriodEnd: futureUnix(),
	}, "{}")
	if err != nil {
		t.Fatalf("SyncSubscription: %v", err)
	}
	if mirror.UserID != 3 {
		t.Fatalf("mirror user = %d, want 3", mirror.UserID)
	}
}

func TestSyncSubscriptionResolvesByUserSubscriptionRef(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 4, BillingSubscriptionID: "sub_9"})
	rec := newTestReconciler(repo)

	mirror, err := rec.SyncSubscription(context.Background(), &payments.Subscription{
		ID:               "sub_9",
		Status:           "active",
		CurrentPeriodEnd: futureUnix(),
	}, "{}")
	if err != nil {
		t.Fatalf("SyncSubscription: %v", err)
	}
	if mirror.UserID != 4 {
		t.Fatalf("mirror user = %d, want 4", mirror.UserID)
	}
}

func TestSyncSubscriptionUnresolvedAccount(t *testing.T) {
	rec := newTestReconciler(newFakeRepo())

	_, err := rec.SyncSubscription(context.Background(), &payments.Subscription{
		ID:       "sub_1",
		Customer: "cus_unknown",
		Status:   "active",
	}, "{}")
	if err == nil {
		t.Fatal("expected error for unresolvable account")
	}
	if !errs.Is(err, errs.ErrAccountUnresolved) {
		t.Fatalf("error = %v, want ErrAccountUnresolved", err)
	}
}

func TestSyncSubscriptionActiveFlag(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		endUnix    int64
		wantActive bool
	}{
		{"active with future period", "active", futureUnix(), true},
		{"trialing counts as active", "trialing", futureUnix(), true},
		{"past_due never active", "past_due", futureUnix(), false},
		{"canceled never active", "canceled", futureUnix(), false},
		{"active but period expired", "active", testNow.Add(-time.Hour).Unix(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
			rec := newTestReconciler(repo)

			mirror, err := rec.SyncSubscription(context.Background(), &payments.Subscription{
				ID:               "sub_1",
				Customer:         "cus_1",
				Status:           tt.status,
				CurrentPeriodEnd: tt.endUnix,
			}, "{}")
			if err != nil {
				t.Fatalf("SyncSubscription: %v", err)
			}
			if mirror.Active != tt.wantActive {
				t.Fatalf("active = %t, want %t", mirror.Active, tt.wantActive)
			}
		})
	}
}

func TestSyncSubscriptionPeriodEndFallsBackToPrevious(t *testing.T) {
	prevEnd := testNow.Add(10 * 24 * time.Hour)
	repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
	repo.mirrors[7] = &models.BillingSubscription{
		ID: 1, UserID: 7, BillingSubscriptionID: "sub_1", CurrentPeriodEnd: &prevEnd,
	}
	rec := newTestReconciler(repo)

	// Thin update payload without current_period_end.
	mirror, err := rec.SyncSubscription(context.Background(), &payments.Subscription{
		ID:       "sub_1",
		Customer: "cus_1",
		Status:   "active",
	}, "{}")
	if err != nil {
		t.Fatalf("SyncSubscription: %v", err)
	}
	if !mirror.CurrentPeriodEnd.Equal(prevEnd) {
		t.Fatalf("period end = %v, want %v", mirror.CurrentPeriodEnd, prevEnd)
	}
	if !mirror.Active {
		t.Fatal("subscription should stay active on the previous period end")
	}
}

func TestSyncSubscriptionWithoutAnyPeriodEnd(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
	rec := newTestReconciler(repo)

	mirror, err := rec.SyncSubscription(context.Background(), &payments.Subscription{
		ID:       "sub_1",
		Customer: "cus_1",
		Status:   "active",
	}, "{}")
	if err != nil {
		t.Fatalf("SyncSubscription: %v", err)
	}
	// Period end defaults to now, which is not in the future.
	if mirror.Active {
		t.Fatal("subscription without a period end must not be active")
	}
}

func TestApplyInvoicePaidStartsNewPeriod(t *testing.T) {
	oldEnd := testNow.Add(-24 * time.Hour)
	repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
	repo.mirrors[7] = &models.BillingSubscription{
		ID: 1, UserID: 7, BillingSubscriptionID: "sub_1",
		Status: "past_due", CurrentPeriodEnd: &oldEnd,
	}
	rec := newTestReconciler(repo)

	payload := `{"id":"in_1","customer":"cus_1","subscription":"sub_1","lines":{"data":[{"period":{"end":` +
		jsonInt(futureUnix()) + `}}]}}`
	var inv payments.Invoice
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		t.Fatalf("unmarshal invoice: %v", err)
	}

	if err := rec.ApplyInvoice(context.Background(), &inv, true, payload); err != nil {
		t.Fatalf("ApplyInvoice: %v", err)
	}

	mirror := repo.mirrors[7]
	if mirror.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %q, want active", mirror.Status)
	}
	if !mirror.Active {
		t.Fatal("paid invoice should reactivate the subscription")
	}
	if mirror.CurrentPeriodEnd.Unix() != futureUnix() {
		t.Fatalf("period end = %d, want %d", mirror.CurrentPeriodEnd.Unix(), futureUnix())
	}
}

func TestApplyInvoiceFailedParksPastDue(t *testing.T) {
	end := testNow.Add(20 * 24 * time.Hour)
	repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
	repo.mirrors[7] = &models.BillingSubscription{
		ID: 1, UserID: 7, BillingSubscriptionID: "sub_1",
		Status: "active", Active: true, CurrentPeriodEnd: &end,
	}
	rec := newTestReconciler(repo)

	inv := &payments.Invoice{ID: "in_2", Customer: "cus_1", Subscription: "sub_1"}
	if err := rec.ApplyInvoice(context.Background(), inv, false, "{}"); err != nil {
		t.Fatalf("ApplyInvoice: %v", err)
	}

	mirror := repo.mirrors[7]
	if mirror.Status != models.SubscriptionStatusPastDue {
		t.Fatalf("status = %q, want past_due", mirror.Status)
	}
	if mirror.Active {
		t.Fatal("failed payment must clear the active flag")
	}
	if !mirror.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("period end changed to %v, want %v", mirror.CurrentPeriodEnd, end)
	}
}

func TestApplyInvoiceKeepsTerminalMirror(t *testing.T) {
	end := testNow.Add(-10 * 24 * time.Hour)
	repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
	repo.mirrors[7] = &models.BillingSubscription{
		ID: 1, UserID: 7, BillingSubscriptionID: "sub_1",
		Status: models.SubscriptionStatusCanceled, CurrentPeriodEnd: &end,
	}
	rec := newTestReconciler(repo)

	// A paid invoice delivered after the cancellation must not bring the
	// subscription back.
	payload := `{"id":"in_4","customer":"cus_1","subscription":"sub_1","lines":{"data":[{"period":{"end":` +
		jsonInt(futureUnix()) + `}}]}}`
	var inv payments.Invoice
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		t.Fatalf("unmarshal invoice: %v", err)
	}

	if err := rec.ApplyInvoice(context.Background(), &inv, true, payload); err != nil {
		t.Fatalf("ApplyInvoice: %v", err)
	}

	mirror := repo.mirrors[7]
	if mirror.Status != models.SubscriptionStatusCanceled {
		t.Fatalf("status = %q, want canceled", mirror.Status)
	}
	if mirror.Active {
		t.Fatal("late invoice resurrected a canceled subscription")
	}
	if !mirror.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("period end changed to %v, want %v", mirror.CurrentPeriodEnd, end)
	}
}

func TestApplyInvoiceWithoutReferencesIsIgnored(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7})
	rec := newTestReconciler(repo)

	if err := rec.ApplyInvoice(context.Background(), &payments.Invoice{ID: "in_3"}, true, "{}"); err != nil {
		t.Fatalf("ApplyInvoice: %v", err)
	}
	if len(repo.mirrors) != 0 {
		t.Fatalf("mirrors written = %d, want 0", len(repo.mirrors))
	}
}

func TestHandleEventRoutesSubscriptionEnvelope(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
	rec := newTestReconciler(repo)

	envelope := `{"id":"evt_1","type":"customer.subscription.created","data":{"object":{"id":"sub_1","customer":"cus_1","status":"active","current_period_end":` +
		jsonInt(futureUnix()) + `}}}`
	event, err := payments.ParseEvent([]byte(envelope))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	if err := rec.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if repo.mirrors[7] == nil || !repo.mirrors[7].Active {
		t.Fatal("expected an active mirror row after subscription.created")
	}
}

func TestHandleEventDeletedWithoutStatus(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, BillingCustomerID: "cus_1"})
	rec := newTestReconciler(repo)

	envelope := `{"id":"evt_2","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","customer":"cus_1"}}}`
	event, err := payments.ParseEvent([]byte(envelope))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	if err := rec.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	mirror := repo.mirrors[7]
	if mirror == nil {
		t.Fatal("expected a mirror row after subscription.deleted")
	}
	if mirror.Status != models.SubscriptionStatusCanceled {
		t.Fatalf("status = %q, want canceled", mirror.Status)
	}
	if mirror.Active {
		t.Fatal("deleted subscription must not be active")
	}
}

func TestHandleEventRejectsForeignType(t *testing.T) {
	rec := newTestReconciler(newFakeRepo())

	err := rec.HandleEvent(context.Background(), &payments.Event{Type: "checkout.session.completed"})
	if err == nil {
		t.Fatal("expected error for a type the reconciler does not own")
	}
}

func jsonInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
