package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"procureflow/lifecycle"
)

type fakeRepo struct {
	orders    map[string]Order
	advanced  []Status
	declined  string
	cancelled string
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return Order{}, lifecycle.ErrNotFound
}

func (f *fakeRepo) Advance(ctx context.Context, id string, from, to Status) (Order, error) {
	f.advanced = append(f.advanced, to)
	o := f.orders[id]
	o.Status = to
	f.orders[id] = o
	return o, nil
}

func (f *fakeRepo) Decline(ctx context.Context, id, reason string) (Order, error) {
	f.declined = reason
	o := f.orders[id]
	o.Status = StatusVendorDeclined
	o.VendorDeclinedReason = &reason
	return o, nil
}

func (f *fakeRepo) Cancel(ctx context.Context, id, reason, cancelledBy string) (Order, error) {
	f.cancelled = cancelledBy
	o := f.orders[id]
	o.Status = StatusCancelled
	o.CancellationReason = &reason
	o.CancelledBy = &cancelledBy
	return o, nil
}

func (f *fakeRepo) List(ctx context.Context, filters ListFilters) ([]Order, error) {
	return nil, nil
}

type captureEmitter struct {
	events []lifecycle.Event
}

func (c *captureEmitter) Emit(_ context.Context, ev lifecycle.Event) {
	c.events = append(c.events, ev)
}

func newTestService(repo *fakeRepo, emitter *captureEmitter) *Service {
	svc := NewService(repo, emitter)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func pendingOrder() map[string]Order {
	return map[string]Order{
		"order-1": {ID: "order-1", BuyerID: "buyer-1", VendorID: "vendor-1", Status: StatusPendingVendorConfirmation},
	}
}

func TestAdvance_VendorStepsForward(t *testing.T) {
	repo := &fakeRepo{orders: pendingOrder()}
	emitter := &captureEmitter{}
	svc := newTestService(repo, emitter)
	vendor := lifecycle.Actor{ID: "vendor-1"}

	rec, err := svc.Advance(context.Background(), "order-1", StatusConfirmed, vendor)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if rec.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", rec.Status)
	}
	if len(emitter.events) != 1 || emitter.events[0].OldStatus != string(StatusPendingVendorConfirmation) {
		t.Errorf("unexpected events %+v", emitter.events)
	}
}

func TestAdvance_RejectsSkip(t *testing.T) {
	repo := &fakeRepo{orders: pendingOrder()}
	svc := newTestService(repo, &captureEmitter{})
	vendor := lifecycle.Actor{ID: "vendor-1"}

	_, err := svc.Advance(context.Background(), "order-1", StatusPreparing, vendor)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(repo.advanced) != 0 {
		t.Error("repository should not be reached on a skip")
	}
}

func TestAdvance_RejectsBuyer(t *testing.T) {
	repo := &fakeRepo{orders: pendingOrder()}
	svc := newTestService(repo, &captureEmitter{})

	_, err := svc.Advance(context.Background(), "order-1", StatusConfirmed, lifecycle.Actor{ID: "buyer-1"})
	if !errors.Is(err, lifecycle.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAdvance_AdminOverride(t *testing.T) {
	repo := &fakeRepo{orders: pendingOrder()}
	svc := newTestService(repo, &captureEmitter{})

	if _, err := svc.Advance(context.Background(), "order-1", StatusConfirmed, lifecycle.Actor{ID: "admin-1", Admin: true}); err != nil {
		t.Fatalf("admin advance: %v", err)
	}
}

func TestDecline_RequiresReason(t *testing.T) {
	repo := &fakeRepo{orders: pendingOrder()}
	svc := newTestService(repo, &captureEmitter{})

	if _, err := svc.Decline(context.Background(), "order-1", "", lifecycle.Actor{ID: "vendor-1"}); err == nil {
		t.Fatal("expected error for empty decline reason")
	}
	if repo.declined != "" {
		t.Error("repository should not be reached without a reason")
	}
}

func TestCancel_BuyerAndVendorAllowed(t *testing.T) {
	for _, actorID := range []string{"buyer-1", "vendor-1"} {
		repo := &fakeRepo{orders: pendingOrder()}
		svc := newTestService(repo, &captureEmitter{})

		rec, err := svc.Cancel(context.Background(), "order-1", "changed plans", lifecycle.Actor{ID: actorID})
		if err != nil {
			t.Fatalf("cancel as %s: %v", actorID, err)
		}
		if rec.Status != StatusCancelled {
			t.Errorf("status = %s", rec.Status)
		}
		if repo.cancelled != actorID {
			t.Errorf("cancelled_by = %q, want %q", repo.cancelled, actorID)
		}
	}
}

func TestCancel_RejectsStranger(t *testing.T) {
	repo := &fakeRepo{orders: pendingOrder()}
	svc := newTestService(repo, &captureEmitter{})

	_, err := svc.Cancel(context.Background(), "order-1", "nope", lifecycle.Actor{ID: "stranger"})
	if !errors.Is(err, lifecycle.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
