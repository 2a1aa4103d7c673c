package sweep

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"procureflow/lifecycle"
)

type fakeExpirer struct {
	ids     []string
	lost    map[string]bool
	failing map[string]bool
	marked  []string
}

func (f *fakeExpirer) list(ctx context.Context, limit int) ([]string, error) {
	if limit < len(f.ids) {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

func (f *fakeExpirer) mark(ctx context.Context, id string) (bool, error) {
	if f.failing[id] {
		return false, errors.New("row gone sideways")
	}
	if f.lost[id] {
		return false, nil
	}
	f.marked = append(f.marked, id)
	return true, nil
}

// interface adapters
func (f *fakeExpirer) ListExpiredActive(ctx context.Context, limit int) ([]string, error) {
	return f.list(ctx, limit)
}
func (f *fakeExpirer) ListExpiredSubmitted(ctx context.Context, limit int) ([]string, error) {
	return f.list(ctx, limit)
}
func (f *fakeExpirer) MarkExpired(ctx context.Context, id string) (bool, error) {
	return f.mark(ctx, id)
}

type captureEmitter struct {
	events []lifecycle.Event
}

func (c *captureEmitter) Emit(_ context.Context, ev lifecycle.Event) {
	c.events = append(c.events, ev)
}

func TestSweep_MarksAndEmits(t *testing.T) {
	rfqs := &fakeExpirer{ids: []string{"rfq-1", "rfq-2"}}
	quotes := &fakeExpirer{ids: []string{"quote-1"}}
	emitter := &captureEmitter{}
	s := New(rfqs, quotes, emitter, slog.Default(), time.Minute, 100)

	s.Sweep(context.Background())

	if len(rfqs.marked) != 2 || len(quotes.marked) != 1 {
		t.Fatalf("marked rfqs=%v quotes=%v", rfqs.marked, quotes.marked)
	}
	if len(emitter.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(emitter.events))
	}
	for _, ev := range emitter.events {
		switch ev.Entity {
		case lifecycle.EntityRFQ:
			if ev.NewStatus != "closed" {
				t.Errorf("rfq expiry event new status = %s, want closed", ev.NewStatus)
			}
		case lifecycle.EntityQuote:
			if ev.NewStatus != "expired" {
				t.Errorf("quote expiry event new status = %s, want expired", ev.NewStatus)
			}
		default:
			t.Errorf("unexpected entity %s", ev.Entity)
		}
	}
}

func TestSweep_SkipsRaceLosers(t *testing.T) {
	// rfq-1 was accepted between listing and marking; the conditional
	// update matches nothing and no event fires.
	rfqs := &fakeExpirer{ids: []string{"rfq-1", "rfq-2"}, lost: map[string]bool{"rfq-1": true}}
	quotes := &fakeExpirer{}
	emitter := &captureEmitter{}
	s := New(rfqs, quotes, emitter, slog.Default(), time.Minute, 100)

	s.Sweep(context.Background())

	if len(rfqs.marked) != 1 || rfqs.marked[0] != "rfq-2" {
		t.Fatalf("marked = %v", rfqs.marked)
	}
	if len(emitter.events) != 1 || emitter.events[0].EntityID != "rfq-2" {
		t.Fatalf("events = %+v", emitter.events)
	}
}

func TestSweep_RowErrorDoesNotBlockBatch(t *testing.T) {
	rfqs := &fakeExpirer{ids: []string{"rfq-1", "rfq-2", "rfq-3"}, failing: map[string]bool{"rfq-2": true}}
	quotes := &fakeExpirer{}
	s := New(rfqs, quotes, &captureEmitter{}, slog.Default(), time.Minute, 100)

	s.Sweep(context.Background())

	if len(rfqs.marked) != 2 {
		t.Fatalf("marked = %v, want rfq-1 and rfq-3", rfqs.marked)
	}
}

func TestSweep_RespectsBatchLimit(t *testing.T) {
	rfqs := &fakeExpirer{ids: []string{"rfq-1", "rfq-2", "rfq-3"}}
	quotes := &fakeExpirer{}
	s := New(rfqs, quotes, &captureEmitter{}, slog.Default(), time.Minute, 2)

	s.Sweep(context.Background())

	if len(rfqs.marked) != 2 {
		t.Fatalf("marked = %v, want batch of 2", rfqs.marked)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(&fakeExpirer{}, &fakeExpirer{}, &captureEmitter{}, slog.Default(), 10*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
