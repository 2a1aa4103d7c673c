// Package sweep persists lazy expirations. Reads already treat an RFQ or
// quote past its deadline as expired; the sweeper makes that durable so
// listings and analytics see the terminal row without recomputing deadlines.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"procureflow/lifecycle"
)

// RFQExpirer is the slice of the RFQ repository the sweeper needs.
type RFQExpirer interface {
	ListExpiredActive(ctx context.Context, limit int) ([]string, error)
	MarkExpired(ctx context.Context, id string) (bool, error)
}

// QuoteExpirer is the slice of the quote repository the sweeper needs.
type QuoteExpirer interface {
	ListExpiredSubmitted(ctx context.Context, limit int) ([]string, error)
	MarkExpired(ctx context.Context, id string) (bool, error)
}

// Sweeper periodically marks deadline-passed RFQs and quotes expired. Each
// mark is a conditional update keyed on the non-terminal status, so a row
// accepted or closed between listing and marking is left untouched.
type Sweeper struct {
	rfqs     RFQExpirer
	quotes   QuoteExpirer
	emitter  lifecycle.Emitter
	logger   *slog.Logger
	interval time.Duration
	batch    int
	now      func() time.Time
}

func New(rfqs RFQExpirer, quotes QuoteExpirer, emitter lifecycle.Emitter, logger *slog.Logger, interval time.Duration, batch int) *Sweeper {
	if emitter == nil {
		emitter = lifecycle.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		rfqs:     rfqs,
		quotes:   quotes,
		emitter:  emitter,
		logger:   logger,
		interval: interval,
		batch:    batch,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. One pass runs
// immediately on start.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass over both tables. Per-row failures are logged and
// skipped; one bad row never blocks the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) {
	expiredRFQs := s.sweepEntity(ctx, lifecycle.EntityRFQ, "active", "closed", s.rfqs.ListExpiredActive, s.rfqs.MarkExpired)
	expiredQuotes := s.sweepEntity(ctx, lifecycle.EntityQuote, "submitted", "expired", s.quotes.ListExpiredSubmitted, s.quotes.MarkExpired)
	if expiredRFQs > 0 || expiredQuotes > 0 {
		s.logger.Info("sweep pass complete", "rfqs_expired", expiredRFQs, "quotes_expired", expiredQuotes)
	}
}

func (s *Sweeper) sweepEntity(
	ctx context.Context,
	entity, oldStatus, newStatus string,
	list func(context.Context, int) ([]string, error),
	mark func(context.Context, string) (bool, error),
) int {
	ids, err := list(ctx, s.batch)
	if err != nil {
		s.logger.Error("sweep: list expired failed", "entity", entity, "error", err)
		return 0
	}

	expired := 0
	for _, id := range ids {
		ok, err := mark(ctx, id)
		if err != nil {
			s.logger.Error("sweep: mark expired failed", "entity", entity, "id", id, "error", err)
			continue
		}
		if !ok {
			// Lost the race to an acceptance or manual close.
			continue
		}
		expired++
		s.emitter.Emit(ctx, lifecycle.Event{
			Entity:     entity,
			EntityID:   id,
			OldStatus:  oldStatus,
			NewStatus:  newStatus,
			Payload:    map[string]any{"reason": "expired"},
			OccurredAt: s.now().UTC(),
		})
	}
	return expired
}
