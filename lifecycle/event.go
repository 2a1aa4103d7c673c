package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entity names used in lifecycle events.
const (
	EntityRFQ     = "rfq"
	EntityQuote   = "quote"
	EntityOrder   = "order"
	EntityDispute = "dispute"
	EntityReview  = "review"
)

// Event records one successful status transition.
type Event struct {
	Entity     string
	EntityID   string
	OldStatus  string
	NewStatus  string
	ActorID    string
	Payload    map[string]any
	OccurredAt time.Time
}

// Emitter fans lifecycle events out to the notification/audit collaborator.
// Emit is fire-and-forget: delivery failure must never roll back the
// transition that produced the event, so implementations log and swallow
// their own errors.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// NopEmitter discards events.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}

// PGEmitter appends events to the lifecycle_events table, outside the
// transaction that performed the transition. The downstream consumer owns
// delivery and retry.
type PGEmitter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPGEmitter(pool *pgxpool.Pool, log *slog.Logger) *PGEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &PGEmitter{pool: pool, log: log}
}

func (e *PGEmitter) Emit(ctx context.Context, ev Event) {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("lifecycle: marshal event payload", "entity", ev.Entity, "entity_id", ev.EntityID, "err", err)
		return
	}

	var oldStatus, actorID any
	if ev.OldStatus != "" {
		oldStatus = ev.OldStatus
	}
	if ev.ActorID != "" {
		actorID = ev.ActorID
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	const insertSQL = `
        INSERT INTO lifecycle_events (entity_type, entity_id, old_status, new_status, actor_id, payload, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
    `
	if _, err := e.pool.Exec(ctx, insertSQL, ev.Entity, ev.EntityID, oldStatus, ev.NewStatus, actorID, body, occurred); err != nil {
		e.log.Error("lifecycle: emit event", "entity", ev.Entity, "entity_id", ev.EntityID, "new_status", ev.NewStatus, "err", err)
	}
}
