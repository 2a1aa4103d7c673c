package dispute

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"procureflow/lifecycle"
)

var validate = validator.New()

// Repository abstracts storage for the resolution workflow.
type Repository interface {
	Open(ctx context.Context, params OpenParams) (Record, error)
	GetByID(ctx context.Context, id string) (Record, error)
	Assign(ctx context.Context, id, assignee string) (Record, error)
	Resolve(ctx context.Context, params ResolveParams) (Record, error)
	Close(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, filters ListFilters) ([]Record, error)
}

// Service runs the dispute resolution workflow against orders.
type Service struct {
	repo    Repository
	emitter lifecycle.Emitter
	now     func() time.Time
}

func NewService(repo Repository, emitter lifecycle.Emitter) *Service {
	if emitter == nil {
		emitter = lifecycle.NopEmitter{}
	}
	return &Service{
		repo:    repo,
		emitter: emitter,
		now:     time.Now,
	}
}

// Open raises a dispute against an order in any status. A second
// simultaneously active dispute for the same order and issue type fails with
// lifecycle.ErrDuplicateDispute.
func (s *Service) Open(ctx context.Context, params OpenParams) (Record, error) {
	if err := validate.Struct(params); err != nil {
		return Record{}, fmt.Errorf("dispute: invalid open params: %w", err)
	}

	rec, err := s.repo.Open(ctx, params)
	if err != nil {
		return Record{}, err
	}
	s.emit(ctx, rec, "", lifecycle.Actor{ID: params.RaisedBy}, map[string]any{"issue_type": string(rec.IssueType)})
	return rec, nil
}

// Assign hands the dispute to a handler and starts the investigation. Admin
// only.
func (s *Service) Assign(ctx context.Context, id, assignee string, actor lifecycle.Actor) (Record, error) {
	if !actor.Admin {
		return Record{}, fmt.Errorf("dispute %s: actor %s: %w", id, actor.ID, lifecycle.ErrForbidden)
	}
	if assignee == "" {
		return Record{}, fmt.Errorf("dispute: assigned_to required")
	}

	rec, err := s.repo.Assign(ctx, id, assignee)
	if err != nil {
		return Record{}, err
	}
	s.emit(ctx, rec, StatusOpen, actor, map[string]any{"assigned_to": assignee})
	return rec, nil
}

// Resolve ends the investigation with a decision. Admin only; the decision
// and resolver are mandatory.
func (s *Service) Resolve(ctx context.Context, params ResolveParams, actor lifecycle.Actor) (Record, error) {
	if !actor.Admin {
		return Record{}, fmt.Errorf("dispute %s: actor %s: %w", params.DisputeID, actor.ID, lifecycle.ErrForbidden)
	}
	if err := validate.Struct(params); err != nil {
		return Record{}, fmt.Errorf("dispute: invalid resolve params: %w", err)
	}

	rec, err := s.repo.Resolve(ctx, params)
	if err != nil {
		return Record{}, err
	}
	s.emit(ctx, rec, StatusInvestigating, actor, map[string]any{"decision": params.Decision})
	return rec, nil
}

// Close is the terminal administrative close.
func (s *Service) Close(ctx context.Context, id string, actor lifecycle.Actor) (Record, error) {
	if !actor.Admin {
		return Record{}, fmt.Errorf("dispute %s: actor %s: %w", id, actor.ID, lifecycle.ErrForbidden)
	}

	rec, err := s.repo.Close(ctx, id)
	if err != nil {
		return Record{}, err
	}
	s.emit(ctx, rec, StatusResolved, actor, nil)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Record, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) emit(ctx context.Context, rec Record, old Status, actor lifecycle.Actor, payload map[string]any) {
	s.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityDispute,
		EntityID:   rec.ID,
		OldStatus:  string(old),
		NewStatus:  string(rec.Status),
		ActorID:    actor.ID,
		Payload:    payload,
		OccurredAt: s.now().UTC(),
	})
}
