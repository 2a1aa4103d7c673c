package review

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"procureflow/lifecycle"
)

var validate = validator.New()

// Repository abstracts review storage.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Review, error)
	GetByID(ctx context.Context, id string) (Review, error)
	VendorRespond(ctx context.Context, id, vendorID, response string) (Review, error)
	SetStatus(ctx context.Context, id string, status Status, reason *string, moderatorID string) (Review, error)
	MarkHelpful(ctx context.Context, id string) (Review, error)
	List(ctx context.Context, filters ListFilters) ([]Review, error)
	VendorAverage(ctx context.Context, vendorID string) (float64, int, error)
}

// Service handles post-fulfillment reviews.
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

// Create leaves a review on a delivered order. Only the buyer on the order
// may review, and only once.
func (s *Service) Create(ctx context.Context, params CreateParams) (Review, error) {
	if err := validate.Struct(params); err != nil {
		return Review{}, fmt.Errorf("review: invalid create params: %w", err)
	}

	rev, err := s.repo.Create(ctx, params)
	if err != nil {
		return Review{}, err
	}
	s.emit(ctx, rev, "", lifecycle.Actor{ID: params.BuyerID}, map[string]any{"overall_rating": rev.OverallRating})
	return rev, nil
}

// VendorRespond attaches the vendor's one public reply.
func (s *Service) VendorRespond(ctx context.Context, id, response string, actor lifecycle.Actor) (Review, error) {
	if response == "" {
		return Review{}, fmt.Errorf("review: response required")
	}
	if len(response) > 2000 {
		return Review{}, fmt.Errorf("review: response exceeds 2000 characters")
	}
	return s.repo.VendorRespond(ctx, id, actor.ID, response)
}

// Hide withholds a review from public listings. Admin only.
func (s *Service) Hide(ctx context.Context, id, reason string, actor lifecycle.Actor) (Review, error) {
	return s.moderate(ctx, id, StatusHidden, reason, actor)
}

// Flag marks a review for moderation follow-up. Admin only.
func (s *Service) Flag(ctx context.Context, id, reason string, actor lifecycle.Actor) (Review, error) {
	return s.moderate(ctx, id, StatusFlagged, reason, actor)
}

// Republish restores a hidden or flagged review. Admin only.
func (s *Service) Republish(ctx context.Context, id string, actor lifecycle.Actor) (Review, error) {
	return s.moderate(ctx, id, StatusPublished, "", actor)
}

func (s *Service) moderate(ctx context.Context, id string, status Status, reason string, actor lifecycle.Actor) (Review, error) {
	if !actor.Admin {
		return Review{}, fmt.Errorf("review %s: actor %s: %w", id, actor.ID, lifecycle.ErrForbidden)
	}
	if status != StatusPublished && reason == "" {
		return Review{}, fmt.Errorf("review: moderation reason required")
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Review{}, err
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	rev, err := s.repo.SetStatus(ctx, id, status, reasonPtr, actor.ID)
	if err != nil {
		return Review{}, err
	}
	if before.Status != rev.Status {
		s.emit(ctx, rev, before.Status, actor, nil)
	}
	return rev, nil
}

// MarkHelpful increments the helpful counter for any signed-in reader.
func (s *Service) MarkHelpful(ctx context.Context, id string) (Review, error) {
	return s.repo.MarkHelpful(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (Review, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Review, error) {
	return s.repo.List(ctx, filters)
}

// VendorSummary aggregates a vendor's published ratings.
type VendorSummary struct {
	VendorID      string  `json:"vendor_id"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

func (s *Service) VendorSummary(ctx context.Context, vendorID string) (VendorSummary, error) {
	avg, count, err := s.repo.VendorAverage(ctx, vendorID)
	if err != nil {
		return VendorSummary{}, err
	}
	return VendorSummary{VendorID: vendorID, AverageRating: avg, ReviewCount: count}, nil
}

func (s *Service) emit(ctx context.Context, rev Review, old Status, actor lifecycle.Actor, payload map[string]any) {
	s.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityReview,
		EntityID:   rev.ID,
		OldStatus:  string(old),
		NewStatus:  string(rev.Status),
		ActorID:    actor.ID,
		Payload:    payload,
		OccurredAt: s.now().UTC(),
	})
}
