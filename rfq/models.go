package rfq

import "time"

// Status enumerates the RFQ lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// Closed reasons persisted alongside terminal closes.
const (
	ReasonQuoteAccepted  = "quote_accepted"
	ReasonManuallyClosed = "manually_closed"
	ReasonExpired        = "expired"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// CanTransition reports whether the directed edge from -> to exists.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusActive || to == StatusCancelled
	case StatusActive:
		return to == StatusClosed || to == StatusCancelled
	default:
		return false
	}
}

// RFQ mirrors the rfqs table columns touched by the engine.
type RFQ struct {
	ID                    string
	Number                string
	BuyerID               string
	OrganizationID        *string
	ProductID             string
	Quantity              int
	DeliveryAddressID     string
	PreferredDeliveryDate *time.Time
	Notes                 *string
	Status                Status
	ExpiresAt             *time.Time
	ClosedReason          *string
	ClosedAt              *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Expired reports whether the RFQ's expiry timestamp has elapsed.
func (r *RFQ) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// EffectiveStatus applies lazy expiry: an active RFQ whose expiry has passed
// reads as closed even before the sweep persists the transition.
func (r *RFQ) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusActive && r.Expired(now) {
		return StatusClosed
	}
	return r.Status
}

// EffectiveClosedReason pairs with EffectiveStatus for read surfaces.
func (r *RFQ) EffectiveClosedReason(now time.Time) *string {
	if r.Status == StatusActive && r.Expired(now) {
		reason := ReasonExpired
		return &reason
	}
	return r.ClosedReason
}

// CreateParams carries buyer input for a new draft RFQ.
type CreateParams struct {
	BuyerID               string     `validate:"required"`
	OrganizationID        *string    ``
	ProductID             string     `validate:"required"`
	Quantity              int        `validate:"required,gt=0"`
	DeliveryAddressID     string     `validate:"required"`
	PreferredDeliveryDate *time.Time ``
	Notes                 *string    `validate:"omitempty,max=2000"`
	ExpiresAt             *time.Time ``
}

// ListFilters narrows RFQ listings.
type ListFilters struct {
	BuyerID   string
	ProductID string
	Status    Status
	Limit     int
	Offset    int
}
