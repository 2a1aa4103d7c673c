package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the quote lifecycle states. All three outcome states are
// terminal.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool { return s != StatusSubmitted }

// PaymentTerms enumerates the settlement terms a vendor may offer.
type PaymentTerms string

const (
	TermsCOD     PaymentTerms = "cod"
	TermsNet30   PaymentTerms = "net_30"
	TermsNet60   PaymentTerms = "net_60"
	TermsPrepaid PaymentTerms = "prepaid"
)

// Quote is a vendor's priced, time-bounded offer against an RFQ.
type Quote struct {
	ID               string
	RFQID            string
	VendorID         string
	PricePerUnit     decimal.Decimal
	Currency         string
	QuantityAvail    int
	MinOrderQuantity *int
	MaxOrderQuantity *int
	DeliveryFee      *decimal.Decimal
	LeadTimeDays     int
	PaymentTerms     PaymentTerms
	ValidUntil       time.Time
	Notes            *string
	Status           Status
	AcceptedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether the validity deadline has elapsed.
func (q *Quote) Expired(now time.Time) bool {
	return !q.ValidUntil.After(now)
}

// EffectiveStatus applies lazy expiry: a submitted quote past its deadline
// reads as expired before the sweep persists the transition. Quotes already
// in a terminal state are untouched; an accepted quote never expires.
func (q *Quote) EffectiveStatus(now time.Time) Status {
	if q.Status == StatusSubmitted && q.Expired(now) {
		return StatusExpired
	}
	return q.Status
}

// SubmitParams carries vendor input for a new quote.
type SubmitParams struct {
	RFQID            string           `validate:"required"`
	VendorID         string           `validate:"required"`
	PricePerUnit     decimal.Decimal  `validate:"required"`
	Currency         string           `validate:"required,len=3"`
	QuantityAvail    int              `validate:"required,gt=0"`
	MinOrderQuantity *int             `validate:"omitempty,gt=0"`
	MaxOrderQuantity *int             `validate:"omitempty,gt=0"`
	DeliveryFee      *decimal.Decimal ``
	LeadTimeDays     int              `validate:"gte=0"`
	PaymentTerms     PaymentTerms     `validate:"omitempty,oneof=cod net_30 net_60 prepaid"`
	ValidUntil       time.Time        `validate:"required"`
	Notes            *string          `validate:"omitempty,max=2000"`
}

// ListFilters narrows quote listings.
type ListFilters struct {
	RFQID    string
	VendorID string
	Status   Status
	Limit    int
	Offset   int
}
