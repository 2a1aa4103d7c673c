package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the fulfillment states.
type Status string

const (
	StatusPendingVendorConfirmation Status = "pending_vendor_confirmation"
	StatusConfirmed                 Status = "confirmed"
	StatusPreparing                 Status = "preparing"
	StatusDispatched                Status = "dispatched"
	StatusInTransit                 Status = "in_transit"
	StatusDelivered                 Status = "delivered"
	StatusCancelled                 Status = "cancelled"
	StatusVendorDeclined            Status = "vendor_declined"
)

// forwardNext maps each forward state to its single successor. Skipping a
// state is not a legal transition.
var forwardNext = map[Status]Status{
	StatusPendingVendorConfirmation: StatusConfirmed,
	StatusConfirmed:                 StatusPreparing,
	StatusPreparing:                 StatusDispatched,
	StatusDispatched:                StatusInTransit,
	StatusInTransit:                 StatusDelivered,
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusVendorDeclined:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the directed edge from -> to exists.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusCancelled:
		return true
	case StatusVendorDeclined:
		return from == StatusPendingVendorConfirmation
	default:
		return forwardNext[from] == to
	}
}

// PaymentMethod is the payment tag recorded on the order. Capture and
// settlement live elsewhere.
type PaymentMethod string

const (
	MethodCOD     PaymentMethod = "cod"
	MethodPrepaid PaymentMethod = "prepaid"
	MethodCredit  PaymentMethod = "credit"
)

// Order is the binding record produced by accepting a quote. The commercial
// terms (price, quantity, quote reference) are immutable after creation;
// only status and delivery metadata mutate.
type Order struct {
	ID                   string
	Number               string
	RFQID                string
	QuoteID              string
	BuyerID              string
	VendorID             string
	OrganizationID       *string
	ProductID            string
	Quantity             int
	UnitPrice            decimal.Decimal
	Currency             string
	Subtotal             decimal.Decimal
	DeliveryFee          *decimal.Decimal
	TotalAmount          decimal.Decimal
	DeliveryAddressID    string
	ExpectedDeliveryDate *time.Time
	Status               Status
	PaymentMethod        PaymentMethod
	VendorDeclinedReason *string
	CancelledBy          *string
	CancellationReason   *string
	CancelledAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ListFilters narrows order listings.
type ListFilters struct {
	BuyerID  string
	VendorID string
	Status   Status
	Limit    int
	Offset   int
}
