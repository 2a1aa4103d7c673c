package review

import "time"

// Status is the moderation state of a review. Published reviews are visible;
// hidden and flagged reviews are withheld from public listings.
type Status string

const (
	StatusPublished Status = "published"
	StatusHidden    Status = "hidden"
	StatusFlagged   Status = "flagged"
)

// Review mirrors the reviews table. One review per order, buyer-authored,
// only after delivery.
type Review struct {
	ID                   string
	OrderID              string
	BuyerID              string
	VendorID             string
	OverallRating        int
	ProductQualityRating *int
	DeliveryRating       *int
	CommunicationRating  *int
	PricingRating        *int
	ReviewText           *string
	IsAnonymous          bool
	HelpfulCount         int
	IsVerifiedPurchase   bool
	VendorResponse       *string
	VendorResponseAt     *time.Time
	Status               Status
	HiddenReason         *string
	HiddenBy             *string
	HiddenAt             *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CreateParams carries input for leaving a review on a delivered order.
type CreateParams struct {
	OrderID              string  `validate:"required"`
	BuyerID              string  `validate:"required"`
	OverallRating        int     `validate:"required,min=1,max=5"`
	ProductQualityRating *int    `validate:"omitempty,min=1,max=5"`
	DeliveryRating       *int    `validate:"omitempty,min=1,max=5"`
	CommunicationRating  *int    `validate:"omitempty,min=1,max=5"`
	PricingRating        *int    `validate:"omitempty,min=1,max=5"`
	ReviewText           *string `validate:"omitempty,max=2000"`
	IsAnonymous          bool
}

// ListFilters narrows review listings. VisibleOnly restricts results to
// published reviews.
type ListFilters struct {
	VendorID    string
	BuyerID     string
	OrderID     string
	VisibleOnly bool
	Limit       int
	Offset      int
}
