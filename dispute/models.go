package dispute

import "time"

// Status represents the dispute lifecycle. Every transition passes through
// investigating; open -> resolved directly is not a legal edge.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusClosed        Status = "closed"
)

// Active reports whether the dispute counts against the one-active-per-issue
// rule.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusInvestigating
}

// IssueType classifies what the dispute is about.
type IssueType string

const (
	IssueQuality  IssueType = "quality_issue"
	IssueDelivery IssueType = "delivery_issue"
	IssuePricing  IssueType = "pricing_issue"
	IssueOther    IssueType = "other"
)

// Record mirrors the disputes table.
type Record struct {
	ID                  string
	OrderID             string
	RaisedBy            string
	IssueType           IssueType
	Description         string
	PreferredResolution *string
	Status              Status
	AssignedTo          *string
	ResolutionDecision  *string
	ResolutionNotes     *string
	ResolutionAction    *string
	ResolvedBy          *string
	ResolvedAt          *time.Time
	ClosedAt            *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OpenParams carries input for raising a new dispute.
type OpenParams struct {
	OrderID             string    `validate:"required"`
	RaisedBy            string    `validate:"required"`
	IssueType           IssueType `validate:"required,oneof=quality_issue delivery_issue pricing_issue other"`
	Description         string    `validate:"required,min=10,max=2000"`
	PreferredResolution *string   `validate:"omitempty,max=1000"`
}

// ResolveParams carries the decision ending an investigation.
type ResolveParams struct {
	DisputeID  string `validate:"required"`
	Decision   string `validate:"required"`
	Notes      *string
	Action     *string
	ResolvedBy string `validate:"required"`
}

// ListFilters narrows dispute listings.
type ListFilters struct {
	OrderID   string
	RaisedBy  string
	Status    Status
	IssueType IssueType
	Limit     int
	Offset    int
}
