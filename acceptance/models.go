package acceptance

// Reasons recorded on the rows the acceptance transaction touches.
const (
	reasonSiblingAccepted = "sibling_accepted"
)

// Result bundles everything the acceptance transaction changed, for callers
// that want to render the post-acceptance state without re-fetching.
type Result struct {
	OrderID          string
	AcceptedQuoteID  string
	DeclinedSiblings []string
	RFQID            string
}
