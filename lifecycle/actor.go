package lifecycle

// Actor identifies who is performing a lifecycle operation. Admin actors may
// exercise the explicit admin overrides the workflow rules grant (closing an
// RFQ, cancelling an order, running a dispute).
type Actor struct {
	ID    string
	Admin bool
}
