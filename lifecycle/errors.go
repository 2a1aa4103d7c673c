package lifecycle

import "errors"

// Error kinds shared across the workflow engine. Each package wraps these with
// entity-specific context; callers branch with errors.Is.
var (
	// ErrInvalidTransition signals the requested state change is not reachable
	// from the entity's current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrIneligibleTarget signals a precondition on a related entity is unmet,
	// e.g. submitting a quote against a non-active RFQ.
	ErrIneligibleTarget = errors.New("target entity not eligible")
	// ErrConflict signals a concurrent modification won; the caller must
	// re-fetch and decide. The engine never retries on its own.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrDuplicateDispute signals a second simultaneously active dispute for
	// the same order and issue type.
	ErrDuplicateDispute = errors.New("duplicate active dispute")
	// ErrUniqueViolation signals a uniqueness invariant would break, e.g. a
	// second review for the same order.
	ErrUniqueViolation = errors.New("uniqueness violation")
	// ErrNotFound signals the entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden signals the actor is not permitted to perform the operation.
	ErrForbidden = errors.New("forbidden")
)
