package orders

import "errors"

var (
	// ErrValidation covers missing or malformed input: unknown status
	// values, empty food lists, out-of-range ratings.
	ErrValidation = errors.New("invalid order request")

	// ErrNotFound means the referenced order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrInvalidTransition means the requested status does not follow the
	// forward-progression rules from the order's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyClaimed is returned to the loser of a pickup race.
	ErrAlreadyClaimed = errors.New("order already claimed for pickup")

	// ErrAlreadyRated guards the once-only rating rule.
	ErrAlreadyRated = errors.New("order already rated")

	// ErrInvalidSignature means a payment callback failed verification.
	// No mutation happens in that case.
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrRefundFailed means the gateway responded but did not process the
	// refund; the order is left untouched.
	ErrRefundFailed = errors.New("refund was not processed by the gateway")

	// ErrGateway wraps transport-level payment gateway failures.
	ErrGateway = errors.New("payment gateway error")

	// ErrPersistence wraps store write failures. The dangerous variant is
	// a write that fails after an external side effect already happened;
	// those are logged loudly and picked up by the reconciliation sweep.
	ErrPersistence = errors.New("order persistence failed")
)
