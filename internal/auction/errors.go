package auction

import (
	"fmt"
)

// Class buckets every failure the engine can return. All operations are
// all-or-nothing: a returned error means no state changed, except for
// InvariantViolation which freezes the auction rather than absorbing a
// breach silently.
type Class int

const (
	// ClassConfiguration: bad construction parameters. Fatal, blocks deployment.
	ClassConfiguration Class = iota
	// ClassValidation: bad bid parameters. Rejected synchronously.
	ClassValidation
	// ClassState: wrong phase, already settled, already claimed.
	ClassState
	// ClassAuthorization: non-privileged caller on a privileged transition.
	ClassAuthorization
	// ClassInvariant: a breach that should be unreachable in a correctly
	// isolated deployment, surfaced rather than absorbed.
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassConfiguration:
		return "configuration"
	case ClassValidation:
		return "validation"
	case ClassState:
		return "state"
	case ClassAuthorization:
		return "authorization"
	case ClassInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is the engine's typed error. Sentinels below are compared with
// errors.Is; the HTTP layer maps Class to a status code.
type Error struct {
	Class Class
	Code  string
	msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.msg)
}

var (
	ErrInvalidWidth     = &Error{ClassValidation, "invalid_width", "bid must span exactly one price level"}
	ErrInsufficientSize = &Error{ClassValidation, "insufficient_size", "bid size below minimum"}
	ErrPriceBelowFloor  = &Error{ClassValidation, "price_below_floor", "bid level violates the price floor"}
	ErrDuplicateBid     = &Error{ClassValidation, "duplicate_bid", "a live bid already occupies this slot"}
	ErrInvalidOwner     = &Error{ClassValidation, "invalid_owner", "owner identity required"}

	ErrBiddingClosed     = &Error{ClassState, "bidding_closed", "auction is not accepting bids"}
	ErrNotFound          = &Error{ClassState, "not_found", "no such bid"}
	ErrLocked            = &Error{ClassState, "locked", "level would be filled by the current estimate"}
	ErrPartialNotAllowed = &Error{ClassValidation, "partial_not_allowed", "bids must be withdrawn in full"}
	ErrNotYetDue         = &Error{ClassState, "not_yet_due", "settlement deadline has not passed"}
	ErrWrongPhase        = &Error{ClassState, "wrong_phase", "operation not valid in the current phase"}
	ErrAlreadyClaimed    = &Error{ClassState, "already_claimed", "incentives already claimed for this bid"}
	ErrClaimWindowClosed = &Error{ClassState, "claim_window_closed", "claim window has closed"}
	ErrClaimWindowOpen   = &Error{ClassState, "claim_window_open", "claim window is still open"}
	ErrAlreadyMigrated   = &Error{ClassState, "already_migrated", "balances already migrated"}
	ErrNotMigrated       = &Error{ClassState, "not_migrated", "recovery requires migration first"}
	ErrCreditOutstanding = &Error{ClassState, "credit_outstanding", "recovery requires a zero denominator"}

	ErrUnauthorized = &Error{ClassAuthorization, "unauthorized", "caller may not perform this transition"}

	ErrPriceLimitViolated = &Error{ClassInvariant, "price_limit_violated", "realized settlement price violates the floor"}
)

// NewConfigError builds a ConfigurationError for a bad construction parameter.
func NewConfigError(format string, args ...any) *Error {
	return &Error{Class: ClassConfiguration, Code: "invalid_config", msg: fmt.Sprintf(format, args...)}
}

// Is makes wrapped sentinels match on identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}
