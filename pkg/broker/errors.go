package broker

import "fmt"

// Reason classifies a rejected operation. Every value is a caller/input
// failure, never a system fault: callers branch on the reason instead of
// unwinding.
type Reason int8

const (
	ReasonUnsupportedSymbol Reason = iota
	ReasonNotYetPriced
	ReasonInvalidAmount
	ReasonAllocationNotFound
	ReasonInsufficientAllocation
	ReasonDuplicateEmail
	ReasonInvalidCredentials
	ReasonUnknownFollowAction
	ReasonSymbolNotFollowed
)

func (r Reason) String() string {
	switch r {
	case ReasonUnsupportedSymbol:
		return "unsupported_symbol"
	case ReasonNotYetPriced:
		return "not_yet_priced"
	case ReasonInvalidAmount:
		return "invalid_amount"
	case ReasonAllocationNotFound:
		return "allocation_not_found"
	case ReasonInsufficientAllocation:
		return "insufficient_allocation"
	case ReasonDuplicateEmail:
		return "duplicate_email"
	case ReasonInvalidCredentials:
		return "invalid_credentials"
	case ReasonUnknownFollowAction:
		return "unknown_follow_action"
	case ReasonSymbolNotFollowed:
		return "symbol_not_followed"
	default:
		return "unknown"
	}
}

// Error is the single discriminated rejection type shared by order
// execution, watch list updates, and the identity operations.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds a rejection with a human-readable explanation.
func NewError(reason Reason, format string, args ...any) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
