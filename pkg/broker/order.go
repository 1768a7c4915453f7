package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int8

const (
	SideBuy Side = iota
	SideSell
	SideDraft
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	case SideDraft:
		return "DRAFT"
	default:
		return "unknown"
	}
}

// ParseSide parses the wire representation of a side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	case "DRAFT":
		return SideDraft, nil
	default:
		return 0, fmt.Errorf("invalid order side %q", s)
	}
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	side, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// FollowAction is a watch list mutation kind.
type FollowAction int8

const (
	FollowAdd FollowAction = iota
	FollowRemove
)

func (a FollowAction) String() string {
	switch a {
	case FollowAdd:
		return "ADD"
	case FollowRemove:
		return "REMOVE"
	default:
		return "unknown"
	}
}

// ParseFollowAction parses the wire representation of a follow action.
func ParseFollowAction(s string) (FollowAction, error) {
	switch s {
	case "ADD":
		return FollowAdd, nil
	case "REMOVE":
		return FollowRemove, nil
	default:
		return 0, NewError(ReasonUnknownFollowAction, "Invalid action %q.", s)
	}
}

func (a FollowAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *FollowAction) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	action, err := ParseFollowAction(raw)
	if err != nil {
		return err
	}
	*a = action
	return nil
}

// Order is the caller's request to trade. It is validated and priced by
// the engine and never persisted as-is.
type Order struct {
	Symbol string          `json:"symbol"`
	Side   Side            `json:"side"`
	Amount decimal.Decimal `json:"amount"`
}

// Transaction is a committed (or drafted) order together with the quote
// it executed against. Immutable once appended to a ledger.
//
// Cost is always Amount × TickPrice at execution time; quotes are not
// revalidated later.
type Transaction struct {
	Side      Side            `json:"side"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	TickPrice decimal.Decimal `json:"tickPrice"`
	Cost      decimal.Decimal `json:"cost"`
	Date      time.Time       `json:"date"`
}
