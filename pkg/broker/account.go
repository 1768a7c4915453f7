// Package broker holds the trading-account domain model and the order
// execution engine: order validation against live quotes, account
// mutation (liquidity and per-symbol allocations), ledger recording,
// and watch list maintenance.
package broker

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account is the persisted per-user state: cash liquidity, stock
// allocations, the followed-symbol watch list, and credential fields.
// Credential fields are opaque to the engine; only the identity service
// reads them.
type Account struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`

	// Liquidity is the cash balance. It may go negative on BUY: buying
	// power is intentionally not enforced.
	Liquidity decimal.Decimal `json:"liquidity"`

	// Allocations holds one entry per symbol. Amounts never go negative;
	// a SELL that would overdraw is rejected before any mutation.
	Allocations []Allocation `json:"allocations"`

	// WatchList holds distinct followed symbols.
	WatchList []string `json:"watchList"`
}

// Allocation is the quantity of a single symbol held by a user.
type Allocation struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

// NewAccount creates an account with zero liquidity and empty sets.
// Accounts come into existence on first reference and are never deleted.
func NewAccount(userID string) *Account {
	return &Account{
		UserID:      userID,
		Liquidity:   decimal.Zero,
		Allocations: []Allocation{},
		WatchList:   []string{},
	}
}

// Allocation returns a pointer into the allocation slice for symbol,
// or nil if the account holds none of it.
func (a *Account) Allocation(symbol string) *Allocation {
	for i := range a.Allocations {
		if a.Allocations[i].Symbol == symbol {
			return &a.Allocations[i]
		}
	}
	return nil
}

// Follows reports whether symbol is on the watch list.
func (a *Account) Follows(symbol string) bool {
	for _, s := range a.WatchList {
		if s == symbol {
			return true
		}
	}
	return false
}

// Unfollow removes symbol from the watch list. Reports whether the
// symbol was present.
func (a *Account) Unfollow(symbol string) bool {
	for i, s := range a.WatchList {
		if s == symbol {
			a.WatchList = append(a.WatchList[:i], a.WatchList[i+1:]...)
			return true
		}
	}
	return false
}

// Validate checks account invariants.
func (a *Account) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("account has no user id")
	}
	seen := make(map[string]bool, len(a.Allocations))
	for _, alloc := range a.Allocations {
		if seen[alloc.Symbol] {
			return fmt.Errorf("duplicate allocation for %s", alloc.Symbol)
		}
		seen[alloc.Symbol] = true
		if alloc.Amount.IsNegative() {
			return fmt.Errorf("negative allocation for %s: %s", alloc.Symbol, alloc.Amount)
		}
	}
	followed := make(map[string]bool, len(a.WatchList))
	for _, s := range a.WatchList {
		if followed[s] {
			return fmt.Errorf("duplicate watch list entry %s", s)
		}
		followed[s] = true
	}
	return nil
}
