package api

import (
	"github.com/shopspring/decimal"

	"github.com/paperstreet/brokerd/pkg/broker"
	"github.com/paperstreet/brokerd/pkg/storage"
)

// API request/response types. Account and directory views never expose
// the password hash.

// AccountInfo is the client-facing view of an account.
type AccountInfo struct {
	UserID      string              `json:"userId"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Liquidity   decimal.Decimal     `json:"liquidity"`
	Allocations []broker.Allocation `json:"allocations"`
	WatchList   []string            `json:"watchList"`
}

func newAccountInfo(acc *broker.Account) AccountInfo {
	return AccountInfo{
		UserID:      acc.UserID,
		Name:        acc.Name,
		Email:       acc.Email,
		Liquidity:   acc.Liquidity,
		Allocations: acc.Allocations,
		WatchList:   acc.WatchList,
	}
}

// UserStatsInfo is one row of the user directory listing.
type UserStatsInfo struct {
	UserID      string          `json:"userId"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Liquidity   decimal.Decimal `json:"liquidity"`
	Allocations int             `json:"allocations"`
	WatchList   int             `json:"watchList"`
}

func newUserStatsInfo(entry storage.StatsEntry) UserStatsInfo {
	return UserStatsInfo{
		UserID:      entry.UserID,
		Name:        entry.Name,
		Email:       entry.Email,
		Liquidity:   entry.Liquidity,
		Allocations: entry.Allocations,
		WatchList:   entry.WatchList,
	}
}

// OrderResult is the success payload of POST /transactions: the
// executed (or drafted) transaction plus the refreshed account.
type OrderResult struct {
	Transaction broker.Transaction `json:"transaction"`
	Account     AccountInfo        `json:"account"`
}

// FollowRequest mutates the watch list.
type FollowRequest struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the success payload of login and register.
type AuthResponse struct {
	Message string        `json:"message"`
	User    UserStatsInfo `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WSEvent is a broadcast message pushed to websocket clients.
type WSEvent struct {
	Type   string `json:"type"` // "transaction" or "watchlist"
	UserID string `json:"userId"`
	Data   any    `json:"data"`
}
