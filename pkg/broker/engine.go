package broker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/paperstreet/brokerd/pkg/marketdata"
	"github.com/paperstreet/brokerd/pkg/util"
)

// Store is the persistence boundary the engine mutates through. The
// pebble implementation lives in pkg/storage; the engine only sees this
// interface so that the process entry point owns the store lifecycle.
//
// SaveAccount and CommitTransaction refresh the global stats entry for
// the account as part of the write, not as a separate step.
type Store interface {
	// GetAccount returns the stored account, or a fresh zero-value
	// account when none exists.
	GetAccount(userID string) (*Account, error)
	// SaveAccount overwrites the account record in full.
	SaveAccount(acc *Account) error
	// CommitTransaction appends txn to the user's transaction ledger and
	// overwrites the account record in one atomic write.
	CommitTransaction(acc *Account, txn Transaction) error

	Transactions(userID string) ([]Transaction, error)
	Drafts(userID string) ([]Transaction, error)
	AppendDraft(userID string, draft Transaction) error
	ClearDrafts(userID string) error
}

// Engine validates orders against live quotes and applies them to
// account state. All mutation of a user's account goes through here
// (or FollowStock), under a per-user lock held for the full
// load-mutate-save sequence. Orders for different users run in parallel.
type Engine struct {
	store  Store
	quotes marketdata.Provider
	clock  util.Clock
	log    *zap.SugaredLogger

	mu    sync.Mutex
	users map[string]*sync.Mutex // userID -> account lock
}

// NewEngine wires an engine over its collaborators.
func NewEngine(store Store, quotes marketdata.Provider, clock util.Clock, log *zap.SugaredLogger) *Engine {
	return &Engine{
		store:  store,
		quotes: quotes,
		clock:  clock,
		log:    log,
		users:  make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing writes for a user, creating it
// on first reference.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.users[userID] = lock
	}
	return lock
}

// ExecuteOrder validates ord, applies it to the user's account, and
// records the result.
//
// Preconditions, first failure wins: the symbol must be quotable, the
// quote must carry a last tick, and the amount must be positive.
//
// BUY increases the symbol allocation and debits liquidity by cost;
// SELL requires a sufficient allocation, decreases it, and credits
// liquidity; DRAFT records the priced order on the draft ledger without
// touching the account. Rejections are *Error values; the account is
// left untouched on any failure.
func (e *Engine) ExecuteOrder(ctx context.Context, userID string, ord Order) (*Transaction, error) {
	quote, err := e.quotes.GetQuote(ctx, ord.Symbol)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", ord.Symbol, err)
	}
	if quote == nil {
		return nil, NewError(ReasonUnsupportedSymbol, "Stock symbol %s not supported.", ord.Symbol)
	}
	if quote.LastTick == nil {
		return nil, NewError(ReasonNotYetPriced, "Stock %s is not priced yet.", ord.Symbol)
	}
	if !ord.Amount.IsPositive() {
		return nil, NewError(ReasonInvalidAmount, "Amount %s is not greater than zero.", ord.Amount)
	}

	txn := Transaction{
		Side:      ord.Side,
		Symbol:    ord.Symbol,
		Amount:    ord.Amount,
		TickPrice: quote.LastTick.Price,
		Cost:      ord.Amount.Mul(quote.LastTick.Price),
		Date:      e.clock.Now(),
	}

	if ord.Side == SideDraft {
		// Drafts are terminal records: priced, logged, never applied.
		if err := e.store.AppendDraft(userID, txn); err != nil {
			return nil, fmt.Errorf("append draft: %w", err)
		}
		e.log.Infow("draft_recorded", "user", userID, "symbol", txn.Symbol, "amount", txn.Amount)
		return &txn, nil
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acc, err := e.store.GetAccount(userID)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", userID, err)
	}

	switch ord.Side {
	case SideBuy:
		if alloc := acc.Allocation(ord.Symbol); alloc != nil {
			alloc.Amount = alloc.Amount.Add(ord.Amount)
		} else {
			acc.Allocations = append(acc.Allocations, Allocation{Symbol: ord.Symbol, Amount: ord.Amount})
		}
		// Liquidity may go negative: buying power is not enforced.
		acc.Liquidity = acc.Liquidity.Sub(txn.Cost)

	case SideSell:
		alloc := acc.Allocation(ord.Symbol)
		if alloc == nil {
			return nil, NewError(ReasonAllocationNotFound, "Stock %s allocation not found. Can't sell.", ord.Symbol)
		}
		if alloc.Amount.LessThan(ord.Amount) {
			return nil, NewError(ReasonInsufficientAllocation,
				"Current allocation for stock %s:%s is less than requested sell amount:%s.",
				ord.Symbol, alloc.Amount, ord.Amount)
		}
		alloc.Amount = alloc.Amount.Sub(ord.Amount)
		acc.Liquidity = acc.Liquidity.Add(txn.Cost)

	default:
		return nil, fmt.Errorf("unhandled order side %v", ord.Side)
	}

	if err := e.store.CommitTransaction(acc, txn); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	e.log.Infow("order_executed",
		"user", userID,
		"side", txn.Side.String(),
		"symbol", txn.Symbol,
		"amount", txn.Amount,
		"cost", txn.Cost,
		"liquidity", acc.Liquidity,
	)
	return &txn, nil
}

// FollowStock adds or removes a symbol on the user's watch list. The
// symbol must be quotable (it need not be priced). ADD of an already
// followed symbol succeeds without a second entry; REMOVE of an
// unfollowed symbol is rejected. Returns a caller-facing message.
func (e *Engine) FollowStock(ctx context.Context, userID, symbol string, action FollowAction) (string, error) {
	quote, err := e.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("quote %s: %w", symbol, err)
	}
	if quote == nil {
		return "", NewError(ReasonUnsupportedSymbol, "Stock symbol %s not supported.", symbol)
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acc, err := e.store.GetAccount(userID)
	if err != nil {
		return "", fmt.Errorf("load account %s: %w", userID, err)
	}

	switch action {
	case FollowAdd:
		if acc.Follows(symbol) {
			return fmt.Sprintf("Stock %s already in follow list.", symbol), nil
		}
		acc.WatchList = append(acc.WatchList, symbol)
		if err := e.store.SaveAccount(acc); err != nil {
			return "", fmt.Errorf("save account %s: %w", userID, err)
		}
		e.log.Infow("stock_followed", "user", userID, "symbol", symbol)
		return fmt.Sprintf("Stock %s added to follow list.", symbol), nil

	case FollowRemove:
		if !acc.Unfollow(symbol) {
			return "", NewError(ReasonSymbolNotFollowed, "Stock %s is not in follow list. It can't be un-followed.", symbol)
		}
		if err := e.store.SaveAccount(acc); err != nil {
			return "", fmt.Errorf("save account %s: %w", userID, err)
		}
		e.log.Infow("stock_unfollowed", "user", userID, "symbol", symbol)
		return fmt.Sprintf("Stock %s removed from follow list.", symbol), nil

	default:
		return "", NewError(ReasonUnknownFollowAction, "Invalid action.")
	}
}

// GetAccount returns the user's account, creating the zero-value view
// for unknown users.
func (e *Engine) GetAccount(userID string) (*Account, error) {
	return e.store.GetAccount(userID)
}

// Transactions returns the user's committed transactions in append order.
func (e *Engine) Transactions(userID string) ([]Transaction, error) {
	return e.store.Transactions(userID)
}

// Drafts returns the user's drafted orders in append order.
func (e *Engine) Drafts(userID string) ([]Transaction, error) {
	return e.store.Drafts(userID)
}

// ClearDrafts empties the user's draft ledger. Clearing an already
// empty ledger succeeds.
func (e *Engine) ClearDrafts(userID string) error {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return e.store.ClearDrafts(userID)
}
