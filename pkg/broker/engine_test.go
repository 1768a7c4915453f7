package broker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paperstreet/brokerd/pkg/broker"
	"github.com/paperstreet/brokerd/pkg/marketdata"
	"github.com/paperstreet/brokerd/pkg/storage"
	"github.com/paperstreet/brokerd/pkg/util"
)

var executedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*broker.Engine, *marketdata.Registry, *storage.Store) {
	t.Helper()

	store, err := storage.Open(t.TempDir() + "/ledger.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	quotes := marketdata.NewRegistry()
	quotes.SetTick("X", decimal.NewFromFloat(5.0), executedAt)
	quotes.SetTick("Y", decimal.NewFromFloat(12.5), executedAt)
	quotes.Register("IPOX") // listed, never traded

	engine := broker.NewEngine(store, quotes, util.FixedClock{T: executedAt}, zap.NewNop().Sugar())
	return engine, quotes, store
}

func buy(symbol string, amount float64) broker.Order {
	return broker.Order{Symbol: symbol, Side: broker.SideBuy, Amount: decimal.NewFromFloat(amount)}
}

func sell(symbol string, amount float64) broker.Order {
	return broker.Order{Symbol: symbol, Side: broker.SideSell, Amount: decimal.NewFromFloat(amount)}
}

func draft(symbol string, amount float64) broker.Order {
	return broker.Order{Symbol: symbol, Side: broker.SideDraft, Amount: decimal.NewFromFloat(amount)}
}

func requireDecimal(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.NewFromFloat(want)), "got %s, want %v", got, want)
}

func requireReason(t *testing.T, err error, reason broker.Reason) {
	t.Helper()
	var rejection *broker.Error
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, reason, rejection.Reason)
}

func TestBuyThenSellScenario(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	// New user buys 10 X at 5.0.
	txn, err := engine.ExecuteOrder(ctx, "u1", buy("X", 10))
	require.NoError(t, err)
	requireDecimal(t, 50.0, txn.Cost)
	requireDecimal(t, 5.0, txn.TickPrice)
	require.Equal(t, executedAt, txn.Date)

	acc, err := engine.GetAccount("u1")
	require.NoError(t, err)
	requireDecimal(t, -50.0, acc.Liquidity)
	require.Len(t, acc.Allocations, 1)
	require.Equal(t, "X", acc.Allocations[0].Symbol)
	requireDecimal(t, 10, acc.Allocations[0].Amount)

	// Sell 4 of them back.
	txn, err = engine.ExecuteOrder(ctx, "u1", sell("X", 4))
	require.NoError(t, err)
	requireDecimal(t, 20.0, txn.Cost)

	acc, err = engine.GetAccount("u1")
	require.NoError(t, err)
	requireDecimal(t, -30.0, acc.Liquidity)
	requireDecimal(t, 6, acc.Allocations[0].Amount)

	// Overselling is rejected and changes nothing.
	_, err = engine.ExecuteOrder(ctx, "u1", sell("X", 100))
	requireReason(t, err, broker.ReasonInsufficientAllocation)
	require.Contains(t, err.Error(), "6")
	require.Contains(t, err.Error(), "100")

	acc, err = engine.GetAccount("u1")
	require.NoError(t, err)
	requireDecimal(t, -30.0, acc.Liquidity)
	requireDecimal(t, 6, acc.Allocations[0].Amount)

	txns, err := engine.Transactions("u1")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.Equal(t, broker.SideBuy, txns[0].Side)
	require.Equal(t, broker.SideSell, txns[1].Side)
}

func TestBuyAccumulatesAllocation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.ExecuteOrder(ctx, "u1", buy("X", 3))
	require.NoError(t, err)
	_, err = engine.ExecuteOrder(ctx, "u1", buy("X", 7))
	require.NoError(t, err)

	acc, err := engine.GetAccount("u1")
	require.NoError(t, err)
	require.Len(t, acc.Allocations, 1)
	requireDecimal(t, 10, acc.Allocations[0].Amount)
	requireDecimal(t, -50.0, acc.Liquidity)
}

func TestBuyHasNoLiquidityFloor(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	// Liquidity may go arbitrarily negative.
	_, err := engine.ExecuteOrder(context.Background(), "u1", buy("X", 1000000))
	require.NoError(t, err)

	acc, err := engine.GetAccount("u1")
	require.NoError(t, err)
	requireDecimal(t, -5000000.0, acc.Liquidity)
}

func TestOrderPreconditions(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.ExecuteOrder(ctx, "u1", buy("NOPE", 10))
	requireReason(t, err, broker.ReasonUnsupportedSymbol)

	_, err = engine.ExecuteOrder(ctx, "u1", buy("IPOX", 10))
	requireReason(t, err, broker.ReasonNotYetPriced)

	_, err = engine.ExecuteOrder(ctx, "u1", buy("X", 0))
	requireReason(t, err, broker.ReasonInvalidAmount)

	_, err = engine.ExecuteOrder(ctx, "u1", buy("X", -3))
	requireReason(t, err, broker.ReasonInvalidAmount)

	// First failing precondition wins: unknown symbol beats bad amount.
	_, err = engine.ExecuteOrder(ctx, "u1", buy("NOPE", -3))
	requireReason(t, err, broker.ReasonUnsupportedSymbol)

	// Nothing was recorded.
	txns, err := engine.Transactions("u1")
	require.NoError(t, err)
	require.Empty(t, txns)
}

func TestSellWithoutAllocation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.ExecuteOrder(context.Background(), "u1", sell("X", 1))
	requireReason(t, err, broker.ReasonAllocationNotFound)

	acc, err := engine.GetAccount("u1")
	require.NoError(t, err)
	requireDecimal(t, 0, acc.Liquidity)
	require.Empty(t, acc.Allocations)
}

func TestDraftNeverTouchesAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.ExecuteOrder(ctx, "u1", buy("X", 10))
	require.NoError(t, err)

	txn, err := engine.ExecuteOrder(ctx, "u1", draft("Y", 10))
	require.NoError(t, err)
	requireDecimal(t, 125.0, txn.Cost)

	// The draft is priced and logged but the account is untouched.
	acc, err := engine.GetAccount("u1")
	require.NoError(t, err)
	requireDecimal(t, -50.0, acc.Liquidity)
	require.Len(t, acc.Allocations, 1)
	require.Equal(t, "X", acc.Allocations[0].Symbol)

	drafts, err := engine.Drafts("u1")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, broker.SideDraft, drafts[0].Side)

	// Drafts never show up on the committed ledger.
	txns, err := engine.Transactions("u1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, broker.SideBuy, txns[0].Side)

	require.NoError(t, engine.ClearDrafts("u1"))
	drafts, err = engine.Drafts("u1")
	require.NoError(t, err)
	require.Empty(t, drafts)

	// Clearing an already empty ledger succeeds.
	require.NoError(t, engine.ClearDrafts("u1"))
}

func TestDraftSharesPreconditions(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.ExecuteOrder(ctx, "u1", draft("NOPE", 10))
	requireReason(t, err, broker.ReasonUnsupportedSymbol)

	_, err = engine.ExecuteOrder(ctx, "u1", draft("X", 0))
	requireReason(t, err, broker.ReasonInvalidAmount)

	drafts, err := engine.Drafts("u1")
	require.NoError(t, err)
	require.Empty(t, drafts)
}

func TestFollowStock(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	msg, err := engine.FollowStock(ctx, "u1", "X", broker.FollowAdd)
	require.NoError(t, err)
	require.Equal(t, "Stock X added to follow list.", msg)

	// Following an unpriced but listed symbol is allowed.
	_, err = engine.FollowStock(ctx, "u1", "IPOX", broker.FollowAdd)
	require.NoError(t, err)

	// Adding again succeeds without a second entry.
	msg, err = engine.FollowStock(ctx, "u1", "X", broker.FollowAdd)
	require.NoError(t, err)
	require.Equal(t, "Stock X already in follow list.", msg)

	acc, err := engine.GetAccount("u1")
	require.NoError(t, err)
	require.Equal(t, []string{"X", "IPOX"}, acc.WatchList)

	msg, err = engine.FollowStock(ctx, "u1", "X", broker.FollowRemove)
	require.NoError(t, err)
	require.Equal(t, "Stock X removed from follow list.", msg)

	_, err = engine.FollowStock(ctx, "u1", "X", broker.FollowRemove)
	requireReason(t, err, broker.ReasonSymbolNotFollowed)

	_, err = engine.FollowStock(ctx, "u1", "NOPE", broker.FollowAdd)
	requireReason(t, err, broker.ReasonUnsupportedSymbol)

	acc, err = engine.GetAccount("u1")
	require.NoError(t, err)
	require.Equal(t, []string{"IPOX"}, acc.WatchList)
}

func TestConcurrentOrdersSameUser(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := engine.ExecuteOrder(context.Background(), "u1", buy("X", 1)); err != nil {
				t.Errorf("concurrent buy: %v", err)
			}
		}()
	}
	wg.Wait()

	// Every order must land: no lost read-modify-write updates.
	acc, err := engine.GetAccount("u1")
	require.NoError(t, err)
	requireDecimal(t, n, acc.Allocations[0].Amount)
	requireDecimal(t, -5.0*n, acc.Liquidity)

	txns, err := engine.Transactions("u1")
	require.NoError(t, err)
	require.Len(t, txns, n)
}

func TestConcurrentOrdersDistinctUsers(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	users := []string{"u1", "u2", "u3", "u4"}
	var wg sync.WaitGroup
	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := engine.ExecuteOrder(context.Background(), userID, buy("X", 2)); err != nil {
					t.Errorf("buy for %s: %v", userID, err)
				}
			}
		}(userID)
	}
	wg.Wait()

	for _, userID := range users {
		acc, err := engine.GetAccount(userID)
		require.NoError(t, err)
		requireDecimal(t, 10, acc.Allocations[0].Amount)
		requireDecimal(t, -50.0, acc.Liquidity)
	}
}
