package marketdata_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paperstreet/brokerd/pkg/marketdata"
)

var tickedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestRegistryUnknownSymbol(t *testing.T) {
	r := marketdata.NewRegistry()

	quote, err := r.GetQuote(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if quote != nil {
		t.Errorf("quote = %+v, want nil for unknown symbol", quote)
	}
}

func TestRegistryListedButUnpriced(t *testing.T) {
	r := marketdata.NewRegistry()
	r.Register("IPOX")

	quote, err := r.GetQuote(context.Background(), "IPOX")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if quote == nil {
		t.Fatal("quote is nil, want listed symbol")
	}
	if quote.LastTick != nil {
		t.Errorf("last tick = %+v, want nil", quote.LastTick)
	}
}

func TestRegistrySetTick(t *testing.T) {
	r := marketdata.NewRegistry()
	r.SetTick("X", decimal.NewFromFloat(5.0), tickedAt)

	quote, err := r.GetQuote(context.Background(), "X")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if quote == nil || quote.LastTick == nil {
		t.Fatalf("quote = %+v, want priced", quote)
	}
	if !quote.LastTick.Price.Equal(decimal.NewFromFloat(5.0)) {
		t.Errorf("price = %s, want 5", quote.LastTick.Price)
	}

	// Register after SetTick keeps the tick.
	r.Register("X")
	quote, _ = r.GetQuote(context.Background(), "X")
	if quote.LastTick == nil {
		t.Error("tick lost after re-register")
	}
}

func TestRegistryReturnsCopy(t *testing.T) {
	r := marketdata.NewRegistry()
	r.SetTick("X", decimal.NewFromFloat(5.0), tickedAt)

	quote, _ := r.GetQuote(context.Background(), "X")
	quote.LastTick.Price = decimal.NewFromInt(999)

	again, _ := r.GetQuote(context.Background(), "X")
	if !again.LastTick.Price.Equal(decimal.NewFromFloat(5.0)) {
		t.Errorf("registry state mutated through returned quote: %s", again.LastTick.Price)
	}
}

func TestRegistryHonorsContext(t *testing.T) {
	r := marketdata.NewRegistry()
	r.SetTick("X", decimal.NewFromFloat(5.0), tickedAt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.GetQuote(ctx, "X"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestNewRegistryFromSpec(t *testing.T) {
	r, err := marketdata.NewRegistryFromSpec("AAPL=189.5, TSLA=240 ,IPOX", tickedAt)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	quote, _ := r.GetQuote(context.Background(), "AAPL")
	if quote == nil || quote.LastTick == nil || !quote.LastTick.Price.Equal(decimal.NewFromFloat(189.5)) {
		t.Errorf("AAPL = %+v, want priced 189.5", quote)
	}
	quote, _ = r.GetQuote(context.Background(), "IPOX")
	if quote == nil || quote.LastTick != nil {
		t.Errorf("IPOX = %+v, want listed unpriced", quote)
	}

	if _, err := marketdata.NewRegistryFromSpec("AAPL=not-a-number", tickedAt); err == nil {
		t.Error("expected error for bad price")
	}
	if _, err := marketdata.NewRegistryFromSpec("=5", tickedAt); err == nil {
		t.Error("expected error for missing symbol")
	}

	empty, err := marketdata.NewRegistryFromSpec("", tickedAt)
	if err != nil {
		t.Fatalf("empty spec: %v", err)
	}
	if len(empty.Symbols()) != 0 {
		t.Errorf("symbols = %v, want none", empty.Symbols())
	}
}
