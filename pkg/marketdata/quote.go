package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is the last traded price of a symbol.
type Tick struct {
	Price decimal.Decimal `json:"price"`
	At    time.Time       `json:"at"`
}

// Quote is the latest market data for a symbol. LastTick is nil for a
// symbol that is listed but has not traded yet.
type Quote struct {
	Symbol   string `json:"symbol"`
	LastTick *Tick  `json:"lastTick"`
}

// Provider supplies price quotes. A nil Quote with nil error means the
// symbol is unknown to the provider. Implementations must honor ctx:
// the provider may be remote and slow.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}
