package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Registry is an in-process quote provider. Symbols are registered up
// front; ticks arrive later (a registered symbol without a tick is
// listed but unpriced).
type Registry struct {
	mu     sync.RWMutex
	quotes map[string]*Quote // symbol -> latest quote
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{quotes: make(map[string]*Quote)}
}

// Register lists a symbol without a price. Registering an already
// listed symbol keeps its current tick.
func (r *Registry) Register(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.quotes[symbol]; !exists {
		r.quotes[symbol] = &Quote{Symbol: symbol}
	}
}

// SetTick records the last traded price for a symbol, listing it if
// needed.
func (r *Registry) SetTick(symbol string, price decimal.Decimal, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, exists := r.quotes[symbol]
	if !exists {
		q = &Quote{Symbol: symbol}
		r.quotes[symbol] = q
	}
	q.LastTick = &Tick{Price: price, At: at}
}

// GetQuote returns a copy of the latest quote, or nil for an unknown
// symbol.
func (r *Registry) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	q, exists := r.quotes[symbol]
	if !exists {
		return nil, nil
	}
	out := &Quote{Symbol: q.Symbol}
	if q.LastTick != nil {
		tick := *q.LastTick
		out.LastTick = &tick
	}
	return out, nil
}

// Symbols returns all listed symbols.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.quotes))
	for s := range r.quotes {
		out = append(out, s)
	}
	return out
}

var _ Provider = (*Registry)(nil)

// NewRegistryFromSpec seeds a registry from a comma-separated list of
// "SYMBOL=price" entries. A bare "SYMBOL" lists it unpriced.
// Example: "AAPL=189.5,TSLA=240,IPOX".
func NewRegistryFromSpec(spec string, now time.Time) (*Registry, error) {
	r := NewRegistry()
	if strings.TrimSpace(spec) == "" {
		return r, nil
	}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		symbol, raw, priced := strings.Cut(entry, "=")
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			return nil, fmt.Errorf("symbol spec entry %q has no symbol", entry)
		}
		if !priced {
			r.Register(symbol)
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("symbol spec entry %q: %w", entry, err)
		}
		r.SetTick(symbol, price, now)
	}
	return r, nil
}
