package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/shopspring/decimal"
)

// ErrStale is returned by Revert when the ledger was replaced by a server
// snapshot after the mutation was applied.
var ErrStale = errors.New("ledger replaced since mutation")

// PriceSource provides the last known quote for a symbol.
type PriceSource interface {
	Get(symbol string) (models.Stock, error)
}

// CashSource provides the cash available for buys.
type CashSource interface {
	AvailableCash() decimal.Decimal
}

// Mutation records an optimistic change so it can be undone.
type Mutation struct {
	Symbol     string
	Side       models.Side
	Quantity   int64
	Price      decimal.Decimal
	Prior      *models.Holding
	Generation uint64
}

// Ledger holds the user's holdings, one entry per symbol.
type Ledger struct {
	mu       sync.RWMutex
	holdings map[string]models.Holding
	order    []string
	gen      uint64

	prices PriceSource
	cash   CashSource
}

// New creates an empty ledger.
func New(prices PriceSource, cash CashSource) *Ledger {
	return &Ledger{
		holdings: make(map[string]models.Holding),
		prices:   prices,
		cash:     cash,
	}
}

// Snapshot returns a copy of the current holdings.
func (l *Ledger) Snapshot() []models.Holding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() []models.Holding {
	out := make([]models.Holding, 0, len(l.order))
	for _, sym := range l.order {
		out = append(out, copyHolding(l.holdings[sym]))
	}
	return out
}

// Holding returns the entry for a symbol, if any.
func (l *Ledger) Holding(symbol string) (models.Holding, bool) {
	symbol = models.NormalizeSymbol(symbol)

	l.mu.RLock()
	defer l.mu.RUnlock()

	h, ok := l.holdings[symbol]
	return copyHolding(h), ok
}

// QuantityHeld returns the held quantity, zero when there is no entry.
func (l *Ledger) QuantityHeld(symbol string) int64 {
	h, ok := l.Holding(symbol)
	if !ok {
		return 0
	}
	return h.Quantity
}

// Generation increases every time the ledger is replaced wholesale.
func (l *Ledger) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}

// ApplyBuy optimistically adds quantity at the directory's current price.
func (l *Ledger) ApplyBuy(symbol string, qty int64) (Mutation, error) {
	symbol = models.NormalizeSymbol(symbol)
	if qty <= 0 {
		return Mutation{}, fmt.Errorf("buy %d %s: %w", qty, symbol, models.ErrInvalidQuantity)
	}

	stock, err := l.prices.Get(symbol)
	if err != nil {
		return Mutation{}, err
	}
	price := stock.Price

	l.mu.Lock()
	defer l.mu.Unlock()

	m := Mutation{Symbol: symbol, Side: models.SideBuy, Quantity: qty, Price: price, Generation: l.gen}

	h, ok := l.holdings[symbol]
	if !ok {
		l.holdings[symbol] = models.Holding{Symbol: symbol, Quantity: qty, AvgPrice: price}
		l.order = append(l.order, symbol)
		return m, nil
	}

	prior := copyHolding(h)
	m.Prior = &prior

	oldQty := decimal.NewFromInt(h.Quantity)
	addQty := decimal.NewFromInt(qty)
	newQty := h.Quantity + qty

	h.AvgPrice = oldQty.Mul(h.AvgPrice).Add(addQty.Mul(price)).Div(decimal.NewFromInt(newQty))
	h.Quantity = newQty
	l.holdings[symbol] = h
	return m, nil
}

// ApplySell optimistically removes quantity. The entry is dropped at zero.
func (l *Ledger) ApplySell(symbol string, qty int64) (Mutation, error) {
	symbol = models.NormalizeSymbol(symbol)
	if qty <= 0 {
		return Mutation{}, fmt.Errorf("sell %d %s: %w", qty, symbol, models.ErrInvalidQuantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.holdings[symbol]
	if !ok || qty > h.Quantity {
		return Mutation{}, fmt.Errorf("sell %d %s, held %d: %w", qty, symbol, h.Quantity, models.ErrInsufficientHoldings)
	}

	prior := copyHolding(h)
	m := Mutation{Symbol: symbol, Side: models.SideSell, Quantity: qty, Prior: &prior, Generation: l.gen}

	h.Quantity -= qty
	if h.Quantity == 0 {
		l.removeLocked(symbol)
		return m, nil
	}
	l.holdings[symbol] = h
	return m, nil
}

// Revert undoes an optimistic mutation, restoring the prior entry exactly.
// It refuses with ErrStale once ReplaceAll has run since the mutation.
func (l *Ledger) Revert(m Mutation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m.Generation != l.gen {
		return fmt.Errorf("revert %s %s: %w", m.Side, m.Symbol, ErrStale)
	}

	if m.Prior == nil {
		l.removeLocked(m.Symbol)
		return nil
	}

	if _, ok := l.holdings[m.Symbol]; !ok {
		l.order = append(l.order, m.Symbol)
	}
	l.holdings[m.Symbol] = copyHolding(*m.Prior)
	return nil
}

// ReplaceAll swaps the whole ledger for the server's view. Zero quantity
// entries are dropped.
func (l *Ledger) ReplaceAll(items []models.Holding) error {
	next := make(map[string]models.Holding, len(items))
	order := make([]string, 0, len(items))

	for _, it := range items {
		sym := models.NormalizeSymbol(it.Symbol)
		if sym == "" {
			return fmt.Errorf("holding without symbol: %w", models.ErrRefreshFailed)
		}
		if _, dup := next[sym]; dup {
			return fmt.Errorf("duplicate holding %s: %w", sym, models.ErrRefreshFailed)
		}
		if it.Quantity < 0 {
			return fmt.Errorf("holding %s quantity %d: %w", sym, it.Quantity, models.ErrRefreshFailed)
		}
		if it.AvgPrice.IsNegative() {
			return fmt.Errorf("holding %s avg price %s: %w", sym, it.AvgPrice, models.ErrRefreshFailed)
		}
		if it.Quantity == 0 {
			continue
		}
		it.Symbol = sym
		next[sym] = copyHolding(it)
		order = append(order, sym)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.holdings = next
	l.order = order
	l.gen++
	return nil
}

// Reset empties the ledger when the session ends. Pending mutations become
// stale.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.holdings = make(map[string]models.Holding)
	l.order = nil
	l.gen++
}

func (l *Ledger) removeLocked(symbol string) {
	delete(l.holdings, symbol)
	for i, s := range l.order {
		if s == symbol {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func copyHolding(h models.Holding) models.Holding {
	if h.DayChangePercent != nil {
		p := *h.DayChangePercent
		h.DayChangePercent = &p
	}
	return h
}
