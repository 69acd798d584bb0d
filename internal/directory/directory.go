package directory

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Directory is the in-memory cache of symbol -> last known quote data.
// Stocks are never removed during a session.
type Directory struct {
	mu     sync.RWMutex
	stocks map[string]models.Stock
	order  []string
}

// New returns a directory seeded with the given stocks. Every seed entry
// Upsert rejects is reported; the valid ones are still loaded.
func New(seed ...models.Stock) (*Directory, error) {
	d := &Directory{stocks: make(map[string]models.Stock)}
	var errs []error
	for _, s := range seed {
		if err := d.Upsert(s); err != nil {
			errs = append(errs, fmt.Errorf("seed: %w", err))
		}
	}
	return d, errors.Join(errs...)
}

// MustNew is New for seeds known to be valid. It panics otherwise.
func MustNew(seed ...models.Stock) *Directory {
	d, err := New(seed...)
	if err != nil {
		panic(err)
	}
	return d
}

// Get looks a symbol up. Unknown symbols return ErrSymbolNotFound.
func (d *Directory) Get(symbol string) (models.Stock, error) {
	symbol = models.NormalizeSymbol(symbol)

	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.stocks[symbol]
	if !ok {
		return models.Stock{}, fmt.Errorf("%s: %w", symbol, models.ErrSymbolNotFound)
	}
	return s, nil
}

// Upsert replaces or inserts a stock by symbol.
func (d *Directory) Upsert(s models.Stock) error {
	s.Symbol = models.NormalizeSymbol(s.Symbol)
	if s.Symbol == "" {
		return fmt.Errorf("stock without symbol: %w", models.ErrInvalidSymbol)
	}
	if s.Price.IsNegative() {
		return fmt.Errorf("%s price %s: %w", s.Symbol, s.Price, models.ErrInvalidPrice)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.stocks[s.Symbol]; !exists {
		d.order = append(d.order, s.Symbol)
	}
	d.stocks[s.Symbol] = s
	return nil
}

// Merge upserts fresher quote data, keeping the known name when the quote
// carries none.
func (d *Directory) Merge(s models.Stock) error {
	if s.Name == "" {
		if cur, err := d.Get(s.Symbol); err == nil {
			s.Name = cur.Name
		} else {
			s.Name = models.NormalizeSymbol(s.Symbol)
		}
	}
	return d.Upsert(s)
}

// UpdatePrice sets the last price of a known symbol, keeping name and change.
// Unknown symbols are inserted with the symbol as name.
func (d *Directory) UpdatePrice(symbol string, price decimal.Decimal) error {
	s, err := d.Get(symbol)
	if err != nil {
		s = models.Stock{Symbol: models.NormalizeSymbol(symbol), Name: models.NormalizeSymbol(symbol)}
	}
	s.Price = price
	return d.Upsert(s)
}

// Price returns the last price of a symbol.
func (d *Directory) Price(symbol string) (decimal.Decimal, bool) {
	s, err := d.Get(symbol)
	if err != nil {
		return decimal.Zero, false
	}
	return s.Price, true
}

// Change returns the last daily percentage change of a symbol.
func (d *Directory) Change(symbol string) (decimal.Decimal, bool) {
	s, err := d.Get(symbol)
	if err != nil {
		return decimal.Zero, false
	}
	return s.Change, true
}

// All returns every stock in insertion order.
func (d *Directory) All() []models.Stock {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.Stock, 0, len(d.order))
	for _, sym := range d.order {
		out = append(out, d.stocks[sym])
	}
	return out
}

// Len returns the number of known symbols.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// DefaultCatalog is the seed the dashboard starts with.
func DefaultCatalog() []models.Stock {
	return []models.Stock{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.RequireFromString("175.43"), Change: decimal.RequireFromString("1.2")},
		{Symbol: "MSFT", Name: "Microsoft Corp.", Price: decimal.RequireFromString("378.85"), Change: decimal.RequireFromString("0.8")},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", Price: decimal.RequireFromString("138.21"), Change: decimal.RequireFromString("-0.3")},
		{Symbol: "TSLA", Name: "Tesla Inc.", Price: decimal.RequireFromString("248.50"), Change: decimal.RequireFromString("2.1")},
		{Symbol: "AMZN", Name: "Amazon.com Inc.", Price: decimal.RequireFromString("151.94"), Change: decimal.RequireFromString("0.5")},
		{Symbol: "NVDA", Name: "NVIDIA Corp.", Price: decimal.RequireFromString("875.28"), Change: decimal.RequireFromString("3.2")},
		{Symbol: "META", Name: "Meta Platforms", Price: decimal.RequireFromString("484.20"), Change: decimal.RequireFromString("1.8")},
		{Symbol: "NFLX", Name: "Netflix Inc.", Price: decimal.RequireFromString("487.55"), Change: decimal.RequireFromString("-0.7")},
	}
}

// catalogFile is the on-disk YAML shape.
type catalogFile struct {
	Stocks []struct {
		Symbol string  `yaml:"symbol"`
		Name   string  `yaml:"name"`
		Price  float64 `yaml:"price"`
		Change float64 `yaml:"change"`
	} `yaml:"stocks"`
}

// LoadCatalog reads a YAML seed catalog:
//
//	stocks:
//	  - symbol: AAPL
//	    name: Apple Inc.
//	    price: 175.43
//	    change: 1.2
func LoadCatalog(path string) ([]models.Stock, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	out := make([]models.Stock, 0, len(cf.Stocks))
	for i, s := range cf.Stocks {
		sym := models.NormalizeSymbol(s.Symbol)
		if sym == "" {
			return nil, fmt.Errorf("catalog entry %d: missing symbol", i)
		}
		if s.Price < 0 {
			return nil, fmt.Errorf("catalog entry %s: %w", sym, models.ErrInvalidPrice)
		}
		name := s.Name
		if name == "" {
			name = sym
		}
		out = append(out, models.Stock{
			Symbol: sym,
			Name:   name,
			Price:  decimal.NewFromFloat(s.Price),
			Change: decimal.NewFromFloat(s.Change),
		})
	}
	return out, nil
}
