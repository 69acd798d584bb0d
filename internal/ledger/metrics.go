package ledger

import (
	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Position is a holding valued at the current directory price.
type Position struct {
	models.Holding
	Name            string
	Price           decimal.Decimal
	Value           decimal.Decimal
	Cost            decimal.Decimal
	GainLoss        decimal.Decimal
	GainLossPercent decimal.Decimal
	DayChange       decimal.Decimal
}

// Summary is every derived metric computed over one consistent snapshot.
type Summary struct {
	Positions            []Position
	TotalValue           decimal.Decimal
	TotalCost            decimal.Decimal
	TotalGainLoss        decimal.Decimal
	TotalGainLossPercent decimal.Decimal
	DayChange            decimal.Decimal
	DayChangePercent     decimal.Decimal
	AvailableCash        decimal.Decimal
}

// Summary values the whole ledger.
func (l *Ledger) Summary() Summary {
	var s Summary
	for _, h := range l.Snapshot() {
		p := l.value(h)
		s.Positions = append(s.Positions, p)
		s.TotalValue = s.TotalValue.Add(p.Value)
		s.TotalCost = s.TotalCost.Add(p.Cost)
		s.DayChange = s.DayChange.Add(p.DayChange)
	}
	s.TotalGainLoss = s.TotalValue.Sub(s.TotalCost)
	s.TotalGainLossPercent = percentOf(s.TotalGainLoss, s.TotalCost)
	s.DayChangePercent = percentOf(s.DayChange, s.TotalValue.Sub(s.DayChange))
	s.AvailableCash = l.AvailableCash()
	return s
}

// Positions returns every holding valued at current prices.
func (l *Ledger) Positions() []Position {
	return l.Summary().Positions
}

// TotalValue is the sum of quantity x current price.
func (l *Ledger) TotalValue() decimal.Decimal {
	return l.Summary().TotalValue
}

// TotalCost is the sum of quantity x average price.
func (l *Ledger) TotalCost() decimal.Decimal {
	return l.Summary().TotalCost
}

// TotalGainLoss is the sum of quantity x (current price - average price).
func (l *Ledger) TotalGainLoss() decimal.Decimal {
	return l.Summary().TotalGainLoss
}

// TotalGainLossPercent is the gain relative to cost, zero for an empty ledger.
func (l *Ledger) TotalGainLossPercent() decimal.Decimal {
	return l.Summary().TotalGainLossPercent
}

// DayChange is the value change since the previous close.
func (l *Ledger) DayChange() decimal.Decimal {
	return l.Summary().DayChange
}

// DayChangePercent is DayChange relative to the previous close value.
func (l *Ledger) DayChangePercent() decimal.Decimal {
	return l.Summary().DayChangePercent
}

// AvailableCash delegates to the session.
func (l *Ledger) AvailableCash() decimal.Decimal {
	if l.cash == nil {
		return decimal.Zero
	}
	return l.cash.AvailableCash()
}

// value prices a holding. Unknown or unpriced symbols are valued at their
// average price so they neither gain nor lose.
func (l *Ledger) value(h models.Holding) Position {
	p := Position{Holding: h, Name: h.Symbol, Price: h.AvgPrice}

	var change decimal.Decimal
	if st, err := l.prices.Get(h.Symbol); err == nil {
		if st.Name != "" {
			p.Name = st.Name
		}
		if st.Price.IsPositive() {
			p.Price = st.Price
		}
		change = st.Change
	}
	if h.DayChangePercent != nil {
		change = *h.DayChangePercent
	}

	qty := decimal.NewFromInt(h.Quantity)
	p.Value = qty.Mul(p.Price)
	p.Cost = qty.Mul(h.AvgPrice)
	p.GainLoss = p.Value.Sub(p.Cost)
	p.GainLossPercent = percentOf(p.GainLoss, p.Cost)

	// previous close = value / (1 + change%)
	factor := decimal.NewFromInt(1).Add(change.Div(hundred))
	if factor.IsPositive() {
		p.DayChange = p.Value.Sub(p.Value.Div(factor))
	}
	return p
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}
