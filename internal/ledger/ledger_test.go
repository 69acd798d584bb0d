package ledger

import (
	"testing"

	"github.com/0xF3546/stockflow-frontend/internal/directory"
	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fixedCash decimal.Decimal

func (c fixedCash) AvailableCash() decimal.Decimal { return decimal.Decimal(c) }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newLedger(t *testing.T, stocks ...models.Stock) (*Ledger, *directory.Directory) {
	t.Helper()
	dir := directory.MustNew(stocks...)
	return New(dir, fixedCash(d("1000"))), dir
}

func TestApplyBuy_WeightedAverage(t *testing.T) {
	l, _ := newLedger(t, models.Stock{Symbol: "AAPL", Name: "Apple Inc.", Price: d("180.00")})
	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "AAPL", Quantity: 50, AvgPrice: d("170.00")}}))

	_, err := l.ApplyBuy("AAPL", 50)
	require.NoError(t, err)

	h, ok := l.Holding("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(100), h.Quantity)
	assert.True(t, d("175.00").Equal(h.AvgPrice), "avg = %s", h.AvgPrice)
}

func TestApplyBuy_NewHoldingUsesDirectoryPrice(t *testing.T) {
	l, _ := newLedger(t, directory.DefaultCatalog()...)

	m, err := l.ApplyBuy("nvda", 3)
	require.NoError(t, err)
	assert.Nil(t, m.Prior)

	h, ok := l.Holding("NVDA")
	require.True(t, ok)
	assert.True(t, d("875.28").Equal(h.AvgPrice))
}

func TestApplyBuy_Errors(t *testing.T) {
	l, _ := newLedger(t, directory.DefaultCatalog()...)

	_, err := l.ApplyBuy("AAPL", 0)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = l.ApplyBuy("NOPE", 1)
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)

	assert.Empty(t, l.Snapshot())
}

func TestApplySell_InsufficientHoldingsLeavesLedgerUnchanged(t *testing.T) {
	l, _ := newLedger(t, directory.DefaultCatalog()...)
	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "TSLA", Quantity: 5, AvgPrice: d("200")}}))
	before := l.Snapshot()

	_, err := l.ApplySell("TSLA", 10)
	assert.ErrorIs(t, err, models.ErrInsufficientHoldings)

	_, err = l.ApplySell("MSFT", 1)
	assert.ErrorIs(t, err, models.ErrInsufficientHoldings)

	_, err = l.ApplySell("TSLA", -1)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	assert.Equal(t, before, l.Snapshot())
}

func TestApplySell_RemovesAtZero(t *testing.T) {
	l, _ := newLedger(t, directory.DefaultCatalog()...)
	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "TSLA", Quantity: 5, AvgPrice: d("200")}}))

	_, err := l.ApplySell("TSLA", 5)
	require.NoError(t, err)

	_, ok := l.Holding("TSLA")
	assert.False(t, ok)
	assert.Equal(t, int64(0), l.QuantityHeld("TSLA"))
}

func TestBuyThenSell_RoundTrip(t *testing.T) {
	l, _ := newLedger(t, directory.DefaultCatalog()...)

	_, err := l.ApplyBuy("META", 7)
	require.NoError(t, err)
	_, err = l.ApplySell("META", 7)
	require.NoError(t, err)

	assert.Empty(t, l.Snapshot())
}

func TestRevert_RestoresPriorAverage(t *testing.T) {
	l, _ := newLedger(t, models.Stock{Symbol: "AAPL", Price: d("190")})
	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "AAPL", Quantity: 10, AvgPrice: d("150.25")}}))

	m, err := l.ApplyBuy("AAPL", 10)
	require.NoError(t, err)
	require.NoError(t, l.Revert(m))

	h, _ := l.Holding("AAPL")
	assert.Equal(t, int64(10), h.Quantity)
	assert.True(t, d("150.25").Equal(h.AvgPrice))

	m, err = l.ApplySell("AAPL", 10)
	require.NoError(t, err)
	require.NoError(t, l.Revert(m))

	h, ok := l.Holding("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(10), h.Quantity)
	assert.True(t, d("150.25").Equal(h.AvgPrice))
}

func TestRevert_StaleAfterReplaceAll(t *testing.T) {
	l, _ := newLedger(t, directory.DefaultCatalog()...)

	m, err := l.ApplyBuy("AAPL", 1)
	require.NoError(t, err)
	require.NoError(t, l.ReplaceAll(nil))

	assert.ErrorIs(t, l.Revert(m), ErrStale)
	assert.Equal(t, uint64(1), l.Generation())
}

func TestReset_EmptiesAndInvalidatesPending(t *testing.T) {
	l, _ := newLedger(t, directory.DefaultCatalog()...)
	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "AAPL", Quantity: 50, AvgPrice: d("170")}}))

	m, err := l.ApplySell("AAPL", 10)
	require.NoError(t, err)
	l.Reset()

	assert.Empty(t, l.Snapshot())
	assert.Equal(t, int64(0), l.QuantityHeld("AAPL"))
	assert.ErrorIs(t, l.Revert(m), ErrStale)
	assert.True(t, l.TotalValue().IsZero())
}

func TestReplaceAll_Validation(t *testing.T) {
	l, _ := newLedger(t)

	err := l.ReplaceAll([]models.Holding{
		{Symbol: "AAPL", Quantity: 1, AvgPrice: d("1")},
		{Symbol: "aapl", Quantity: 2, AvgPrice: d("1")},
	})
	assert.ErrorIs(t, err, models.ErrRefreshFailed)

	err = l.ReplaceAll([]models.Holding{{Symbol: "AAPL", Quantity: -1}})
	assert.ErrorIs(t, err, models.ErrRefreshFailed)

	require.NoError(t, l.ReplaceAll([]models.Holding{
		{Symbol: "AAPL", Quantity: 0, AvgPrice: d("1")},
		{Symbol: "MSFT", Quantity: 2, AvgPrice: d("300")},
	}))
	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "MSFT", snap[0].Symbol)
}

func TestSummary_GainLossAfterReplaceAll(t *testing.T) {
	l, dir := newLedger(t, directory.DefaultCatalog()...)
	require.NoError(t, l.ReplaceAll([]models.Holding{
		{Symbol: "AAPL", Quantity: 10, AvgPrice: d("170.43")},
		{Symbol: "MSFT", Quantity: 2, AvgPrice: d("400.00")},
	}))

	// 10 x (175.43 - 170.43) + 2 x (378.85 - 400)
	assert.True(t, d("7.70").Equal(l.TotalGainLoss()), "got %s", l.TotalGainLoss())

	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "AAPL", Quantity: 4, AvgPrice: d("175.43")}}))
	require.NoError(t, dir.UpdatePrice("AAPL", d("180.43")))

	s := l.Summary()
	assert.True(t, d("20").Equal(s.TotalGainLoss))
	assert.True(t, d("721.72").Equal(s.TotalValue))
	assert.True(t, d("701.72").Equal(s.TotalCost))
	assert.True(t, d("1000").Equal(s.AvailableCash))
}

func TestSummary_UnknownSymbolValuedAtCost(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "XYZ", Quantity: 3, AvgPrice: d("10")}}))

	s := l.Summary()
	assert.True(t, d("30").Equal(s.TotalValue))
	assert.True(t, s.TotalGainLoss.IsZero())
	assert.True(t, s.TotalGainLossPercent.IsZero())
	assert.Equal(t, "XYZ", s.Positions[0].Name)
}

func TestSummary_DayChange(t *testing.T) {
	pct := d("25")
	l, _ := newLedger(t, models.Stock{Symbol: "A", Price: d("125"), Change: d("-50")})
	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "A", Quantity: 2, AvgPrice: d("100"), DayChangePercent: &pct}}))

	// value 250, previous close 200
	s := l.Summary()
	assert.True(t, d("50").Equal(s.DayChange), "got %s", s.DayChange)
	assert.True(t, d("25").Equal(s.DayChangePercent), "got %s", s.DayChangePercent)
}

func TestSummary_EmptyLedger(t *testing.T) {
	l, _ := newLedger(t)
	s := l.Summary()
	assert.True(t, s.TotalValue.IsZero())
	assert.True(t, s.TotalGainLossPercent.IsZero())
	assert.True(t, s.DayChangePercent.IsZero())
}

func TestQuantitiesNeverNegative(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "TSLA"}

	rapid.Check(t, func(rt *rapid.T) {
		dir := directory.MustNew(directory.DefaultCatalog()...)
		l := New(dir, nil)
		expected := map[string]int64{}

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			sym := rapid.SampledFrom(symbols).Draw(rt, "symbol")
			qty := rapid.Int64Range(-3, 20).Draw(rt, "qty")

			if rapid.Bool().Draw(rt, "buy") {
				if _, err := l.ApplyBuy(sym, qty); err == nil {
					expected[sym] += qty
				}
			} else {
				if _, err := l.ApplySell(sym, qty); err == nil {
					expected[sym] -= qty
				}
			}

			for _, h := range l.Snapshot() {
				if h.Quantity <= 0 {
					rt.Fatalf("holding %s has quantity %d", h.Symbol, h.Quantity)
				}
			}
			for _, s := range symbols {
				if got := l.QuantityHeld(s); got != expected[s] {
					rt.Fatalf("%s: held %d, expected %d", s, got, expected[s])
				}
			}
		}
	})
}

func TestRevertRestoresSnapshot(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := directory.MustNew(directory.DefaultCatalog()...)
		l := New(dir, nil)
		start := rapid.Int64Range(0, 50).Draw(rt, "start")
		if start > 0 {
			if err := l.ReplaceAll([]models.Holding{{Symbol: "AAPL", Quantity: start, AvgPrice: d("101.37")}}); err != nil {
				rt.Fatal(err)
			}
		}
		before := l.Snapshot()

		qty := rapid.Int64Range(1, 60).Draw(rt, "qty")
		var m Mutation
		var err error
		if rapid.Bool().Draw(rt, "buy") {
			m, err = l.ApplyBuy("AAPL", qty)
		} else {
			m, err = l.ApplySell("AAPL", qty)
		}
		if err != nil {
			return
		}
		if err := l.Revert(m); err != nil {
			rt.Fatal(err)
		}

		after := l.Snapshot()
		if len(after) != len(before) {
			rt.Fatalf("len %d != %d", len(after), len(before))
		}
		for i := range before {
			if before[i].Quantity != after[i].Quantity || !before[i].AvgPrice.Equal(after[i].AvgPrice) {
				rt.Fatalf("holding changed: %+v -> %+v", before[i], after[i])
			}
		}
	})
}
