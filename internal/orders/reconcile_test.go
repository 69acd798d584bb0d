package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/0xF3546/stockflow-frontend/internal/directory"
	"github.com/0xF3546/stockflow-frontend/internal/ledger"
	"github.com/0xF3546/stockflow-frontend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotes map[string]decimal.Decimal

func (q stubQuotes) GetQuote(_ context.Context, symbol string) (models.Stock, error) {
	p, ok := q[symbol]
	if !ok {
		return models.Stock{}, models.ErrPriceUnavailable
	}
	return models.Stock{Symbol: symbol, Price: p}, nil
}

func TestRefresh_ReplacesLedgerAndQuotes(t *testing.T) {
	dir := directory.MustNew(directory.DefaultCatalog()...)
	sess := &mockSession{loggedIn: true}
	l := ledger.New(dir, sess)
	broker := &MockBroker{snapshot: &models.PortfolioSnapshot{
		Holdings:    []models.Holding{{Symbol: "AAPL", Quantity: 2, AvgPrice: d("150")}, {Symbol: "IBM", Quantity: 1, AvgPrice: d("180")}},
		CashBalance: d("42"),
		TotalValue:  d("580"),
	}}

	r := NewRefresher(broker, l, sess, WithQuotes(dir, stubQuotes{"AAPL": d("200"), "IBM": d("180")}))
	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Holdings, 2)

	// quote merged, catalog name kept
	st, err := dir.Get("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", st.Name)
	assert.True(t, d("200").Equal(st.Price))

	// new symbol inserted with its ticker as name
	st, err = dir.Get("IBM")
	require.NoError(t, err)
	assert.Equal(t, "IBM", st.Name)

	assert.True(t, d("580").Equal(l.TotalValue()))
	assert.True(t, d("42").Equal(sess.AvailableCash()))

	at, last := r.LastSync()
	assert.False(t, at.IsZero())
	assert.Same(t, snap, last)
}

func TestRefresh_FailureKeepsLedger(t *testing.T) {
	dir := directory.MustNew(directory.DefaultCatalog()...)
	sess := &mockSession{loggedIn: true, cash: d("10")}
	l := ledger.New(dir, sess)
	require.NoError(t, l.ReplaceAll([]models.Holding{{Symbol: "MSFT", Quantity: 1, AvgPrice: d("1")}}))

	r := NewRefresher(&MockBroker{fetchErr: errors.New("dial tcp: refused")}, l, sess)
	_, err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, models.ErrRefreshFailed)

	assert.Equal(t, int64(1), l.QuantityHeld("MSFT"))
	assert.True(t, d("10").Equal(sess.AvailableCash()))
}

func TestRefresh_InvalidSnapshotRejected(t *testing.T) {
	dir := directory.MustNew()
	l := ledger.New(dir, nil)
	broker := &MockBroker{snapshot: &models.PortfolioSnapshot{
		Holdings: []models.Holding{{Symbol: "A", Quantity: 1}, {Symbol: "A", Quantity: 2}},
	}}

	_, err := NewRefresher(broker, l, nil).Refresh(context.Background())
	assert.ErrorIs(t, err, models.ErrRefreshFailed)
	assert.Equal(t, uint64(0), l.Generation())
}
