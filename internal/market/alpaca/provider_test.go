package alpaca

import (
	"context"
	"testing"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrading records placed orders and replays a status sequence on GetOrder.
type fakeTrading struct {
	account   alpaca.Account
	positions []alpaca.Position
	assets    []alpaca.Asset
	statuses  []string
	placed    []alpaca.PlaceOrderRequest
	polls     int
}

func (f *fakeTrading) GetAccount() (*alpaca.Account, error)     { return &f.account, nil }
func (f *fakeTrading) GetPositions() ([]alpaca.Position, error) { return f.positions, nil }
func (f *fakeTrading) GetAssets(alpaca.GetAssetsRequest) ([]alpaca.Asset, error) {
	return f.assets, nil
}

func (f *fakeTrading) PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	f.placed = append(f.placed, req)
	return &alpaca.Order{ID: "ord-1", Symbol: req.Symbol, Side: req.Side, Status: "new", ClientOrderID: req.ClientOrderID}, nil
}

func (f *fakeTrading) GetOrder(id string) (*alpaca.Order, error) {
	status := f.statuses[len(f.statuses)-1]
	if f.polls < len(f.statuses) {
		status = f.statuses[f.polls]
	}
	f.polls++
	fill := decimal.RequireFromString("101.5")
	return &alpaca.Order{ID: id, Symbol: "AAPL", Side: alpaca.Buy, Status: status, FilledQty: decimal.NewFromInt(2), FilledAvgPrice: &fill}, nil
}

type fakeData struct {
	snapshot *marketdata.Snapshot
	news     []marketdata.News
	lastNews marketdata.GetNewsRequest
}

func (f *fakeData) GetSnapshot(string, marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error) {
	return f.snapshot, nil
}

func (f *fakeData) GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error) {
	f.lastNews = req
	return f.news, nil
}

func newTestProvider(tr *fakeTrading, data *fakeData) *Provider {
	p := newProvider(tr, data, nil)
	p.verifyInterval = time.Millisecond
	return p
}

func dec(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestFetchPortfolio_MapsPositions(t *testing.T) {
	tr := &fakeTrading{
		account: alpaca.Account{Cash: decimal.RequireFromString("2500")},
		positions: []alpaca.Position{
			{
				Symbol:        "AAPL",
				Qty:           decimal.NewFromInt(10),
				AvgEntryPrice: decimal.RequireFromString("170"),
				CostBasis:     decimal.RequireFromString("1700"),
				MarketValue:   dec("1800"),
				UnrealizedPL:  dec("100"),
				ChangeToday:   dec("0.012"),
			},
		},
	}
	p := newTestProvider(tr, &fakeData{})

	snap, err := p.FetchPortfolio(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Holdings, 1)
	h := snap.Holdings[0]
	assert.Equal(t, int64(10), h.Quantity)
	require.NotNil(t, h.DayChangePercent)
	assert.True(t, decimal.RequireFromString("1.2").Equal(*h.DayChangePercent))
	assert.True(t, decimal.RequireFromString("2500").Equal(snap.CashBalance))
	assert.True(t, decimal.RequireFromString("1800").Equal(snap.TotalValue))
	assert.True(t, decimal.RequireFromString("100").Equal(snap.OverallGainLoss))
}

func TestSubmitBuyOrder_LimitFilled(t *testing.T) {
	tr := &fakeTrading{statuses: []string{"new", "filled"}}
	p := newTestProvider(tr, &fakeData{})

	receipt, err := p.SubmitBuyOrder(context.Background(), models.OrderRequest{
		Symbol: "AAPL", Side: models.SideBuy, Quantity: 2, Kind: models.KindLimit, Price: decimal.RequireFromString("101.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "filled", receipt.Status)
	assert.True(t, decimal.RequireFromString("101.5").Equal(receipt.FilledAvgPrice))

	require.Len(t, tr.placed, 1)
	req := tr.placed[0]
	assert.Equal(t, alpaca.Limit, req.Type)
	assert.Equal(t, alpaca.Buy, req.Side)
	require.NotNil(t, req.LimitPrice)
	assert.Nil(t, req.StopPrice)
	assert.NotEmpty(t, req.ClientOrderID)
}

func TestSubmitSellOrder_Rejected(t *testing.T) {
	tr := &fakeTrading{statuses: []string{"rejected"}}
	p := newTestProvider(tr, &fakeData{})

	_, err := p.SubmitSellOrder(context.Background(), models.OrderRequest{Symbol: "AAPL", Side: models.SideSell, Quantity: 1, Kind: models.KindMarket})
	assert.ErrorContains(t, err, "rejected")
}

func TestSubmitOrder_PendingAfterAttempts(t *testing.T) {
	tr := &fakeTrading{statuses: []string{"accepted"}}
	p := newTestProvider(tr, &fakeData{})

	receipt, err := p.SubmitBuyOrder(context.Background(), models.OrderRequest{Symbol: "AAPL", Quantity: 1, Kind: models.KindStopLimit, Price: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, "accepted", receipt.Status)
	assert.Equal(t, 5, tr.polls)
	assert.Equal(t, alpaca.StopLimit, tr.placed[0].Type)
}

func TestSearchStocks_Limit(t *testing.T) {
	tr := &fakeTrading{}
	for _, s := range []string{"AAA", "AAB", "AAC", "AAD", "AAE", "AAF", "BBB"} {
		tr.assets = append(tr.assets, alpaca.Asset{Symbol: s, Name: s + " Corp", Tradable: true})
	}
	p := newTestProvider(tr, &fakeData{})

	got, err := p.SearchStocks(context.Background(), "aa")
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = p.SearchStocks(context.Background(), "bbb corp")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BBB", got[0].Symbol)
}

func TestGetQuote_ChangeAgainstPreviousClose(t *testing.T) {
	data := &fakeData{snapshot: &marketdata.Snapshot{
		LatestTrade:  &marketdata.Trade{Price: 110},
		PrevDailyBar: &marketdata.Bar{Close: 100},
	}}
	p := newTestProvider(&fakeTrading{}, data)

	st, err := p.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(110).Equal(st.Price))
	assert.True(t, decimal.NewFromInt(10).Equal(st.Change))

	data.snapshot = &marketdata.Snapshot{}
	_, err = p.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, models.ErrPriceUnavailable)
}

func TestGetNews(t *testing.T) {
	data := &fakeData{news: []marketdata.News{{Headline: "Apple ships", Source: "benzinga", URL: "https://example.test/a"}}}
	p := newTestProvider(&fakeTrading{}, data)

	articles, err := p.GetNews(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Apple ships", articles[0].Headline)
	assert.Equal(t, []string{"AAPL"}, data.lastNews.Symbols)
	assert.Equal(t, 5, data.lastNews.TotalLimit)
}
