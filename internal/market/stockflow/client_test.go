package stockflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithTokenSource(func() string { return "tok-123" }), WithRateLimit(100))
}

func TestFetchPortfolio_MapsCanonicalSchema(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/portfolio", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"holdings": [
				{"symbol": "aapl", "quantity": 10, "avg_price": 170.5, "day_change_percent": 1.2},
				{"symbol": "MSFT", "quantity": 2, "avg_price": "300"}
			],
			"cash_balance": 1000,
			"total_value": 2511.3,
			"overall_gain_loss": 38.3,
			"overall_gain_loss_percent": 1.55
		}`))
	})

	snap, err := c.FetchPortfolio(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Holdings, 2)
	assert.Equal(t, "AAPL", snap.Holdings[0].Symbol)
	assert.True(t, decimal.RequireFromString("170.5").Equal(snap.Holdings[0].AvgPrice))
	require.NotNil(t, snap.Holdings[0].DayChangePercent)
	assert.Nil(t, snap.Holdings[1].DayChangePercent)
	assert.True(t, decimal.NewFromInt(1000).Equal(snap.CashBalance))
}

func TestFetchPortfolio_RejectsUnknownAndMissingFields(t *testing.T) {
	bodies := map[string]string{
		"legacy field name": `{"holdings":[{"stockSymbol":"AAPL","quantity":1,"avg_price":1}],"cash_balance":0,"total_value":0,"overall_gain_loss":0,"overall_gain_loss_percent":0}`,
		"missing cash":      `{"holdings":[],"total_value":0,"overall_gain_loss":0,"overall_gain_loss_percent":0}`,
		"missing quantity":  `{"holdings":[{"symbol":"AAPL","avg_price":1}],"cash_balance":0,"total_value":0,"overall_gain_loss":0,"overall_gain_loss_percent":0}`,
		"old portfolio key": `{"portfolio":[]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.FetchPortfolio(context.Background())
			assert.ErrorIs(t, err, models.ErrRefreshFailed)
		})
	}
}

func TestFetchPortfolio_ServerError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.FetchPortfolio(context.Background())
	assert.ErrorIs(t, err, models.ErrRefreshFailed)
}

func TestSubmitBuyOrder_Body(t *testing.T) {
	var got map[string]interface{}
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/buy", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	receipt, err := c.SubmitBuyOrder(context.Background(), models.OrderRequest{
		Symbol: "AAPL", Side: models.SideBuy, Quantity: 3, Kind: models.KindStopLimit, Price: decimal.RequireFromString("150.25"),
	})
	require.NoError(t, err)
	assert.Equal(t, "accepted", receipt.Status)
	assert.Equal(t, models.SideBuy, receipt.Side)

	assert.Equal(t, "AAPL", got["stock_symbol"])
	assert.Equal(t, float64(3), got["quantity"])
	assert.Equal(t, "stop-limit", got["order_type"])
	assert.Contains(t, got, "limit_price")
	assert.Contains(t, got, "stop_price")
}

func TestSubmitSellOrder_MarketOmitsPrices(t *testing.T) {
	var got map[string]interface{}
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sell", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"o-9","status":"filled"}`))
	})

	receipt, err := c.SubmitSellOrder(context.Background(), models.OrderRequest{Symbol: "AAPL", Side: models.SideSell, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "o-9", receipt.ID)
	assert.Equal(t, "filled", receipt.Status)
	assert.Equal(t, "market", got["order_type"])
	assert.NotContains(t, got, "limit_price")
}

func TestSubmitOrder_APIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	})

	_, err := c.SubmitBuyOrder(context.Background(), models.OrderRequest{Symbol: "AAPL", Quantity: 1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Unauthorized())
	assert.Equal(t, "/api/buy", apiErr.Endpoint)
}

func TestLoginAndRegister(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var creds models.Credentials
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if creds.Password != "secret" {
				http.Error(w, "bad credentials", http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"token":"jwt-token"}`))
		case "/auth/register":
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	})

	tok, err := c.Login(context.Background(), models.Credentials{Username: "ana", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", tok.Token)
	assert.Equal(t, "ana", tok.Username)

	_, err = c.Login(context.Background(), models.Credentials{Username: "ana", Password: "wrong"})
	assert.Error(t, err)

	assert.NoError(t, c.Register(context.Background(), models.Registration{Username: "ana", Email: "a@example.test", Password: "secret"}))
}

func TestSearchStocksAndBalance(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stocks/search":
			assert.Equal(t, "app le", r.URL.Query().Get("query"))
			w.Write([]byte(`[{"symbol":"aapl","companyName":"Apple Inc."},{"symbol":"","companyName":"skip"}]`))
		case "/api/balance":
			w.Write([]byte(`{"balance": 1234.5}`))
		case "/health":
			w.WriteHeader(http.StatusOK)
		}
	})

	hits, err := c.SearchStocks(context.Background(), " app le ")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "AAPL", hits[0].Symbol)
	assert.Equal(t, "Apple Inc.", hits[0].Name)

	bal, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1234.5").Equal(bal.Cash))

	assert.NoError(t, c.Health(context.Background()))
}
