//go:build integration

package alpaca

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/models"
)

func setupTestEnv(t *testing.T) {
	key := os.Getenv("TEST_APCA_API_KEY_ID")
	secret := os.Getenv("TEST_APCA_API_SECRET_KEY")
	url := os.Getenv("TEST_APCA_API_BASE_URL")

	if key == "" || secret == "" {
		t.Skip("Skipping integration test: TEST_APCA credentials not set")
	}

	// Override standard env vars for the library
	t.Setenv("APCA_API_KEY_ID", key)
	t.Setenv("APCA_API_SECRET_KEY", secret)
	if url == "" {
		url = "https://paper-api.alpaca.markets"
	}
	t.Setenv("APCA_API_BASE_URL", url)
}

func TestIntegration_BuyThenSell(t *testing.T) {
	setupTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	provider := NewProvider(nil)
	symbol := "SPY"

	before, err := provider.FetchPortfolio(ctx)
	if err != nil {
		t.Fatalf("FetchPortfolio failed: %v", err)
	}

	quote, err := provider.GetQuote(ctx, symbol)
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	t.Logf("%s last %s (%s%%)", symbol, quote.Price, quote.Change)

	buy, err := provider.SubmitBuyOrder(ctx, models.OrderRequest{Symbol: symbol, Side: models.SideBuy, Quantity: 1, Kind: models.KindMarket})
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	t.Logf("Buy %s status %s", buy.ID, buy.Status)
	if buy.Status != "filled" {
		t.Skipf("market closed or order pending (%s), skipping sell leg", buy.Status)
	}

	sell, err := provider.SubmitSellOrder(ctx, models.OrderRequest{Symbol: symbol, Side: models.SideSell, Quantity: 1, Kind: models.KindMarket})
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	t.Logf("Sell %s status %s", sell.ID, sell.Status)

	after, err := provider.FetchPortfolio(ctx)
	if err != nil {
		t.Fatalf("FetchPortfolio failed: %v", err)
	}
	if qty(before, symbol) != qty(after, symbol) {
		t.Errorf("expected %s quantity %d after round trip, got %d", symbol, qty(before, symbol), qty(after, symbol))
	}
}

func TestIntegration_SearchAndNews(t *testing.T) {
	setupTestEnv(t)
	ctx := context.Background()
	provider := NewProvider(nil)

	assets, err := provider.SearchStocks(ctx, "apple")
	if err != nil {
		t.Fatalf("SearchStocks failed: %v", err)
	}
	if len(assets) == 0 {
		t.Errorf("expected at least one asset for 'apple'")
	}

	news, err := provider.GetNews(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("GetNews failed: %v", err)
	}
	for _, n := range news {
		t.Logf("%s: %s", n.Source, n.Headline)
	}
}

func qty(s *models.PortfolioSnapshot, symbol string) int64 {
	for _, h := range s.Holdings {
		if h.Symbol == symbol {
			return h.Quantity
		}
	}
	return 0
}
