package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/0xF3546/stockflow-frontend/internal/market"
	"github.com/0xF3546/stockflow-frontend/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// tradingAPI is the subset of *alpaca.Client used here.
type tradingAPI interface {
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetOrder(orderID string) (*alpaca.Order, error)
	GetAssets(req alpaca.GetAssetsRequest) ([]alpaca.Asset, error)
}

// dataAPI is the subset of *marketdata.Client used here.
type dataAPI interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

// Provider implements the broker, quote and news interfaces for Alpaca.
// Credentials are read by the SDK from APCA_API_KEY_ID, APCA_API_SECRET_KEY
// and APCA_API_BASE_URL.
type Provider struct {
	trade  tradingAPI
	data   dataAPI
	logger *logger.Logger

	verifyAttempts int
	verifyInterval time.Duration
	searchLimit    int
}

var (
	_ market.Broker        = (*Provider)(nil)
	_ market.QuoteProvider = (*Provider)(nil)
	_ market.NewsProvider  = (*Provider)(nil)
)

// NewProvider returns a new Alpaca provider.
func NewProvider(l *logger.Logger) *Provider {
	return newProvider(alpaca.NewClient(alpaca.ClientOpts{}), marketdata.NewClient(marketdata.ClientOpts{}), l)
}

func newProvider(trade tradingAPI, data dataAPI, l *logger.Logger) *Provider {
	if l == nil {
		l = logger.NewSilent()
	}
	return &Provider{
		trade:          trade,
		data:           data,
		logger:         l,
		verifyAttempts: 5,
		verifyInterval: time.Second,
		searchLimit:    5,
	}
}

// --- Portfolio ---

// FetchPortfolio maps the account and open positions to a snapshot.
// Fractional share quantities are truncated.
func (p *Provider) FetchPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acct, err := p.trade.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	positions, err := p.trade.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	snap := &models.PortfolioSnapshot{CashBalance: acct.Cash}
	var costBasis decimal.Decimal

	for _, x := range positions {
		if !x.Qty.IsInteger() {
			p.logger.Warn().Str("symbol", x.Symbol).Str("qty", x.Qty.String()).Msg("Fractional position truncated")
		}
		h := models.Holding{
			Symbol:   x.Symbol,
			Quantity: x.Qty.IntPart(),
			AvgPrice: x.AvgEntryPrice,
		}
		// ChangeToday is a fraction (0.012 == 1.2%)
		if x.ChangeToday != nil {
			pct := x.ChangeToday.Mul(decimal.NewFromInt(100))
			h.DayChangePercent = &pct
		}
		snap.Holdings = append(snap.Holdings, h)

		if x.MarketValue != nil {
			snap.TotalValue = snap.TotalValue.Add(*x.MarketValue)
		}
		if x.UnrealizedPL != nil {
			snap.OverallGainLoss = snap.OverallGainLoss.Add(*x.UnrealizedPL)
		}
		costBasis = costBasis.Add(x.CostBasis)
	}

	if !costBasis.IsZero() {
		snap.OverallGainLossPercent = snap.OverallGainLoss.Div(costBasis).Mul(decimal.NewFromInt(100))
	}
	return snap, nil
}

// --- Execution ---

func (p *Provider) SubmitBuyOrder(ctx context.Context, req models.OrderRequest) (*models.OrderReceipt, error) {
	return p.placeOrder(ctx, req, alpaca.Buy)
}

func (p *Provider) SubmitSellOrder(ctx context.Context, req models.OrderRequest) (*models.OrderReceipt, error) {
	return p.placeOrder(ctx, req, alpaca.Sell)
}

func (p *Provider) placeOrder(ctx context.Context, req models.OrderRequest, side alpaca.Side) (*models.OrderReceipt, error) {
	qty := decimal.NewFromInt(req.Quantity)
	orderType, err := orderTypeFor(req.Kind)
	if err != nil {
		return nil, err
	}

	o, err := p.trade.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          side,
		Type:          orderType,
		TimeInForce:   alpaca.Day,
		LimitPrice:    req.LimitPrice(),
		StopPrice:     req.StopPrice(),
		ClientOrderID: uuid.New().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	p.logger.Info().Str("id", o.ID).Str("symbol", o.Symbol).Str("side", string(side)).Msg("Order placed")

	verified, err := p.verifyExecution(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if verified == nil {
		verified = o
	}
	return mapOrder(verified), nil
}

// verifyExecution polls the order until it fills, fails or the attempts run out.
// Canceled, rejected and expired orders are errors; an order still pending
// after the last attempt is returned as is.
func (p *Provider) verifyExecution(ctx context.Context, orderID string) (*alpaca.Order, error) {
	var last *alpaca.Order
	for i := 0; i < p.verifyAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.verifyInterval):
		}

		order, err := p.trade.GetOrder(orderID)
		if err != nil {
			p.logger.Warn().Err(err).Str("id", orderID).Msg("Verification poll failed")
			continue
		}
		last = order

		switch strings.ToLower(order.Status) {
		case "filled":
			return order, nil
		case "canceled", "rejected", "expired":
			return order, fmt.Errorf("order %s terminated with status %s", orderID, order.Status)
		}
	}
	return last, nil
}

func orderTypeFor(kind models.OrderKind) (alpaca.OrderType, error) {
	switch kind {
	case models.KindMarket, "":
		return alpaca.Market, nil
	case models.KindLimit:
		return alpaca.Limit, nil
	case models.KindStop:
		return alpaca.Stop, nil
	case models.KindStopLimit:
		return alpaca.StopLimit, nil
	}
	return "", fmt.Errorf("unsupported order kind %q", kind)
}

// --- Search, quotes, news ---

// SearchStocks scans active US equities in memory.
// Returns a maximum of searchLimit results.
func (p *Provider) SearchStocks(ctx context.Context, query string) ([]models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assets, err := p.trade.GetAssets(alpaca.GetAssetsRequest{
		Status:     "active",
		AssetClass: "us_equity",
	})
	if err != nil {
		return nil, err
	}

	var results []models.Asset
	q := strings.ToLower(strings.TrimSpace(query))
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Symbol), q) || strings.Contains(strings.ToLower(a.Name), q) {
			results = append(results, models.Asset{
				Symbol:   a.Symbol,
				Name:     a.Name,
				Exchange: a.Exchange,
				Tradable: a.Tradable,
			})
			if len(results) >= p.searchLimit {
				break
			}
		}
	}
	return results, nil
}

// GetQuote returns the last trade price and the change against the previous close.
func (p *Provider) GetQuote(ctx context.Context, symbol string) (models.Stock, error) {
	if err := ctx.Err(); err != nil {
		return models.Stock{}, err
	}

	s, err := p.data.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	if err != nil {
		return models.Stock{}, err
	}
	if s == nil || s.LatestTrade == nil {
		return models.Stock{}, fmt.Errorf("%s: %w", symbol, models.ErrPriceUnavailable)
	}

	st := models.Stock{Symbol: symbol, Price: decimal.NewFromFloat(s.LatestTrade.Price)}
	if s.PrevDailyBar != nil && s.PrevDailyBar.Close > 0 {
		prev := decimal.NewFromFloat(s.PrevDailyBar.Close)
		st.Change = st.Price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return st, nil
}

// GetNews returns the latest headlines for a symbol, newest first.
func (p *Provider) GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	news, err := p.data.GetNews(marketdata.GetNewsRequest{
		Symbols:    []string{symbol},
		Start:      time.Now().AddDate(0, 0, -7),
		TotalLimit: limit,
		Sort:       marketdata.SortDesc,
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.NewsArticle, 0, len(news))
	for _, n := range news {
		out = append(out, models.NewsArticle{
			Headline:  n.Headline,
			Summary:   n.Summary,
			Source:    n.Source,
			URL:       n.URL,
			CreatedAt: n.CreatedAt,
		})
	}
	return out, nil
}

func mapOrder(o *alpaca.Order) *models.OrderReceipt {
	if o == nil {
		return nil
	}
	r := &models.OrderReceipt{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          models.Side(o.Side),
		Status:        o.Status,
		FilledQty:     o.FilledQty,
		SubmittedAt:   o.SubmittedAt,
	}
	if o.FilledAvgPrice != nil {
		r.FilledAvgPrice = *o.FilledAvgPrice
	}
	return r
}
