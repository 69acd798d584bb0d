package market

import (
	"context"

	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/shopspring/decimal"
)

// Broker is the remote source of truth for the portfolio.
// Implementations exist for the stockflow REST backend and for Alpaca;
// tests use hand-written fakes.
type Broker interface {
	FetchPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error)
	SubmitBuyOrder(ctx context.Context, req models.OrderRequest) (*models.OrderReceipt, error)
	SubmitSellOrder(ctx context.Context, req models.OrderRequest) (*models.OrderReceipt, error)
	SearchStocks(ctx context.Context, query string) ([]models.Asset, error)
}

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthToken, error)
	Register(ctx context.Context, reg models.Registration) error
}

// QuoteProvider returns the latest price and daily change for a symbol.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (models.Stock, error)
}

// NewsProvider returns recent headlines for a symbol.
type NewsProvider interface {
	GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error)
}

// StreamHandler is a callback for live trade prices.
type StreamHandler func(symbol string, price decimal.Decimal)

// StreamProvider defines the interface for real-time market data.
type StreamProvider interface {
	Subscribe(ctx context.Context, symbols []string, handler StreamHandler) error
	Close() error
}

// Submit routes an order to the broker method for its side.
func Submit(ctx context.Context, b Broker, req models.OrderRequest) (*models.OrderReceipt, error) {
	if req.Side == models.SideSell {
		return b.SubmitSellOrder(ctx, req)
	}
	return b.SubmitBuyOrder(ctx, req)
}
