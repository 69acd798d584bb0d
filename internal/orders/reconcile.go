package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/directory"
	"github.com/0xF3546/stockflow-frontend/internal/ledger"
	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/0xF3546/stockflow-frontend/internal/market"
	"github.com/0xF3546/stockflow-frontend/internal/models"

	"github.com/shopspring/decimal"
)

// CashSink receives the server reported cash balance.
type CashSink interface {
	SetCash(decimal.Decimal)
}

// Refresher replaces the ledger with the broker's authoritative snapshot.
// It is the only path besides the Coordinator that mutates the ledger.
type Refresher struct {
	broker market.Broker
	ledger *ledger.Ledger
	cash   CashSink
	dir    *directory.Directory
	quotes market.QuoteProvider
	logger *logger.Logger

	tolerance decimal.Decimal

	mu       sync.Mutex
	lastSync time.Time
	last     *models.PortfolioSnapshot
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithQuotes refreshes directory prices for every held symbol before the
// local total is compared against the server total.
func WithQuotes(dir *directory.Directory, q market.QuoteProvider) RefresherOption {
	return func(r *Refresher) {
		r.dir = dir
		r.quotes = q
	}
}

// WithRefreshLogger sets the logger.
func WithRefreshLogger(l *logger.Logger) RefresherOption {
	return func(r *Refresher) {
		r.logger = l
	}
}

// NewRefresher wires a refresher.
func NewRefresher(b market.Broker, l *ledger.Ledger, cash CashSink, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		broker:    b,
		ledger:    l,
		cash:      cash,
		logger:    logger.NewSilent(),
		tolerance: decimal.NewFromFloat(0.01),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh fetches the snapshot and replaces the ledger wholesale. On failure
// the ledger keeps its current (possibly optimistic) state.
func (r *Refresher) Refresh(ctx context.Context) (*models.PortfolioSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.broker.FetchPortfolio(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrRefreshFailed) {
			err = fmt.Errorf("%w: %v", models.ErrRefreshFailed, err)
		}
		r.logger.Warn().Err(err).Msg("Portfolio refresh failed, keeping local state")
		return nil, err
	}

	if snap == nil {
		return nil, fmt.Errorf("%w: empty snapshot", models.ErrRefreshFailed)
	}

	if err := r.ledger.ReplaceAll(snap.Holdings); err != nil {
		r.logger.Warn().Err(err).Msg("Portfolio snapshot rejected, keeping local state")
		return nil, err
	}
	if r.cash != nil {
		r.cash.SetCash(snap.CashBalance)
	}

	r.updateQuotes(ctx, snap.Holdings)
	r.checkDeviation(snap)

	r.lastSync = time.Now()
	r.last = snap
	r.logger.Info().Int("holdings", len(snap.Holdings)).Str("cash", snap.CashBalance.StringFixed(2)).Msg("Portfolio refreshed")
	return snap, nil
}

// LastSync returns when the last successful refresh happened.
func (r *Refresher) LastSync() (time.Time, *models.PortfolioSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSync, r.last
}

func (r *Refresher) updateQuotes(ctx context.Context, holdings []models.Holding) {
	if r.quotes == nil || r.dir == nil {
		return
	}
	for _, h := range holdings {
		q, err := r.quotes.GetQuote(ctx, h.Symbol)
		if err != nil {
			r.logger.Debug().Err(err).Str("symbol", h.Symbol).Msg("Quote unavailable")
			continue
		}
		if err := r.dir.Merge(q); err != nil {
			r.logger.Debug().Err(err).Str("symbol", h.Symbol).Msg("Quote rejected")
		}
	}
}

// checkDeviation logs when the locally computed total drifts from the
// server's figure. Stale directory prices are the usual cause.
func (r *Refresher) checkDeviation(snap *models.PortfolioSnapshot) {
	local := r.ledger.TotalValue()
	diff := local.Sub(snap.TotalValue).Abs()
	if diff.GreaterThan(r.tolerance) {
		r.logger.Warn().
			Str("local", local.StringFixed(2)).
			Str("server", snap.TotalValue.StringFixed(2)).
			Msg("Local portfolio value deviates from server")
	}
}
