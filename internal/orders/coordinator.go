package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/directory"
	"github.com/0xF3546/stockflow-frontend/internal/ledger"
	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/0xF3546/stockflow-frontend/internal/market"
	"github.com/0xF3546/stockflow-frontend/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultOrderTimeout bounds the remote round trip of one order.
const DefaultOrderTimeout = 15 * time.Second

// Session gates order placement.
type Session interface {
	CurrentIdentity() (models.Identity, bool)
	AvailableCash() decimal.Decimal
}

// Observer is called after every ticket transition with a copy of the ticket.
type Observer func(Ticket)

// Coordinator validates orders, applies them optimistically to the ledger,
// submits them to the broker and reconciles the outcome.
type Coordinator struct {
	ledger    *ledger.Ledger
	dir       *directory.Directory
	session   Session
	broker    market.Broker
	refresher *Refresher
	logger    *logger.Logger
	timeout   time.Duration

	mu          sync.Mutex
	inFlight    map[string]string
	pendingCost map[string]decimal.Decimal
	observers   []Observer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOrderTimeout sets how long a submission may take before it counts as failed.
func WithOrderTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithRefresher enables the post-order reconciliation.
func WithRefresher(r *Refresher) Option {
	return func(c *Coordinator) {
		c.refresher = r
	}
}

// NewCoordinator wires a coordinator.
func NewCoordinator(l *ledger.Ledger, dir *directory.Directory, s Session, b market.Broker, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledger:      l,
		dir:         dir,
		session:     s,
		broker:      b,
		logger:      logger.NewSilent(),
		timeout:     DefaultOrderTimeout,
		inFlight:    make(map[string]string),
		pendingCost: make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers an observer for ticket transitions.
func (c *Coordinator) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// InFlight reports whether an order for symbol is being submitted.
func (c *Coordinator) InFlight(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[models.NormalizeSymbol(symbol)]
	return ok
}

// Place drafts and submits an order in one step.
func (c *Coordinator) Place(ctx context.Context, req models.OrderRequest) (*Ticket, error) {
	t := Draft(req)
	return t, c.Submit(ctx, t)
}

// Submit runs a drafted ticket to a terminal state. It returns the ticket's
// error when it ends Failed. Once the remote call has started, cancelling
// ctx does not abort the order.
func (c *Coordinator) Submit(ctx context.Context, t *Ticket) error {
	if t.State != StateDraft {
		return fmt.Errorf("ticket %s already %s", t.ID, t.State)
	}
	req := t.Request

	c.transition(t, StateValidating)

	if err := c.reserve(t); err != nil {
		return c.fail(t, err)
	}

	cost, err := c.validate(req)
	if err != nil {
		c.release(t)
		return c.fail(t, err)
	}

	var m ledger.Mutation
	if req.Side == models.SideBuy {
		if err := c.reserveCash(req.Symbol, cost); err != nil {
			c.release(t)
			return c.fail(t, err)
		}
		m, err = c.ledger.ApplyBuy(req.Symbol, req.Quantity)
	} else {
		m, err = c.ledger.ApplySell(req.Symbol, req.Quantity)
	}
	if err != nil {
		c.release(t)
		return c.fail(t, err)
	}

	c.transition(t, StateSubmitting)
	c.logger.Info().Str("ticket", t.ID).Str("order", req.String()).Msg("Submitting order")

	receipt, remoteErr := c.submitRemote(ctx, req)

	// Reconcile before the terminal state becomes visible.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if remoteErr != nil {
		c.rollback(rctx, m)
		c.release(t)
		return c.fail(t, fmt.Errorf("%w: %w", models.ErrRemoteOrderFailed, remoteErr))
	}

	t.Receipt = receipt
	if c.refresher != nil {
		if _, err := c.refresher.Refresh(rctx); err != nil {
			t.RefreshErr = err
		}
	}
	c.release(t)
	c.transition(t, StateConfirmed)
	c.logger.Info().Str("ticket", t.ID).Str("status", receipt.Status).Msg("Order confirmed")
	return nil
}

type remoteResult struct {
	receipt *models.OrderReceipt
	err     error
}

// submitRemote calls the broker with the order timeout. The first terminal
// signal wins: a result arriving after the timeout is logged and dropped.
func (c *Coordinator) submitRemote(ctx context.Context, req models.OrderRequest) (*models.OrderReceipt, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	var settled atomic.Bool
	done := make(chan remoteResult, 1)

	go func() {
		receipt, err := market.Submit(sctx, c.broker, req)
		if err == nil && receipt == nil {
			receipt = &models.OrderReceipt{Symbol: req.Symbol, Side: req.Side, Status: "accepted"}
		}
		if !settled.CompareAndSwap(false, true) {
			c.logger.Warn().Str("order", req.String()).Err(err).Msg("Late order result ignored")
			return
		}
		done <- remoteResult{receipt: receipt, err: err}
	}()

	select {
	case r := <-done:
		return r.receipt, r.err
	case <-sctx.Done():
		if settled.CompareAndSwap(false, true) {
			return nil, fmt.Errorf("no response within %s: %w", c.timeout, sctx.Err())
		}
		r := <-done
		return r.receipt, r.err
	}
}

// rollback undoes the optimistic mutation. If a snapshot replaced the ledger
// in the meantime the mutation is already gone, so the ledger is refreshed
// instead.
func (c *Coordinator) rollback(ctx context.Context, m ledger.Mutation) {
	err := c.ledger.Revert(m)
	if err == nil {
		c.logger.Info().Str("symbol", m.Symbol).Str("side", string(m.Side)).Msg("Optimistic change rolled back")
		return
	}
	if !errors.Is(err, ledger.ErrStale) {
		c.logger.Error().Err(err).Str("symbol", m.Symbol).Msg("Rollback failed")
		return
	}
	c.logger.Warn().Str("symbol", m.Symbol).Msg("Ledger replaced during order, refreshing instead of rollback")
	if c.refresher != nil {
		_, _ = c.refresher.Refresh(ctx)
	}
}

func (c *Coordinator) validate(req models.OrderRequest) (decimal.Decimal, error) {
	if _, ok := c.session.CurrentIdentity(); !ok {
		return decimal.Zero, models.ErrNotAuthenticated
	}
	if req.Quantity <= 0 {
		return decimal.Zero, fmt.Errorf("quantity %d: %w", req.Quantity, models.ErrInvalidQuantity)
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return decimal.Zero, fmt.Errorf("unknown side %q", req.Side)
	}
	if req.Kind != models.KindMarket && !req.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s order needs a positive price: %w", req.Kind, models.ErrInvalidPrice)
	}

	if req.Side == models.SideSell {
		if held := c.ledger.QuantityHeld(req.Symbol); req.Quantity > held {
			return decimal.Zero, fmt.Errorf("sell %d %s, held %d: %w", req.Quantity, req.Symbol, held, models.ErrInsufficientHoldings)
		}
		return decimal.Zero, nil
	}

	stock, err := c.dir.Get(req.Symbol)
	if err != nil {
		return decimal.Zero, err
	}
	unit := req.Price
	if req.Kind == models.KindMarket {
		if !stock.Price.IsPositive() {
			return decimal.Zero, fmt.Errorf("%s: %w", req.Symbol, models.ErrPriceUnavailable)
		}
		unit = stock.Price
	}

	return unit.Mul(decimal.NewFromInt(req.Quantity)), nil
}

// reserveCash checks cost against the cash not yet claimed by other pending
// buys and claims it. Check and claim happen under one lock.
func (c *Coordinator) reserveCash(symbol string, cost decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := decimal.Zero
	for sym, p := range c.pendingCost {
		if sym != symbol {
			pending = pending.Add(p)
		}
	}
	available := c.session.AvailableCash().Sub(pending)
	if cost.GreaterThan(available) {
		return fmt.Errorf("cost %s exceeds available %s: %w", cost.StringFixed(2), available.StringFixed(2), models.ErrInsufficientCash)
	}
	c.pendingCost[symbol] = cost
	return nil
}

func (c *Coordinator) reserve(t *Ticket) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sym := t.Request.Symbol
	if other, busy := c.inFlight[sym]; busy {
		return fmt.Errorf("%s (ticket %s): %w", sym, other, models.ErrOrderInProgress)
	}
	c.inFlight[sym] = t.ID
	return nil
}

func (c *Coordinator) release(t *Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sym := t.Request.Symbol
	if c.inFlight[sym] == t.ID {
		delete(c.inFlight, sym)
		delete(c.pendingCost, sym)
	}
}

func (c *Coordinator) fail(t *Ticket, err error) error {
	t.Err = err
	c.transition(t, StateFailed)
	c.logger.Info().Str("ticket", t.ID).Err(err).Msg("Order failed")
	return err
}

func (c *Coordinator) transition(t *Ticket, s State) {
	t.advance(s, time.Now())

	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	snapshot := t.clone()
	for _, o := range observers {
		o(snapshot)
	}
}
