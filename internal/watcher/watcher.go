package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/ai"
	"github.com/0xF3546/stockflow-frontend/internal/config"
	"github.com/0xF3546/stockflow-frontend/internal/directory"
	"github.com/0xF3546/stockflow-frontend/internal/ledger"
	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/0xF3546/stockflow-frontend/internal/market"
	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/0xF3546/stockflow-frontend/internal/orders"
	"github.com/0xF3546/stockflow-frontend/internal/session"
	"github.com/0xF3546/stockflow-frontend/internal/storage"
	"github.com/0xF3546/stockflow-frontend/internal/telegram"

	"github.com/shopspring/decimal"
)

// Notifier delivers messages to the user outside of a command reply.
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, text string)
	SendInteractiveMessage(ctx context.Context, text string, buttons []telegram.Button)
}

// Reviewer produces an AI review of the portfolio.
type Reviewer interface {
	Enabled() bool
	ReviewPortfolio(ctx context.Context, payload ai.PortfolioPayload) (*ai.Review, error)
}

type healthChecker interface {
	Health(ctx context.Context) error
}

type balanceFetcher interface {
	FetchBalance(ctx context.Context) (*models.Balance, error)
}

// Deps are the collaborators of a Watcher. Quotes, News, Stream, Reviewer and
// Notifier are optional.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Directory   *directory.Directory
	Ledger      *ledger.Ledger
	Session     *session.Session
	Coordinator *orders.Coordinator
	Refresher   *orders.Refresher
	Broker      market.Broker
	Store       *storage.Store
	Quotes      market.QuoteProvider
	News        market.NewsProvider
	Stream      market.StreamProvider
	Reviewer    Reviewer
	Notifier    Notifier
}

// Watcher is the command surface over the portfolio model. It turns text
// commands into order proposals, runs the periodic refresh and reports.
type Watcher struct {
	cfg         *config.Config
	logger      *logger.Logger
	dir         *directory.Directory
	ledger      *ledger.Ledger
	session     *session.Session
	coordinator *orders.Coordinator
	refresher   *orders.Refresher
	broker      market.Broker
	store       *storage.Store
	quotes      market.QuoteProvider
	news        market.NewsProvider
	stream      market.StreamProvider
	reviewer    Reviewer
	notifier    Notifier

	commands []CommandDoc
	started  time.Time
	now      func() time.Time

	mu              sync.Mutex
	proposals       map[string]proposal
	lastAnalyzeTime time.Time
}

// New wires a watcher from its dependencies.
func New(d Deps) *Watcher {
	l := d.Logger
	if l == nil {
		l = logger.NewSilent()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	w := &Watcher{
		cfg:         cfg,
		logger:      l,
		dir:         d.Directory,
		ledger:      d.Ledger,
		session:     d.Session,
		coordinator: d.Coordinator,
		refresher:   d.Refresher,
		broker:      d.Broker,
		store:       d.Store,
		quotes:      d.Quotes,
		news:        d.News,
		stream:      d.Stream,
		reviewer:    d.Reviewer,
		notifier:    d.Notifier,
		commands:    commandDocs,
		started:     time.Now(),
		now:         time.Now,
		proposals:   make(map[string]proposal),
	}

	if w.coordinator != nil {
		w.coordinator.Subscribe(w.logTicket)
	}
	return w
}

func (w *Watcher) logTicket(t orders.Ticket) {
	ev := w.logger.Info()
	if t.State == orders.StateFailed {
		ev = w.logger.Warn().Err(t.Err)
	}
	ev.Str("ticket", t.ID).Str("order", t.Request.String()).Str("state", string(t.State)).Msg("Order transition")
}

func (w *Watcher) notify(ctx context.Context, text string) {
	if w.notifier != nil && w.notifier.Enabled() {
		w.notifier.Notify(ctx, text)
	}
}

type consoleKey struct{}

// interactive reports whether proposals go out as Telegram buttons. Commands
// typed on the console always get a text reply.
func (w *Watcher) interactive(ctx context.Context) bool {
	if console, _ := ctx.Value(consoleKey{}).(bool); console {
		return false
	}
	return w.notifier != nil && w.notifier.Enabled()
}

// HandleConsoleCommand is HandleCommand for a local terminal: proposals are
// answered with /confirm text instead of Telegram buttons.
func (w *Watcher) HandleConsoleCommand(ctx context.Context, cmd string) string {
	return w.HandleCommand(context.WithValue(ctx, consoleKey{}, true), cmd)
}

// Poll runs one refresh cycle: portfolio reconciliation for a logged in
// user, quotes for the watchlist and expiry of stale proposals.
func (w *Watcher) Poll(ctx context.Context) {
	w.expireProposals()

	if _, ok := w.session.CurrentIdentity(); ok && w.refresher != nil {
		if _, err := w.refresher.Refresh(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("Scheduled refresh failed")
		} else {
			w.recordSync()
		}
	}

	w.pollWatchlist(ctx)
}

// pollWatchlist fetches quotes for watched symbols that are not held.
// Held symbols are quoted by the refresh itself.
func (w *Watcher) pollWatchlist(ctx context.Context) {
	if w.quotes == nil {
		return
	}
	for _, sym := range w.watchlist() {
		if w.ledger.QuantityHeld(sym) > 0 && w.refresher != nil {
			continue
		}
		q, err := w.quotes.GetQuote(ctx, sym)
		if err != nil {
			w.logger.Debug().Err(err).Str("symbol", sym).Msg("Watchlist quote unavailable")
			continue
		}
		if err := w.dir.Merge(q); err != nil {
			w.logger.Debug().Err(err).Str("symbol", sym).Msg("Watchlist quote rejected")
		}
	}
}

func (w *Watcher) recordSync() {
	if w.store == nil {
		return
	}
	stamp := w.now().UTC().Format(time.RFC3339)
	if err := w.store.Update(func(st *models.SessionState) { st.LastSync = stamp }); err != nil {
		w.logger.Warn().Err(err).Msg("Could not persist sync time")
	}
}

// StartStream subscribes to live trades for held and watched symbols and
// writes their prices into the directory. It is a no-op without a stream.
func (w *Watcher) StartStream(ctx context.Context) error {
	if w.stream == nil {
		return nil
	}
	symbols := w.streamSymbols()
	if len(symbols) == 0 {
		return nil
	}
	return w.stream.Subscribe(ctx, symbols, func(symbol string, price decimal.Decimal) {
		if err := w.dir.UpdatePrice(symbol, price); err != nil {
			w.logger.Debug().Err(err).Str("symbol", symbol).Msg("Stream price rejected")
		}
	})
}

func (w *Watcher) streamSymbols() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, h := range w.ledger.Snapshot() {
		add(h.Symbol)
	}
	for _, s := range w.watchlist() {
		add(s)
	}
	return out
}

// SendStartupNotification announces the process and its account state.
func (w *Watcher) SendStartupNotification(ctx context.Context) {
	user := "logged out"
	if id, ok := w.session.CurrentIdentity(); ok {
		user = id.Username
	}
	s := w.ledger.Summary()
	msg := fmt.Sprintf("🚀 *SYSTEM START: stockflow %s online*\nBroker: %s | User: %s\nValue: %s | Cash: %s",
		w.cfg.Version, w.cfg.Broker, user, usd(s.TotalValue), usd(s.AvailableCash))
	w.notify(ctx, msg)
}

// SendShutdownNotification closes the stream and says goodbye.
func (w *Watcher) SendShutdownNotification(ctx context.Context) {
	if w.stream != nil {
		if err := w.stream.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Stream close failed")
		}
	}
	w.notify(ctx, "🛑 SYSTEM SHUTDOWN: Signal received. State saved successfully.")
}
