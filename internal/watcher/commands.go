package watcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/models"
)

type CommandDoc struct {
	Name        string
	Description string
	Example     string
}

var commandDocs = []CommandDoc{
	{"/ping", "Connectivity check", "/ping"},
	{"/status", "Session, sync and backend health", "/status"},
	{"/portfolio", "Holdings with gain/loss and day change", "/portfolio"},
	{"/balance", "Cash available for buys", "/balance"},
	{"/buy", "Propose a buy, confirm to execute", "/buy <ticker> <qty> [market|limit|stop|stop-limit] [price]"},
	{"/sell", "Propose a sell, confirm to execute", "/sell <ticker> <qty> [market|limit|stop|stop-limit] [price]"},
	{"/confirm", "Execute a pending proposal", "/confirm [id]"},
	{"/cancel", "Discard a pending proposal", "/cancel [id]"},
	{"/price", "Latest known price", "/price <ticker>"},
	{"/stocks", "Every known stock", "/stocks"},
	{"/search", "Search the broker's assets", "/search <query>"},
	{"/news", "Recent headlines", "/news <ticker>"},
	{"/watch", "Add to the watchlist", "/watch <ticker>"},
	{"/unwatch", "Remove from the watchlist", "/unwatch <ticker>"},
	{"/watchlist", "Watched symbols with prices", "/watchlist"},
	{"/analyze", "AI portfolio review", "/analyze"},
	{"/refresh", "Reconcile with the server now", "/refresh"},
	{"/login", "Log in", "/login <username> <password>"},
	{"/register", "Create an account", "/register <username> <email> <password>"},
	{"/logout", "Log out", "/logout"},
}

// HandleCommand processes one text command and returns the reply. An empty
// reply means the answer was sent interactively.
func (w *Watcher) HandleCommand(ctx context.Context, cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return ""
	}

	switch strings.ToLower(parts[0]) {
	case "/ping":
		return "Pong 🏓"
	case "/help", "/start":
		return w.getHelp()
	case "/status":
		return w.getStatus(ctx)
	case "/portfolio":
		return w.getPortfolio()
	case "/balance":
		return w.handleBalanceCommand(ctx)
	case "/buy":
		return w.handleOrderCommand(ctx, models.SideBuy, parts)
	case "/sell":
		return w.handleOrderCommand(ctx, models.SideSell, parts)
	case "/confirm":
		return w.handleConfirmCommand(ctx, parts)
	case "/cancel":
		return w.handleCancelCommand(parts)
	case "/price":
		if len(parts) < 2 {
			return "Usage: /price <ticker>"
		}
		return w.getPrice(ctx, models.NormalizeSymbol(parts[1]))
	case "/stocks":
		return w.getStocks()
	case "/search":
		if len(parts) < 2 {
			return "Usage: /search <query>"
		}
		return w.searchAssets(ctx, strings.Join(parts[1:], " "))
	case "/news":
		if len(parts) < 2 {
			return "Usage: /news <ticker>"
		}
		return w.getNews(ctx, models.NormalizeSymbol(parts[1]))
	case "/watch":
		if len(parts) < 2 {
			return "Usage: /watch <ticker>"
		}
		return w.handleWatchCommand(parts[1])
	case "/unwatch":
		if len(parts) < 2 {
			return "Usage: /unwatch <ticker>"
		}
		return w.handleUnwatchCommand(parts[1])
	case "/watchlist":
		return w.getWatchlist()
	case "/analyze":
		return w.handleAnalyzeCommand(ctx)
	case "/refresh":
		if len(parts) > 1 {
			return "⚠️ Error: /refresh does not accept parameters."
		}
		return w.handleRefreshCommand(ctx)
	case "/login":
		return w.handleLoginCommand(ctx, parts)
	case "/register":
		return w.handleRegisterCommand(ctx, parts)
	case "/logout":
		w.Logout()
		return "👋 Logged out."
	default:
		return "Unknown command. Try /help."
	}
}

func (w *Watcher) getHelp() string {
	var sb strings.Builder
	sb.WriteString("🤖 *STOCKFLOW COMMANDS*\n\n")
	for _, cmd := range w.commands {
		sb.WriteString(fmt.Sprintf("🔹 *%s*\n%s\n`%s`\n\n", cmd.Name, cmd.Description, cmd.Example))
	}
	return sb.String()
}

// parseOrder reads "<verb> <ticker> <qty> [kind] [price]".
func parseOrder(side models.Side, parts []string) (models.OrderRequest, error) {
	if len(parts) < 3 {
		return models.OrderRequest{}, fmt.Errorf("Usage: %s <ticker> <qty> [market|limit|stop|stop-limit] [price]", parts[0])
	}

	qty, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return models.OrderRequest{}, fmt.Errorf("⚠️ Invalid quantity %q: whole shares only.", parts[2])
	}

	req := models.OrderRequest{
		Symbol:   models.NormalizeSymbol(parts[1]),
		Side:     side,
		Quantity: qty,
		Kind:     models.KindMarket,
	}

	if len(parts) >= 4 {
		kind, err := models.ParseOrderKind(parts[3])
		if err != nil {
			return models.OrderRequest{}, fmt.Errorf("⚠️ %v", err)
		}
		req.Kind = kind
	}
	if req.Kind != models.KindMarket {
		if len(parts) < 5 {
			return models.OrderRequest{}, fmt.Errorf("⚠️ A %s order needs a price.", req.Kind)
		}
		price, err := parseDecimal(parts[4])
		if err != nil {
			return models.OrderRequest{}, errors.New("⚠️ Invalid price format.")
		}
		req.Price = price
	}
	return req, nil
}

func (w *Watcher) handleOrderCommand(ctx context.Context, side models.Side, parts []string) string {
	req, err := parseOrder(side, parts)
	if err != nil {
		return err.Error()
	}
	if _, ok := w.session.CurrentIdentity(); !ok {
		return "🔒 Not logged in. Use /login first."
	}
	if w.coordinator.InFlight(req.Symbol) {
		return fmt.Sprintf("⚠️ Order already in progress for %s. Wait for it to finish.", req.Symbol)
	}

	p := w.propose(req)

	est := "unknown"
	if price, ok := w.dir.Price(req.Symbol); ok && price.IsPositive() {
		est = usd(price.Mul(decimalFromInt(req.Quantity)))
	}

	msg := fmt.Sprintf("📝 *TRADE PROPOSAL* `%s`\n"+
		"Order: %s\n"+
		"Estimated: %s\n"+
		"Cash: %s\n"+
		"Confirm Execution?\n\n"+
		"⏱️ Valid for %d seconds.",
		p.key, req.String(), est, usd(w.session.AvailableCash()), w.cfg.ConfirmationTTLSec)

	if w.interactive(ctx) {
		w.notifier.SendInteractiveMessage(ctx, msg, proposalButtons(p.key))
		return ""
	}
	return msg + fmt.Sprintf("\nReply /confirm %s or /cancel %s.", p.key, p.key)
}

func (w *Watcher) handleConfirmCommand(ctx context.Context, parts []string) string {
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	return w.executeProposal(ctx, key)
}

func (w *Watcher) handleCancelCommand(parts []string) string {
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	return w.cancelProposal(key)
}

func (w *Watcher) handleRefreshCommand(ctx context.Context) string {
	if _, ok := w.session.CurrentIdentity(); !ok {
		return "🔒 Not logged in. Use /login first."
	}
	snap, err := w.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Failed to sync state: %v", err)
	}
	w.recordSync()
	return fmt.Sprintf("🔄 Sync Complete: Local state aligned with the server (%d positions, cash %s).",
		len(snap.Holdings), usd(snap.CashBalance))
}

func (w *Watcher) handleBalanceCommand(ctx context.Context) string {
	if _, ok := w.session.CurrentIdentity(); !ok {
		return "🔒 Not logged in. Use /login first."
	}
	if bf, ok := w.broker.(balanceFetcher); ok {
		bal, err := bf.FetchBalance(ctx)
		if err != nil {
			w.logger.Warn().Err(err).Msg("Balance lookup failed")
			return fmt.Sprintf("💵 Cash: %s (cached, balance lookup failed)", usd(w.session.AvailableCash()))
		}
		w.session.SetCash(bal.Cash)
	}
	return fmt.Sprintf("💵 Cash: %s", usd(w.session.AvailableCash()))
}

func (w *Watcher) handleLoginCommand(ctx context.Context, parts []string) string {
	if len(parts) < 3 {
		return "Usage: /login <username> <password>"
	}
	id, err := w.session.Login(ctx, models.Credentials{Username: parts[1], Password: parts[2]})
	if err != nil {
		return fmt.Sprintf("❌ Login failed: %v", err)
	}

	msg := fmt.Sprintf("✅ Logged in as %s.", id.Username)
	if w.refresher != nil {
		if _, err := w.refresher.Refresh(ctx); err != nil {
			msg += fmt.Sprintf("\n⚠️ Portfolio not loaded: %v", err)
		} else {
			w.recordSync()
		}
	}
	return msg
}

// Logout ends the session and drops everything that belonged to it: the
// holdings, pending proposals and the analysis cooldown.
func (w *Watcher) Logout() {
	w.session.Logout()
	w.ledger.Reset()
	w.clearProposals()

	w.mu.Lock()
	w.lastAnalyzeTime = time.Time{}
	w.mu.Unlock()
}

func (w *Watcher) handleRegisterCommand(ctx context.Context, parts []string) string {
	if len(parts) < 4 {
		return "Usage: /register <username> <email> <password>"
	}
	reg := models.Registration{Username: parts[1], Email: parts[2], Password: parts[3]}
	if err := w.session.Register(ctx, reg); err != nil {
		return fmt.Sprintf("❌ Registration failed: %v", err)
	}
	return fmt.Sprintf("✅ Account %s created. Use /login to sign in.", reg.Username)
}

// handleAnalyzeCommand requests an AI review, at most once per cooldown.
func (w *Watcher) handleAnalyzeCommand(ctx context.Context) string {
	if w.reviewer == nil || !w.reviewer.Enabled() {
		return "⚠️ AI review is not configured (GEMINI_API_KEY)."
	}
	if _, ok := w.session.CurrentIdentity(); !ok {
		return "🔒 Not logged in. Use /login first."
	}

	w.mu.Lock()
	now := w.now()
	if !w.lastAnalyzeTime.IsZero() {
		elapsed := now.Sub(w.lastAnalyzeTime)
		if elapsed < w.cfg.AnalyzeCooldown {
			w.mu.Unlock()
			remaining := w.cfg.AnalyzeCooldown - elapsed
			return fmt.Sprintf("⏳ Analysis cooling down. Next available in %.0fs.", remaining.Seconds())
		}
	}
	w.lastAnalyzeTime = now
	w.mu.Unlock()

	return w.runAnalysis(ctx)
}

// runAnalysis sends the portfolio to the reviewer and turns an actionable
// verdict into a proposal.
func (w *Watcher) runAnalysis(ctx context.Context) string {
	payload := w.reviewPayload()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	review, err := w.reviewer.ReviewPortfolio(ctx, payload)
	if err != nil {
		w.logger.Warn().Err(err).Msg("AI review failed")
		return fmt.Sprintf("⚠️ AI Analysis Failed:\n```\n%v\n```", err)
	}

	var sb strings.Builder
	sb.WriteString("🤖 *AI REVIEW*\n")
	sb.WriteString(fmt.Sprintf("Recommendation: %s | Risk: %s | Confidence: %.0f%%\n\n",
		review.Recommendation, review.RiskAssessment, review.ConfidenceScore*100))
	sb.WriteString(review.Analysis)

	if review.ActionCommand == "" {
		return sb.String()
	}

	parts := strings.Fields(review.ActionCommand)
	side := models.SideBuy
	if strings.EqualFold(parts[0], "/sell") {
		side = models.SideSell
	}
	req, err := parseOrder(side, parts)
	if err != nil {
		w.logger.Warn().Str("command", review.ActionCommand).Msg("AI proposed an unreadable command")
		return sb.String()
	}

	p := w.propose(req)
	sb.WriteString(fmt.Sprintf("\n\nProposed: `%s` (%s)", review.ActionCommand, p.key))
	if w.interactive(ctx) {
		w.notifier.SendInteractiveMessage(ctx, sb.String(), proposalButtons(p.key))
		return ""
	}
	sb.WriteString(fmt.Sprintf("\nReply /confirm %s or /cancel %s.", p.key, p.key))
	return sb.String()
}
