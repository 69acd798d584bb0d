package watcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/ai"
	"github.com/0xF3546/stockflow-frontend/internal/models"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const newsLimit = 5

// usd renders an amount the way the dashboard does, e.g. "$1,234.56".
func usd(amount decimal.Decimal) string {
	return money.New(amount.Shift(2).Round(0).IntPart(), money.USD).Display()
}

func signedPct(p decimal.Decimal) string {
	s := p.StringFixed(2) + "%"
	if p.IsPositive() {
		return "+" + s
	}
	return s
}

func trendIcon(d decimal.Decimal) string {
	if d.IsNegative() {
		return "🔴"
	}
	return "🟢"
}

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimPrefix(s, "$"))
}

func (w *Watcher) getStatus(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("📡 *STATUS*\n")

	if id, ok := w.session.CurrentIdentity(); ok {
		sb.WriteString(fmt.Sprintf("User: %s\n", id.Username))
		if !id.ExpiresAt.IsZero() {
			sb.WriteString(fmt.Sprintf("Token expires: %s\n", id.ExpiresAt.Format(time.RFC3339)))
		}
	} else {
		sb.WriteString("User: logged out\n")
	}
	sb.WriteString(fmt.Sprintf("Broker: %s\n", w.cfg.Broker))

	if hc, ok := w.broker.(healthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			sb.WriteString(fmt.Sprintf("Backend: 🔴 %v\n", err))
		} else {
			sb.WriteString("Backend: 🟢 healthy\n")
		}
	}

	if w.refresher != nil {
		if at, _ := w.refresher.LastSync(); !at.IsZero() {
			sb.WriteString(fmt.Sprintf("Last sync: %s ago\n", w.now().Sub(at).Round(time.Second)))
		} else {
			sb.WriteString("Last sync: never\n")
		}
	}

	w.mu.Lock()
	pending := len(w.proposals)
	w.mu.Unlock()

	sb.WriteString(fmt.Sprintf("Pending proposals: %d\n", pending))
	sb.WriteString(fmt.Sprintf("Known stocks: %d\n", w.dir.Len()))
	sb.WriteString(fmt.Sprintf("Uptime: %s", w.now().Sub(w.started).Round(time.Second)))
	return sb.String()
}

// getPortfolio renders the ledger summary as a table.
func (w *Watcher) getPortfolio() string {
	if _, ok := w.session.CurrentIdentity(); !ok {
		return "🔒 Not logged in. Use /login first."
	}

	s := w.ledger.Summary()
	var sb strings.Builder
	sb.WriteString("💼 *PORTFOLIO*\n\n")

	if len(s.Positions) == 0 {
		sb.WriteString("ℹ️ No holdings.\n\n")
	} else {
		positions := s.Positions
		sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

		sb.WriteString("`Ticker | Qty | Price | Value | P/L`\n")
		sb.WriteString("`--------------------------------`\n")
		for _, p := range positions {
			sb.WriteString(fmt.Sprintf("`%-6s | %d | %s | %s | %s%s (%s)`\n",
				p.Symbol, p.Quantity, usd(p.Price), usd(p.Value),
				trendIcon(p.GainLoss), usd(p.GainLoss), signedPct(p.GainLossPercent)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Total Value: %s\n", usd(s.TotalValue)))
	sb.WriteString(fmt.Sprintf("Total Cost: %s\n", usd(s.TotalCost)))
	sb.WriteString(fmt.Sprintf("Gain/Loss: %s%s (%s)\n", trendIcon(s.TotalGainLoss), usd(s.TotalGainLoss), signedPct(s.TotalGainLossPercent)))
	sb.WriteString(fmt.Sprintf("Day Change: %s%s (%s)\n", trendIcon(s.DayChange), usd(s.DayChange), signedPct(s.DayChangePercent)))
	sb.WriteString(fmt.Sprintf("Cash: %s", usd(s.AvailableCash)))
	return sb.String()
}

// getPrice prefers a fresh quote and falls back to the directory, then to a search.
func (w *Watcher) getPrice(ctx context.Context, symbol string) string {
	if w.quotes != nil {
		q, err := w.quotes.GetQuote(ctx, symbol)
		if err == nil {
			if err := w.dir.Merge(q); err != nil {
				w.logger.Debug().Err(err).Str("symbol", symbol).Msg("Quote rejected")
			}
		} else {
			w.logger.Debug().Err(err).Str("symbol", symbol).Msg("Quote unavailable")
		}
	}

	st, err := w.dir.Get(symbol)
	if err != nil || !st.Price.IsPositive() {
		w.logger.Info().Str("symbol", symbol).Msg("Price lookup failed, falling back to search")
		return fmt.Sprintf("⚠️ Price not found for '%s'. Did you mean:\n\n%s", symbol, w.searchAssets(ctx, symbol))
	}
	return fmt.Sprintf("💲 *%s* (%s): %s %s%s", st.Symbol, st.Name, usd(st.Price), trendIcon(st.Change), signedPct(st.Change))
}

func (w *Watcher) getStocks() string {
	stocks := w.dir.All()
	if len(stocks) == 0 {
		return "No stocks known."
	}
	var sb strings.Builder
	sb.WriteString("📋 *STOCKS*\n")
	for _, st := range stocks {
		sb.WriteString(fmt.Sprintf("• *%s* %s: %s (%s)\n", st.Symbol, st.Name, usd(st.Price), signedPct(st.Change)))
	}
	return sb.String()
}

// searchAssets queries the broker and adds unknown hits to the directory
// without touching the prices of known ones.
func (w *Watcher) searchAssets(ctx context.Context, query string) string {
	assets, err := w.broker.SearchStocks(ctx, query)
	if err != nil {
		w.logger.Warn().Err(err).Str("query", query).Msg("Error searching assets")
		return "⚠️ Error: Could not search assets."
	}

	if len(assets) == 0 {
		return fmt.Sprintf("🔍 No results found for '%s'.", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔍 *Results for '%s'*\n", query))
	for _, asset := range assets {
		if _, err := w.dir.Get(asset.Symbol); err != nil {
			name := asset.Name
			if name == "" {
				name = models.NormalizeSymbol(asset.Symbol)
			}
			if err := w.dir.Upsert(models.Stock{Symbol: asset.Symbol, Name: name}); err != nil {
				w.logger.Debug().Err(err).Str("symbol", asset.Symbol).Msg("Search hit rejected")
			}
		}
		sb.WriteString(fmt.Sprintf("- *%s*: %s\n", asset.Symbol, asset.Name))
	}
	return sb.String()
}

func (w *Watcher) getNews(ctx context.Context, symbol string) string {
	if w.news == nil {
		return "⚠️ News is not available with this broker."
	}
	articles, err := w.news.GetNews(ctx, symbol, newsLimit)
	if err != nil {
		w.logger.Warn().Err(err).Str("symbol", symbol).Msg("News lookup failed")
		return fmt.Sprintf("⚠️ Could not fetch news for %s.", symbol)
	}
	if len(articles) == 0 {
		return fmt.Sprintf("📰 No recent news for %s.", symbol)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📰 *NEWS: %s*\n", symbol))
	for _, a := range articles {
		sb.WriteString(fmt.Sprintf("\n• *%s*\n%s | %s\n%s\n", a.Headline, a.Source, a.CreatedAt.Format("2006-01-02 15:04"), a.URL))
	}
	return sb.String()
}

func (w *Watcher) reviewPayload() ai.PortfolioPayload {
	prices := make(map[string]decimal.Decimal)
	for _, sym := range w.watchlist() {
		if p, ok := w.dir.Price(sym); ok && p.IsPositive() {
			prices[sym] = p
		}
	}
	return ai.NewPayload(w.ledger.Summary(), prices, w.now())
}
