package watcher

import (
	"fmt"
	"strings"

	"github.com/0xF3546/stockflow-frontend/internal/models"
)

// watchlist returns the persisted watchlist, or the configured one when
// nothing has been persisted yet.
func (w *Watcher) watchlist() []string {
	if w.store != nil {
		st, err := w.store.Load()
		if err != nil {
			w.logger.Warn().Err(err).Msg("Could not load watchlist")
		} else if len(st.Watchlist) > 0 {
			return st.Watchlist
		}
	}
	return w.configWatchlist()
}

func (w *Watcher) configWatchlist() []string {
	out := make([]string, 0, len(w.cfg.Watchlist))
	for _, s := range w.cfg.Watchlist {
		if s = models.NormalizeSymbol(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (w *Watcher) updateWatchlist(fn func([]string) []string) error {
	if w.store == nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.cfg.Watchlist = fn(w.configWatchlist())
		return nil
	}
	return w.store.Update(func(st *models.SessionState) {
		base := st.Watchlist
		if len(base) == 0 {
			base = w.configWatchlist()
		}
		st.Watchlist = fn(base)
	})
}

func (w *Watcher) handleWatchCommand(arg string) string {
	sym := models.NormalizeSymbol(arg)
	added := false
	err := w.updateWatchlist(func(list []string) []string {
		for _, s := range list {
			if s == sym {
				return list
			}
		}
		added = true
		return append(list, sym)
	})
	if err != nil {
		w.logger.Warn().Err(err).Msg("Could not save watchlist")
		return fmt.Sprintf("⚠️ Could not save watchlist: %v", err)
	}
	if !added {
		return fmt.Sprintf("ℹ️ %s is already on the watchlist.", sym)
	}
	if _, err := w.dir.Get(sym); err != nil {
		return fmt.Sprintf("👀 Watching %s. Not in the stock list yet, its price appears after the next poll.", sym)
	}
	return fmt.Sprintf("👀 Watching %s.", sym)
}

func (w *Watcher) handleUnwatchCommand(arg string) string {
	sym := models.NormalizeSymbol(arg)
	removed := false
	err := w.updateWatchlist(func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s == sym {
				removed = true
				continue
			}
			out = append(out, s)
		}
		return out
	})
	if err != nil {
		w.logger.Warn().Err(err).Msg("Could not save watchlist")
		return fmt.Sprintf("⚠️ Could not save watchlist: %v", err)
	}
	if !removed {
		return fmt.Sprintf("ℹ️ %s is not on the watchlist.", sym)
	}
	return fmt.Sprintf("🗑️ Stopped watching %s.", sym)
}

func (w *Watcher) getWatchlist() string {
	list := w.watchlist()
	if len(list) == 0 {
		return "👀 Watchlist is empty. Add symbols with /watch <ticker>."
	}

	var sb strings.Builder
	sb.WriteString("👀 *WATCHLIST*\n")
	for _, sym := range list {
		st, err := w.dir.Get(sym)
		if err != nil || !st.Price.IsPositive() {
			sb.WriteString(fmt.Sprintf("• %s: no price yet\n", sym))
			continue
		}
		sb.WriteString(fmt.Sprintf("• *%s* %s: %s %s%s\n", st.Symbol, st.Name, usd(st.Price), trendIcon(st.Change), signedPct(st.Change)))
	}
	return sb.String()
}
