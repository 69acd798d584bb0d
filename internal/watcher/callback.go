package watcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/0xF3546/stockflow-frontend/internal/orders"
	"github.com/0xF3546/stockflow-frontend/internal/telegram"
)

// proposal is a drafted ticket waiting for the user's confirmation.
type proposal struct {
	key     string
	ticket  *orders.Ticket
	created time.Time
}

const keyLen = 8

func (w *Watcher) propose(req models.OrderRequest) proposal {
	t := orders.Draft(req)
	p := proposal{key: t.ID[:keyLen], ticket: t, created: w.now()}

	w.mu.Lock()
	w.proposals[p.key] = p
	w.mu.Unlock()

	w.logger.Info().Str("proposal", p.key).Str("order", req.String()).Msg("Order proposed")
	return p
}

func proposalButtons(key string) []telegram.Button {
	return []telegram.Button{
		{Text: "✅ EXECUTE", CallbackData: "EXECUTE_" + key},
		{Text: "❌ CANCEL", CallbackData: "CANCEL_" + key},
	}
}

// HandleCallback processes button presses from Telegram.
func (w *Watcher) HandleCallback(ctx context.Context, data string) string {
	switch {
	case strings.HasPrefix(data, "EXECUTE_"):
		return w.executeProposal(ctx, strings.TrimPrefix(data, "EXECUTE_"))
	case strings.HasPrefix(data, "CANCEL_"):
		return w.cancelProposal(strings.TrimPrefix(data, "CANCEL_"))
	}
	return "⚠️ Invalid callback data."
}

// take removes and returns a proposal. An empty key selects the only
// pending proposal.
func (w *Watcher) take(key string) (proposal, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if key == "" {
		switch len(w.proposals) {
		case 0:
			return proposal{}, "ℹ️ No pending proposals."
		case 1:
			for k := range w.proposals {
				key = k
			}
		default:
			return proposal{}, "⚠️ Several proposals pending, name one:\n" + w.pendingListLocked()
		}
	}

	p, ok := w.proposals[key]
	if !ok {
		return proposal{}, fmt.Sprintf("⚠️ Proposal %s expired or not found.", key)
	}
	delete(w.proposals, key)
	return p, ""
}

func (w *Watcher) executeProposal(ctx context.Context, key string) string {
	p, msg := w.take(key)
	if msg != "" {
		return msg
	}

	ttl := time.Duration(w.cfg.ConfirmationTTLSec) * time.Second
	if w.now().Sub(p.created) > ttl {
		return fmt.Sprintf("⏳ TIMEOUT: Proposal %s expired (> %ds). Action aborted.", p.key, w.cfg.ConfirmationTTLSec)
	}

	t := p.ticket
	if err := w.coordinator.Submit(ctx, t); err != nil {
		return describeFailure(t, err)
	}

	out := fmt.Sprintf("✅ ORDER CONFIRMED: %s", t.Request.String())
	if t.Receipt != nil && t.Receipt.ID != "" {
		out += fmt.Sprintf("\nOrder ID: %s (%s)", t.Receipt.ID, t.Receipt.Status)
	}
	if t.RefreshErr != nil {
		out += fmt.Sprintf("\n⚠️ Portfolio not reconciled yet: %v. Run /refresh.", t.RefreshErr)
	} else {
		w.recordSync()
	}
	return out
}

func describeFailure(t *orders.Ticket, err error) string {
	req := t.Request
	switch {
	case errors.Is(err, models.ErrNotAuthenticated):
		return "🔒 Not logged in. Use /login first."
	case errors.Is(err, models.ErrInsufficientCash):
		return fmt.Sprintf("❌ Insufficient cash for %s.\n%v", req.String(), err)
	case errors.Is(err, models.ErrInsufficientHoldings):
		return fmt.Sprintf("❌ Not enough %s shares to sell.\n%v", req.Symbol, err)
	case errors.Is(err, models.ErrSymbolNotFound):
		return fmt.Sprintf("⚠️ Unknown symbol %s. Try /search.", req.Symbol)
	case errors.Is(err, models.ErrOrderInProgress):
		return fmt.Sprintf("⚠️ Order already in progress for %s.", req.Symbol)
	case errors.Is(err, models.ErrRemoteOrderFailed):
		return fmt.Sprintf("❌ Execution Failed for %s, local state restored.\n%v", req.String(), err)
	}
	return fmt.Sprintf("❌ Order rejected: %v", err)
}

func (w *Watcher) cancelProposal(key string) string {
	p, msg := w.take(key)
	if msg != "" {
		return msg
	}
	return fmt.Sprintf("❌ Proposal %s (%s) cancelled.", p.key, p.ticket.Request.String())
}

func (w *Watcher) clearProposals() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.proposals = make(map[string]proposal)
}

// expireProposals drops proposals older than the confirmation TTL.
func (w *Watcher) expireProposals() {
	ttl := time.Duration(w.cfg.ConfirmationTTLSec) * time.Second
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	for k, p := range w.proposals {
		if now.Sub(p.created) > ttl {
			delete(w.proposals, k)
			w.logger.Debug().Str("proposal", k).Msg("Proposal expired")
		}
	}
}

func (w *Watcher) pendingListLocked() string {
	keys := make([]string, 0, len(w.proposals))
	for k := range w.proposals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("• `%s` %s\n", k, w.proposals[k].ticket.Request.String()))
	}
	return sb.String()
}
