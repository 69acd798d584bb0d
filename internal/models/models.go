package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderKind is the execution style requested by the user.
type OrderKind string

const (
	KindMarket    OrderKind = "market"
	KindLimit     OrderKind = "limit"
	KindStop      OrderKind = "stop"
	KindStopLimit OrderKind = "stop-limit"
)

// ParseOrderKind accepts the dashboard spellings ("stop-limit", "stop_limit", "stoplimit").
func ParseOrderKind(s string) (OrderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "market":
		return KindMarket, nil
	case "limit":
		return KindLimit, nil
	case "stop":
		return KindStop, nil
	case "stop-limit", "stop_limit", "stoplimit":
		return KindStopLimit, nil
	}
	return "", fmt.Errorf("unknown order kind %q", s)
}

// Holding is one entry of the user's ledger.
// AvgPrice is only meaningful while Quantity > 0.
type Holding struct {
	Symbol           string           `json:"symbol"`
	Quantity         int64            `json:"quantity"`
	AvgPrice         decimal.Decimal  `json:"avg_price"`
	DayChangePercent *decimal.Decimal `json:"day_change_percent,omitempty"`
}

// OrderRequest is the transient order value built from user input.
// Price is only used for non-market kinds.
type OrderRequest struct {
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity int64           `json:"quantity"`
	Kind     OrderKind       `json:"kind"`
	Price    decimal.Decimal `json:"price"`
}

// LimitPrice returns the limit leg of the order, if the kind has one.
func (r OrderRequest) LimitPrice() *decimal.Decimal {
	if r.Kind == KindLimit || r.Kind == KindStopLimit {
		p := r.Price
		return &p
	}
	return nil
}

// StopPrice returns the stop leg of the order, if the kind has one.
// The dashboard collects a single price field, so stop-limit orders use it for both legs.
func (r OrderRequest) StopPrice() *decimal.Decimal {
	if r.Kind == KindStop || r.Kind == KindStopLimit {
		p := r.Price
		return &p
	}
	return nil
}

func (r OrderRequest) String() string {
	if r.Kind == KindMarket || r.Kind == "" {
		return fmt.Sprintf("%s %d %s @ market", r.Side, r.Quantity, r.Symbol)
	}
	return fmt.Sprintf("%s %d %s @ %s %s", r.Side, r.Quantity, r.Symbol, r.Kind, r.Price.StringFixed(2))
}

// OrderReceipt is what the remote system reports after accepting an order.
type OrderReceipt struct {
	ID             string          `json:"id"`
	ClientOrderID  string          `json:"client_order_id"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Status         string          `json:"status"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// PortfolioSnapshot is the authoritative server view of the user's portfolio.
type PortfolioSnapshot struct {
	Holdings               []Holding       `json:"holdings"`
	CashBalance            decimal.Decimal `json:"cash_balance"`
	TotalValue             decimal.Decimal `json:"total_value"`
	OverallGainLoss        decimal.Decimal `json:"overall_gain_loss"`
	OverallGainLossPercent decimal.Decimal `json:"overall_gain_loss_percent"`
}

// Identity is the authenticated user.
type Identity struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Credentials are the login form fields.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration are the register form fields.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionState is persisted between runs.
// This struct matches the structure of the JSON state file.
type SessionState struct {
	Version   string   `json:"version"`
	Token     string   `json:"token,omitempty"`
	Username  string   `json:"username,omitempty"`
	Watchlist []string `json:"watchlist"`
	LastSync  string   `json:"last_sync,omitempty"`
}

// AuthToken is the result of a successful login.
type AuthToken struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Balance is the account cash as reported by the backend.
type Balance struct {
	Cash decimal.Decimal `json:"cash"`
}
