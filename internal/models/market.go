package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stock is the last known quote data for a symbol.
// Change is the daily percentage change, signed.
type Stock struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Change decimal.Decimal `json:"change"`
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Asset is a search hit.
type Asset struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"companyName"`
	Exchange string `json:"exchange,omitempty"`
	Tradable bool   `json:"tradable,omitempty"`
}

// Quote represents a generic bid/ask quote.
type Quote struct {
	Symbol    string
	BidPrice  decimal.Decimal
	AskPrice  decimal.Decimal
	Timestamp time.Time
}

// NewsArticle is a headline for a symbol.
type NewsArticle struct {
	Headline  string
	Summary   string
	Source    string
	URL       string
	CreatedAt time.Time
}
