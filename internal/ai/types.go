package ai

import (
	"sort"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/ledger"
	"github.com/shopspring/decimal"
)

// Review is the structured output expected from the model.
type Review struct {
	Analysis        string  `json:"analysis"`
	Recommendation  string  `json:"recommendation"` // BUY, SELL, HOLD
	ActionCommand   string  `json:"action_command"`
	ConfidenceScore float64 `json:"confidence_score"`
	RiskAssessment  string  `json:"risk_assessment"` // LOW, MEDIUM, HIGH
}

// PositionPayload is one valued holding as sent to the model.
type PositionPayload struct {
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Quantity        int64           `json:"quantity"`
	AvgPrice        decimal.Decimal `json:"avg_price"`
	Price           decimal.Decimal `json:"current_price"`
	Value           decimal.Decimal `json:"market_value"`
	GainLossPercent decimal.Decimal `json:"gain_loss_percent"`
}

// PortfolioPayload is the data sent to the model for a review.
type PortfolioPayload struct {
	Timestamp        string                     `json:"timestamp"`
	Cash             decimal.Decimal            `json:"cash_available"`
	TotalValue       decimal.Decimal            `json:"total_value"`
	TotalCost        decimal.Decimal            `json:"total_cost"`
	GainLossPercent  decimal.Decimal            `json:"gain_loss_percent"`
	DayChangePercent decimal.Decimal            `json:"day_change_percent"`
	Positions        []PositionPayload          `json:"positions"`
	WatchlistPrices  map[string]decimal.Decimal `json:"watchlist_prices"`
}

// NewPayload flattens a ledger summary for the model.
func NewPayload(s ledger.Summary, watchlist map[string]decimal.Decimal, now time.Time) PortfolioPayload {
	p := PortfolioPayload{
		Timestamp:        now.UTC().Format(time.RFC3339),
		Cash:             s.AvailableCash,
		TotalValue:       s.TotalValue,
		TotalCost:        s.TotalCost,
		GainLossPercent:  s.TotalGainLossPercent.Round(2),
		DayChangePercent: s.DayChangePercent.Round(2),
		Positions:        make([]PositionPayload, 0, len(s.Positions)),
		WatchlistPrices:  watchlist,
	}
	for _, pos := range s.Positions {
		p.Positions = append(p.Positions, PositionPayload{
			Symbol:          pos.Symbol,
			Name:            pos.Name,
			Quantity:        pos.Quantity,
			AvgPrice:        pos.AvgPrice,
			Price:           pos.Price,
			Value:           pos.Value,
			GainLossPercent: pos.GainLossPercent.Round(2),
		})
	}
	sort.Slice(p.Positions, func(i, j int) bool {
		return p.Positions[i].Symbol < p.Positions[j].Symbol
	})
	return p
}
