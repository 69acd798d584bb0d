package stockflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/shopspring/decimal"
)

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type balanceResponse struct {
	Balance *decimal.Decimal `json:"balance"`
}

type searchHit struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
}

// portfolioResponse is the only canonical portfolio shape. Every field is a
// pointer so that a missing field can be told apart from a zero value.
type portfolioResponse struct {
	Holdings               *[]holdingDTO    `json:"holdings"`
	CashBalance            *decimal.Decimal `json:"cash_balance"`
	TotalValue             *decimal.Decimal `json:"total_value"`
	OverallGainLoss        *decimal.Decimal `json:"overall_gain_loss"`
	OverallGainLossPercent *decimal.Decimal `json:"overall_gain_loss_percent"`
}

type holdingDTO struct {
	Symbol           *string          `json:"symbol"`
	Quantity         *int64           `json:"quantity"`
	AvgPrice         *decimal.Decimal `json:"avg_price"`
	DayChangePercent *decimal.Decimal `json:"day_change_percent,omitempty"`
}

func (r portfolioResponse) toSnapshot() (*models.PortfolioSnapshot, error) {
	var missing []string
	if r.Holdings == nil {
		missing = append(missing, "holdings")
	}
	if r.CashBalance == nil {
		missing = append(missing, "cash_balance")
	}
	if r.TotalValue == nil {
		missing = append(missing, "total_value")
	}
	if r.OverallGainLoss == nil {
		missing = append(missing, "overall_gain_loss")
	}
	if r.OverallGainLossPercent == nil {
		missing = append(missing, "overall_gain_loss_percent")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing fields %v", missing)
	}

	snap := &models.PortfolioSnapshot{
		CashBalance:            *r.CashBalance,
		TotalValue:             *r.TotalValue,
		OverallGainLoss:        *r.OverallGainLoss,
		OverallGainLossPercent: *r.OverallGainLossPercent,
		Holdings:               make([]models.Holding, 0, len(*r.Holdings)),
	}

	for i, h := range *r.Holdings {
		if h.Symbol == nil || *h.Symbol == "" {
			return nil, fmt.Errorf("holding %d: missing symbol", i)
		}
		if h.Quantity == nil {
			return nil, fmt.Errorf("holding %s: missing quantity", *h.Symbol)
		}
		if h.AvgPrice == nil {
			return nil, fmt.Errorf("holding %s: missing avg_price", *h.Symbol)
		}
		if *h.Quantity < 0 {
			return nil, errors.New("holding " + *h.Symbol + ": negative quantity")
		}
		snap.Holdings = append(snap.Holdings, models.Holding{
			Symbol:           models.NormalizeSymbol(*h.Symbol),
			Quantity:         *h.Quantity,
			AvgPrice:         *h.AvgPrice,
			DayChangePercent: h.DayChangePercent,
		})
	}
	return snap, nil
}

type orderBody struct {
	StockSymbol string           `json:"stock_symbol"`
	Quantity    int64            `json:"quantity"`
	OrderType   string           `json:"order_type"`
	LimitPrice  *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice   *decimal.Decimal `json:"stop_price,omitempty"`
}

func newOrderBody(req models.OrderRequest) orderBody {
	kind := req.Kind
	if kind == "" {
		kind = models.KindMarket
	}
	return orderBody{
		StockSymbol: req.Symbol,
		Quantity:    req.Quantity,
		OrderType:   string(kind),
		LimitPrice:  req.LimitPrice(),
		StopPrice:   req.StopPrice(),
	}
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (r orderResponse) toReceipt(req models.OrderRequest, side models.Side) *models.OrderReceipt {
	status := r.Status
	if status == "" {
		status = "accepted"
	}
	return &models.OrderReceipt{
		ID:          r.ID,
		Symbol:      req.Symbol,
		Side:        side,
		Status:      status,
		SubmittedAt: time.Now(),
	}
}
