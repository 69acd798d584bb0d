package orders

import (
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/models"

	"github.com/google/uuid"
)

// State is the lifecycle stage of an order.
type State string

const (
	StateDraft      State = "draft"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Transition is one entry of a ticket's history.
type Transition struct {
	State State
	At    time.Time
}

// Ticket tracks one order from draft to its terminal state.
// Err is set when the ticket failed. RefreshErr is set when the order was
// confirmed but the follow-up refresh could not reconcile the ledger.
type Ticket struct {
	ID         string
	Request    models.OrderRequest
	State      State
	Err        error
	RefreshErr error
	Receipt    *models.OrderReceipt
	CreatedAt  time.Time
	UpdatedAt  time.Time
	History    []Transition
}

// Draft creates an unvalidated ticket.
func Draft(req models.OrderRequest) *Ticket {
	req.Symbol = models.NormalizeSymbol(req.Symbol)
	if req.Kind == "" {
		req.Kind = models.KindMarket
	}
	now := time.Now()
	return &Ticket{
		ID:        uuid.New().String(),
		Request:   req,
		State:     StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
		History:   []Transition{{State: StateDraft, At: now}},
	}
}

func (t *Ticket) advance(s State, at time.Time) {
	t.State = s
	t.UpdatedAt = at
	t.History = append(t.History, Transition{State: s, At: at})
}

// States lists the visited states in order.
func (t Ticket) States() []State {
	out := make([]State, len(t.History))
	for i, h := range t.History {
		out[i] = h.State
	}
	return out
}

func (t *Ticket) clone() Ticket {
	c := *t
	c.History = append([]Transition(nil), t.History...)
	if t.Receipt != nil {
		r := *t.Receipt
		c.Receipt = &r
	}
	return c
}
