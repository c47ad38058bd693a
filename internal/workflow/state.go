package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-papertrade/internal/models"
)

type State int

const (
	Idle State = iota
	AwaitingConfirmation
	Submitting
	Completed
	Failed
	Cancelled
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= Expired; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Terminal reports whether the state ends an attempt.
func (s State) Terminal() bool {
	return s >= Completed
}

// AssetSnapshot freezes the asset as it was when the order was opened.
type AssetSnapshot struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type PendingOrder struct {
	ID          uuid.UUID              `json:"id"`
	Kind        models.TransactionKind `json:"kind"`
	Asset       AssetSnapshot          `json:"asset"`
	Quantity    int                    `json:"quantity"`
	PortfolioID int64                  `json:"portfolioId"`
	OpenedAt    time.Time              `json:"openedAt"`
	generation  uint64
}

// Total uses the price snapshot, never a later refresh.
func (p *PendingOrder) Total() decimal.Decimal {
	return p.Asset.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

func (p *PendingOrder) transaction() models.Transaction {
	return models.Transaction{
		Kind:        p.Kind,
		Quantity:    p.Quantity,
		UnitPrice:   p.Asset.Price,
		AssetID:     p.Asset.ID,
		PortfolioID: p.PortfolioID,
		AssetName:   p.Asset.Name,
	}
}

// Outcome is the resolution of one attempt.
type Outcome struct {
	Order      PendingOrder    `json:"order"`
	State      State           `json:"state"`
	Total      decimal.Decimal `json:"total"`
	Message    string          `json:"message"`
	Err        error           `json:"-"`
	ResolvedAt time.Time       `json:"resolvedAt"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	State       State         `json:"state"`
	Pending     *PendingOrder `json:"pending,omitempty"`
	Remaining   int           `json:"remainingSeconds"`
	LastOutcome *Outcome      `json:"lastOutcome,omitempty"`
}

type EventKind string

const (
	EventOpened     EventKind = "opened"
	EventTick       EventKind = "tick"
	EventSubmitting EventKind = "submitting"
	EventCompleted  EventKind = "completed"
	EventFailed     EventKind = "failed"
	EventCancelled  EventKind = "cancelled"
	EventExpired    EventKind = "expired"
)

type Event struct {
	Kind      EventKind
	Order     PendingOrder
	Remaining int
	Message   string
}

// Attempt converts the outcome into a journal entry.
func (o Outcome) Attempt() models.OrderAttempt {
	return models.OrderAttempt{
		OrderID:     o.Order.ID,
		Kind:        o.Order.Kind,
		AssetID:     o.Order.Asset.ID,
		AssetName:   o.Order.Asset.Name,
		Quantity:    o.Order.Quantity,
		UnitPrice:   o.Order.Asset.Price,
		Total:       o.Total,
		PortfolioID: o.Order.PortfolioID,
		Outcome:     o.State.String(),
		Message:     o.Message,
		OpenedAt:    o.Order.OpenedAt,
		ResolvedAt:  o.ResolvedAt,
	}
}
