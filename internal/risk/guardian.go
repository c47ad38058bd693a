package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-papertrade/internal/models"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be a positive whole number")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrOrderTooLarge        = errors.New("order exceeds the maximum order value")
	ErrDailyOrderLimit      = errors.New("daily order limit reached")
)

// DailyOrderCounter abstracts the order-counting dependency so Guardian
// can be tested without a real database.
type DailyOrderCounter interface {
	CountToday(ctx context.Context) (int, error)
}

// Limits holds the optional thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxOrderValue  decimal.Decimal
	MaxDailyOrders int
}

// Order is the candidate trade being checked.
type Order struct {
	Kind      models.TransactionKind
	AssetID   int64
	Quantity  int
	UnitPrice decimal.Decimal
}

func (o Order) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// Wallet is the client's last known view of the user's funds.
// Holdings is nil when the portfolio has not been loaded, in which case the
// sell-side check is left to the backend.
type Wallet struct {
	Balance  decimal.Decimal
	Holdings map[int64]int
}

type Guardian struct {
	limits  Limits
	counter DailyOrderCounter
}

func NewGuardian(limits Limits, counter DailyOrderCounter) *Guardian {
	return &Guardian{limits: limits, counter: counter}
}

// PreTradeCheck validates an order against the wallet and configured limits.
// Returns nil if the order is allowed, an error wrapping one of the sentinel
// errors above if blocked.
func (g *Guardian) PreTradeCheck(ctx context.Context, order Order, wallet Wallet) error {
	if order.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	total := order.Total()

	switch order.Kind {
	case models.Buy:
		if total.GreaterThan(wallet.Balance) {
			return fmt.Errorf("%w: order total %s exceeds available %s",
				ErrInsufficientBalance, models.FormatEuro(total), models.FormatEuro(wallet.Balance))
		}
	case models.Sell:
		if wallet.Holdings != nil {
			held := wallet.Holdings[order.AssetID]
			if order.Quantity > held {
				return fmt.Errorf("%w: selling %d, holding %d", ErrInsufficientHoldings, order.Quantity, held)
			}
		}
	}

	if g.limits.MaxOrderValue.IsPositive() && total.GreaterThan(g.limits.MaxOrderValue) {
		return fmt.Errorf("%w: %s over %s",
			ErrOrderTooLarge, models.FormatEuro(total), models.FormatEuro(g.limits.MaxOrderValue))
	}

	if g.limits.MaxDailyOrders > 0 && g.counter != nil {
		count, err := g.counter.CountToday(ctx)
		if err != nil {
			return fmt.Errorf("order blocked: unable to verify daily order count: %w", err)
		}
		if count >= g.limits.MaxDailyOrders {
			return fmt.Errorf("%w: %d of %d submitted today", ErrDailyOrderLimit, count, g.limits.MaxDailyOrders)
		}
	}

	return nil
}

// IsValidation reports whether err is a pre-trade rejection rather than an
// infrastructure failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientHoldings) ||
		errors.Is(err, ErrOrderTooLarge) ||
		errors.Is(err, ErrDailyOrderLimit)
}
