package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionKind is the side of a trade.
type TransactionKind int

const (
	Buy TransactionKind = iota
	Sell
)

// Wire values used by the trading backend.
const (
	wireBuy  = "Acquisto"
	wireSell = "Vendita"
)

// ParseTransactionKind accepts the backend vocabulary as well as buy/sell.
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", strings.ToLower(wireBuy):
		return Buy, nil
	case "sell", strings.ToLower(wireSell):
		return Sell, nil
	default:
		return Buy, fmt.Errorf("unknown transaction kind %q, expected buy|sell", s)
	}
}

// String returns the human label used in messages.
func (k TransactionKind) String() string {
	switch k {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Wire returns the backend value for the kind.
func (k TransactionKind) Wire() string {
	if k == Sell {
		return wireSell
	}
	return wireBuy
}

func (k TransactionKind) MarshalText() ([]byte, error) {
	return []byte(k.Wire()), nil
}

func (k *TransactionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTransactionKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Transaction is an executed trade. The backend is the system of record;
// ID and AssetName are only populated on history reads.
type Transaction struct {
	ID          int64           `json:"id,omitempty"`
	Kind        TransactionKind `json:"tipoTransazione"`
	Quantity    int             `json:"quantita"`
	UnitPrice   decimal.Decimal `json:"prezzoUnitario"`
	AssetID     int64           `json:"azioneId"`
	PortfolioID int64           `json:"portfolioId"`
	AssetName   string          `json:"nomeAzione,omitempty"`
}

// Total is quantity times unit price.
func (t *Transaction) Total() decimal.Decimal {
	return t.UnitPrice.Mul(decimal.NewFromInt(int64(t.Quantity)))
}

// TransactionRequest is the body posted to /transazioni.
type TransactionRequest struct {
	Kind        string  `json:"tipoTransazione"`
	Quantity    int     `json:"quantita"`
	UnitPrice   float64 `json:"prezzoUnitario"`
	AssetID     int64   `json:"azioneId"`
	PortfolioID int64   `json:"portfolioId"`
}

// Request converts the transaction into its wire body.
func (t *Transaction) Request() TransactionRequest {
	return TransactionRequest{
		Kind:        t.Kind.Wire(),
		Quantity:    t.Quantity,
		UnitPrice:   t.UnitPrice.InexactFloat64(),
		AssetID:     t.AssetID,
		PortfolioID: t.PortfolioID,
	}
}

// FormatEuro renders a monetary value with two-digit rounding.
func FormatEuro(v decimal.Decimal) string {
	return "€" + v.StringFixed(2)
}
