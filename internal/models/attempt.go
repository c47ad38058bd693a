package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderAttempt is one resolved confirmation, kept in the local journal.
type OrderAttempt struct {
	ID          int64           `json:"id"`
	OrderID     uuid.UUID       `json:"orderId"`
	TradingDay  string          `json:"tradingDay"`
	Kind        TransactionKind `json:"kind"`
	AssetID     int64           `json:"assetId"`
	AssetName   string          `json:"assetName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
	PortfolioID int64           `json:"portfolioId"`
	Outcome     string          `json:"outcome"`
	Message     string          `json:"message"`
	OpenedAt    time.Time       `json:"openedAt"`
	ResolvedAt  time.Time       `json:"resolvedAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}
