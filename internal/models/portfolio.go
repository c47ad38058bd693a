package models

import "github.com/shopspring/decimal"

// Profile is the authenticated user as returned by the login endpoint.
type Profile struct {
	ID          int64  `json:"id"`
	Name        string `json:"nome"`
	PortfolioID int64  `json:"portfolioId"`
}

// Registration is the account creation form.
type Registration struct {
	FirstName string `json:"nome"`
	LastName  string `json:"cognome"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Holding is an asset and quantity pair reported in the portfolio.
type Holding struct {
	AssetID      int64           `json:"id"`
	Name         string          `json:"nome"`
	Quantity     int             `json:"quantita"`
	CurrentPrice decimal.Decimal `json:"valoreAttuale"`
	Variation    decimal.Decimal `json:"variazione"`
	Description  string          `json:"descrizione,omitempty"`
}

// Value is the current market value of the holding.
func (h *Holding) Value() decimal.Decimal {
	return h.CurrentPrice.Mul(decimal.NewFromInt(int64(h.Quantity)))
}

// Portfolio is the user's aggregate holdings.
type Portfolio struct {
	ID       int64     `json:"id"`
	Holdings []Holding `json:"azioni"`
}

// TotalValue sums the value of every holding.
func (p *Portfolio) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for i := range p.Holdings {
		total = total.Add(p.Holdings[i].Value())
	}
	return total
}

// HeldQuantity returns the quantity held for an asset.
func (p *Portfolio) HeldQuantity(assetID int64) int {
	for _, h := range p.Holdings {
		if h.AssetID == assetID {
			return h.Quantity
		}
	}
	return 0
}
