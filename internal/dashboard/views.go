package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-papertrade/internal/chart"
	"github.com/kjannette/trahn-papertrade/internal/models"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

func directionOf(v decimal.Decimal) Direction {
	switch v.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return Flat
	}
}

// Stats summarises the selected asset.
type Stats struct {
	LastPrice string    `json:"lastPrice"`
	Variation string    `json:"variation"`
	Direction Direction `json:"direction"`
}

type View struct {
	Assets       []models.Asset       `json:"assets"`
	Selected     *models.Asset        `json:"selected,omitempty"`
	Stats        *Stats               `json:"stats,omitempty"`
	Alert        string               `json:"alert,omitempty"`
	Interval     chart.Interval       `json:"interval"`
	Series       chart.Series         `json:"series"`
	Balance      string               `json:"balance,omitempty"`
	Transactions []models.Transaction `json:"transactions"`
	Errors       map[string]string    `json:"errors,omitempty"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// View builds the dashboard from the latest snapshot of each source.
func (b *Board) View(interval chart.Interval) View {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v := View{
		Assets:       append([]models.Asset(nil), b.assets...),
		Interval:     interval,
		Transactions: append([]models.Transaction(nil), b.transactions...),
		UpdatedAt:    b.updatedAt,
	}
	if v.Assets == nil {
		v.Assets = []models.Asset{}
	}
	if v.Transactions == nil {
		v.Transactions = []models.Transaction{}
	}
	if b.balance != nil {
		v.Balance = models.FormatEuro(*b.balance)
	}
	if len(b.errs) > 0 {
		v.Errors = make(map[string]string, len(b.errs))
		for k, e := range b.errs {
			v.Errors[k] = e
		}
	}

	in := chart.Input{
		Transactions: v.Transactions,
		Interval:     interval,
	}
	if sel := models.FindAsset(b.assets, b.selected); sel != nil {
		cp := *sel
		v.Selected = &cp
		v.Stats = &Stats{
			LastPrice: models.FormatEuro(sel.CurrentPrice),
			Variation: sel.Variation.StringFixed(2) + "%",
			Direction: directionOf(sel.Variation),
		}
		detail := b.details[sel.ID]
		v.Alert = detail.alert
		in.Forecast = detail.forecast
		in.Observations = observationsFor(sel, b.assets)
	}
	v.Series = chart.Build(in)
	return v
}

// observationsFor prefers the asset's own history and falls back to the
// current price of every listed asset in list order.
func observationsFor(sel *models.Asset, assets []models.Asset) []models.PriceObservation {
	if len(sel.History) > 0 {
		return sel.History
	}
	prices := make([]decimal.Decimal, len(assets))
	for i := range assets {
		prices[i] = assets[i].CurrentPrice
	}
	return chart.ObservationsFromPrices(prices)
}

// Row is one line of the portfolio table.
type Row struct {
	AssetID   int64     `json:"assetId"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     string    `json:"price"`
	Value     string    `json:"value"`
	Variation string    `json:"variation"`
	Direction Direction `json:"direction"`
}

type PortfolioView struct {
	Rows    []Row  `json:"rows"`
	Total   string `json:"total"`
	Balance string `json:"balance,omitempty"`
	Empty   bool   `json:"empty"`
	Message string `json:"message,omitempty"`
}

const EmptyPortfolioMessage = "Your portfolio is empty. Buy some shares from the simulation page."

// Portfolio builds the holdings table. It fails until the portfolio has been
// fetched once.
func (b *Board) Portfolio() (PortfolioView, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.portfolio == nil {
		return PortfolioView{}, ErrNotLoaded
	}

	pv := PortfolioView{
		Rows:  make([]Row, 0, len(b.portfolio.Holdings)),
		Total: models.FormatEuro(b.portfolio.TotalValue()),
	}
	if b.balance != nil {
		pv.Balance = models.FormatEuro(*b.balance)
	}
	for i := range b.portfolio.Holdings {
		h := &b.portfolio.Holdings[i]
		pv.Rows = append(pv.Rows, Row{
			AssetID:   h.AssetID,
			Name:      displayName(h.Name),
			Quantity:  h.Quantity,
			Price:     models.FormatEuro(h.CurrentPrice),
			Value:     models.FormatEuro(h.Value()),
			Variation: h.Variation.StringFixed(2),
			Direction: directionOf(h.Variation),
		})
	}
	if len(pv.Rows) == 0 {
		pv.Empty = true
		pv.Message = EmptyPortfolioMessage
	}
	return pv, nil
}

func displayName(name string) string {
	if name == "" {
		return "N/A"
	}
	return name
}

// Transactions returns the latest transaction history snapshot.
func (b *Board) Transactions() ([]models.Transaction, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.transactions == nil {
		return nil, ErrNotLoaded
	}
	return append([]models.Transaction{}, b.transactions...), nil
}
