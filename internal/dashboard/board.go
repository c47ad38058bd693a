// Package dashboard keeps the latest snapshot of every backend data source
// and derives the dashboard and portfolio views from them. Each source is
// replaced wholesale when a fetch succeeds; nothing is merged incrementally.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kjannette/trahn-papertrade/internal/external"
	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/risk"
)

// AlertMarker flags an alert worth showing. Alerts without it are ignored.
const AlertMarker = "🚨"

var (
	ErrBalanceUnknown = errors.New("balance not loaded yet")
	ErrUnknownAsset   = errors.New("unknown asset")
	ErrNotLoaded      = errors.New("dashboard not loaded yet")
)

// Source is the backend surface the board reads from.
type Source interface {
	Assets(ctx context.Context) ([]models.Asset, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
	Portfolio(ctx context.Context) (*models.Portfolio, error)
	Transactions(ctx context.Context) ([]models.Transaction, error)
	Forecast(ctx context.Context, assetID int64) (decimal.Decimal, bool, error)
	Alert(ctx context.Context, assetID int64) (string, error)
}

// Names of the sources, used as keys in the error map.
const (
	SourceAssets       = "assets"
	SourceBalance      = "balance"
	SourcePortfolio    = "portfolio"
	SourceTransactions = "transactions"
	SourceForecast     = "forecast"
	SourceAlert        = "alert"
)

type assetDetail struct {
	forecast *decimal.Decimal
	alert    string
}

type Board struct {
	src Source
	log zerolog.Logger
	now func() time.Time

	mu           sync.RWMutex
	assets       []models.Asset
	balance      *decimal.Decimal
	portfolio    *models.Portfolio
	transactions []models.Transaction
	details      map[int64]assetDetail
	selected     int64
	errs         map[string]string
	updatedAt    time.Time
}

func NewBoard(src Source, logger zerolog.Logger) *Board {
	return &Board{
		src:     src,
		log:     logger,
		now:     time.Now,
		details: make(map[int64]assetDetail),
		errs:    make(map[string]string),
	}
}

// Refresh re-fetches every source concurrently. Failed sources keep their
// previous snapshot and record the error. An auth failure cancels the
// remaining fetches and is returned.
func (b *Board) Refresh(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		assets, err := b.src.Assets(gctx)
		b.store(SourceAssets, err, func() { b.assets = assets })
		return fatal(err)
	})
	g.Go(func() error {
		return b.fetchFunds(gctx)
	})
	g.Go(func() error {
		txs, err := b.src.Transactions(gctx)
		if errors.Is(err, external.ErrNoTransactions) {
			txs, err = []models.Transaction{}, nil
		}
		b.store(SourceTransactions, err, func() { b.transactions = txs })
		return fatal(err)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	b.mu.Lock()
	if models.FindAsset(b.assets, b.selected) == nil {
		b.selected = 0
		if len(b.assets) > 0 {
			b.selected = b.assets[0].ID
		}
	}
	selected := b.selected
	b.updatedAt = b.now()
	b.mu.Unlock()

	if selected == 0 {
		return nil
	}
	return b.refreshDetail(ctx, selected)
}

// RefreshFunds re-fetches balance, portfolio and transaction history, as
// needed after an order completes.
func (b *Board) RefreshFunds(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.fetchFunds(gctx) })
	g.Go(func() error {
		txs, err := b.src.Transactions(gctx)
		if errors.Is(err, external.ErrNoTransactions) {
			txs, err = []models.Transaction{}, nil
		}
		b.store(SourceTransactions, err, func() { b.transactions = txs })
		return fatal(err)
	})
	return g.Wait()
}

func (b *Board) fetchFunds(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bal, err := b.src.Balance(gctx)
		b.store(SourceBalance, err, func() { b.balance = &bal })
		return fatal(err)
	})
	g.Go(func() error {
		p, err := b.src.Portfolio(gctx)
		if errors.Is(err, external.ErrPortfolioNotFound) {
			p, err = &models.Portfolio{Holdings: []models.Holding{}}, nil
		}
		b.store(SourcePortfolio, err, func() { b.portfolio = p })
		return fatal(err)
	})
	return g.Wait()
}

// Select makes assetID the charted asset and fetches its forecast and alert.
func (b *Board) Select(ctx context.Context, assetID int64) error {
	b.mu.Lock()
	if models.FindAsset(b.assets, assetID) == nil {
		b.mu.Unlock()
		return ErrUnknownAsset
	}
	b.selected = assetID
	b.mu.Unlock()

	return b.refreshDetail(ctx, assetID)
}

func (b *Board) refreshDetail(ctx context.Context, assetID int64) error {
	var (
		forecast    *decimal.Decimal
		alert       string
		forecastErr error
		alertErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, ok, err := b.src.Forecast(gctx, assetID)
		if err == nil && ok {
			forecast = &v
		}
		forecastErr = err
		b.store(SourceForecast, err, nil)
		return fatal(err)
	})
	g.Go(func() error {
		text, err := b.src.Alert(gctx, assetID)
		if err == nil && strings.Contains(text, AlertMarker) {
			alert = strings.TrimSpace(text)
		}
		alertErr = err
		b.store(SourceAlert, err, nil)
		return fatal(err)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	b.mu.Lock()
	detail := b.details[assetID]
	if forecastErr == nil {
		detail.forecast = forecast
	}
	if alertErr == nil {
		detail.alert = alert
	}
	b.details[assetID] = detail
	b.mu.Unlock()
	return nil
}

// store applies a successful fetch or records its error.
func (b *Board) store(source string, err error, apply func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			b.errs[source] = err.Error()
			b.log.Warn().Str("source", source).Err(err).Msg("fetch failed")
		}
		return
	}
	delete(b.errs, source)
	if apply != nil {
		apply()
	}
}

// fatal passes through only the errors that should stop sibling fetches.
func fatal(err error) error {
	if external.IsAuthFailure(err) {
		return err
	}
	return nil
}

// Reset drops every snapshot, as after logout or an expired session.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assets = nil
	b.balance = nil
	b.portfolio = nil
	b.transactions = nil
	b.details = make(map[int64]assetDetail)
	b.selected = 0
	b.errs = make(map[string]string)
	b.updatedAt = time.Time{}
}

// Asset returns a copy of the asset with the given id from the latest snapshot.
func (b *Board) Asset(id int64) (*models.Asset, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a := models.FindAsset(b.assets, id)
	if a == nil {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// SelectedAsset returns the currently charted asset.
func (b *Board) SelectedAsset() (*models.Asset, bool) {
	b.mu.RLock()
	id := b.selected
	b.mu.RUnlock()
	if id == 0 {
		return nil, false
	}
	return b.Asset(id)
}

// Funds returns the wallet for pre-trade checks. Holdings are only reported
// once the portfolio has been loaded.
func (b *Board) Funds(_ context.Context) (risk.Wallet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.balance == nil {
		return risk.Wallet{}, ErrBalanceUnknown
	}
	w := risk.Wallet{Balance: *b.balance}
	if b.portfolio != nil {
		w.Holdings = make(map[int64]int, len(b.portfolio.Holdings))
		for _, h := range b.portfolio.Holdings {
			w.Holdings[h.AssetID] += h.Quantity
		}
	}
	return w, nil
}

// Loaded reports whether the asset list has been fetched at least once.
func (b *Board) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.updatedAt.IsZero()
}
