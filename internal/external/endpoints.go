package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/kjannette/trahn-papertrade/internal/models"
)

// LoginResult is the credential plus the user profile returned by /auth/login.
type LoginResult struct {
	Token   string
	Profile models.Profile
}

func (g *Gateway) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	r, err := g.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, false)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	parsed := gjson.ParseBytes(r.body)
	token := parsed.Get("token").String()
	if token == "" {
		// Some deployments reply with the bare token string.
		token = r.text()
		if parsed.IsObject() || token == "" {
			return nil, errors.New("login: reply carries no token")
		}
	}

	result := &LoginResult{Token: token}
	if u := parsed.Get("utente"); u.IsObject() {
		result.Profile = models.Profile{
			ID:          u.Get("id").Int(),
			Name:        u.Get("nome").String(),
			PortfolioID: u.Get("portfolioId").Int(),
		}
	}
	return result, nil
}

// Register creates an account. Only a 201 reply counts as success.
func (g *Gateway) Register(ctx context.Context, reg models.Registration) error {
	r, err := g.do(ctx, http.MethodPost, "/utenti/register", reg, false)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if r.status != http.StatusCreated {
		return fmt.Errorf("register: %w", newHTTPError(r.status, r.body))
	}
	return nil
}

func (g *Gateway) Assets(ctx context.Context) ([]models.Asset, error) {
	r, err := g.do(ctx, http.MethodGet, "/azioni", nil, true)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	var assets []models.Asset
	if err := r.decode(&assets); err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	return assets, nil
}

func (g *Gateway) Balance(ctx context.Context) (decimal.Decimal, error) {
	r, err := g.do(ctx, http.MethodGet, "/utenti/saldo", nil, true)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance: %w", err)
	}
	bal, err := parseBalance(r.body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance: %w", err)
	}
	return bal, nil
}

// SubmitTransaction posts an order. It is never retried.
func (g *Gateway) SubmitTransaction(ctx context.Context, tx models.Transaction) error {
	if _, err := g.do(ctx, http.MethodPost, "/transazioni", tx.Request(), true); err != nil {
		return fmt.Errorf("submit transaction: %w", err)
	}
	return nil
}

// Forecast returns the next predicted value for an asset. ok is false when
// the backend has nothing usable.
func (g *Gateway) Forecast(ctx context.Context, assetID int64) (value decimal.Decimal, ok bool, err error) {
	r, err := g.do(ctx, http.MethodGet, "/previsione/"+strconv.FormatInt(assetID, 10), nil, true)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("forecast: %w", err)
	}
	value, ok = parseForecast(r.body)
	return value, ok, nil
}

// Alert returns the backend's alert text for an asset, possibly empty.
func (g *Gateway) Alert(ctx context.Context, assetID int64) (string, error) {
	r, err := g.do(ctx, http.MethodGet, "/previsione/alert/"+strconv.FormatInt(assetID, 10), nil, true)
	if err != nil {
		return "", fmt.Errorf("alert: %w", err)
	}
	if r.isJSON {
		parsed := gjson.ParseBytes(r.body)
		if parsed.IsObject() {
			for _, field := range []string{"alert", "messaggio", "message"} {
				if v := parsed.Get(field); v.Exists() {
					return v.String(), nil
				}
			}
			return "", nil
		}
	}
	return r.text(), nil
}

func (g *Gateway) Portfolio(ctx context.Context) (*models.Portfolio, error) {
	r, err := g.do(ctx, http.MethodGet, "/portfolio/me", nil, true)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("portfolio: %w", ErrPortfolioNotFound)
		}
		return nil, fmt.Errorf("portfolio: %w", err)
	}

	var p models.Portfolio
	if gjson.ParseBytes(r.body).IsArray() {
		err = r.decode(&p.Holdings)
	} else {
		err = r.decode(&p)
	}
	if err != nil {
		return nil, fmt.Errorf("portfolio: %w", err)
	}
	return &p, nil
}

func (g *Gateway) Transactions(ctx context.Context) ([]models.Transaction, error) {
	r, err := g.do(ctx, http.MethodGet, "/transazioni/me", nil, true)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("transactions: %w", ErrNoTransactions)
		}
		return nil, fmt.Errorf("transactions: %w", err)
	}
	var txs []models.Transaction
	if err := r.decode(&txs); err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	return txs, nil
}

func isNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}
