package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/session"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) (*Gateway, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	return NewGateway(store, Options{BaseURL: srv.URL + "/api"}), store
}

func authed(t *testing.T, store *session.MemoryStore) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), "tok-123"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLogin_ParsesTokenAndProfile(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.it", body["email"])
		assert.Equal(t, "secret", body["password"])

		writeJSON(w, http.StatusOK, map[string]any{
			"token":  "jwt-1",
			"utente": map[string]any{"nome": "Mario", "id": 4, "portfolioId": 9},
		})
	})

	res, err := g.Login(context.Background(), "a@b.it", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", res.Token)
	assert.Equal(t, models.Profile{ID: 4, Name: "Mario", PortfolioID: 9}, res.Profile)
}

func TestLogin_RejectedCredentials(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Credenziali non valide"})
	})

	_, err := g.Login(context.Background(), "a@b.it", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Credenziali non valide", BackendMessage(err))
}

func TestRegister_RequiresCreated(t *testing.T) {
	status := http.StatusOK
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/utenti/register", r.URL.Path)
		w.WriteHeader(status)
	})
	reg := models.Registration{FirstName: "Mario", LastName: "Rossi", Email: "m@r.it", Password: "pw"}

	err := g.Register(context.Background(), reg)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusOK, he.StatusCode)

	status = http.StatusCreated
	require.NoError(t, g.Register(context.Background(), reg))
}

func TestAssets_SendsBearerToken(t *testing.T) {
	g, store := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		io.WriteString(w, `[{"id":1,"nome":"ACME","valoreAttuale":12.5,"variazione":-1.2},{"id":2,"nome":"Beta","valoreAttuale":"3.10","variazione":0}]`)
	})
	authed(t, store)

	assets, err := g.Assets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "ACME", assets[0].Name)
	assert.True(t, assets[0].CurrentPrice.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, assets[1].CurrentPrice.Equal(decimal.RequireFromString("3.1")))
}

func TestMissingToken_NoRequestAndHookFires(t *testing.T) {
	var requests atomic.Int32
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	})
	var hookCalls int
	g.SetAuthFailureHook(func(error) { hookCalls++ })

	_, err := g.Balance(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, int32(0), requests.Load())
	assert.Equal(t, 1, hookCalls)
}

func TestUnauthorized_ClearsStoreWithoutRetry(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "stale"))

	var hookErr error
	g := NewGateway(store, Options{
		BaseURL:       srv.URL + "/api",
		RetryAttempts: 3,
		OnAuthFailure: func(err error) { hookErr = err },
	})

	_, err := g.Portfolio(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.ErrorIs(t, hookErr, ErrUnauthorized)
	assert.Equal(t, int32(1), requests.Load())

	_, err = store.Get(context.Background())
	assert.ErrorIs(t, err, session.ErrNoToken)
}

func TestSubmitTransaction_BodyAndNoRetry(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/transazioni", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"tipoTransazione":"Acquisto","quantita":3,"prezzoUnitario":12.5,"azioneId":1,"portfolioId":9}`, string(body))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "market closed"})
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	authed(t, store)
	g := NewGateway(store, Options{BaseURL: srv.URL + "/api", RetryAttempts: 3})

	err := g.SubmitTransaction(context.Background(), models.Transaction{
		Kind:        models.Buy,
		Quantity:    3,
		UnitPrice:   decimal.RequireFromString("12.5"),
		AssetID:     1,
		PortfolioID: 9,
	})
	require.Error(t, err)
	assert.Equal(t, "market closed", BackendMessage(err))
	assert.Equal(t, int32(1), requests.Load())
	assert.False(t, IsAuthFailure(err))
}

func TestGet_RetriesWhenConfigured(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"saldo": 1500.25})
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	authed(t, store)
	g := NewGateway(store, Options{BaseURL: srv.URL, RetryAttempts: 2})

	bal, err := g.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1500.25", bal.String())
	assert.Equal(t, int32(2), requests.Load())
}

func TestPortfolio_NotFound(t *testing.T) {
	g, store := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	authed(t, store)

	_, err := g.Portfolio(context.Background())
	assert.ErrorIs(t, err, ErrPortfolioNotFound)

	_, err = g.Transactions(context.Background())
	assert.ErrorIs(t, err, ErrNoTransactions)
}

func TestPortfolio_ObjectOrArray(t *testing.T) {
	body := `{"id":9,"azioni":[{"id":1,"nome":"ACME","quantita":2,"valoreAttuale":10,"variazione":1.5}]}`
	g, store := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	})
	authed(t, store)

	p, err := g.Portfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, p.Holdings, 1)
	assert.Equal(t, "20.00", p.TotalValue().StringFixed(2))

	body = `[{"id":1,"nome":"ACME","quantita":3,"valoreAttuale":10}]`
	p, err = g.Portfolio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, p.HeldQuantity(1))
}

func TestTransactions_DecodesHistory(t *testing.T) {
	g, store := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":5,"tipoTransazione":"Vendita","quantita":2,"prezzoUnitario":50,"azioneId":7,"portfolioId":3}]`)
	})
	authed(t, store)

	txs, err := g.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.Sell, txs[0].Kind)
	assert.Equal(t, "€100.00", models.FormatEuro(txs[0].Total()))
}

func TestAlert_TextAndJSON(t *testing.T) {
	reply := "🚨 Forte ribasso previsto"
	contentType := "text/plain"
	g, store := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/previsione/alert/3", r.URL.Path)
		w.Header().Set("Content-Type", contentType)
		io.WriteString(w, reply)
	})
	authed(t, store)

	text, err := g.Alert(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "🚨 Forte ribasso previsto", text)

	contentType = "application/json; charset=utf-8"
	reply = `{"alert":"🚨 spike"}`
	text, err = g.Alert(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "🚨 spike", text)
}

func TestForecast_Endpoint(t *testing.T) {
	g, store := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/previsione/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"previsione": 21.4}`)
	})
	authed(t, store)

	v, ok, err := g.Forecast(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "21.4", v.String())
}

func TestParseForecast(t *testing.T) {
	cases := []struct {
		body string
		want string
		ok   bool
	}{
		{`18.5`, "18.5", true},
		{`"19.25"`, "19.25", true},
		{`[10, 11, 12.5]`, "12.5", true},
		{`{"valore": 3}`, "3", true},
		{`{"value": "4.5"}`, "4.5", true},
		{`{"prezzo": [1, 2]}`, "2", true},
		{`7.75`, "7.75", true},
		{`null`, "", false},
		{``, "", false},
		{`[]`, "", false},
		{`{"other": 1}`, "", false},
		{`not a number`, "", false},
	}
	for _, tc := range cases {
		got, ok := parseForecast([]byte(tc.body))
		if ok != tc.ok {
			t.Fatalf("parseForecast(%q) ok = %v, want %v", tc.body, ok, tc.ok)
		}
		if ok && got.String() != tc.want {
			t.Fatalf("parseForecast(%q) = %s, want %s", tc.body, got, tc.want)
		}
	}
}

func TestParseBalance(t *testing.T) {
	for body, want := range map[string]string{
		`1000`:            "1000",
		`"250.50"`:        "250.5",
		`{"saldo": 99.9}`: "99.9",
		`12.30`:           "12.3",
	} {
		got, err := parseBalance([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, want, got.String(), body)
	}

	_, err := parseBalance([]byte(`{"other": 1}`))
	assert.Error(t, err)
}

func TestExtractMessage(t *testing.T) {
	assert.Equal(t, "boom", extractMessage([]byte(`{"error":"boom"}`)))
	assert.Equal(t, "bad input", extractMessage([]byte(`{"detail":"bad input"}`)))
	assert.Equal(t, "", extractMessage([]byte(`{"code":1}`)))
	assert.Equal(t, "Saldo insufficiente", extractMessage([]byte("  Saldo insufficiente\n")))
	assert.Equal(t, "quoted", extractMessage([]byte(`"quoted"`)))

	he := newHTTPError(403, nil)
	assert.True(t, errors.Is(he, ErrUnauthorized))
	assert.Equal(t, "HTTP 403", he.Error())
}
