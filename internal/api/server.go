package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-papertrade/internal/chart"
	"github.com/kjannette/trahn-papertrade/internal/dashboard"
	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/navigation"
	"github.com/kjannette/trahn-papertrade/internal/notifications"
	"github.com/kjannette/trahn-papertrade/internal/workflow"
)

const maxQueryLimit = 200

// Sessions is the login surface the API drives.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*models.Profile, error)
	RegisterAndLogin(ctx context.Context, reg models.Registration) (*models.Profile, error)
	Logout(ctx context.Context) error
	Profile() (models.Profile, bool)
	Authenticated(ctx context.Context) bool
}

// Dashboard is the snapshot holder behind the dashboard and portfolio views.
type Dashboard interface {
	Refresh(ctx context.Context) error
	Select(ctx context.Context, assetID int64) error
	View(interval chart.Interval) dashboard.View
	Portfolio() (dashboard.PortfolioView, error)
	Transactions() ([]models.Transaction, error)
	Asset(id int64) (*models.Asset, bool)
	SelectedAsset() (*models.Asset, bool)
	Loaded() bool
	Reset()
}

// Orders is the confirmation workflow.
type Orders interface {
	Open(ctx context.Context, kind models.TransactionKind, asset *models.Asset, quantity int) (*workflow.PendingOrder, error)
	Confirm(ctx context.Context) (*workflow.Outcome, error)
	Cancel() (*workflow.Outcome, error)
	Snapshot() workflow.Status
}

type Navigator interface {
	Current() navigation.View
	Navigate(to navigation.View)
}

type Inbox interface {
	Push(level notifications.Level, text string) notifications.Message
	Recent(n int) []notifications.Message
	Since(seq uint64) []notifications.Message
	Clear()
}

// Journal lists resolved order attempts. Optional.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]models.OrderAttempt, error)
}

type Deps struct {
	Sessions  Sessions
	Dashboard Dashboard
	Orders    Orders
	Navigator Navigator
	Inbox     Inbox
	Journal   Journal
	// Probe reports the status of external dependencies for /health.
	Probe func(ctx context.Context) map[string]string
}

type Config struct {
	Port       int
	APIKey     string
	CORSOrigin string
	Logger     zerolog.Logger
}

type Server struct {
	deps       Deps
	log        zerolog.Logger
	router     *mux.Router
	httpServer *http.Server
	apiKey     string
}

func NewServer(deps Deps, cfg Config) *Server {
	s := &Server{
		deps:   deps,
		log:    cfg.Logger,
		apiKey: cfg.APIKey,
	}

	r := mux.NewRouter()

	// Health check (no auth required)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Session routes
	v1.HandleFunc("/session", s.handleSessionState).Methods(http.MethodGet)
	v1.HandleFunc("/session/login", s.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/session/register", s.handleRegister).Methods(http.MethodPost)
	v1.HandleFunc("/session/logout", s.handleLogout).Methods(http.MethodPost)
	v1.HandleFunc("/session/view", s.handleNavigate).Methods(http.MethodPost)

	// Dashboard routes
	v1.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	v1.HandleFunc("/dashboard/refresh", s.handleDashboardRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	v1.HandleFunc("/transactions", s.handleTransactions).Methods(http.MethodGet)

	// Order routes
	v1.HandleFunc("/orders", s.handleOrderStatus).Methods(http.MethodGet)
	v1.HandleFunc("/orders", s.handleOpenOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/confirm", s.handleConfirmOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/history", s.handleOrderHistory).Methods(http.MethodGet)

	// Notifications
	v1.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
	v1.HandleFunc("/notifications", s.handleClearNotifications).Methods(http.MethodDelete)

	for _, router := range []*mux.Router{r, v1} {
		router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
		router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	}

	s.router = r
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(cfg.CORSOrigin),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in auth and CORS middleware.
func (s *Server) Handler(corsOrigin string) http.Handler {
	return corsMiddleware(s.authMiddleware(s.router), corsOrigin)
}

func (s *Server) Start() error {
	fmt.Printf("[API] Local API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.apiKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no LOCAL_API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- request helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
