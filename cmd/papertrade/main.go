package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-papertrade/internal/api"
	"github.com/kjannette/trahn-papertrade/internal/auth"
	"github.com/kjannette/trahn-papertrade/internal/config"
	"github.com/kjannette/trahn-papertrade/internal/dashboard"
	"github.com/kjannette/trahn-papertrade/internal/db"
	"github.com/kjannette/trahn-papertrade/internal/external"
	"github.com/kjannette/trahn-papertrade/internal/logging"
	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/navigation"
	"github.com/kjannette/trahn-papertrade/internal/notifications"
	"github.com/kjannette/trahn-papertrade/internal/repository"
	"github.com/kjannette/trahn-papertrade/internal/risk"
	"github.com/kjannette/trahn-papertrade/internal/scheduler"
	"github.com/kjannette/trahn-papertrade/internal/session"
	"github.com/kjannette/trahn-papertrade/internal/workflow"
)

const banner = `
╔══════════════════════════════════════╗
║     TRAHN Paper Trading Client       ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()
	for _, w := range cfg.Warnings() {
		fmt.Printf("[WARN] %s\n", w)
	}

	root := logging.New(cfg.LogLevel, logging.ParseFormat(cfg.LogFormat))
	log := logging.Component(root, "main")

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Credential store
	var store session.Store
	var redisStore *session.RedisStore
	switch cfg.CredentialStore {
	case "redis":
		fmt.Printf("\n[SESSION] Connecting to redis %s ...\n", cfg.RedisAddr)
		redisStore, err = session.NewRedisStore(ctx, session.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: "papertrade",
			TTL:       cfg.SessionTTL(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "[SESSION] %v\n", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
	default:
		store = session.NewMemoryStore()
	}

	// Order journal
	var (
		pool     *pgxpool.Pool
		recorder repository.Recorder = repository.NoopRecorder{}
		journal  api.Journal
	)
	if cfg.JournalEnabled {
		fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err = db.Connect(ctx, cfg.DSN())
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			pool.Close()
			fmt.Println("[DB] Connection pool closed")
		}()

		if err := db.TestConnection(ctx, pool, logging.Component(root, "db")); err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Test query failed: %v\n", err)
			os.Exit(1)
		}

		repo := repository.NewAttemptRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Schema setup failed: %v\n", err)
			os.Exit(1)
		}
		recorder = repo
		journal = repo
	}

	// Notifications
	relay := notifications.NewSender(cfg.WebhookURL, cfg.BotName, logging.Component(root, "notifications"))
	inbox := notifications.NewInbox(notifications.DefaultInboxSize, relay)

	// Navigation
	nav := navigation.NewRouter(navigation.Login)
	navLog := logging.Component(root, "navigation")
	nav.OnNavigate = func(from, to navigation.View) {
		navLog.Debug().Str("from", string(from)).Str("to", string(to)).Msg("view changed")
	}

	// Backend gateway and the components reading from it
	gateway := external.NewGateway(store, external.Options{
		BaseURL:       cfg.APIBaseURL,
		Timeout:       cfg.APITimeout(),
		RateLimitRPS:  cfg.APIRateLimitRPS,
		RetryAttempts: cfg.APIRetryAttempts,
		Logger:        logging.Component(root, "gateway"),
	})
	sessions := auth.NewService(gateway, store, logging.Component(root, "auth"))
	board := dashboard.NewBoard(gateway, logging.Component(root, "dashboard"))

	gateway.SetAuthFailureHook(func(err error) {
		sessions.Invalidate()
		board.Reset()
		nav.Navigate(navigation.Login)
		inbox.Push(notifications.Error, workflow.MsgSessionExpired)
	})

	guardian := risk.NewGuardian(risk.Limits{
		MaxOrderValue:  decimal.NewFromFloat(cfg.MaxOrderValue),
		MaxDailyOrders: cfg.MaxDailyOrders,
	}, recorder)

	orderLog := logging.Component(root, "workflow")
	orders := workflow.New(workflow.Config{
		Submit:      gateway.SubmitTransaction,
		Funds:       board.Funds,
		PortfolioID: sessions.PortfolioID,
		Guardian:    guardian,
		Window:      cfg.ConfirmationWindow(),
		OnCompleted: func(ctx context.Context) {
			if err := board.RefreshFunds(ctx); err != nil {
				orderLog.Warn().Err(err).Msg("portfolio refresh after order failed")
			}
		},
		Navigate: nav.Navigate,
		Notify:   func(e workflow.Event) { notifyOrderEvent(inbox, e) },
		Record: func(ctx context.Context, o workflow.Outcome) {
			if err := recorder.Save(ctx, o.Attempt()); err != nil {
				orderLog.Error().Err(err).Str("order_id", o.Order.ID.String()).Msg("failed to journal order")
			}
		},
		Logger: orderLog,
	})
	defer orders.Close()

	// 1. Periodic dashboard refresh
	refresher := scheduler.NewRefresher(scheduler.RefresherConfig{
		Interval: cfg.RefreshInterval(),
		Timeout:  cfg.APITimeout() * 2,
		Refresh:  board.Refresh,
		Active:   sessions.Authenticated,
		Logger:   logging.Component(root, "scheduler"),
	})
	if err := refresher.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "[SCHEDULER] Start failed: %v\n", err)
		os.Exit(1)
	}

	// 2. Local API server
	srv := api.NewServer(api.Deps{
		Sessions:  sessions,
		Dashboard: board,
		Orders:    orders,
		Navigator: nav,
		Inbox:     inbox,
		Journal:   journal,
		Probe:     probe(pool, refresher),
	}, api.Config{
		Port:       cfg.ListenPort,
		APIKey:     cfg.LocalAPIKey,
		CORSOrigin: cfg.CORSAllowOrigin,
		Logger:     logging.Component(root, "api"),
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	log.Info().Str("backend", cfg.APIBaseURL).Int("port", cfg.ListenPort).Msg("all services started")
	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}

// notifyOrderEvent turns workflow events into inbox messages. Countdown ticks
// are only visible through the order status.
func notifyOrderEvent(inbox *notifications.Inbox, e workflow.Event) {
	switch e.Kind {
	case workflow.EventOpened:
		inbox.Push(notifications.Info, fmt.Sprintf("Confirm: %s %d shares of %s for %s (%ds to confirm)",
			e.Order.Kind.String(), e.Order.Quantity, e.Order.Asset.Name,
			models.FormatEuro(e.Order.Total()), e.Remaining))
	case workflow.EventCompleted:
		inbox.Push(notifications.Success, e.Message)
	case workflow.EventFailed:
		inbox.Push(notifications.Error, e.Message)
	case workflow.EventCancelled:
		inbox.Push(notifications.Info, e.Message)
	case workflow.EventExpired:
		inbox.Push(notifications.Warning, e.Message)
	}
}

func probe(pool *pgxpool.Pool, refresher *scheduler.Refresher) func(ctx context.Context) map[string]string {
	return func(ctx context.Context) map[string]string {
		out := map[string]string{"journal": "disabled"}
		if pool != nil {
			out["journal"] = "connected"
			if err := pool.Ping(ctx); err != nil {
				out["journal"] = "disconnected"
			}
		}

		last, err := refresher.LastRun()
		switch {
		case last.IsZero():
			out["backend"] = "not contacted"
		case err != nil:
			out["backend"] = "error: " + err.Error()
		default:
			out["backend"] = "ok (" + last.UTC().Format(time.RFC3339) + ")"
		}
		return out
	}
}
