// Package workflow runs the confirmation flow for a single buy or sell order:
// validation, a bounded confirmation window, submission and outcome reporting.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-papertrade/internal/external"
	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/navigation"
	"github.com/kjannette/trahn-papertrade/internal/risk"
)

const DefaultWindow = 60 * time.Second

const (
	MsgSessionExpired = "session expired, please log in again"
	MsgUnreachable    = "unable to reach the trading service, please try again later"
	MsgCancelled      = "order cancelled"
)

var (
	ErrNoAssetSelected = errors.New("no asset selected")
	ErrInvalidQuantity = risk.ErrInvalidQuantity
	ErrOrderInProgress = errors.New("another order is already awaiting confirmation")
	ErrNoPendingOrder  = errors.New("no order is awaiting confirmation")
	ErrNoPortfolio     = errors.New("portfolio unavailable, please log in again")
)

type Config struct {
	// Submit sends the transaction to the backend.
	Submit func(ctx context.Context, tx models.Transaction) error
	// Funds returns the last known wallet.
	Funds       func(ctx context.Context) (risk.Wallet, error)
	PortfolioID func() (int64, bool)
	Guardian    *risk.Guardian

	Window    time.Duration
	NewTicker TickerFactory
	Now       func() time.Time

	// OnCompleted refreshes the portfolio after a successful submission.
	OnCompleted func(ctx context.Context)
	Navigate    func(v navigation.View)
	Notify      func(e Event)
	// Record journals every resolved attempt.
	Record func(ctx context.Context, o Outcome)
	Logger zerolog.Logger
}

type Controller struct {
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex
	state      State
	pending    *PendingOrder
	remaining  int
	generation uint64
	ticker     Ticker
	stopTick   chan struct{}
	last       *Outcome
}

func New(cfg Config) *Controller {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewRealTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Guardian == nil {
		cfg.Guardian = risk.NewGuardian(risk.Limits{}, nil)
	}
	return &Controller{cfg: cfg, log: cfg.Logger}
}

func (c *Controller) windowSeconds() int {
	s := int(c.cfg.Window / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// Open validates the order and starts the confirmation countdown.
// Validation failures leave the controller Idle.
func (c *Controller) Open(ctx context.Context, kind models.TransactionKind, asset *models.Asset, quantity int) (*PendingOrder, error) {
	c.mu.Lock()

	if c.state == AwaitingConfirmation || c.state == Submitting {
		c.mu.Unlock()
		return nil, ErrOrderInProgress
	}
	if asset == nil {
		c.mu.Unlock()
		return nil, ErrNoAssetSelected
	}
	if quantity <= 0 {
		c.mu.Unlock()
		return nil, ErrInvalidQuantity
	}

	var portfolioID int64
	if c.cfg.PortfolioID != nil {
		id, ok := c.cfg.PortfolioID()
		if !ok {
			c.mu.Unlock()
			return nil, ErrNoPortfolio
		}
		portfolioID = id
	}

	var wallet risk.Wallet
	if c.cfg.Funds != nil {
		w, err := c.cfg.Funds(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		wallet = w
	}

	candidate := risk.Order{Kind: kind, AssetID: asset.ID, Quantity: quantity, UnitPrice: asset.CurrentPrice}
	if err := c.cfg.Guardian.PreTradeCheck(ctx, candidate, wallet); err != nil {
		c.mu.Unlock()
		c.log.Info().Str("kind", kind.String()).Int64("asset_id", asset.ID).Int("quantity", quantity).Err(err).Msg("order rejected")
		return nil, err
	}

	c.generation++
	order := &PendingOrder{
		ID:          uuid.New(),
		Kind:        kind,
		Asset:       AssetSnapshot{ID: asset.ID, Name: asset.Name, Price: asset.CurrentPrice},
		Quantity:    quantity,
		PortfolioID: portfolioID,
		OpenedAt:    c.cfg.Now(),
		generation:  c.generation,
	}
	c.pending = order
	c.state = AwaitingConfirmation
	c.remaining = c.windowSeconds()
	c.startCountdownLocked(order.generation)

	snapshot := *order
	remaining := c.remaining
	c.mu.Unlock()

	c.log.Info().
		Str("order_id", order.ID.String()).
		Str("kind", kind.String()).
		Str("asset", asset.Name).
		Int("quantity", quantity).
		Str("total", order.Total().StringFixed(2)).
		Msg("awaiting confirmation")
	c.notify(Event{Kind: EventOpened, Order: snapshot, Remaining: remaining})

	return &snapshot, nil
}

func (c *Controller) startCountdownLocked(gen uint64) {
	t := c.cfg.NewTicker(time.Second)
	stop := make(chan struct{})
	c.ticker = t
	c.stopTick = stop
	go c.countdown(gen, t, stop)
}

func (c *Controller) stopCountdownLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

func (c *Controller) countdown(gen uint64, t Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !c.tick(gen) {
				return
			}
		}
	}
}

// tick applies one countdown second to attempt gen. It returns false once the
// attempt is no longer awaiting confirmation.
func (c *Controller) tick(gen uint64) bool {
	c.mu.Lock()
	if c.generation != gen || c.state != AwaitingConfirmation || c.pending == nil {
		c.mu.Unlock()
		return false
	}

	c.remaining--
	order := *c.pending
	if c.remaining > 0 {
		remaining := c.remaining
		c.mu.Unlock()
		c.notify(Event{Kind: EventTick, Order: order, Remaining: remaining})
		return true
	}

	c.stopCountdownLocked()
	outcome := c.resolveLocked(Expired, fmt.Sprintf("confirmation window expired, %s order for %s discarded",
		order.Kind.String(), order.Asset.Name), nil)
	c.mu.Unlock()

	c.log.Info().Str("order_id", order.ID.String()).Msg("confirmation expired")
	c.finish(context.Background(), outcome, EventExpired)
	return false
}

// Confirm submits the pending order. The returned Outcome is non-nil whenever
// an attempt was resolved; err is the submission error, if any.
func (c *Controller) Confirm(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	if c.state != AwaitingConfirmation || c.pending == nil {
		c.mu.Unlock()
		return nil, ErrNoPendingOrder
	}
	c.stopCountdownLocked()
	c.state = Submitting
	order := *c.pending
	c.mu.Unlock()

	c.notify(Event{Kind: EventSubmitting, Order: order})

	err := c.submit(ctx, order)

	c.mu.Lock()
	var outcome Outcome
	if err == nil {
		outcome = c.resolveLocked(Completed, successMessage(order), nil)
	} else {
		outcome = c.resolveLocked(Failed, failureMessage(err), err)
	}
	c.mu.Unlock()

	if err == nil {
		c.log.Info().Str("order_id", order.ID.String()).Str("total", outcome.Total.StringFixed(2)).Msg("order completed")
		if c.cfg.OnCompleted != nil {
			c.cfg.OnCompleted(ctx)
		}
		c.navigate(navigation.Portfolio)
		c.finish(ctx, outcome, EventCompleted)
		return &outcome, nil
	}

	c.log.Warn().Str("order_id", order.ID.String()).Err(err).Msg("order failed")
	if external.IsAuthFailure(err) {
		c.navigate(navigation.Login)
	}
	c.finish(ctx, outcome, EventFailed)
	return &outcome, err
}

func (c *Controller) submit(ctx context.Context, order PendingOrder) error {
	if c.cfg.Submit == nil {
		return errors.New("no submitter configured")
	}
	return c.cfg.Submit(ctx, order.transaction())
}

// Cancel discards the pending order.
func (c *Controller) Cancel() (*Outcome, error) {
	c.mu.Lock()
	if c.state != AwaitingConfirmation || c.pending == nil {
		c.mu.Unlock()
		return nil, ErrNoPendingOrder
	}
	c.stopCountdownLocked()
	outcome := c.resolveLocked(Cancelled, MsgCancelled, nil)
	c.mu.Unlock()

	c.log.Info().Str("order_id", outcome.Order.ID.String()).Msg("order cancelled")
	c.finish(context.Background(), outcome, EventCancelled)
	return &outcome, nil
}

// resolveLocked ends the current attempt and returns the controller to Idle.
func (c *Controller) resolveLocked(final State, msg string, err error) Outcome {
	order := *c.pending
	outcome := Outcome{
		Order:      order,
		State:      final,
		Total:      order.Total(),
		Message:    msg,
		Err:        err,
		ResolvedAt: c.cfg.Now(),
	}
	c.last = &outcome
	c.pending = nil
	c.remaining = 0
	c.state = Idle
	return outcome
}

func (c *Controller) finish(ctx context.Context, o Outcome, kind EventKind) {
	if c.cfg.Record != nil {
		c.cfg.Record(ctx, o)
	}
	c.notify(Event{Kind: kind, Order: o.Order, Message: o.Message})
}

func (c *Controller) notify(e Event) {
	if c.cfg.Notify != nil {
		c.cfg.Notify(e)
	}
}

func (c *Controller) navigate(v navigation.View) {
	if c.cfg.Navigate != nil {
		c.cfg.Navigate(v)
	}
}

// Snapshot returns the current state without side effects.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, Remaining: c.remaining}
	if c.pending != nil {
		p := *c.pending
		st.Pending = &p
	}
	if c.last != nil {
		o := *c.last
		st.LastOutcome = &o
	}
	return st
}

// Close stops the countdown and drops any pending order without reporting it.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCountdownLocked()
	if c.state == AwaitingConfirmation {
		c.pending = nil
		c.remaining = 0
		c.state = Idle
	}
}

func successMessage(o PendingOrder) string {
	return fmt.Sprintf("%s %d shares of %s for %s", o.Kind.String(), o.Quantity, o.Asset.Name, models.FormatEuro(o.Total()))
}

func failureMessage(err error) string {
	if external.IsAuthFailure(err) {
		return MsgSessionExpired
	}
	if msg := external.BackendMessage(err); msg != "" {
		return msg
	}
	return MsgUnreachable
}
