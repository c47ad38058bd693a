package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-papertrade/internal/external"
	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/navigation"
	"github.com/kjannette/trahn-papertrade/internal/risk"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type harness struct {
	t       *testing.T
	ctrl    *Controller
	tickers []*fakeTicker
	events  chan Event

	mu        sync.Mutex
	submitted []models.Transaction
	submitErr error
	refreshes int
	views     []navigation.View
	records   []Outcome
	wallet    risk.Wallet
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		events: make(chan Event, 256),
		wallet: risk.Wallet{Balance: decimal.RequireFromString("1000")},
	}
	var tickMu sync.Mutex
	h.ctrl = New(Config{
		Submit: func(_ context.Context, tx models.Transaction) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.submitted = append(h.submitted, tx)
			return h.submitErr
		},
		Funds: func(context.Context) (risk.Wallet, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.wallet, nil
		},
		PortfolioID: func() (int64, bool) { return 3, true },
		NewTicker: func(time.Duration) Ticker {
			tickMu.Lock()
			defer tickMu.Unlock()
			ft := &fakeTicker{ch: make(chan time.Time)}
			h.tickers = append(h.tickers, ft)
			return ft
		},
		OnCompleted: func(context.Context) {
			h.mu.Lock()
			h.refreshes++
			h.mu.Unlock()
		},
		Navigate: func(v navigation.View) {
			h.mu.Lock()
			h.views = append(h.views, v)
			h.mu.Unlock()
		},
		Notify: func(e Event) { h.events <- e },
		Record: func(_ context.Context, o Outcome) {
			h.mu.Lock()
			h.records = append(h.records, o)
			h.mu.Unlock()
		},
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) lastTicker() *fakeTicker {
	require.NotEmpty(h.t, h.tickers)
	return h.tickers[len(h.tickers)-1]
}

// drain collects events until one of kind arrives.
func (h *harness) waitFor(kind EventKind) Event {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.events:
			if e.Kind == kind {
				return e
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func (h *harness) countEvents(kind EventKind) int {
	n := 0
	for {
		select {
		case e := <-h.events:
			if e.Kind == kind {
				n++
			}
		case <-time.After(50 * time.Millisecond):
			return n
		}
	}
}

func asset(id int64, name, price string) *models.Asset {
	return &models.Asset{ID: id, Name: name, CurrentPrice: decimal.RequireFromString(price)}
}

func TestOpen_RequiresAsset(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Open(context.Background(), models.Buy, nil, 1)
	require.ErrorIs(t, err, ErrNoAssetSelected)
	assert.Equal(t, Idle, h.ctrl.Snapshot().State)
}

func TestOpen_RejectsNonPositiveQuantity(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestOpen_InsufficientBalance(t *testing.T) {
	h := newHarness(t)
	h.wallet = risk.Wallet{Balance: decimal.RequireFromString("100.00")}

	_, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "25.00"), 5)
	require.ErrorIs(t, err, risk.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "insufficient balance")

	st := h.ctrl.Snapshot()
	assert.Equal(t, Idle, st.State)
	assert.Nil(t, st.Pending)
	assert.Empty(t, h.tickers)
}

func TestOpen_InsufficientHoldings(t *testing.T) {
	h := newHarness(t)
	h.wallet = risk.Wallet{Holdings: map[int64]int{1: 1}}

	_, err := h.ctrl.Open(context.Background(), models.Sell, asset(1, "ACME", "10"), 2)
	require.ErrorIs(t, err, risk.ErrInsufficientHoldings)
	assert.Equal(t, Idle, h.ctrl.Snapshot().State)
}

func TestOpen_NeedsPortfolio(t *testing.T) {
	c := New(Config{PortfolioID: func() (int64, bool) { return 0, false }})
	_, err := c.Open(context.Background(), models.Buy, asset(1, "ACME", "1"), 1)
	require.ErrorIs(t, err, ErrNoPortfolio)
}

func TestOpen_SingleInFlight(t *testing.T) {
	h := newHarness(t)
	first, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 2)
	require.NoError(t, err)

	_, err = h.ctrl.Open(context.Background(), models.Sell, asset(2, "Beta", "5"), 1)
	require.ErrorIs(t, err, ErrOrderInProgress)

	st := h.ctrl.Snapshot()
	require.NotNil(t, st.Pending)
	assert.Equal(t, first.ID, st.Pending.ID)
	assert.Equal(t, "ACME", st.Pending.Asset.Name)
	assert.Equal(t, 2, st.Pending.Quantity)
	assert.Equal(t, 60, st.Remaining)
	assert.Len(t, h.tickers, 1)
}

func TestOpen_RejectedWhileSubmitting(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	h.ctrl.cfg.Submit = func(context.Context, models.Transaction) error {
		close(entered)
		<-release
		return nil
	}

	first, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ctrl.Confirm(context.Background())
	}()
	<-entered

	assert.Equal(t, Submitting, h.ctrl.Snapshot().State)
	_, err = h.ctrl.Open(context.Background(), models.Buy, asset(2, "Beta", "1"), 1)
	require.ErrorIs(t, err, ErrOrderInProgress)
	_, err = h.ctrl.Cancel()
	require.ErrorIs(t, err, ErrNoPendingOrder)

	st := h.ctrl.Snapshot()
	require.NotNil(t, st.Pending)
	assert.Equal(t, first.ID, st.Pending.ID)

	close(release)
	<-done
	assert.Equal(t, Idle, h.ctrl.Snapshot().State)
}

func TestCountdown_ExpiresAfterWindow(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)
	ft := h.lastTicker()

	for i := 0; i < 59; i++ {
		ft.ch <- time.Now()
	}
	tick := h.waitFor(EventTick)
	assert.Equal(t, 59, tick.Remaining)
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().Remaining == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, AwaitingConfirmation, h.ctrl.Snapshot().State)

	ft.ch <- time.Now()
	expired := h.waitFor(EventExpired)
	assert.Contains(t, expired.Message, "expired")
	assert.Zero(t, h.countEvents(EventExpired))

	st := h.ctrl.Snapshot()
	assert.Equal(t, Idle, st.State)
	assert.Nil(t, st.Pending)
	require.NotNil(t, st.LastOutcome)
	assert.Equal(t, Expired, st.LastOutcome.State)
	assert.True(t, ft.isStopped())
	assert.Empty(t, h.submitted)
	require.Len(t, h.records, 1)
	assert.Equal(t, Expired, h.records[0].State)
}

func TestConfirm_ExpiredOrderCannotBeConfirmed(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)
	ft := h.lastTicker()
	for i := 0; i < 60; i++ {
		ft.ch <- time.Now()
	}
	h.waitFor(EventExpired)

	_, err = h.ctrl.Confirm(context.Background())
	require.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestCountdown_RearmedForEachOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)
	first := h.lastTicker()
	for i := 0; i < 30; i++ {
		first.ch <- time.Now()
	}
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().Remaining == 30 }, time.Second, 5*time.Millisecond)

	_, err = h.ctrl.Cancel()
	require.NoError(t, err)
	assert.True(t, first.isStopped())

	_, err = h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)
	assert.NotSame(t, first, h.lastTicker())
	assert.Equal(t, 60, h.ctrl.Snapshot().Remaining)
}

func TestTick_StaleGenerationIgnored(t *testing.T) {
	h := newHarness(t)
	first, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)
	_, err = h.ctrl.Cancel()
	require.NoError(t, err)
	_, err = h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)

	assert.False(t, h.ctrl.tick(first.generation))
	assert.Equal(t, 60, h.ctrl.Snapshot().Remaining)
	assert.Equal(t, AwaitingConfirmation, h.ctrl.Snapshot().State)
}

func TestCancel_DiscardsOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Open(context.Background(), models.Sell, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)

	out, err := h.ctrl.Cancel()
	require.NoError(t, err)
	assert.Equal(t, Cancelled, out.State)
	assert.Equal(t, MsgCancelled, out.Message)
	assert.Equal(t, Idle, h.ctrl.Snapshot().State)
	assert.Empty(t, h.submitted)

	_, err = h.ctrl.Cancel()
	require.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestConfirm_SellSuccess(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Open(context.Background(), models.Sell, asset(7, "ACME", "50.00"), 2)
	require.NoError(t, err)
	ft := h.lastTicker()

	out, err := h.ctrl.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Completed, out.State)
	assert.Equal(t, "Sell 2 shares of ACME for €100.00", out.Message)
	assert.True(t, ft.isStopped())

	require.Len(t, h.submitted, 1)
	tx := h.submitted[0]
	assert.Equal(t, models.Sell, tx.Kind)
	assert.Equal(t, 2, tx.Quantity)
	assert.Equal(t, int64(7), tx.AssetID)
	assert.Equal(t, int64(3), tx.PortfolioID)
	assert.True(t, tx.UnitPrice.Equal(decimal.RequireFromString("50")))

	assert.Equal(t, 1, h.refreshes)
	assert.Equal(t, []navigation.View{navigation.Portfolio}, h.views)
	assert.Equal(t, Idle, h.ctrl.Snapshot().State)
	assert.Equal(t, Completed, h.ctrl.Snapshot().LastOutcome.State)
	h.waitFor(EventCompleted)
}

func TestConfirm_UsesPriceSnapshot(t *testing.T) {
	h := newHarness(t)
	a := asset(1, "ACME", "10.00")
	_, err := h.ctrl.Open(context.Background(), models.Buy, a, 3)
	require.NoError(t, err)

	// A refresh lands between open and confirm.
	a.CurrentPrice = decimal.RequireFromString("99.00")

	out, err := h.ctrl.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "30.00", out.Total.StringFixed(2))
	assert.Equal(t, "Buy 3 shares of ACME for €30.00", out.Message)
}

func TestConfirm_BackendMessageVerbatim(t *testing.T) {
	h := newHarness(t)
	h.submitErr = fmt.Errorf("submit transaction: %w", &external.HTTPError{StatusCode: 400, Message: "Saldo insufficiente"})

	_, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)
	out, err := h.ctrl.Confirm(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, "Saldo insufficiente", out.Message)
	assert.Equal(t, Idle, h.ctrl.Snapshot().State)
	assert.Zero(t, h.refreshes)
	assert.Empty(t, h.views)
}

func TestConfirm_GenericMessageOnTransportError(t *testing.T) {
	h := newHarness(t)
	h.submitErr = fmt.Errorf("dial tcp: connection refused")

	_, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)
	out, _ := h.ctrl.Confirm(context.Background())
	assert.Equal(t, MsgUnreachable, out.Message)
}

func TestConfirm_AuthFailureRedirects(t *testing.T) {
	h := newHarness(t)
	h.submitErr = fmt.Errorf("submit transaction: %w", &external.HTTPError{StatusCode: 401})

	_, err := h.ctrl.Open(context.Background(), models.Buy, asset(1, "ACME", "10"), 1)
	require.NoError(t, err)
	out, err := h.ctrl.Confirm(context.Background())
	require.ErrorIs(t, err, external.ErrUnauthorized)
	assert.Equal(t, MsgSessionExpired, out.Message)
	assert.Equal(t, []navigation.View{navigation.Login}, h.views)
	require.Len(t, h.submitted, 1)
}

func TestConfirm_NothingPending(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Confirm(context.Background())
	require.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_confirmation", AwaitingConfirmation.String())
	assert.True(t, Expired.Terminal())
	assert.False(t, Submitting.Terminal())

	var st State
	require.NoError(t, st.UnmarshalText([]byte("cancelled")))
	assert.Equal(t, Cancelled, st)
	assert.Error(t, st.UnmarshalText([]byte("paused")))
}
