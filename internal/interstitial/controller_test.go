package interstitial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/arcade-interstitial/internal/clock"
	"github.com/vovakirdan/arcade-interstitial/internal/config"
	"github.com/vovakirdan/arcade-interstitial/internal/metrics"
	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

const waitTimeout = 2 * time.Second

type step struct {
	action Action
	state  State
}

// recorder collects every reduced action in order.
type recorder struct {
	steps chan step
}

func newRecorder() *recorder {
	return &recorder{steps: make(chan step, 256)}
}

func (r *recorder) observe(a Action, s State) {
	r.steps <- step{action: a, state: s}
}

// expect waits for the next reduced action, checks its type and returns the
// state it produced.
func (r *recorder) expect(t *testing.T, want Action) State {
	t.Helper()
	select {
	case st := <-r.steps:
		require.IsType(t, want, st.action)
		return st.state
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %T", want)
		return State{}
	}
}

func (r *recorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case st := <-r.steps:
		t.Fatalf("unexpected action %T", st.action)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeGateway hands payments to the test and lets it push transaction events.
type fakeGateway struct {
	payments    chan storekit.Payment
	events      chan storekit.ObserverEvent
	unsubscribe chan struct{}
	err         error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments:    make(chan storekit.Payment, 8),
		events:      make(chan storekit.ObserverEvent),
		unsubscribe: make(chan struct{}),
	}
}

func (g *fakeGateway) AddPayment(ctx context.Context, p storekit.Payment) error {
	g.payments <- p
	return g.err
}

func (g *fakeGateway) TransactionEvents(ctx context.Context) <-chan storekit.ObserverEvent {
	out := make(chan storekit.ObserverEvent)
	go func() {
		defer close(g.unsubscribe)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-g.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (g *fakeGateway) emit(t *testing.T, txs ...storekit.Transaction) {
	t.Helper()
	select {
	case g.events <- storekit.ObserverEvent{UpdatedTransactions: txs}:
	case <-time.After(waitTimeout):
		t.Fatal("nobody is observing transactions")
	}
}

func (g *fakeGateway) payment(t *testing.T) storekit.Payment {
	t.Helper()
	select {
	case p := <-g.payments:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for payment")
		return storekit.Payment{}
	}
}

// blockingCatalog never answers until its context is cancelled.
type blockingCatalog struct{}

func (blockingCatalog) FetchProducts(ctx context.Context, ids []string) (storekit.ProductsResponse, error) {
	<-ctx.Done()
	return storekit.ProductsResponse{}, ctx.Err()
}

type fakeRecorder struct {
	outcomes chan string
}

func (f *fakeRecorder) RecordPresentation(outcome string, secondsElapsed int) error {
	f.outcomes <- outcome
	return nil
}

type harness struct {
	ctrl    *Controller
	clock   *clock.Virtual
	gateway *fakeGateway
	steps   *recorder
}

func newHarness(t *testing.T, isDismissable bool, catalog ProductCatalog, cfg config.ServerConfig, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:   clock.NewVirtual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		gateway: newFakeGateway(),
		steps:   newRecorder(),
	}
	deps := Dependencies{
		Clock:   h.clock,
		Catalog: catalog,
		Gateway: h.gateway,
		Config:  config.Static(cfg),
	}
	opts = append(opts, WithObserver(h.steps.observe))
	h.ctrl = New(NewState(isDismissable), deps, opts...)
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) waitOutcome(t *testing.T) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	o, err := h.ctrl.Wait(ctx)
	require.NoError(t, err)

	select {
	case <-h.ctrl.Done():
	case <-ctx.Done():
		t.Fatal("controller did not finish")
	}
	return o
}

func (h *harness) requireUnsubscribed(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, h.clock.BlockUntil(ctx, 0), "clock subscription still live")
	select {
	case <-h.gateway.unsubscribe:
	case <-ctx.Done():
		t.Fatal("transaction subscription still live")
	}
}

func TestUpgrade(t *testing.T) {
	h := newHarness(t, false, storekit.NewCatalog(fullGame), testConfig(10))
	h.ctrl.Start(context.Background())

	s := h.steps.expect(t, Task{})
	assert.Equal(t, PhaseLoading, s.Phase)
	s = h.steps.expect(t, ServerConfigLoaded{})
	assert.Equal(t, 10, s.CountdownLimit)
	s = h.steps.expect(t, FullGameProductResponse{})
	require.NotNil(t, s.FullGameProduct)
	assert.Equal(t, fullGame.ProductIdentifier, s.FullGameProduct.ProductIdentifier)
	assert.Equal(t, PhaseReady, s.Phase)

	h.clock.Advance(time.Second)
	s = h.steps.expect(t, TimerTick{})
	assert.Equal(t, 1, s.SecondsPassedCount)

	h.ctrl.Send(UpgradeButtonTapped{})
	s = h.steps.expect(t, UpgradeButtonTapped{})
	assert.True(t, s.IsPurchasing)
	assert.Equal(t, storekit.Payment{ProductIdentifier: fullGameID, Quantity: 1}, h.gateway.payment(t))

	h.gateway.emit(t, tx(storekit.TransactionPurchasing, fullGameID))
	s = h.steps.expect(t, PaymentTransaction{})
	assert.True(t, s.IsPurchasing)

	h.gateway.emit(t, tx(storekit.TransactionPurchased, fullGameID))
	s = h.steps.expect(t, PaymentTransaction{})
	assert.False(t, s.IsPurchasing)
	assert.Equal(t, PhasePurchased, s.Phase)

	assert.Equal(t, OutcomeFullGamePurchased, h.waitOutcome(t))
	h.requireUnsubscribed(t)

	h.ctrl.Send(MaybeLaterButtonTapped{})
	h.clock.Advance(5 * time.Second)
	h.steps.expectNone(t)
	assert.Equal(t, PhasePurchased, h.ctrl.State().Phase)
}

// With the default policy the countdown keeps ticking past the limit until the
// interstitial ends. TestStopTickingAtLimit covers the 1s + 15s flow where the
// count freezes at the limit.
func TestWaitAndDismiss(t *testing.T) {
	h := newHarness(t, false, storekit.NewCatalog(), testConfig(10))
	h.ctrl.Start(context.Background())

	h.steps.expect(t, Task{})
	h.steps.expect(t, ServerConfigLoaded{})
	s := h.steps.expect(t, ProductsUnavailable{})
	assert.True(t, s.ProductUnavailable)
	assert.Nil(t, s.FullGameProduct)

	h.clock.Advance(time.Second)
	s = h.steps.expect(t, TimerTick{})
	assert.Equal(t, 1, s.SecondsPassedCount)

	h.ctrl.Send(MaybeLaterButtonTapped{})
	s = h.steps.expect(t, MaybeLaterButtonTapped{})
	assert.Equal(t, PhaseReady, s.Phase, "dismiss is locked during the countdown")

	h.clock.Advance(15 * time.Second)
	for i := 2; i <= 16; i++ {
		s = h.steps.expect(t, TimerTick{})
		assert.Equal(t, i, s.SecondsPassedCount)
	}

	h.ctrl.Send(MaybeLaterButtonTapped{})
	s = h.steps.expect(t, MaybeLaterButtonTapped{})
	assert.Equal(t, PhaseClosed, s.Phase)

	assert.Equal(t, OutcomeClosed, h.waitOutcome(t))
	h.requireUnsubscribed(t)

	h.clock.Advance(5 * time.Second)
	h.steps.expectNone(t)
}

func TestStopTickingAtLimit(t *testing.T) {
	cfg := testConfig(10)
	cfg.UpgradeInterstitial.StopTickingAtLimit = true
	h := newHarness(t, false, storekit.NewCatalog(), cfg)
	h.ctrl.Start(context.Background())

	h.steps.expect(t, Task{})
	h.steps.expect(t, ServerConfigLoaded{})
	h.steps.expect(t, ProductsUnavailable{})

	h.clock.Advance(time.Second)
	s := h.steps.expect(t, TimerTick{})
	assert.Equal(t, 1, s.SecondsPassedCount)

	h.ctrl.Send(MaybeLaterButtonTapped{})
	s = h.steps.expect(t, MaybeLaterButtonTapped{})
	assert.Equal(t, PhaseReady, s.Phase)

	h.clock.Advance(15 * time.Second)
	for i := 2; i <= 10; i++ {
		s = h.steps.expect(t, TimerTick{})
		assert.Equal(t, i, s.SecondsPassedCount)
	}

	// A tick already in flight when the timer stops is reduced without effect.
	h.ctrl.Send(MaybeLaterButtonTapped{})
	for {
		select {
		case st := <-h.steps.steps:
			if _, ok := st.action.(TimerTick); ok {
				assert.Equal(t, 10, st.state.SecondsPassedCount)
				continue
			}
			require.IsType(t, MaybeLaterButtonTapped{}, st.action)
			s = st.state
		case <-time.After(waitTimeout):
			t.Fatal("timed out waiting for MaybeLaterButtonTapped")
		}
		break
	}
	assert.Equal(t, PhaseClosed, s.Phase)
	assert.Equal(t, 10, s.SecondsPassedCount)
	assert.Equal(t, OutcomeClosed, h.waitOutcome(t))
	h.requireUnsubscribed(t)
}

func TestCloseWhenDismissable(t *testing.T) {
	rec := &fakeRecorder{outcomes: make(chan string, 1)}
	h := newHarness(t, true, blockingCatalog{}, testConfig(10), WithRecorder(rec))
	h.ctrl.Start(context.Background())
	h.ctrl.Send(MaybeLaterButtonTapped{})

	h.steps.expect(t, Task{})
	h.steps.expect(t, ServerConfigLoaded{})
	s := h.steps.expect(t, MaybeLaterButtonTapped{})
	assert.Equal(t, PhaseClosed, s.Phase)
	assert.Equal(t, 0, s.SecondsPassedCount)
	assert.Nil(t, s.FullGameProduct)

	assert.Equal(t, OutcomeClosed, h.waitOutcome(t))
	assert.Equal(t, "closed", <-rec.outcomes)
	h.requireUnsubscribed(t)
}

func TestFailedPaymentThenRetry(t *testing.T) {
	h := newHarness(t, false, storekit.NewCatalog(fullGame), testConfig(10))
	h.ctrl.Start(context.Background())
	h.steps.expect(t, Task{})
	h.steps.expect(t, ServerConfigLoaded{})
	h.steps.expect(t, FullGameProductResponse{})

	h.ctrl.Send(UpgradeButtonTapped{})
	h.steps.expect(t, UpgradeButtonTapped{})
	h.gateway.payment(t)

	failed := tx(storekit.TransactionFailed, fullGameID)
	failed.Error = storekit.ErrPaymentDeclined
	h.gateway.emit(t, failed)
	s := h.steps.expect(t, PaymentTransaction{})
	assert.False(t, s.IsPurchasing)
	assert.Equal(t, storekit.ErrPaymentDeclined.Error(), s.ErrorMessage)
	select {
	case o := <-h.ctrl.Outcome():
		t.Fatalf("unexpected outcome %s", o)
	default:
	}

	h.ctrl.Send(UpgradeButtonTapped{})
	s = h.steps.expect(t, UpgradeButtonTapped{})
	assert.True(t, s.IsPurchasing)
	h.gateway.payment(t)

	h.gateway.emit(t, tx(storekit.TransactionPurchased, fullGameID))
	h.steps.expect(t, PaymentTransaction{})
	assert.Equal(t, OutcomeFullGamePurchased, h.waitOutcome(t))
}

func TestStrayFailureNotCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t, false, storekit.NewCatalog(fullGame), testConfig(10), WithMetrics(metrics.NewInterstitial(reg)))
	h.ctrl.Start(context.Background())
	h.steps.expect(t, Task{})
	h.steps.expect(t, ServerConfigLoaded{})
	h.steps.expect(t, FullGameProductResponse{})

	h.gateway.emit(t, tx(storekit.TransactionFailed, fullGameID))
	s := h.steps.expect(t, PaymentTransaction{})
	assert.Empty(t, s.ErrorMessage)
	assert.Equal(t, PhaseReady, s.Phase)
	n, err := testutil.GatherAndCount(reg, "arcade_interstitial_payment_failures_total")
	require.NoError(t, err)
	assert.Zero(t, n)

	h.ctrl.Send(UpgradeButtonTapped{})
	h.steps.expect(t, UpgradeButtonTapped{})
	h.gateway.payment(t)
	h.gateway.emit(t, tx(storekit.TransactionFailed, fullGameID))
	s = h.steps.expect(t, PaymentTransaction{})
	assert.Equal(t, purchaseFailedMessage, s.ErrorMessage)
	n, err = testutil.GatherAndCount(reg, "arcade_interstitial_payment_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPaymentSubmitError(t *testing.T) {
	h := newHarness(t, false, storekit.NewCatalog(fullGame), testConfig(10))
	h.gateway.err = errors.New("gateway offline")
	h.ctrl.Start(context.Background())
	h.steps.expect(t, Task{})
	h.steps.expect(t, ServerConfigLoaded{})
	h.steps.expect(t, FullGameProductResponse{})

	h.ctrl.Send(UpgradeButtonTapped{})
	h.steps.expect(t, UpgradeButtonTapped{})
	s := h.steps.expect(t, PaymentSubmitFailed{})
	assert.False(t, s.IsPurchasing)
	assert.Equal(t, "gateway offline", s.ErrorMessage)
	assert.Equal(t, PhaseReady, s.Phase)
}

func TestCancelAbandonsWithoutOutcome(t *testing.T) {
	h := newHarness(t, false, storekit.NewCatalog(fullGame), testConfig(10))
	ctx, cancel := context.WithCancel(context.Background())
	h.ctrl.Start(ctx)
	h.steps.expect(t, Task{})
	h.steps.expect(t, ServerConfigLoaded{})

	cancel()
	select {
	case <-h.ctrl.Done():
	case <-time.After(waitTimeout):
		t.Fatal("controller did not stop")
	}
	_, ok := <-h.ctrl.Outcome()
	assert.False(t, ok)
	h.requireUnsubscribed(t)
}

func TestCloseBeforeStart(t *testing.T) {
	h := newHarness(t, true, storekit.NewCatalog(), testConfig(10))
	h.ctrl.Close()

	_, err := h.ctrl.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	h.ctrl.Send(MaybeLaterButtonTapped{})
	h.steps.expectNone(t)
}

func TestSandboxGatewayEndToEnd(t *testing.T) {
	catalog := storekit.NewCatalog(fullGame)
	gw := storekit.NewSandboxGateway(catalog, nil, storekit.SandboxConfig{Result: storekit.SandboxApprove})
	vc := clock.NewVirtual(time.Now())
	steps := newRecorder()
	ctrl := New(NewState(false), Dependencies{
		Clock:   vc,
		Catalog: catalog,
		Gateway: gw,
		Config:  config.Static(testConfig(10)),
	}, WithObserver(steps.observe))
	t.Cleanup(ctrl.Close)

	ctrl.Start(context.Background())
	steps.expect(t, Task{})
	steps.expect(t, ServerConfigLoaded{})
	steps.expect(t, FullGameProductResponse{})
	ctrl.Send(UpgradeButtonTapped{})
	steps.expect(t, UpgradeButtonTapped{})
	s := steps.expect(t, PaymentTransaction{})
	assert.True(t, s.IsPurchasing, "purchasing event")
	s = steps.expect(t, PaymentTransaction{})
	assert.Equal(t, PhasePurchased, s.Phase)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	o, err := ctrl.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFullGamePurchased, o)
}
