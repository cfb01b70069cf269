package interstitial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/arcade-interstitial/internal/metrics"
	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

// ErrProductUnavailable is reported when the catalog has no full-game product.
var ErrProductUnavailable = errors.New("interstitial: full game product unavailable")

// PresentationRecorder persists how a presentation ended.
type PresentationRecorder interface {
	RecordPresentation(outcome string, secondsElapsed int) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics reports presentations and outcomes to m.
func WithMetrics(m *metrics.Interstitial) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithRecorder persists every outcome through r.
func WithRecorder(r PresentationRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithObserver calls fn on the loop goroutine after every reduced action.
// fn must not block for long and must not call Send.
func WithObserver(fn func(Action, State)) Option {
	return func(c *Controller) { c.observer = fn }
}

// Controller runs one interstitial lifecycle. All state changes happen on a
// single goroutine; collaborators feed it through Send.
type Controller struct {
	deps     Dependencies
	logger   *log.Logger
	metrics  *metrics.Interstitial
	recorder PresentationRecorder
	observer func(Action, State)

	mu    sync.RWMutex
	state State

	actions chan Action
	changes chan struct{}
	outcome chan Outcome
	done    chan struct{}

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Owned by the loop goroutine.
	stopTimerFn     context.CancelFunc
	stopObservingFn context.CancelFunc
	delivered       bool
}

// New creates a controller for initial. Call Start to run it.
func New(initial State, deps Dependencies, opts ...Option) *Controller {
	c := &Controller{
		deps:    deps,
		state:   initial,
		actions: make(chan Action, 64),
		changes: make(chan struct{}, 1),
		outcome: make(chan Outcome, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Start begins the lifecycle. Cancelling ctx abandons it without an outcome.
// Calls after the first are ignored.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)
		c.metrics.Presented()
		c.wg.Add(1)
		go c.processActions()
		c.send(Task{})
	})
}

// Send queues a user action. Actions sent after the lifecycle ended are dropped.
func (c *Controller) Send(a Action) {
	c.send(a)
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Changes signals after every reduced action. It is closed when the
// lifecycle ends.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// Outcome yields the single outcome and is then closed. It is closed without
// a value if the lifecycle is abandoned.
func (c *Controller) Outcome() <-chan Outcome {
	return c.outcome
}

// Done is closed once the lifecycle has ended and all subscriptions are cancelled.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until an outcome is delivered.
func (c *Controller) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o, ok := <-c.outcome:
		if !ok {
			return 0, context.Canceled
		}
		return o, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close abandons the lifecycle if it is still running and waits for every
// background goroutine to return.
func (c *Controller) Close() {
	c.startOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(context.Background())
		close(c.outcome)
		c.shutdown()
	})
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) send(a Action) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.actions <- a:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) processActions() {
	defer c.wg.Done()
	for {
		select {
		case a := <-c.actions:
			c.dispatch(a)
			if c.delivered {
				c.shutdown()
				return
			}
		case <-c.ctx.Done():
			c.logger.Debug("interstitial abandoned", "reason", c.ctx.Err())
			c.stopTimer()
			c.stopObserving()
			close(c.outcome)
			c.shutdown()
			return
		}
	}
}

func (c *Controller) dispatch(a Action) {
	c.mu.Lock()
	prev := c.state
	next, effects := Reduce(prev, a)
	c.state = next
	c.mu.Unlock()

	c.logger.Debug("action",
		"action", actionName(a),
		"phase", next.Phase,
		"seconds", next.SecondsPassedCount,
		"purchasing", next.IsPurchasing,
	)
	c.instrument(prev, next, a)
	if c.observer != nil {
		c.observer(a, next)
	}
	c.notify()

	for _, e := range effects {
		c.execute(e)
	}
}

func (c *Controller) execute(e Effect) {
	switch e := e.(type) {
	case LoadServerConfig:
		c.dispatch(ServerConfigLoaded{Config: c.deps.Config.Current()})
	case FetchProducts:
		c.goEffect(func() { c.fetchProducts(e.Identifiers) })
	case StartTimer:
		c.startTimer(e)
	case StopTimer:
		c.stopTimer()
	case ObserveTransactions:
		c.observeTransactions()
	case AddPayment:
		c.goEffect(func() { c.addPayment(e.Payment) })
	case Deliver:
		c.deliver(e.Outcome)
	}
}

func (c *Controller) goEffect(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Controller) fetchProducts(ids []string) {
	resp, err := c.deps.Catalog.FetchProducts(c.ctx, ids)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.send(ProductsUnavailable{Err: err})
		return
	}
	if product, ok := pickProduct(resp.Products, ids); ok {
		c.send(FullGameProductResponse{Product: product})
		return
	}
	err = ErrProductUnavailable
	if len(resp.InvalidProductIdentifiers) > 0 {
		err = fmt.Errorf("%w: invalid identifiers %s", ErrProductUnavailable,
			strings.Join(resp.InvalidProductIdentifiers, ", "))
	}
	c.send(ProductsUnavailable{Err: err})
}

func pickProduct(products []storekit.Product, ids []string) (storekit.Product, bool) {
	for _, id := range ids {
		for _, p := range products {
			if p.ProductIdentifier == id {
				return p, true
			}
		}
	}
	if len(products) > 0 {
		return products[0], true
	}
	return storekit.Product{}, false
}

func (c *Controller) addPayment(p storekit.Payment) {
	if err := c.deps.Gateway.AddPayment(c.ctx, p); err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.send(PaymentSubmitFailed{Err: err})
	}
}

func (c *Controller) startTimer(e StartTimer) {
	if c.stopTimerFn != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.stopTimerFn = cancel
	ticks := c.deps.Clock.Tick(ctx, e.Interval)
	c.goEffect(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				c.send(TimerTick{})
			}
		}
	})
}

func (c *Controller) stopTimer() {
	if c.stopTimerFn == nil {
		return
	}
	c.stopTimerFn()
	c.stopTimerFn = func() {}
}

func (c *Controller) observeTransactions() {
	if c.stopObservingFn != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.stopObservingFn = cancel
	events := c.deps.Gateway.TransactionEvents(ctx)
	c.goEffect(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				c.send(PaymentTransaction{Event: ev})
			}
		}
	})
}

func (c *Controller) stopObserving() {
	if c.stopObservingFn == nil {
		return
	}
	c.stopObservingFn()
	c.stopObservingFn = func() {}
}

func (c *Controller) deliver(o Outcome) {
	if c.delivered {
		return
	}
	c.delivered = true
	c.stopTimer()
	c.stopObserving()

	seconds := c.State().SecondsPassedCount
	c.metrics.Ended(o.String(), seconds)
	if c.recorder != nil {
		if err := c.recorder.RecordPresentation(o.String(), seconds); err != nil {
			c.logger.Warn("failed to record presentation", "error", err)
		}
	}
	c.logger.Info("interstitial finished", "outcome", o, "seconds", seconds)

	c.outcome <- o
	close(c.outcome)
}

// shutdown runs exactly once, on the loop goroutine or from Close before Start.
func (c *Controller) shutdown() {
	c.cancel()
	close(c.done)
	close(c.changes)
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *Controller) instrument(prev, next State, a Action) {
	switch a := a.(type) {
	case ProductsUnavailable:
		c.logger.Warn("full game product unavailable", "error", a.Err)
	case PaymentSubmitFailed:
		if prev.IsPurchasing {
			c.logger.Warn("payment rejected", "error", a.Err)
			c.metrics.PaymentFailed("rejected")
		}
	case PaymentTransaction:
		purchasing := prev.IsPurchasing
		for _, tx := range a.Event.UpdatedTransactions {
			if !purchasing || tx.Payment.ProductIdentifier != prev.ProductIdentifier {
				continue
			}
			switch {
			case tx.Error == nil && tx.TransactionState.Settled():
				purchasing = false
			case tx.Error != nil || tx.TransactionState == storekit.TransactionFailed:
				purchasing = false
				c.logger.Warn("payment failed", "transaction", tx.TransactionIdentifier, "error", tx.Error)
				c.metrics.PaymentFailed(storekit.TransactionFailed.String())
			case tx.TransactionState == storekit.TransactionDeferred:
				purchasing = false
				c.logger.Info("payment deferred", "transaction", tx.TransactionIdentifier)
				c.metrics.PaymentFailed(storekit.TransactionDeferred.String())
			}
		}
	}
	if prev.Phase != next.Phase {
		c.logger.Debug("phase changed", "from", prev.Phase, "to", next.Phase)
	}
}

func actionName(a Action) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", a), "interstitial.")
}
