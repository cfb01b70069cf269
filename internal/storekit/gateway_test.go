package storekit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProduct = Product{
	ProductIdentifier: "co.arcade.full_game",
	LocalizedTitle:    "Full Game",
	Price:             decimal.RequireFromString("4.99"),
	CurrencyCode:      "USD",
}

type memLedger struct {
	mu  sync.Mutex
	txs []Transaction
}

func (l *memLedger) RecordTransaction(tx Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs = append(l.txs, tx)
	return nil
}

func (l *memLedger) recorded() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transaction(nil), l.txs...)
}

func nextEvent(t *testing.T, events <-chan ObserverEvent) Transaction {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "events closed")
		require.Len(t, ev.UpdatedTransactions, 1)
		return ev.UpdatedTransactions[0]
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transaction event")
		return Transaction{}
	}
}

func TestSandboxGateway(t *testing.T) {
	tests := []struct {
		result  SandboxResult
		want    TransactionState
		wantErr error
	}{
		{SandboxApprove, TransactionPurchased, nil},
		{SandboxDecline, TransactionFailed, ErrPaymentDeclined},
		{SandboxDefer, TransactionDeferred, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.result), func(t *testing.T) {
			ledger := &memLedger{}
			gw := NewSandboxGateway(NewCatalog(testProduct), ledger, SandboxConfig{Result: tt.result})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			events := gw.TransactionEvents(ctx)

			require.NoError(t, gw.AddPayment(ctx, Payment{ProductIdentifier: testProduct.ProductIdentifier}))

			first := nextEvent(t, events)
			assert.Equal(t, TransactionPurchasing, first.TransactionState)
			assert.Equal(t, 1, first.Payment.Quantity)
			assert.NotEmpty(t, first.TransactionIdentifier)

			settled := nextEvent(t, events)
			assert.Equal(t, tt.want, settled.TransactionState)
			assert.Equal(t, first.TransactionIdentifier, settled.TransactionIdentifier)
			if tt.wantErr != nil {
				assert.ErrorIs(t, settled.Error, tt.wantErr)
			} else {
				assert.NoError(t, settled.Error)
			}

			recorded := ledger.recorded()
			require.Len(t, recorded, 1)
			assert.Equal(t, tt.want, recorded[0].TransactionState)
		})
	}
}

func TestSandboxGatewayUnknownProduct(t *testing.T) {
	gw := NewSandboxGateway(NewCatalog(testProduct), nil, SandboxConfig{})
	err := gw.AddPayment(context.Background(), Payment{ProductIdentifier: "co.arcade.other"})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestSandboxGatewayLatencyHonoursContext(t *testing.T) {
	gw := NewSandboxGateway(NewCatalog(testProduct), nil, SandboxConfig{Latency: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	events := gw.TransactionEvents(ctx)

	errc := make(chan error, 1)
	go func() { errc <- gw.AddPayment(ctx, Payment{ProductIdentifier: testProduct.ProductIdentifier}) }()
	assert.Equal(t, TransactionPurchasing, nextEvent(t, events).TransactionState)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("AddPayment ignored cancellation")
	}
}

func TestParseSandboxResult(t *testing.T) {
	r, err := ParseSandboxResult("")
	require.NoError(t, err)
	assert.Equal(t, SandboxApprove, r)

	r, err = ParseSandboxResult("defer")
	require.NoError(t, err)
	assert.Equal(t, SandboxDefer, r)

	_, err = ParseSandboxResult("refund")
	assert.Error(t, err)
}

func TestObserverHubFanOut(t *testing.T) {
	hub := newObserverHub()
	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()
	a := hub.Subscribe(ctxA)
	b := hub.Subscribe(ctxB)
	require.Equal(t, 2, hub.Subscribers())

	for i := 0; i < 3; i++ {
		hub.Publish(ObserverEvent{UpdatedTransactions: []Transaction{{TransactionIdentifier: string(rune('a' + i))}}})
	}
	for _, ch := range []<-chan ObserverEvent{a, b} {
		for i := 0; i < 3; i++ {
			assert.Equal(t, string(rune('a'+i)), nextEvent(t, ch).TransactionIdentifier)
		}
	}

	cancelA()
	for range a {
	}
	assert.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(ObserverEvent{UpdatedTransactions: []Transaction{{TransactionIdentifier: "z"}}})
	assert.Equal(t, "z", nextEvent(t, b).TransactionIdentifier)
}

type stripeRequest struct {
	path           string
	form           url.Values
	idempotencyKey string
}

// stripeServer fakes the PaymentIntents endpoint.
func stripeServer(t *testing.T, status int, body any) (*httptest.Server, *stripeRequest) {
	t.Helper()
	got := &stripeRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		got.path = r.URL.Path
		got.form = r.PostForm
		got.idempotencyKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestStripeGateway(t *testing.T, srv *httptest.Server, ledger Ledger) *StripeGateway {
	t.Helper()
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	gw, err := NewStripeGateway(NewCatalog(testProduct), ledger, StripeConfig{
		APIKey:        "sk_test_123",
		PaymentMethod: "pm_card_visa",
		Backend:       backend,
	})
	require.NoError(t, err)
	return gw
}

func TestStripeGatewayStatuses(t *testing.T) {
	tests := []struct {
		status string
		want   TransactionState
	}{
		{"succeeded", TransactionPurchased},
		{"processing", TransactionDeferred},
		{"requires_action", TransactionDeferred},
		{"requires_payment_method", TransactionFailed},
		{"canceled", TransactionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			srv, req := stripeServer(t, http.StatusOK, map[string]any{
				"id":     "pi_123",
				"object": "payment_intent",
				"status": tt.status,
			})
			ledger := &memLedger{}
			gw := newTestStripeGateway(t, srv, ledger)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			events := gw.TransactionEvents(ctx)

			require.NoError(t, gw.AddPayment(ctx, Payment{ProductIdentifier: testProduct.ProductIdentifier, Quantity: 2}))
			assert.Equal(t, TransactionPurchasing, nextEvent(t, events).TransactionState)
			settled := nextEvent(t, events)
			assert.Equal(t, tt.want, settled.TransactionState)
			if tt.want == TransactionFailed {
				assert.ErrorIs(t, settled.Error, ErrPaymentDeclined)
			}

			assert.Equal(t, "/v1/payment_intents", req.path)
			assert.Equal(t, "998", req.form.Get("amount"))
			assert.Equal(t, "usd", req.form.Get("currency"))
			assert.Equal(t, "pm_card_visa", req.form.Get("payment_method"))
			assert.Equal(t, "co.arcade.full_game", req.form.Get("metadata[product_identifier]"))
			assert.Equal(t, settled.TransactionIdentifier, req.idempotencyKey)
			assert.Len(t, ledger.recorded(), 1)
		})
	}
}

func TestStripeGatewayAPIError(t *testing.T) {
	srv, _ := stripeServer(t, http.StatusPaymentRequired, map[string]any{
		"error": map[string]any{
			"type":    "card_error",
			"code":    "card_declined",
			"message": "Your card was declined.",
		},
	})
	gw := newTestStripeGateway(t, srv, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := gw.TransactionEvents(ctx)

	require.NoError(t, gw.AddPayment(ctx, Payment{ProductIdentifier: testProduct.ProductIdentifier}))
	nextEvent(t, events)
	settled := nextEvent(t, events)
	assert.Equal(t, TransactionFailed, settled.TransactionState)
	require.Error(t, settled.Error)
	assert.Contains(t, settled.Error.Error(), "Your card was declined.")
}

func TestStripeGatewayCancelAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pi_slow", "object": "payment_intent", "status": "succeeded"})
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ledger := &memLedger{}
	gw := newTestStripeGateway(t, srv, ledger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subCtx, unsubscribe := context.WithCancel(context.Background())
	defer unsubscribe()
	events := gw.TransactionEvents(subCtx)

	errc := make(chan error, 1)
	go func() {
		errc <- gw.AddPayment(ctx, Payment{ProductIdentifier: testProduct.ProductIdentifier})
	}()
	assert.Equal(t, TransactionPurchasing, nextEvent(t, events).TransactionState)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the server")
	}
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("AddPayment did not return after cancel")
	}
	assert.Empty(t, ledger.recorded())
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after cancel: %+v", ev)
	default:
	}
}

func TestNewStripeGatewayRequiresCredentials(t *testing.T) {
	_, err := NewStripeGateway(NewCatalog(), nil, StripeConfig{PaymentMethod: "pm_card_visa"})
	assert.Error(t, err)
	_, err = NewStripeGateway(NewCatalog(), nil, StripeConfig{APIKey: "sk_test_123"})
	assert.Error(t, err)

	gw, err := NewStripeGateway(NewCatalog(), nil, StripeConfig{APIKey: "sk_test_123", PaymentMethod: "pm_card_visa"})
	require.NoError(t, err)
	err = gw.AddPayment(context.Background(), Payment{ProductIdentifier: "co.arcade.full_game"})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}
