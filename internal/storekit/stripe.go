package storekit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeConfig configures a StripeGateway.
type StripeConfig struct {
	APIKey string
	// PaymentMethod is the saved payment method charged for every purchase,
	// e.g. "pm_card_visa" in test mode.
	PaymentMethod string
	// Backend overrides the Stripe API backend. Nil uses the default.
	Backend stripe.Backend
	Logger  *log.Logger
	Now     func() time.Time
}

// StripeGateway settles purchases with Stripe PaymentIntents.
type StripeGateway struct {
	catalog *Catalog
	ledger  Ledger
	cfg     StripeConfig
	intents *paymentintent.Client
	hub     *observerHub
}

// NewStripeGateway creates a gateway charging cfg.PaymentMethod through Stripe.
func NewStripeGateway(catalog *Catalog, ledger Ledger, cfg StripeConfig) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("storekit: stripe API key is required")
	}
	if cfg.PaymentMethod == "" {
		return nil, errors.New("storekit: stripe payment method is required")
	}
	if cfg.Backend == nil {
		cfg.Backend = stripe.GetBackend(stripe.APIBackend)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &StripeGateway{
		catalog: catalog,
		ledger:  ledger,
		cfg:     cfg,
		intents: &paymentintent.Client{B: cfg.Backend, Key: cfg.APIKey},
		hub:     newObserverHub(),
	}, nil
}

// TransactionEvents subscribes to transaction updates until ctx is done.
func (g *StripeGateway) TransactionEvents(ctx context.Context) <-chan ObserverEvent {
	return g.hub.Subscribe(ctx)
}

// AddPayment creates and confirms a PaymentIntent for the product.
// Only an unknown product or a cancelled ctx is returned as an error; Stripe
// failures are reported as failed transactions.
func (g *StripeGateway) AddPayment(ctx context.Context, p Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	product, ok := g.catalog.Product(p.ProductIdentifier)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, p.ProductIdentifier)
	}
	if p.Quantity <= 0 {
		p.Quantity = 1
	}

	tx := Transaction{
		Payment:               p,
		TransactionDate:       g.cfg.Now(),
		TransactionIdentifier: uuid.NewString(),
		TransactionState:      TransactionPurchasing,
	}
	g.hub.Publish(ObserverEvent{UpdatedTransactions: []Transaction{tx}})

	currency := product.CurrencyCode
	if currency == "" {
		currency = "USD"
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(product.MinorUnits() * int64(p.Quantity)),
		Currency:      stripe.String(strings.ToLower(currency)),
		PaymentMethod: stripe.String(g.cfg.PaymentMethod),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(product.LocalizedTitle),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(tx.TransactionIdentifier)
	params.AddMetadata("product_identifier", p.ProductIdentifier)
	params.AddMetadata("transaction_identifier", tx.TransactionIdentifier)
	if p.ApplicationUsername != "" {
		params.AddMetadata("application_username", p.ApplicationUsername)
	}

	intent, err := g.intents.New(params)
	if cerr := ctx.Err(); cerr != nil {
		g.cfg.Logger.Warn("stripe payment abandoned",
			"product", p.ProductIdentifier,
			"transaction", tx.TransactionIdentifier,
		)
		return cerr
	}
	if err != nil {
		tx.TransactionState = TransactionFailed
		tx.Error = stripeError(err)
	} else {
		tx.TransactionState, tx.Error = intentState(intent)
	}
	tx.TransactionDate = g.cfg.Now()

	if g.ledger != nil {
		if lerr := g.ledger.RecordTransaction(tx); lerr != nil {
			g.cfg.Logger.Warn("could not record transaction", "transaction", tx.TransactionIdentifier, "error", lerr)
		}
	}
	g.cfg.Logger.Info("stripe payment settled",
		"product", p.ProductIdentifier,
		"transaction", tx.TransactionIdentifier,
		"state", tx.TransactionState,
	)
	g.hub.Publish(ObserverEvent{UpdatedTransactions: []Transaction{tx}})
	return nil
}

// intentState maps a PaymentIntent status onto a transaction state.
func intentState(pi *stripe.PaymentIntent) (TransactionState, error) {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return TransactionPurchased, nil
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresAction:
		return TransactionDeferred, nil
	default:
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			return TransactionFailed, fmt.Errorf("%w: %s", ErrPaymentDeclined, pi.LastPaymentError.Msg)
		}
		return TransactionFailed, fmt.Errorf("%w: payment intent %s", ErrPaymentDeclined, pi.Status)
	}
}

func stripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Errorf("storekit: stripe: %s", se.Msg)
	}
	return fmt.Errorf("storekit: stripe: %w", err)
}
