package storekit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// SandboxResult selects how the sandbox gateway settles payments.
type SandboxResult string

const (
	SandboxApprove SandboxResult = "approve"
	SandboxDecline SandboxResult = "decline"
	SandboxDefer   SandboxResult = "defer"
)

// ErrPaymentDeclined is attached to failed sandbox transactions.
var ErrPaymentDeclined = errors.New("storekit: payment declined")

// ParseSandboxResult validates a sandbox result name.
func ParseSandboxResult(s string) (SandboxResult, error) {
	switch r := SandboxResult(s); r {
	case SandboxApprove, SandboxDecline, SandboxDefer:
		return r, nil
	case "":
		return SandboxApprove, nil
	default:
		return "", fmt.Errorf("storekit: unknown sandbox result %q (want approve, decline or defer)", s)
	}
}

// SandboxConfig configures a SandboxGateway.
type SandboxConfig struct {
	Result SandboxResult
	// Latency is the pause between the purchasing and the settling event.
	Latency time.Duration
	Logger  *log.Logger
	Now     func() time.Time
}

// SandboxGateway is a local payment gateway that never talks to a real backend.
// It reports a purchasing transaction followed by the configured result.
type SandboxGateway struct {
	catalog *Catalog
	ledger  Ledger
	cfg     SandboxConfig
	hub     *observerHub
}

// NewSandboxGateway creates a sandbox gateway selling the catalog's products.
// ledger may be nil.
func NewSandboxGateway(catalog *Catalog, ledger Ledger, cfg SandboxConfig) *SandboxGateway {
	if cfg.Result == "" {
		cfg.Result = SandboxApprove
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SandboxGateway{
		catalog: catalog,
		ledger:  ledger,
		cfg:     cfg,
		hub:     newObserverHub(),
	}
}

// TransactionEvents subscribes to transaction updates until ctx is done.
func (g *SandboxGateway) TransactionEvents(ctx context.Context) <-chan ObserverEvent {
	return g.hub.Subscribe(ctx)
}

// AddPayment queues a payment. The outcome is reported through TransactionEvents.
func (g *SandboxGateway) AddPayment(ctx context.Context, p Payment) error {
	if _, ok := g.catalog.Product(p.ProductIdentifier); !ok {
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

	if g.cfg.Latency > 0 {
		select {
		case <-time.After(g.cfg.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	switch g.cfg.Result {
	case SandboxDecline:
		tx.TransactionState = TransactionFailed
		tx.Error = ErrPaymentDeclined
	case SandboxDefer:
		tx.TransactionState = TransactionDeferred
	default:
		tx.TransactionState = TransactionPurchased
	}
	tx.TransactionDate = g.cfg.Now()

	if g.ledger != nil {
		if err := g.ledger.RecordTransaction(tx); err != nil {
			g.cfg.Logger.Warn("could not record transaction", "transaction", tx.TransactionIdentifier, "error", err)
		}
	}

	g.cfg.Logger.Info("sandbox payment settled",
		"product", p.ProductIdentifier,
		"transaction", tx.TransactionIdentifier,
		"state", tx.TransactionState,
	)
	g.hub.Publish(ObserverEvent{UpdatedTransactions: []Transaction{tx}})
	return nil
}
