package interstitial

import (
	"time"

	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

// Effect is work Reduce asks the Controller to perform.
type Effect interface {
	effect()
}

// LoadServerConfig reads RemoteConfig. It runs synchronously and its result
// is reduced before any other queued action.
type LoadServerConfig struct{}

// FetchProducts asks the catalog for the given products.
type FetchProducts struct {
	Identifiers []string
}

// StartTimer subscribes to the clock.
type StartTimer struct {
	Interval time.Duration
}

// StopTimer cancels the clock subscription.
type StopTimer struct{}

// ObserveTransactions subscribes to the gateway's transaction events.
type ObserveTransactions struct{}

// AddPayment submits a payment to the gateway.
type AddPayment struct {
	Payment storekit.Payment
}

// Deliver reports the terminal outcome and tears every subscription down.
type Deliver struct {
	Outcome Outcome
}

func (LoadServerConfig) effect()    {}
func (FetchProducts) effect()       {}
func (StartTimer) effect()          {}
func (StopTimer) effect()           {}
func (ObserveTransactions) effect() {}
func (AddPayment) effect()          {}
func (Deliver) effect()             {}
