package interstitial

import (
	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

// Phase is the coarse state of the interstitial.
type Phase int

const (
	PhaseIdle       Phase = iota // constructed, not started
	PhaseLoading                 // started, waiting for the catalog
	PhaseReady                   // catalog answered, no purchase outstanding
	PhasePurchasing              // a payment is outstanding
	PhasePurchased               // terminal
	PhaseClosed                  // terminal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhasePurchasing:
		return "purchasing"
	case PhasePurchased:
		return "purchased"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends the lifecycle.
func (p Phase) Terminal() bool {
	return p == PhasePurchased || p == PhaseClosed
}

// Outcome is what the interstitial reports to whoever presented it.
type Outcome int

const (
	OutcomeFullGamePurchased Outcome = iota + 1
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFullGamePurchased:
		return "purchased"
	case OutcomeClosed:
		return "closed"
	default:
		return "none"
	}
}

// State is everything the interstitial knows. It is owned by one Controller
// and only ever changed by Reduce.
type State struct {
	Phase Phase

	// ProductIdentifier is the full-game product. Empty means "take it from
	// the server config".
	ProductIdentifier  string
	FullGameProduct    *storekit.Product
	ProductUnavailable bool

	SecondsPassedCount int
	IsPurchasing       bool
	IsDismissable      bool

	CountdownLimit          int
	AllowDismissBeforeLimit bool
	StopTickingAtLimit      bool

	// ErrorMessage describes the last failed purchase attempt.
	ErrorMessage string

	configured bool
}

// NewState returns an idle interstitial. isDismissable lets the player
// close it without waiting for the countdown.
func NewState(isDismissable bool) State {
	return State{IsDismissable: isDismissable}
}

// CanDismiss reports whether "maybe later" is currently allowed.
func (s State) CanDismiss() bool {
	if s.Phase == PhaseIdle || s.Phase.Terminal() {
		return false
	}
	if s.IsDismissable {
		return true
	}
	if !s.configured {
		return false
	}
	return s.AllowDismissBeforeLimit || s.SecondsPassedCount >= s.CountdownLimit
}

// CanPurchase reports whether the upgrade button does anything.
func (s State) CanPurchase() bool {
	return s.Phase == PhaseReady && s.FullGameProduct != nil && !s.IsPurchasing
}

// SecondsRemaining is the countdown left before dismissal unlocks; zero once unlocked.
func (s State) SecondsRemaining() int {
	if r := s.CountdownLimit - s.SecondsPassedCount; r > 0 {
		return r
	}
	return 0
}
