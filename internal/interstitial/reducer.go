package interstitial

import (
	"time"

	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

// TickInterval is the countdown resolution.
const TickInterval = time.Second

const (
	awaitingApprovalMessage = "Purchase is awaiting approval."
	purchaseFailedMessage   = "Purchase failed."
)

// Reduce applies one action to the state. It never blocks and never touches
// the outside world: anything that needs a collaborator comes back as an Effect.
// Once the phase is terminal every action is ignored.
func Reduce(s State, a Action) (State, []Effect) {
	if s.Phase.Terminal() {
		return s, nil
	}

	switch a := a.(type) {
	case Task:
		if s.Phase != PhaseIdle {
			return s, nil
		}
		s.Phase = PhaseLoading
		return s, []Effect{LoadServerConfig{}}

	case ServerConfigLoaded:
		if s.Phase == PhaseIdle || s.configured {
			return s, nil
		}
		return applyServerConfig(s, a)

	case FullGameProductResponse:
		if s.Phase == PhaseIdle {
			return s, nil
		}
		product := a.Product
		s.FullGameProduct = &product
		s.ProductIdentifier = product.ProductIdentifier
		s.ProductUnavailable = false
		if s.Phase == PhaseLoading {
			s.Phase = PhaseReady
		}
		return s, nil

	case ProductsUnavailable:
		if s.Phase == PhaseIdle {
			return s, nil
		}
		s.ProductUnavailable = s.FullGameProduct == nil
		if s.Phase == PhaseLoading {
			s.Phase = PhaseReady
		}
		return s, nil

	case TimerTick:
		if s.Phase == PhaseIdle {
			return s, nil
		}
		if s.StopTickingAtLimit && s.SecondsPassedCount >= s.CountdownLimit {
			return s, nil
		}
		s.SecondsPassedCount++
		if s.StopTickingAtLimit && s.SecondsPassedCount >= s.CountdownLimit {
			return s, []Effect{StopTimer{}}
		}
		return s, nil

	case UpgradeButtonTapped:
		if !s.CanPurchase() {
			return s, nil
		}
		s.IsPurchasing = true
		s.Phase = PhasePurchasing
		s.ErrorMessage = ""
		return s, []Effect{AddPayment{Payment: storekit.Payment{
			ProductIdentifier: s.FullGameProduct.ProductIdentifier,
			Quantity:          1,
		}}}

	case PaymentSubmitFailed:
		if !s.IsPurchasing {
			return s, nil
		}
		s = abortPurchase(s, purchaseFailedMessage)
		if a.Err != nil {
			s.ErrorMessage = a.Err.Error()
		}
		return s, nil

	case PaymentTransaction:
		return applyTransactions(s, a.Event.UpdatedTransactions)

	case MaybeLaterButtonTapped:
		if !s.CanDismiss() {
			return s, nil
		}
		s.Phase = PhaseClosed
		return s, []Effect{Deliver{Outcome: OutcomeClosed}}
	}

	return s, nil
}

func applyServerConfig(s State, a ServerConfigLoaded) (State, []Effect) {
	policy := a.Config.UpgradeInterstitial
	s.configured = true
	s.CountdownLimit = policy.Duration
	s.AllowDismissBeforeLimit = policy.AllowDismissBeforeLimit
	s.StopTickingAtLimit = policy.StopTickingAtLimit
	if s.ProductIdentifier == "" {
		s.ProductIdentifier = a.Config.ProductIdentifiers.FullGame
	}

	effects := []Effect{FetchProducts{Identifiers: []string{s.ProductIdentifier}}}
	if !s.StopTickingAtLimit || s.SecondsPassedCount < s.CountdownLimit {
		effects = append(effects, StartTimer{Interval: TickInterval})
	}
	effects = append(effects, ObserveTransactions{})
	return s, effects
}

func applyTransactions(s State, txs []storekit.Transaction) (State, []Effect) {
	if s.Phase == PhaseIdle {
		return s, nil
	}
	for _, tx := range txs {
		if tx.Payment.ProductIdentifier != s.ProductIdentifier {
			continue
		}
		switch {
		case tx.Error == nil && tx.TransactionState.Settled():
			s.IsPurchasing = false
			s.ErrorMessage = ""
			s.Phase = PhasePurchased
			return s, []Effect{Deliver{Outcome: OutcomeFullGamePurchased}}
		case !s.IsPurchasing:
			// Failures only matter while a purchase is outstanding.
		case tx.Error != nil || tx.TransactionState == storekit.TransactionFailed:
			msg := purchaseFailedMessage
			if tx.Error != nil {
				msg = tx.Error.Error()
			}
			s = abortPurchase(s, msg)
		case tx.TransactionState == storekit.TransactionDeferred:
			s = abortPurchase(s, awaitingApprovalMessage)
		}
	}
	return s, nil
}

func abortPurchase(s State, msg string) State {
	s.IsPurchasing = false
	s.ErrorMessage = msg
	if s.Phase == PhasePurchasing {
		s.Phase = PhaseReady
	}
	return s
}
