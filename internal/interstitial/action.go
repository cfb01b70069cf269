package interstitial

import (
	"github.com/vovakirdan/arcade-interstitial/internal/config"
	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

// Action is an input to Reduce.
type Action interface {
	action()
}

// Task starts the interstitial.
type Task struct{}

// ServerConfigLoaded carries the policy read from remote config.
type ServerConfigLoaded struct {
	Config config.ServerConfig
}

// FullGameProductResponse carries the product fetched from the catalog.
type FullGameProductResponse struct {
	Product storekit.Product
}

// ProductsUnavailable reports that the catalog failed or had no matching product.
type ProductsUnavailable struct {
	Err error
}

// TimerTick is one elapsed second.
type TimerTick struct{}

// UpgradeButtonTapped asks to buy the full game.
type UpgradeButtonTapped struct{}

// PaymentSubmitFailed reports that the gateway refused a payment outright.
type PaymentSubmitFailed struct {
	Err error
}

// PaymentTransaction carries a batch of transaction updates from the gateway.
type PaymentTransaction struct {
	Event storekit.ObserverEvent
}

// MaybeLaterButtonTapped asks to close the interstitial without buying.
type MaybeLaterButtonTapped struct{}

func (Task) action()                    {}
func (ServerConfigLoaded) action()      {}
func (FullGameProductResponse) action() {}
func (ProductsUnavailable) action()     {}
func (TimerTick) action()               {}
func (UpgradeButtonTapped) action()     {}
func (PaymentSubmitFailed) action()     {}
func (PaymentTransaction) action()      {}
func (MaybeLaterButtonTapped) action()  {}
