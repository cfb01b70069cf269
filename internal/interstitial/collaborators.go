package interstitial

import (
	"context"

	"github.com/vovakirdan/arcade-interstitial/internal/clock"
	"github.com/vovakirdan/arcade-interstitial/internal/config"
	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

// ProductCatalog looks up product metadata.
type ProductCatalog interface {
	FetchProducts(ctx context.Context, ids []string) (storekit.ProductsResponse, error)
}

// PaymentGateway submits payments and reports their progress.
// AddPayment returns once the payment is accepted; its outcome arrives on
// TransactionEvents. The events channel must be closed when ctx is done.
type PaymentGateway interface {
	AddPayment(ctx context.Context, p storekit.Payment) error
	TransactionEvents(ctx context.Context) <-chan storekit.ObserverEvent
}

// RemoteConfig supplies the server-driven interstitial policy.
type RemoteConfig interface {
	Current() config.ServerConfig
}

// Dependencies are the collaborators a Controller drives.
type Dependencies struct {
	Clock   clock.Clock
	Catalog ProductCatalog
	Gateway PaymentGateway
	Config  RemoteConfig
}

var (
	_ ProductCatalog = (*storekit.Catalog)(nil)
	_ PaymentGateway = (*storekit.SandboxGateway)(nil)
	_ PaymentGateway = (*storekit.StripeGateway)(nil)
	_ RemoteConfig   = config.Static{}
	_ RemoteConfig   = (*config.FileSource)(nil)
	_ RemoteConfig   = (*config.RedisSource)(nil)
)
