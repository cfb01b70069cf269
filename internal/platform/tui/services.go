// Package tui provides the Bubble Tea shell of the arcade: the home menu, the
// upgrade interstitial screen, purchase history and the SSH server that serves them.
package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/arcade-interstitial/internal/clock"
	"github.com/vovakirdan/arcade-interstitial/internal/interstitial"
	"github.com/vovakirdan/arcade-interstitial/internal/metrics"
	"github.com/vovakirdan/arcade-interstitial/internal/storage"
)

// Services are the long-lived collaborators shared by every screen.
type Services struct {
	Store   *storage.Store // optional
	Config  interstitial.RemoteConfig
	Catalog interstitial.ProductCatalog
	Clock   clock.Clock
	// NewGateway returns the payment gateway for one session.
	NewGateway func() (interstitial.PaymentGateway, error)
	Metrics    *metrics.Interstitial // optional
	Logger     *log.Logger
}

func (s *Services) logger() *log.Logger {
	if s.Logger == nil {
		return log.New(io.Discard)
	}
	return s.Logger
}

// NewInterstitial builds a controller for one presentation. The caller must
// Start and eventually Close it.
func (s *Services) NewInterstitial(isDismissable bool, opts ...interstitial.Option) (*interstitial.Controller, error) {
	gateway, err := s.NewGateway()
	if err != nil {
		return nil, fmt.Errorf("cannot create payment gateway: %w", err)
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.System{}
	}

	base := []interstitial.Option{
		interstitial.WithLogger(s.logger().WithPrefix("interstitial")),
		interstitial.WithMetrics(s.Metrics),
	}
	if s.Store != nil {
		base = append(base, interstitial.WithRecorder(s.Store))
	}

	deps := interstitial.Dependencies{
		Clock:   clk,
		Catalog: s.Catalog,
		Gateway: gateway,
		Config:  s.Config,
	}
	return interstitial.New(interstitial.NewState(isDismissable), deps, append(base, opts...)...), nil
}

// Gate records a game start on route and reports whether the upgrade
// interstitial must be shown first.
func (s *Services) Gate(route string) bool {
	if s.Store == nil {
		return false
	}
	cfg := s.Config.Current()
	played, err := s.Store.PlayCount()
	if err != nil {
		s.logger().Warn("could not count plays", "error", err)
		return false
	}
	owned, err := s.Store.HasPurchased(cfg.ProductIdentifiers.FullGame)
	if err != nil {
		s.logger().Warn("could not check entitlement", "error", err)
		return false
	}
	if err := s.Store.RecordPlay(route); err != nil {
		s.logger().Warn("could not record play", "route", route, "error", err)
	}
	return interstitial.ShouldPresent(cfg.UpgradeInterstitial, played, owned)
}
