package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/arcade-interstitial/internal/config"
	"github.com/vovakirdan/arcade-interstitial/internal/platform/tui"
)

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Start the arcade main menu",
	Long: `Start the arcade in interactive menu mode.

"Start a game" offers Solo and Multiplayer. Once you have played the
configured number of free games, starting another one shows the upgrade
screen first; buying or dismissing it both continue to the game.

Controls:
  Up/Down/j/k  - Navigate menu
  Enter/Space  - Select
  Tab          - Purchase history
  Esc/B        - Back
  Q            - Quit

Examples:
  arcade home
  arcade home --config ./configs/server.yaml
  arcade home --gateway sandbox --sandbox-result defer`,
	RunE: runHome,
}

func runHome(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	a.watchConfig(ctx)

	width, height := terminalSize()
	return tui.RunHome(ctx, a.services, width, height)
}

// watchConfig keeps the server config fresh in the background until ctx ends.
func (a *app) watchConfig(ctx context.Context) {
	switch {
	case a.fileSource != nil:
		a.fileSource.OnReload(func(cfg config.ServerConfig) {
			if cfg.UpgradeInterstitial.PlayedGamesTriggerCount == 0 {
				a.logger.Warn("upgrade interstitial now shows before every game")
			}
		})
		go func() {
			if err := a.fileSource.Watch(ctx); err != nil {
				a.logger.Warn("config watch stopped", "error", err)
			}
		}()
	case a.redisSource != nil:
		go a.redisSource.Poll(ctx, configPollInterval, func(err error) {
			a.logger.Warn("config refresh failed", "error", err)
		})
	}
}
