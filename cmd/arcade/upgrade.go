package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/arcade-interstitial/internal/platform/tui"
)

var flagDismissable bool

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Show the upgrade screen",
	Long: `Show the upgrade interstitial once, regardless of how many games were played.

Without --dismissable the "maybe later" option unlocks only after the
configured countdown. The outcome is printed on exit.

Examples:
  arcade upgrade
  arcade upgrade --dismissable
  arcade upgrade --sandbox-result decline`,
	RunE: runUpgrade,
}

func init() {
	upgradeCmd.Flags().BoolVar(&flagDismissable, "dismissable", false, "Allow closing before the countdown ends")
}

func runUpgrade(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl, err := a.services.NewInterstitial(flagDismissable)
	if err != nil {
		return err
	}

	width, height := terminalSize()
	outcome, ok, err := tui.RunInterstitial(ctx, ctrl, width, height)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Upgrade screen abandoned.")
		return nil
	}
	fmt.Printf("Outcome: %s\n", outcome)
	return nil
}
