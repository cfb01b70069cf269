// arcade is a terminal arcade whose free games are interrupted, after a few
// plays, by an upgrade interstitial offering the full game.
//
// Usage:
//
//	arcade home              - Main menu: start a game, upgrade, purchase history
//	arcade upgrade           - Show the upgrade interstitial once
//	arcade products          - List the product catalog
//	arcade purchases         - Show recorded transactions
//	arcade config show       - Print the effective server config
//	arcade config publish    - Push the server config into redis
//	arcade serve             - Start SSH server for remote play
//
// Global flags:
//
//	--db <path>              - Set database path (default: ~/.arcade/arcade.db)
//	--config <path>          - Server config YAML (hot reloaded)
//	--catalog <path>         - Product catalog YAML
//	--gateway <name>         - Payment gateway: sandbox or stripe
//	--redis <addr>           - Read server config from redis instead of YAML
//	--log-level <level>      - debug, info, warn or error
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagDBPath         string
	flagConfig         string
	flagCatalog        string
	flagGateway        string
	flagSandboxResult  string
	flagSandboxLatency string
	flagStripeKey      string
	flagStripeMethod   string
	flagRedisAddr      string
	flagRedisKey       string
	flagLogLevel       string
	flagLogFile        string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arcade",
	Short: "TUI Arcade - Play in your terminal, upgrade when you're hooked",
	Long: `TUI Arcade is a terminal-based gaming platform. After a few free games
an upgrade screen offers the full game; it can be dismissed once its
countdown runs out.

Available commands:
  home       - Main menu
  upgrade    - Show the upgrade screen
  products   - List products for sale
  purchases  - Show purchase history
  config     - Inspect or publish the server config
  serve      - Start SSH server for remote play

Examples:
  arcade home
  arcade upgrade --dismissable
  arcade home --gateway sandbox --sandbox-result decline
  arcade serve --ssh :2222 --metrics :9090`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDBPath, "db", "~/.arcade/arcade.db", "Path to database")
	pf.StringVar(&flagConfig, "config", "", "Path to server config YAML (default: search ~/.arcade/configs, ./configs)")
	pf.StringVar(&flagCatalog, "catalog", "", "Path to product catalog YAML (default: search ~/.arcade/configs, ./configs)")
	pf.StringVar(&flagGateway, "gateway", "sandbox", "Payment gateway: sandbox or stripe")
	pf.StringVar(&flagSandboxResult, "sandbox-result", "approve", "Sandbox payment result: approve, decline or defer")
	pf.StringVar(&flagSandboxLatency, "sandbox-latency", "1s", "Delay before the sandbox settles a payment")
	pf.StringVar(&flagStripeKey, "stripe-key", "", "Stripe secret key (default: $STRIPE_SECRET_KEY)")
	pf.StringVar(&flagStripeMethod, "stripe-payment-method", "pm_card_visa", "Stripe payment method charged for purchases")
	pf.StringVar(&flagRedisAddr, "redis", "", "Redis address serving the server config (host:port)")
	pf.StringVar(&flagRedisKey, "redis-key", "", "Redis hash holding the server config")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&flagLogFile, "log-file", "", "Write logs to this file (interactive commands discard logs by default)")

	rootCmd.AddCommand(homeCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(purchasesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}
