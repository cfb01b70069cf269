package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/arcade-interstitial/internal/storage"
)

var flagPurchasesLimit int

var purchasesCmd = &cobra.Command{
	Use:   "purchases",
	Short: "Show purchase history",
	Long: `Display the most recent transactions recorded by the payment gateway,
followed by how upgrade screens ended.

Examples:
  arcade purchases
  arcade purchases --limit 50`,
	RunE: runPurchases,
}

func init() {
	purchasesCmd.Flags().IntVar(&flagPurchasesLimit, "limit", 20, "Number of transactions to show")
}

func runPurchases(_ *cobra.Command, _ []string) error {
	store, err := storage.Open(flagDBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	txs, err := store.Transactions(flagPurchasesLimit)
	if err != nil {
		return fmt.Errorf("retrieving transactions: %w", err)
	}

	fmt.Println("Purchases")
	fmt.Println()

	if len(txs) == 0 {
		fmt.Println("No purchases recorded yet.")
	} else {
		fmt.Printf("  %-19s  %-28s  %-10s  %s\n", "Date", "Product", "State", "Transaction")
		fmt.Printf("  %-19s  %-28s  %-10s  %s\n", "----", "-------", "-----", "-----------")
		for _, tx := range txs {
			fmt.Printf("  %-19s  %-28s  %-10s  %s\n",
				tx.TransactionDate.Format("2006-01-02 15:04:05"),
				tx.ProductIdentifier,
				tx.State,
				tx.TransactionIdentifier,
			)
			if tx.Error != "" {
				fmt.Printf("  %-19s  error: %s\n", "", tx.Error)
			}
		}
	}

	stats, err := store.PresentationStats()
	if err != nil {
		return fmt.Errorf("retrieving presentation stats: %w", err)
	}
	played, err := store.PlayCount()
	if err != nil {
		return fmt.Errorf("counting plays: %w", err)
	}

	fmt.Println()
	fmt.Printf("Games started: %d\n", played)
	for _, s := range stats {
		fmt.Printf("Upgrade screen %-9s %3d times, avg %.1fs, last %s\n",
			s.Outcome+":", s.Count, s.AvgSeconds, s.LastPresented.Format("2006-01-02 15:04"))
	}
	return nil
}
