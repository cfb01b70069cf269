package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List all products for sale",
	Long:  `Shows every product in the catalog with its price.`,
	RunE:  runProducts,
}

func runProducts(_ *cobra.Command, _ []string) error {
	catalog, err := storekit.LoadCatalog(flagCatalog)
	if err != nil {
		return err
	}
	products := catalog.Products()

	if len(products) == 0 {
		fmt.Println("No products available.")
		return nil
	}

	fmt.Println("Available products:")
	fmt.Println()

	// Calculate column widths
	maxIDLen := 2 // "ID" header
	for _, p := range products {
		if len(p.ProductIdentifier) > maxIDLen {
			maxIDLen = len(p.ProductIdentifier)
		}
	}

	fmt.Printf("  %-*s  %-10s  %s\n", maxIDLen, "ID", "Price", "Title")
	fmt.Printf("  %-*s  %-10s  %s\n", maxIDLen, "--", "-----", "-----")

	for _, p := range products {
		fmt.Printf("  %-*s  %-10s  %s\n", maxIDLen, p.ProductIdentifier, p.FormattedPrice(), p.LocalizedTitle)
	}

	fmt.Println()
	fmt.Println("Run 'arcade upgrade' to buy the full game.")
	return nil
}
