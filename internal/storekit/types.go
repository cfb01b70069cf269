// Package storekit models the in-app purchase surface of the arcade: the product
// catalog, payments and the transaction events a payment backend reports back.
package storekit

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownProduct is returned when a payment names a product the catalog does not sell.
var ErrUnknownProduct = errors.New("storekit: unknown product")

// Product is a purchasable item as listed by the catalog.
type Product struct {
	ProductIdentifier    string
	LocalizedTitle       string
	LocalizedDescription string
	Price                decimal.Decimal
	PriceLocale          string // e.g. "en_US"
	CurrencyCode         string // ISO 4217, e.g. "USD"
}

// FormattedPrice renders the price for display, e.g. "$4.99" or "4.99 EUR".
func (p Product) FormattedPrice() string {
	amount := p.Price.StringFixed(2)
	switch p.CurrencyCode {
	case "USD", "":
		return "$" + amount
	case "EUR":
		return "€" + amount
	case "GBP":
		return "£" + amount
	default:
		return amount + " " + p.CurrencyCode
	}
}

// MinorUnits returns the price in the currency's smallest unit (cents).
func (p Product) MinorUnits() int64 {
	return p.Price.Shift(2).Round(0).IntPart()
}

// ProductsResponse is the catalog's answer to a product request.
// Identifiers the catalog does not know end up in InvalidProductIdentifiers.
type ProductsResponse struct {
	InvalidProductIdentifiers []string
	Products                  []Product
}

// Payment is a request to buy a product.
type Payment struct {
	ApplicationUsername string
	ProductIdentifier   string
	Quantity            int
}

// TransactionState is the lifecycle stage of a payment transaction.
type TransactionState int

const (
	TransactionPurchasing TransactionState = iota
	TransactionPurchased
	TransactionFailed
	TransactionRestored
	TransactionDeferred
)

// String returns the lowercase name of the state, as stored in the ledger.
func (s TransactionState) String() string {
	switch s {
	case TransactionPurchasing:
		return "purchasing"
	case TransactionPurchased:
		return "purchased"
	case TransactionFailed:
		return "failed"
	case TransactionRestored:
		return "restored"
	case TransactionDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// ParseTransactionState is the inverse of TransactionState.String.
func ParseTransactionState(s string) (TransactionState, error) {
	switch s {
	case "purchasing":
		return TransactionPurchasing, nil
	case "purchased":
		return TransactionPurchased, nil
	case "failed":
		return TransactionFailed, nil
	case "restored":
		return TransactionRestored, nil
	case "deferred":
		return TransactionDeferred, nil
	default:
		return 0, fmt.Errorf("storekit: unknown transaction state %q", s)
	}
}

// Settled reports whether the state grants the product.
func (s TransactionState) Settled() bool {
	return s == TransactionPurchased || s == TransactionRestored
}

// Transaction is the backend's record of a payment attempt.
type Transaction struct {
	Error                 error
	Payment               Payment
	TransactionDate       time.Time
	TransactionIdentifier string
	TransactionState      TransactionState
}

// ObserverEvent is one batch of transaction updates pushed by a gateway.
type ObserverEvent struct {
	UpdatedTransactions []Transaction
}

// Ledger persists transactions reported by a gateway.
type Ledger interface {
	RecordTransaction(tx Transaction) error
}
