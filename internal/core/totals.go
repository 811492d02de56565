// Package core holds the domain entities, their validation rules and the
// aggregation engine computing receipt and project totals.
//
// Totals are derived values: they are recomputed from the current children on
// every read and never persisted, so they cannot drift out of sync with the
// underlying items. All monetary arithmetic uses decimals; rounding to the
// currency's two minor-unit digits happens only at the serialization boundary.
package core

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// ItemTotal computes price × (1 + VAT/100) × quantity at full precision.
// A quantity of zero contributes nothing regardless of price and VAT.
func ItemTotal(it ExpenseItem) decimal.Decimal {
	gross := it.Price.Mul(oneHundred.Add(it.VAT)).Div(oneHundred)
	return gross.Mul(decimal.NewFromInt(it.Quantity))
}

// ReceiptTotal sums the item totals of a receipt. A receipt with no items
// totals zero.
func ReceiptTotal(items []ExpenseItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(ItemTotal(it))
	}
	return total
}

// ProjectTotal sums the totals of a project's receipts. A project with no
// receipts totals zero.
func ProjectTotal(receipts []Receipt) decimal.Decimal {
	total := decimal.Zero
	for _, r := range receipts {
		total = total.Add(ReceiptTotal(r.Items))
	}
	return total
}

// FormatAmount renders a derived total for external representation, rounded
// half-up to two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
