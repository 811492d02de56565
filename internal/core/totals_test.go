package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestItemTotal(t *testing.T) {
	cases := []struct {
		price, vat string
		qty        int64
		want       string
	}{
		{"100", "24", 1, "124.00"},
		{"200", "14", 1, "228.00"},
		{"100", "24", 3, "372.00"},
		{"9.99", "0", 2, "19.98"},
		{"100", "24", 0, "0.00"}, // zero quantity contributes nothing
		{"0", "24", 5, "0.00"},
		{"10.01", "23.5", 1, "12.36"}, // 12.36235 rounds at output only
	}
	for i, tc := range cases {
		it := ExpenseItem{Item: "x", Price: dec(tc.price), VAT: dec(tc.vat), Quantity: tc.qty}
		got := FormatAmount(ItemTotal(it))
		if got != tc.want {
			t.Fatalf("case %d: price=%s vat=%s qty=%d: got %s, want %s", i, tc.price, tc.vat, tc.qty, got, tc.want)
		}
	}
}

func TestReceiptTotal(t *testing.T) {
	items := []ExpenseItem{
		{Item: "Tool", Price: dec("100"), VAT: dec("24"), Quantity: 1},
		{Item: "Tool", Price: dec("200"), VAT: dec("14"), Quantity: 1},
	}
	if got := FormatAmount(ReceiptTotal(items)); got != "352.00" {
		t.Fatalf("receipt total: got %s, want 352.00", got)
	}
	if got := FormatAmount(ReceiptTotal(nil)); got != "0.00" {
		t.Fatalf("empty receipt total: got %s, want 0.00", got)
	}
}

func TestReceiptTotalKeepsFullPrecision(t *testing.T) {
	// Two items whose totals each carry a sub-cent fraction: rounding must
	// happen after summation, not per item.
	items := []ExpenseItem{
		{Item: "a", Price: dec("0.01"), VAT: dec("24"), Quantity: 1},  // 0.0124
		{Item: "b", Price: dec("0.01"), VAT: dec("24"), Quantity: 1},  // 0.0124
	}
	total := ReceiptTotal(items)
	if !total.Equal(dec("0.0248")) {
		t.Fatalf("internal sum should keep full precision, got %s", total)
	}
	if got := FormatAmount(total); got != "0.02" {
		t.Fatalf("rounded total: got %s, want 0.02", got)
	}
}

func TestProjectTotal(t *testing.T) {
	receipts := []Receipt{
		{Items: []ExpenseItem{
			{Item: "Tool", Price: dec("100"), VAT: dec("24"), Quantity: 1},
			{Item: "Tool", Price: dec("200"), VAT: dec("14"), Quantity: 1},
		}},
	}
	if got := FormatAmount(ProjectTotal(receipts)); got != "352.00" {
		t.Fatalf("project total: got %s, want 352.00", got)
	}
	if got := FormatAmount(ProjectTotal(nil)); got != "0.00" {
		t.Fatalf("empty project total: got %s, want 0.00", got)
	}
}
