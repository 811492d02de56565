package core

import (
	"errors"
	"strings"
	"testing"
)

func TestEmployeeValidate(t *testing.T) {
	cases := []struct {
		name   string
		emp    Employee
		fields []string // expected violated fields, empty means valid
	}{
		{"valid", Employee{Name: "asterios", Age: 23}, nil},
		{"age boundary accepted", Employee{Name: "nikos", Age: 18}, nil},
		{"underage", Employee{Name: "kid", Age: 17}, []string{"age"}},
		{"empty name", Employee{Name: "  ", Age: 30}, []string{"name"}},
		{"all violations reported", Employee{Name: "", Age: 10}, []string{"name", "age"}},
		{"name too long", Employee{Name: strings.Repeat("x", 101), Age: 30}, []string{"name"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.emp.Validate()
			assertViolations(t, err, tc.fields)
		})
	}
}

func TestExpenseItemValidate(t *testing.T) {
	cases := []struct {
		name   string
		item   ExpenseItem
		fields []string
	}{
		{"valid", ExpenseItem{ReceiptID: "r1", Item: "Tool", Price: dec("100"), VAT: dec("24"), Quantity: 1}, nil},
		{"zero price and vat ok", ExpenseItem{ReceiptID: "r1", Item: "Gift", Price: dec("0"), VAT: dec("0"), Quantity: 1}, nil},
		{"negative price", ExpenseItem{ReceiptID: "r1", Item: "Tool", Price: dec("-1"), VAT: dec("24"), Quantity: 1}, []string{"price"}},
		{"negative vat", ExpenseItem{ReceiptID: "r1", Item: "Tool", Price: dec("1"), VAT: dec("-24"), Quantity: 1}, []string{"VAT"}},
		{"negative quantity", ExpenseItem{ReceiptID: "r1", Item: "Tool", Price: dec("1"), VAT: dec("24"), Quantity: -1}, []string{"quantity"}},
		{"missing receipt", ExpenseItem{Item: "Tool", Price: dec("1"), VAT: dec("24"), Quantity: 1}, []string{"receipt"}},
		{"everything wrong", ExpenseItem{Price: dec("-1"), VAT: dec("-1"), Quantity: -1}, []string{"receipt", "item", "price", "VAT", "quantity"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertViolations(t, tc.item.Validate(), tc.fields)
		})
	}
}

func TestReceiptValidate(t *testing.T) {
	if err := (Receipt{EmployeeID: "e", ProjectID: "p"}).Validate(); err != nil {
		t.Fatalf("expected valid receipt, got %v", err)
	}
	assertViolations(t, Receipt{}.Validate(), []string{"employee", "project"})
}

func TestProjectValidate(t *testing.T) {
	if err := (Project{Name: "first project", Description: "d"}).Validate(); err != nil {
		t.Fatalf("expected valid project, got %v", err)
	}
	assertViolations(t, Project{}.Validate(), []string{"name"})
}

func TestValidationErrorOrNil(t *testing.T) {
	verr := NewValidationError()
	if err := verr.OrNil(); err != nil {
		t.Fatalf("empty validation error should be nil, got %v", err)
	}
	verr.Add("age", "must be at least 18")
	err := verr.OrNil()
	if err == nil {
		t.Fatal("expected error after Add")
	}
	if !IsValidation(err) {
		t.Fatal("IsValidation should recognize the error")
	}
}

func assertViolations(t *testing.T, err error, fields []string) {
	t.Helper()
	if len(fields) == 0 {
		if err != nil {
			t.Fatalf("expected valid, got %v", err)
		}
		return
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != len(fields) {
		t.Fatalf("expected %d violated fields, got %v", len(fields), verr.Fields)
	}
	for _, f := range fields {
		if len(verr.Fields[f]) == 0 {
			t.Fatalf("expected violation on %q, got %v", f, verr.Fields)
		}
	}
}
