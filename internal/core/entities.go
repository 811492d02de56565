package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MinEmployeeAge is the youngest age an employee may be registered with.
	MinEmployeeAge = 18

	// MaxNameLength bounds free-text name fields.
	MaxNameLength = 100
)

type (
	// Employee submits receipts and can be staffed on projects.
	Employee struct {
		ID   string
		Name string
		Age  int
	}

	// Project groups receipts and is staffed by zero or more employees.
	// Receipts and EmployeeIDs are populated on read; Total is derived,
	// never stored.
	Project struct {
		ID          string
		Name        string
		Description string
		EmployeeIDs []string
		Receipts    []Receipt
	}

	// Receipt belongs to exactly one employee and one project. The date is
	// assigned by the server at creation. Items are populated on read.
	Receipt struct {
		ID         string
		EmployeeID string
		ProjectID  string
		Date       time.Time
		Items      []ExpenseItem

		// Denormalized for responses, filled by the repository on read.
		EmployeeName string
		ProjectName  string
	}

	// ExpenseItem is a single line on a receipt. VAT is a percentage
	// (24 means 24%, not 0.24).
	ExpenseItem struct {
		ID        string
		ReceiptID string
		Item      string
		Price     decimal.Decimal
		VAT       decimal.Decimal
		Quantity  int64
	}
)

// Validate checks every constraint and reports all violations at once.
func (e Employee) Validate() error {
	verr := NewValidationError()
	if strings.TrimSpace(e.Name) == "" {
		verr.Add("name", "must not be empty")
	}
	if len(e.Name) > MaxNameLength {
		verr.Add("name", "must be at most 100 characters")
	}
	if e.Age < MinEmployeeAge {
		verr.Add("age", "must be at least 18")
	}
	return verr.OrNil()
}

// Validate checks every constraint and reports all violations at once.
func (p Project) Validate() error {
	verr := NewValidationError()
	if strings.TrimSpace(p.Name) == "" {
		verr.Add("name", "must not be empty")
	}
	if len(p.Name) > MaxNameLength {
		verr.Add("name", "must be at most 100 characters")
	}
	return verr.OrNil()
}

// Validate checks every constraint and reports all violations at once.
// Referential existence of employee and project is checked by the repository.
func (r Receipt) Validate() error {
	verr := NewValidationError()
	if strings.TrimSpace(r.EmployeeID) == "" {
		verr.Add("employee", "is required")
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		verr.Add("project", "is required")
	}
	return verr.OrNil()
}

// Validate checks every constraint and reports all violations at once.
func (it ExpenseItem) Validate() error {
	verr := NewValidationError()
	if strings.TrimSpace(it.ReceiptID) == "" {
		verr.Add("receipt", "is required")
	}
	if strings.TrimSpace(it.Item) == "" {
		verr.Add("item", "must not be empty")
	}
	if len(it.Item) > MaxNameLength {
		verr.Add("item", "must be at most 100 characters")
	}
	if it.Price.IsNegative() {
		verr.Add("price", "must not be negative")
	}
	if it.VAT.IsNegative() {
		verr.Add("VAT", "must not be negative")
	}
	if it.Quantity < 0 {
		verr.Add("quantity", "must not be negative")
	}
	return verr.OrNil()
}
