package http

import (
	"github.com/shopspring/decimal"

	"notaspese/internal/core"
)

// Field names mirror the public API contract: VAT is uppercase, relational
// fields are called employee/project/receipt, project membership is the
// employees list. Decimal fields serialize as strings and accept either a
// JSON string or number on input.

type employeeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// employeeRequest uses pointers so PATCH can tell absent fields from zero
// values. PUT treats absent fields as zero values and lets validation reject
// them.
type employeeRequest struct {
	Name *string `json:"name"`
	Age  *int    `json:"age"`
}

func (req employeeRequest) apply(e *core.Employee) {
	if req.Name != nil {
		e.Name = *req.Name
	}
	if req.Age != nil {
		e.Age = *req.Age
	}
}

func toEmployeeResponse(e core.Employee) employeeResponse {
	return employeeResponse{ID: e.ID, Name: e.Name, Age: e.Age}
}

type projectResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Employees   []string `json:"employees"`
	Total       string   `json:"total"`
}

type projectRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Employees   *[]string `json:"employees"`
}

func (req projectRequest) apply(p *core.Project) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Employees != nil {
		p.EmployeeIDs = *req.Employees
	}
}

func toProjectResponse(p core.Project) projectResponse {
	employees := p.EmployeeIDs
	if employees == nil {
		employees = []string{}
	}
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Employees:   employees,
		Total:       core.FormatAmount(core.ProjectTotal(p.Receipts)),
	}
}

type receiptResponse struct {
	ID           string `json:"id"`
	Employee     string `json:"employee"`
	Project      string `json:"project"`
	Date         string `json:"date"`
	Total        string `json:"total"`
	EmployeeName string `json:"employee_name"`
	ProjectName  string `json:"project_name"`
}

type receiptRequest struct {
	Employee *string `json:"employee"`
	Project  *string `json:"project"`
}

func (req receiptRequest) apply(r *core.Receipt) {
	if req.Employee != nil {
		r.EmployeeID = *req.Employee
	}
	if req.Project != nil {
		r.ProjectID = *req.Project
	}
}

func toReceiptResponse(r core.Receipt) receiptResponse {
	return receiptResponse{
		ID:           r.ID,
		Employee:     r.EmployeeID,
		Project:      r.ProjectID,
		Date:         r.Date.Format("2006-01-02"),
		Total:        core.FormatAmount(core.ReceiptTotal(r.Items)),
		EmployeeName: r.EmployeeName,
		ProjectName:  r.ProjectName,
	}
}

type expenseResponse struct {
	ID       string `json:"id"`
	Receipt  string `json:"receipt"`
	Item     string `json:"item"`
	Price    string `json:"price"`
	VAT      string `json:"VAT"`
	Quantity int64  `json:"quantity"`
	Total    string `json:"total"`
}

type expenseRequest struct {
	Receipt  *string          `json:"receipt"`
	Item     *string          `json:"item"`
	Price    *decimal.Decimal `json:"price"`
	VAT      *decimal.Decimal `json:"VAT"`
	Quantity *int64           `json:"quantity"`
}

// apply copies supplied fields onto it. An absent quantity on a fresh item
// defaults to 1, matching the data model's default.
func (req expenseRequest) apply(it *core.ExpenseItem) {
	if req.Receipt != nil {
		it.ReceiptID = *req.Receipt
	}
	if req.Item != nil {
		it.Item = *req.Item
	}
	if req.Price != nil {
		it.Price = *req.Price
	}
	if req.VAT != nil {
		it.VAT = *req.VAT
	}
	if req.Quantity != nil {
		it.Quantity = *req.Quantity
	}
}

func toExpenseResponse(it core.ExpenseItem) expenseResponse {
	return expenseResponse{
		ID:       it.ID,
		Receipt:  it.ReceiptID,
		Item:     it.Item,
		Price:    it.Price.String(),
		VAT:      it.VAT.String(),
		Quantity: it.Quantity,
		Total:    core.FormatAmount(core.ItemTotal(it)),
	}
}
