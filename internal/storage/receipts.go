package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notaspese/internal/audit"
	"notaspese/internal/core"
)

// CreateReceipt validates the employee and project references and persists a
// new receipt. The date is assigned by the server, never by the client.
func (r *SQLiteRepository) CreateReceipt(ctx context.Context, rec core.Receipt) (core.Receipt, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := rec.Validate(); err != nil {
		return core.Receipt{}, err
	}
	if err := r.checkReceiptRefs(ctx, rec); err != nil {
		return core.Receipt{}, err
	}
	rec.ID = uuid.New().String()
	rec.Date = time.Now().UTC().Truncate(24 * time.Hour)
	rec.Items = []core.ExpenseItem{}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO receipts (id, employee_id, project_id, created_on) VALUES (?, ?, ?, ?)",
		rec.ID, rec.EmployeeID, rec.ProjectID, rec.Date.Format(dateLayout),
	)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}

	r.emit(ctx, audit.NewEvent(ctx, "receipt", rec.ID, audit.ActionCreate, []audit.FieldChange{
		{Field: "employee", After: rec.EmployeeID},
		{Field: "project", After: rec.ProjectID},
		{Field: "date", After: rec.Date.Format(dateLayout)},
	}))

	return r.GetReceipt(ctx, rec.ID)
}

// GetReceipt retrieves a receipt together with its items and the owning
// employee and project names.
func (r *SQLiteRepository) GetReceipt(ctx context.Context, id string) (core.Receipt, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	receipts, err := r.scanReceipts(ctx,
		"WHERE r.id = ?",
		"WHERE receipt_id = ?",
		id,
	)
	if err != nil {
		return core.Receipt{}, err
	}
	if len(receipts) == 0 {
		return core.Receipt{}, ErrNotFound
	}
	return receipts[0], nil
}

// ListReceipts returns every receipt with items eagerly loaded, so computing
// totals never needs a per-receipt query.
func (r *SQLiteRepository) ListReceipts(ctx context.Context) ([]core.Receipt, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	return r.scanReceipts(ctx, "", "")
}

// UpdateReceipt enforces the immutability of a receipt's employee and project
// references: resending the current values is accepted as a no-op, anything
// else is a validation error.
func (r *SQLiteRepository) UpdateReceipt(ctx context.Context, rec core.Receipt) (core.Receipt, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	current, err := r.GetReceipt(ctx, rec.ID)
	if err != nil {
		return core.Receipt{}, err
	}
	if err := rec.Validate(); err != nil {
		return core.Receipt{}, err
	}

	verr := core.NewValidationError()
	if rec.EmployeeID != current.EmployeeID {
		verr.Add("employee", "immutable after creation")
	}
	if rec.ProjectID != current.ProjectID {
		verr.Add("project", "immutable after creation")
	}
	if err := verr.OrNil(); err != nil {
		return core.Receipt{}, err
	}
	return current, nil
}

// DeleteReceipt removes the receipt; its items cascade within the same
// transaction.
func (r *SQLiteRepository) DeleteReceipt(ctx context.Context, id string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	before, err := r.GetReceipt(ctx, id)
	if err != nil {
		return err
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM receipts WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.emit(ctx, audit.NewEvent(ctx, "receipt", id, audit.ActionDelete, []audit.FieldChange{
		{Field: "employee", Before: before.EmployeeID},
		{Field: "project", Before: before.ProjectID},
		{Field: "date", Before: before.Date.Format(dateLayout)},
	}))
	return nil
}

// checkReceiptRefs reports dangling employee/project references as validation
// errors so a receipt can never point at a deleted entity.
func (r *SQLiteRepository) checkReceiptRefs(ctx context.Context, rec core.Receipt) error {
	verr := core.NewValidationError()

	ok, err := exists(ctx, r.db, "employees", rec.EmployeeID)
	if err != nil {
		return err
	}
	if !ok {
		verr.Add("employee", "unknown employee id "+rec.EmployeeID)
	}

	ok, err = exists(ctx, r.db, "projects", rec.ProjectID)
	if err != nil {
		return err
	}
	if !ok {
		verr.Add("project", "unknown project id "+rec.ProjectID)
	}
	return verr.OrNil()
}

// scanReceipts loads receipts (with owner names) and their items in two
// queries. The where clauses filter receipts and items respectively; both
// receive the same args.
func (r *SQLiteRepository) scanReceipts(ctx context.Context, receiptWhere, itemWhere string, args ...any) ([]core.Receipt, error) {
	query := `SELECT r.id, r.employee_id, r.project_id, r.created_on, e.name, p.name
		FROM receipts r
		JOIN employees e ON e.id = r.employee_id
		JOIN projects p ON p.id = r.project_id ` + receiptWhere + `
		ORDER BY r.created_on, r.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select receipts: %w", err)
	}
	defer rows.Close()

	receipts := []core.Receipt{}
	index := make(map[string]int)
	for rows.Next() {
		var rec core.Receipt
		var createdOn string
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.ProjectID, &createdOn, &rec.EmployeeName, &rec.ProjectName); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		rec.Date, err = time.Parse(dateLayout, createdOn)
		if err != nil {
			return nil, fmt.Errorf("parse receipt date %q: %w", createdOn, err)
		}
		rec.Items = []core.ExpenseItem{}
		index[rec.ID] = len(receipts)
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	if len(receipts) == 0 {
		return receipts, nil
	}

	items, err := r.scanItems(ctx, itemWhere, args...)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if i, ok := index[it.ReceiptID]; ok {
			receipts[i].Items = append(receipts[i].Items, it)
		}
	}
	return receipts, nil
}
