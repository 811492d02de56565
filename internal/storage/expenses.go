package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"notaspese/internal/audit"
	"notaspese/internal/core"
)

// CreateExpenseItem validates the receipt reference and persists a new line
// item.
func (r *SQLiteRepository) CreateExpenseItem(ctx context.Context, it core.ExpenseItem) (core.ExpenseItem, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := it.Validate(); err != nil {
		return core.ExpenseItem{}, err
	}
	if err := r.checkReceiptExists(ctx, it.ReceiptID); err != nil {
		return core.ExpenseItem{}, err
	}
	it.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO expense_items (id, receipt_id, item, price, vat, quantity) VALUES (?, ?, ?, ?, ?, ?)",
		it.ID, it.ReceiptID, it.Item, it.Price.String(), it.VAT.String(), it.Quantity,
	)
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("insert expense item: %w", err)
	}

	r.emit(ctx, audit.NewEvent(ctx, "expense_item", it.ID, audit.ActionCreate, itemChanges(core.ExpenseItem{}, it)))
	return it, nil
}

// GetExpenseItem retrieves a single line item by id.
func (r *SQLiteRepository) GetExpenseItem(ctx context.Context, id string) (core.ExpenseItem, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	items, err := r.scanItems(ctx, "WHERE id = ?", id)
	if err != nil {
		return core.ExpenseItem{}, err
	}
	if len(items) == 0 {
		return core.ExpenseItem{}, ErrNotFound
	}
	return items[0], nil
}

// ListExpenseItems returns every line item.
func (r *SQLiteRepository) ListExpenseItems(ctx context.Context) ([]core.ExpenseItem, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	return r.scanItems(ctx, "")
}

// UpdateExpenseItem replaces the item's fields. Moving the item to another
// receipt is allowed as long as that receipt exists.
func (r *SQLiteRepository) UpdateExpenseItem(ctx context.Context, it core.ExpenseItem) (core.ExpenseItem, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	before, err := r.GetExpenseItem(ctx, it.ID)
	if err != nil {
		return core.ExpenseItem{}, err
	}
	if err := it.Validate(); err != nil {
		return core.ExpenseItem{}, err
	}
	if it.ReceiptID != before.ReceiptID {
		if err := r.checkReceiptExists(ctx, it.ReceiptID); err != nil {
			return core.ExpenseItem{}, err
		}
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE expense_items SET receipt_id = ?, item = ?, price = ?, vat = ?, quantity = ? WHERE id = ?",
		it.ReceiptID, it.Item, it.Price.String(), it.VAT.String(), it.Quantity, it.ID,
	)
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("update expense item: %w", err)
	}

	if changes := itemChanges(before, it); len(changes) > 0 {
		r.emit(ctx, audit.NewEvent(ctx, "expense_item", it.ID, audit.ActionUpdate, changes))
	}
	return it, nil
}

// DeleteExpenseItem removes a single line item; nothing cascades from it.
func (r *SQLiteRepository) DeleteExpenseItem(ctx context.Context, id string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	before, err := r.GetExpenseItem(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM expense_items WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete expense item: %w", err)
	}

	r.emit(ctx, audit.NewEvent(ctx, "expense_item", id, audit.ActionDelete, itemChanges(before, core.ExpenseItem{})))
	return nil
}

func (r *SQLiteRepository) checkReceiptExists(ctx context.Context, receiptID string) error {
	ok, err := exists(ctx, r.db, "receipts", receiptID)
	if err != nil {
		return err
	}
	if !ok {
		verr := core.NewValidationError()
		verr.Add("receipt", "unknown receipt id "+receiptID)
		return verr
	}
	return nil
}

// scanItems loads expense items matching the optional where clause.
func (r *SQLiteRepository) scanItems(ctx context.Context, where string, args ...any) ([]core.ExpenseItem, error) {
	query := "SELECT id, receipt_id, item, price, vat, quantity FROM expense_items " + where + " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select expense items: %w", err)
	}
	defer rows.Close()

	items := []core.ExpenseItem{}
	for rows.Next() {
		var it core.ExpenseItem
		if err := rows.Scan(&it.ID, &it.ReceiptID, &it.Item, &it.Price, &it.VAT, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan expense item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense items: %w", err)
	}
	return items, nil
}

func itemChanges(before, after core.ExpenseItem) []audit.FieldChange {
	var changes []audit.FieldChange
	if before.ReceiptID != after.ReceiptID {
		changes = append(changes, audit.FieldChange{Field: "receipt", Before: before.ReceiptID, After: after.ReceiptID})
	}
	if before.Item != after.Item {
		changes = append(changes, audit.FieldChange{Field: "item", Before: before.Item, After: after.Item})
	}
	if !before.Price.Equal(after.Price) {
		changes = append(changes, audit.FieldChange{Field: "price", Before: before.Price.String(), After: after.Price.String()})
	}
	if !before.VAT.Equal(after.VAT) {
		changes = append(changes, audit.FieldChange{Field: "VAT", Before: before.VAT.String(), After: after.VAT.String()})
	}
	if before.Quantity != after.Quantity {
		changes = append(changes, audit.FieldChange{
			Field:  "quantity",
			Before: strconv.FormatInt(before.Quantity, 10),
			After:  strconv.FormatInt(after.Quantity, 10),
		})
	}
	return changes
}
