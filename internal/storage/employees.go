package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"notaspese/internal/audit"
	"notaspese/internal/core"
)

// CreateEmployee validates and persists a new employee, assigning its id.
func (r *SQLiteRepository) CreateEmployee(ctx context.Context, e core.Employee) (core.Employee, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := e.Validate(); err != nil {
		return core.Employee{}, err
	}
	e.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO employees (id, name, age) VALUES (?, ?, ?)",
		e.ID, e.Name, e.Age,
	)
	if err != nil {
		return core.Employee{}, fmt.Errorf("insert employee: %w", err)
	}

	r.emit(ctx, audit.NewEvent(ctx, "employee", e.ID, audit.ActionCreate, employeeChanges(core.Employee{}, e)))
	return e, nil
}

// GetEmployee retrieves an employee by id.
func (r *SQLiteRepository) GetEmployee(ctx context.Context, id string) (core.Employee, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	return getEmployee(ctx, r.db, id)
}

func getEmployee(ctx context.Context, q queryer, id string) (core.Employee, error) {
	var e core.Employee
	err := q.QueryRowContext(ctx,
		"SELECT id, name, age FROM employees WHERE id = ?", id,
	).Scan(&e.ID, &e.Name, &e.Age)
	if err == sql.ErrNoRows {
		return core.Employee{}, ErrNotFound
	}
	if err != nil {
		return core.Employee{}, fmt.Errorf("select employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns all employees ordered by name.
func (r *SQLiteRepository) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, "SELECT id, name, age FROM employees ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("select employees: %w", err)
	}
	defer rows.Close()

	employees := []core.Employee{}
	for rows.Next() {
		var e core.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Age); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

// UpdateEmployee replaces the employee's fields after validation.
func (r *SQLiteRepository) UpdateEmployee(ctx context.Context, e core.Employee) (core.Employee, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	before, err := getEmployee(ctx, r.db, e.ID)
	if err != nil {
		return core.Employee{}, err
	}
	if err := e.Validate(); err != nil {
		return core.Employee{}, err
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE employees SET name = ?, age = ? WHERE id = ?",
		e.Name, e.Age, e.ID,
	)
	if err != nil {
		return core.Employee{}, fmt.Errorf("update employee: %w", err)
	}

	if changes := employeeChanges(before, e); len(changes) > 0 {
		r.emit(ctx, audit.NewEvent(ctx, "employee", e.ID, audit.ActionUpdate, changes))
	}
	return e, nil
}

// DeleteEmployee removes the employee; owned receipts and their items cascade
// within the same transaction.
func (r *SQLiteRepository) DeleteEmployee(ctx context.Context, id string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	before, err := getEmployee(ctx, r.db, id)
	if err != nil {
		return err
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete employee: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.emit(ctx, audit.NewEvent(ctx, "employee", id, audit.ActionDelete, employeeChanges(before, core.Employee{})))
	return nil
}

func employeeChanges(before, after core.Employee) []audit.FieldChange {
	var changes []audit.FieldChange
	if before.Name != after.Name {
		changes = append(changes, audit.FieldChange{Field: "name", Before: before.Name, After: after.Name})
	}
	if before.Age != after.Age {
		changes = append(changes, audit.FieldChange{
			Field:  "age",
			Before: formatAge(before.Age),
			After:  formatAge(after.Age),
		})
	}
	return changes
}

func formatAge(age int) string {
	if age == 0 {
		return ""
	}
	return strconv.Itoa(age)
}
