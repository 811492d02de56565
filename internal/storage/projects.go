package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"notaspese/internal/audit"
	"notaspese/internal/core"
)

// CreateProject validates and persists a project together with its employee
// memberships, all inside one transaction.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	p.EmployeeIDs = dedupe(p.EmployeeIDs)
	if err := r.checkEmployeesExist(ctx, p.EmployeeIDs); err != nil {
		return core.Project{}, err
	}
	p.ID = uuid.New().String()

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO projects (id, name, description) VALUES (?, ?, ?)",
			p.ID, p.Name, p.Description,
		)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		for _, employeeID := range p.EmployeeIDs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO project_employees (project_id, employee_id) VALUES (?, ?)",
				p.ID, employeeID,
			)
			if err != nil {
				return fmt.Errorf("insert project membership: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Project{}, err
	}

	r.emit(ctx, audit.NewEvent(ctx, "project", p.ID, audit.ActionCreate, projectChanges(core.Project{}, p)))
	return p, nil
}

// GetProject retrieves a project with its membership and enough receipt/item
// data to compute the derived total without further round trips.
func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (core.Project, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var p core.Project
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Description)
	if err == sql.ErrNoRows {
		return core.Project{}, ErrNotFound
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("select project: %w", err)
	}

	p.EmployeeIDs, err = r.projectMembership(ctx, id)
	if err != nil {
		return core.Project{}, err
	}

	p.Receipts, err = r.scanReceipts(ctx,
		"WHERE r.project_id = ?",
		"WHERE receipt_id IN (SELECT id FROM receipts WHERE project_id = ?)",
		id,
	)
	if err != nil {
		return core.Project{}, err
	}
	return p, nil
}

// ListProjects returns every project with membership and receipt data, loaded
// in a fixed number of queries regardless of project count.
func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, "SELECT id, name, description FROM projects ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	projects := []core.Project{}
	for rows.Next() {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.EmployeeIDs = []string{}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	memberRows, err := r.db.QueryContext(ctx,
		"SELECT project_id, employee_id FROM project_employees ORDER BY employee_id")
	if err != nil {
		return nil, fmt.Errorf("select memberships: %w", err)
	}
	defer memberRows.Close()

	membership := make(map[string][]string)
	for memberRows.Next() {
		var projectID, employeeID string
		if err := memberRows.Scan(&projectID, &employeeID); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		membership[projectID] = append(membership[projectID], employeeID)
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	receipts, err := r.scanReceipts(ctx, "", "")
	if err != nil {
		return nil, err
	}
	byProject := make(map[string][]core.Receipt)
	for _, rec := range receipts {
		byProject[rec.ProjectID] = append(byProject[rec.ProjectID], rec)
	}

	for i := range projects {
		if ids, ok := membership[projects[i].ID]; ok {
			projects[i].EmployeeIDs = ids
		}
		projects[i].Receipts = byProject[projects[i].ID]
	}
	return projects, nil
}

// UpdateProject replaces the project's fields and, when a membership list is
// supplied, replaces the member set by applying the symmetric difference
// between current and requested membership inside one transaction.
func (r *SQLiteRepository) UpdateProject(ctx context.Context, p core.Project) (core.Project, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	before, err := r.GetProject(ctx, p.ID)
	if err != nil {
		return core.Project{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	p.EmployeeIDs = dedupe(p.EmployeeIDs)
	if err := r.checkEmployeesExist(ctx, p.EmployeeIDs); err != nil {
		return core.Project{}, err
	}

	toAdd, toRemove := membershipDiff(before.EmployeeIDs, p.EmployeeIDs)

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE projects SET name = ?, description = ? WHERE id = ?",
			p.Name, p.Description, p.ID,
		)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		for _, employeeID := range toRemove {
			_, err := tx.ExecContext(ctx,
				"DELETE FROM project_employees WHERE project_id = ? AND employee_id = ?",
				p.ID, employeeID,
			)
			if err != nil {
				return fmt.Errorf("remove project membership: %w", err)
			}
		}
		for _, employeeID := range toAdd {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO project_employees (project_id, employee_id) VALUES (?, ?)",
				p.ID, employeeID,
			)
			if err != nil {
				return fmt.Errorf("add project membership: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Project{}, err
	}

	if changes := projectChanges(before, p); len(changes) > 0 {
		r.emit(ctx, audit.NewEvent(ctx, "project", p.ID, audit.ActionUpdate, changes))
	}
	p.Receipts = before.Receipts
	return p, nil
}

// DeleteProject removes the project; its receipts and their items cascade
// within the same transaction.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	before, err := r.GetProject(ctx, id)
	if err != nil {
		return err
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.emit(ctx, audit.NewEvent(ctx, "project", id, audit.ActionDelete, projectChanges(before, core.Project{})))
	return nil
}

func (r *SQLiteRepository) projectMembership(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT employee_id FROM project_employees WHERE project_id = ? ORDER BY employee_id",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("select memberships: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return ids, nil
}

// checkEmployeesExist reports dangling employee references as a validation
// error on the "employees" field.
func (r *SQLiteRepository) checkEmployeesExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM employees WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("select referenced employees: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan referenced employee: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate referenced employees: %w", err)
	}

	verr := core.NewValidationError()
	for _, id := range ids {
		if !found[id] {
			verr.Add("employees", "unknown employee id "+id)
		}
	}
	return verr.OrNil()
}

// membershipDiff computes the symmetric difference between current and
// requested membership.
func membershipDiff(current, requested []string) (toAdd, toRemove []string) {
	have := make(map[string]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	want := make(map[string]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}
	for _, id := range requested {
		if !have[id] {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range current {
		if !want[id] {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func projectChanges(before, after core.Project) []audit.FieldChange {
	var changes []audit.FieldChange
	if before.Name != after.Name {
		changes = append(changes, audit.FieldChange{Field: "name", Before: before.Name, After: after.Name})
	}
	if before.Description != after.Description {
		changes = append(changes, audit.FieldChange{Field: "description", Before: before.Description, After: after.Description})
	}
	beforeMembers := strings.Join(before.EmployeeIDs, ",")
	afterMembers := strings.Join(after.EmployeeIDs, ",")
	if beforeMembers != afterMembers {
		changes = append(changes, audit.FieldChange{Field: "employees", Before: beforeMembers, After: afterMembers})
	}
	return changes
}
