package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// CreateWorkflow inserts a new workflow row in status draft. tx is optional;
// pass nil to run outside a transaction (pkg/orchestration passes one so the
// workflow row, its nodes, edges and triggers commit atomically, §4.1).
func (s *Store) CreateWorkflow(ctx context.Context, tx *sql.Tx, name, description string, priority int) (*Workflow, error) {
	now := time.Now().UTC()
	w := &Workflow{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      WorkflowDraft,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	exec := execer(s, tx)
	_, err := exec(ctx,
		`INSERT INTO workflows (id, name, description, status, priority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.Name, w.Description, w.Status, w.Priority, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return nil, apperr.Database(err, "insert workflow %q", name)
	}
	return w, nil
}

// GetWorkflow loads a workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, description, status, priority, created_at, updated_at FROM workflows WHERE id = $1`, id)
	return scanWorkflow(row)
}

// GetWorkflowByName loads a workflow by its unique name.
func (s *Store) GetWorkflowByName(ctx context.Context, name string) (*Workflow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, description, status, priority, created_at, updated_at FROM workflows WHERE name = $1`, name)
	return scanWorkflow(row)
}

func scanWorkflow(row *sql.Row) (*Workflow, error) {
	var w Workflow
	if err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Status, &w.Priority, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Resource("workflow not found")
		}
		return nil, apperr.Database(err, "scan workflow")
	}
	return &w, nil
}

// ListWorkflows returns every workflow, newest first.
func (s *Store) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, description, status, priority, created_at, updated_at FROM workflows ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperr.Database(err, "list workflows")
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		var w Workflow
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.Status, &w.Priority, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, apperr.Database(err, "scan workflow row")
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// UpdateWorkflow updates name/description/status/priority and bumps updated_at.
func (s *Store) UpdateWorkflow(ctx context.Context, id, name, description string, status WorkflowStatus, priority int) (*Workflow, error) {
	now := time.Now().UTC()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE workflows SET name = $1, description = $2, status = $3, priority = $4, updated_at = $5 WHERE id = $6`,
		name, description, status, priority, now, id)
	if err != nil {
		return nil, apperr.Database(err, "update workflow %q", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Resource("workflow %q not found", id)
	}
	return s.GetWorkflow(ctx, id)
}

// DeleteWorkflow removes a workflow and, via ON DELETE CASCADE, its nodes,
// edges and triggers. The executions foreign key has no cascade, so
// executions are not removed with it. Callers (pkg/orchestration) must first
// check for active executions (§3 invariant 6) — this layer only performs
// the mechanical delete. tx is optional; pass nil to run outside a
// transaction.
func (s *Store) DeleteWorkflow(ctx context.Context, tx *sql.Tx, id string) error {
	exec := execer(s, tx)
	res, err := exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return apperr.Database(err, "delete workflow %q", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Resource("workflow %q not found", id)
	}
	return nil
}

// HasActiveExecutions reports whether any execution of workflowID is still
// pending or running (§3 invariant 6, §4.1 delete_workflow).
func (s *Store) HasActiveExecutions(ctx context.Context, workflowID string) (bool, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM executions WHERE workflow_id = $1 AND status IN ($2, $3)`,
		workflowID, ExecutionPending, ExecutionRunning).Scan(&count)
	if err != nil {
		return false, apperr.Database(err, "count active executions for workflow %q", workflowID)
	}
	return count > 0, nil
}
