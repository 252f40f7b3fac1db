package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// CreateTrigger inserts a trigger bound to workflowID. tx is optional; pass
// nil to run outside a transaction.
func (s *Store) CreateTrigger(ctx context.Context, tx *sql.Tx, workflowID, name, triggerType string, config json.RawMessage) (*Trigger, error) {
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	t := &Trigger{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		Name:        name,
		TriggerType: triggerType,
		Config:      config,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}

	exec := execer(s, tx)
	_, err := exec(ctx,
		`INSERT INTO triggers (id, workflow_id, name, trigger_type, config, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.WorkflowID, t.Name, t.TriggerType, string(t.Config), t.IsActive, t.CreatedAt)
	if err != nil {
		return nil, apperr.Database(err, "insert trigger %q", name)
	}
	return t, nil
}

// GetTrigger loads a trigger by id.
func (s *Store) GetTrigger(ctx context.Context, id string) (*Trigger, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, workflow_id, name, trigger_type, config, is_active, created_at FROM triggers WHERE id = $1`, id)
	return scanTrigger(row)
}

func scanTrigger(row *sql.Row) (*Trigger, error) {
	var t Trigger
	var config string
	if err := row.Scan(&t.ID, &t.WorkflowID, &t.Name, &t.TriggerType, &config, &t.IsActive, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Resource("trigger not found")
		}
		return nil, apperr.Database(err, "scan trigger")
	}
	t.Config = json.RawMessage(config)
	return &t, nil
}

// ListTriggersByWorkflow returns every trigger bound to workflowID.
func (s *Store) ListTriggersByWorkflow(ctx context.Context, workflowID string) ([]*Trigger, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, workflow_id, name, trigger_type, config, is_active, created_at
		 FROM triggers WHERE workflow_id = $1 ORDER BY created_at ASC`, workflowID)
	if err != nil {
		return nil, apperr.Database(err, "list triggers for workflow %q", workflowID)
	}
	defer rows.Close()

	var out []*Trigger
	for rows.Next() {
		var t Trigger
		var config string
		if err := rows.Scan(&t.ID, &t.WorkflowID, &t.Name, &t.TriggerType, &config, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, apperr.Database(err, "scan trigger row")
		}
		t.Config = json.RawMessage(config)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// DeleteTrigger removes a trigger. tx is optional; pass nil to run outside
// a transaction.
func (s *Store) DeleteTrigger(ctx context.Context, tx *sql.Tx, id string) error {
	exec := execer(s, tx)
	res, err := exec(ctx, `DELETE FROM triggers WHERE id = $1`, id)
	if err != nil {
		return apperr.Database(err, "delete trigger %q", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Resource("trigger %q not found", id)
	}
	return nil
}

// SetTriggerActive flips a trigger's is_active flag, used to pause/resume
// a schedule/webhook/file/event source without deleting its configuration.
// tx is optional; pass nil to run outside a transaction.
func (s *Store) SetTriggerActive(ctx context.Context, tx *sql.Tx, id string, active bool) (*Trigger, error) {
	exec := execer(s, tx)
	res, err := exec(ctx, `UPDATE triggers SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return nil, apperr.Database(err, "set trigger %q active=%v", id, active)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Resource("trigger %q not found", id)
	}
	return s.GetTrigger(ctx, id)
}
