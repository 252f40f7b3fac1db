package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// CreateNode inserts a node bound to workflowID, optionally to a script. tx
// is optional; pass nil to run outside a transaction.
func (s *Store) CreateNode(ctx context.Context, tx *sql.Tx, workflowID, name, nodeType string, scriptID *string, config json.RawMessage, maxRetries, timeoutSeconds int) (*Node, error) {
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	n := &Node{
		ID:             uuid.NewString(),
		WorkflowID:     workflowID,
		Name:           name,
		NodeType:       nodeType,
		ScriptID:       scriptID,
		Config:         config,
		MaxRetries:     maxRetries,
		TimeoutSeconds: timeoutSeconds,
		CreatedAt:      time.Now().UTC(),
	}

	exec := execer(s, tx)
	_, err := exec(ctx,
		`INSERT INTO nodes (id, workflow_id, name, node_type, script_id, config, max_retries, timeout_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.WorkflowID, n.Name, n.NodeType, n.ScriptID, string(n.Config), n.MaxRetries, n.TimeoutSeconds, n.CreatedAt)
	if err != nil {
		return nil, apperr.Database(err, "insert node %q", name)
	}
	return n, nil
}

func scanNode(scanner interface{ Scan(...interface{}) error }) (*Node, error) {
	var n Node
	var config string
	if err := scanner.Scan(&n.ID, &n.WorkflowID, &n.Name, &n.NodeType, &n.ScriptID, &config, &n.MaxRetries, &n.TimeoutSeconds, &n.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Resource("node not found")
		}
		return nil, apperr.Database(err, "scan node")
	}
	n.Config = json.RawMessage(config)
	return &n, nil
}

// GetNode loads a node by id.
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, workflow_id, name, node_type, script_id, config, max_retries, timeout_seconds, created_at FROM nodes WHERE id = $1`, id)
	return scanNode(row)
}

// GetNodeByName loads a node by its name within a workflow, used to resolve
// placeholder tokens and workflow-JSON edge endpoints (§4.1, §4.3).
func (s *Store) GetNodeByName(ctx context.Context, workflowID, name string) (*Node, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, workflow_id, name, node_type, script_id, config, max_retries, timeout_seconds, created_at
		 FROM nodes WHERE workflow_id = $1 AND name = $2`, workflowID, name)
	return scanNode(row)
}

// ListNodesByWorkflow returns every node in a workflow.
func (s *Store) ListNodesByWorkflow(ctx context.Context, workflowID string) ([]*Node, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, workflow_id, name, node_type, script_id, config, max_retries, timeout_seconds, created_at
		 FROM nodes WHERE workflow_id = $1 ORDER BY created_at ASC`, workflowID)
	if err != nil {
		return nil, apperr.Database(err, "list nodes for workflow %q", workflowID)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNode removes a node; edges referencing it cascade.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return apperr.Database(err, "delete node %q", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Resource("node %q not found", id)
	}
	return nil
}
