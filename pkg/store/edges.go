package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// CreateEdge inserts a dependency: toNodeID becomes eligible once fromNodeID
// reaches the state named by condition (§3). Self-loops are rejected (§8
// boundary behavior). tx is optional; pass nil to run outside a transaction.
func (s *Store) CreateEdge(ctx context.Context, tx *sql.Tx, workflowID, fromNodeID, toNodeID string, condition EdgeCondition) (*Edge, error) {
	if fromNodeID == toNodeID {
		return nil, apperr.Validation("edge cannot connect a node to itself (%q)", fromNodeID)
	}
	if condition == "" {
		condition = EdgeOnSuccess
	}

	e := &Edge{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		FromNodeID: fromNodeID,
		ToNodeID:   toNodeID,
		Condition:  condition,
		CreatedAt:  time.Now().UTC(),
	}

	exec := execer(s, tx)
	_, err := exec(ctx,
		`INSERT INTO edges (id, workflow_id, from_node_id, to_node_id, condition, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.WorkflowID, e.FromNodeID, e.ToNodeID, e.Condition, e.CreatedAt)
	if err != nil {
		return nil, apperr.Database(err, "insert edge %s->%s", fromNodeID, toNodeID)
	}
	return e, nil
}

// ListEdgesByWorkflow returns every edge in a workflow.
func (s *Store) ListEdgesByWorkflow(ctx context.Context, workflowID string) ([]*Edge, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, workflow_id, from_node_id, to_node_id, condition, created_at FROM edges WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return nil, apperr.Database(err, "list edges for workflow %q", workflowID)
	}
	defer rows.Close()

	var out []*Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.FromNodeID, &e.ToNodeID, &e.Condition, &e.CreatedAt); err != nil {
			return nil, apperr.Database(err, "scan edge row")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ListEdgesFrom returns every edge whose source is fromNodeID, used by the
// output monitor to find dependents of a completed node (§4.6).
func (s *Store) ListEdgesFrom(ctx context.Context, fromNodeID string) ([]*Edge, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, workflow_id, from_node_id, to_node_id, condition, created_at FROM edges WHERE from_node_id = $1`, fromNodeID)
	if err != nil {
		return nil, apperr.Database(err, "list edges from node %q", fromNodeID)
	}
	defer rows.Close()

	var out []*Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.FromNodeID, &e.ToNodeID, &e.Condition, &e.CreatedAt); err != nil {
			return nil, apperr.Database(err, "scan edge row")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteEdge removes a single edge.
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return apperr.Database(err, "delete edge %q", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Resource("edge %q not found", id)
	}
	return nil
}

// CountIncomingEdges returns the number of edges terminating at nodeID,
// used to seed Task.DependencyCount when an execution is enqueued (§4.2).
func (s *Store) CountIncomingEdges(ctx context.Context, nodeID string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE to_node_id = $1`, nodeID).Scan(&count)
	if err != nil {
		return 0, apperr.Database(err, "count incoming edges for node %q", nodeID)
	}
	return count, nil
}
