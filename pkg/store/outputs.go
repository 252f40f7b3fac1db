package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// InsertOutput records a node's terminal result within an execution (§4.6).
// startedAt/endedAt default to now when the worker didn't supply them.
func (s *Store) InsertOutput(ctx context.Context, tx *sql.Tx, executionID, nodeID, taskID string, status OutputStatus, result json.RawMessage, errMsg *string, startedAt, endedAt *time.Time) (*ExecutionOutput, error) {
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}
	now := time.Now().UTC()
	if startedAt == nil {
		startedAt = &now
	}
	if endedAt == nil {
		endedAt = &now
	}
	o := &ExecutionOutput{
		ID:           uuid.NewString(),
		ExecutionID:  executionID,
		NodeID:       nodeID,
		TaskID:       taskID,
		Status:       status,
		Result:       result,
		ErrorMessage: errMsg,
		StartedAt:    startedAt,
		EndedAt:      endedAt,
		CreatedAt:    now,
	}

	exec := execer(s, tx)
	_, err := exec(ctx,
		`INSERT INTO execution_outputs (id, execution_id, node_id, task_id, status, result, error_message, started_at, ended_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.ExecutionID, o.NodeID, o.TaskID, o.Status, string(o.Result), o.ErrorMessage, o.StartedAt, o.EndedAt, o.CreatedAt)
	if err != nil {
		return nil, apperr.Database(err, "insert output for task %q", taskID)
	}
	return o, nil
}

func scanOutput(scanner interface{ Scan(...interface{}) error }) (*ExecutionOutput, error) {
	var o ExecutionOutput
	var result string
	if err := scanner.Scan(&o.ID, &o.ExecutionID, &o.NodeID, &o.TaskID, &o.Status, &result, &o.ErrorMessage, &o.StartedAt, &o.EndedAt, &o.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Resource("output not found")
		}
		return nil, apperr.Database(err, "scan output")
	}
	o.Result = json.RawMessage(result)
	return &o, nil
}

// ListOutputsByExecution returns every recorded output for an execution.
func (s *Store) ListOutputsByExecution(ctx context.Context, executionID string) ([]*ExecutionOutput, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, execution_id, node_id, task_id, status, result, error_message, started_at, ended_at, created_at
		 FROM execution_outputs WHERE execution_id = $1 ORDER BY created_at ASC`, executionID)
	if err != nil {
		return nil, apperr.Database(err, "list outputs for execution %q", executionID)
	}
	defer rows.Close()

	var out []*ExecutionOutput
	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListOutputsByNodes returns the outputs recorded for a set of node ids
// within an execution, used by the placeholder resolver's bulk mode (§4.3):
// one query covering the whole batch instead of one per task.
func (s *Store) ListOutputsByNodes(ctx context.Context, executionID string, nodeIDs []string) ([]*ExecutionOutput, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]interface{}, 0, len(nodeIDs)+1)
	placeholders = append(placeholders, executionID)
	clause := ""
	for i, id := range nodeIDs {
		if i > 0 {
			clause += ", "
		}
		clause += placeholderClause("$", i+2)
		placeholders = append(placeholders, id)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, execution_id, node_id, task_id, status, result, error_message, started_at, ended_at, created_at
		 FROM execution_outputs WHERE execution_id = $1 AND node_id IN (`+clause+`)`, placeholders...)
	if err != nil {
		return nil, apperr.Database(err, "list outputs by nodes for execution %q", executionID)
	}
	defer rows.Close()

	var out []*ExecutionOutput
	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetOutputByNode returns a node's recorded output within an execution.
func (s *Store) GetOutputByNode(ctx context.Context, executionID, nodeID string) (*ExecutionOutput, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, execution_id, node_id, task_id, status, result, error_message, started_at, ended_at, created_at
		 FROM execution_outputs WHERE execution_id = $1 AND node_id = $2`, executionID, nodeID)
	return scanOutput(row)
}
