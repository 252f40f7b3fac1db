package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// CreateTask inserts a queue row for nodeID within executionID, gated by
// dependencyCount incoming edges (§3, §4.2). A node with no incoming edges
// is created ready and is immediately eligible for dispatch.
func (s *Store) CreateTask(ctx context.Context, tx *sql.Tx, executionID, nodeID string, dependencyCount, priority int, payload json.RawMessage) (*Task, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	status := TaskPending
	if dependencyCount == 0 {
		status = TaskReady
	}
	t := &Task{
		ID:              uuid.NewString(),
		ExecutionID:     executionID,
		NodeID:          nodeID,
		DependencyCount: dependencyCount,
		Priority:        priority,
		Status:          status,
		Payload:         payload,
		CreatedAt:       time.Now().UTC(),
	}

	exec := execer(s, tx)
	_, err := exec(ctx,
		`INSERT INTO execution_queue (id, execution_id, node_id, dependency_count, priority, status, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.ExecutionID, t.NodeID, t.DependencyCount, t.Priority, t.Status, string(t.Payload), t.CreatedAt)
	if err != nil {
		return nil, apperr.Database(err, "insert task for node %q", nodeID)
	}
	return t, nil
}

// DecrementDependencyCount decrements a task's dependency_count by one,
// guarding against going below zero with a conditional UPDATE (§5 shared-
// resource policy), and flips status pending->ready once the count reaches
// zero. Reports whether the task became ready as a result of this call.
func (s *Store) DecrementDependencyCount(ctx context.Context, tx *sql.Tx, taskID string) (ready bool, err error) {
	exec := execer(s, tx)
	if _, err = exec(ctx,
		`UPDATE execution_queue SET dependency_count = dependency_count - 1
		 WHERE id = $1 AND dependency_count > 0`, taskID); err != nil {
		return false, apperr.Database(err, "decrement dependency_count for task %q", taskID)
	}

	res, err := exec(ctx,
		`UPDATE execution_queue SET status = $1 WHERE id = $2 AND dependency_count = 0 AND status = $3`,
		TaskReady, taskID, TaskPending)
	if err != nil {
		return false, apperr.Database(err, "promote task %q to ready", taskID)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// PopReadyTasks selects up to limit ready tasks, ordered (priority desc,
// created_at asc) per §4.4, and deletes them in the same transaction so two
// input monitor workers never dispatch the same row twice.
func (s *Store) PopReadyTasks(ctx context.Context, limit int) ([]*Task, error) {
	var out []*Task
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, execution_id, node_id, dependency_count, priority, status, payload, created_at, dispatched_at
			 FROM execution_queue WHERE status = $1
			 ORDER BY priority DESC, created_at ASC LIMIT $2`, TaskReady, limit)
		if err != nil {
			return apperr.Database(err, "select ready tasks")
		}

		var ids []string
		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				rows.Close()
				return err
			}
			out = append(out, t)
			ids = append(ids, t.ID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return apperr.Database(err, "iterate ready tasks")
		}
		rows.Close()

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM execution_queue WHERE id = $1`, id); err != nil {
				return apperr.Database(err, "delete dispatched task %q", id)
			}
		}
		return nil
	})
	return out, err
}

func scanTask(scanner interface{ Scan(...interface{}) error }) (*Task, error) {
	var t Task
	var payload string
	if err := scanner.Scan(&t.ID, &t.ExecutionID, &t.NodeID, &t.DependencyCount, &t.Priority, &t.Status, &payload, &t.CreatedAt, &t.DispatchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Resource("task not found")
		}
		return nil, apperr.Database(err, "scan task")
	}
	t.Payload = json.RawMessage(payload)
	return &t, nil
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, execution_id, node_id, dependency_count, priority, status, payload, created_at, dispatched_at
		 FROM execution_queue WHERE id = $1`, id)
	return scanTask(row)
}

// ListTasksByExecution returns every still-queued task row belonging to an
// execution (dispatched/terminal tasks are deleted, per §3 lifecycle).
func (s *Store) ListTasksByExecution(ctx context.Context, executionID string) ([]*Task, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, execution_id, node_id, dependency_count, priority, status, payload, created_at, dispatched_at
		 FROM execution_queue WHERE execution_id = $1 ORDER BY created_at ASC`, executionID)
	if err != nil {
		return nil, apperr.Database(err, "list tasks for execution %q", executionID)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTasksByExecution removes every remaining queue row for an execution,
// used by cancel_execution (§4.1).
func (s *Store) DeleteTasksByExecution(ctx context.Context, tx *sql.Tx, executionID string) error {
	exec := execer(s, tx)
	_, err := exec(ctx, `DELETE FROM execution_queue WHERE execution_id = $1`, executionID)
	if err != nil {
		return apperr.Database(err, "delete tasks for execution %q", executionID)
	}
	return nil
}

// FindDependentTaskIDs returns the task ids in the same execution gated on
// nodes that depend on fromNodeID via a "success" edge, used to propagate a
// completed task's result into DecrementDependencyCount calls (§4.6).
func (s *Store) FindDependentTaskIDs(ctx context.Context, executionID, fromNodeID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT q.id
		 FROM execution_queue q
		 JOIN edges e ON e.to_node_id = q.node_id
		 WHERE q.execution_id = $1 AND e.from_node_id = $2 AND e.condition = $3`,
		executionID, fromNodeID, EdgeOnSuccess)
	if err != nil {
		return nil, apperr.Database(err, "find dependent tasks for node %q", fromNodeID)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Database(err, "scan dependent task id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
