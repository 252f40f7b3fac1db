package orchestration

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// EnqueueResult is what trigger_workflow returns (§4.2 step 5).
type EnqueueResult struct {
	ExecutionID  string
	PendingCount int
	TaskIDs      []string
	StartedAt    time.Time
}

// TriggerWorkflow is the entry point to the scheduling pipeline (§4.2): it
// resolves the workflow and its nodes and computes each node's
// dependency_count from its incoming edges, then creates the Execution row
// and one Task per node in a single transaction. A workflow with no nodes
// is rejected with a BusinessLogicError.
func (svc *Service) TriggerWorkflow(ctx context.Context, workflowID string) (*EnqueueResult, error) {
	w, err := svc.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	nodes, err := svc.store.ListNodesByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, apperr.BusinessLogic("workflow %q has no nodes", workflowID)
	}

	depCounts := make([]int, len(nodes))
	for i, n := range nodes {
		c, err := svc.store.CountIncomingEdges(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		depCounts[i] = c
	}

	var result *EnqueueResult
	err = svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		exec, err := svc.store.CreateExecution(ctx, tx, workflowID, len(nodes))
		if err != nil {
			return err
		}

		taskIDs := make([]string, 0, len(nodes))
		for i, n := range nodes {
			task, err := svc.store.CreateTask(ctx, tx, exec.ID, n.ID, depCounts[i], w.Priority, n.Config)
			if err != nil {
				return err
			}
			taskIDs = append(taskIDs, task.ID)
		}

		result = &EnqueueResult{
			ExecutionID:  exec.ID,
			PendingCount: exec.PendingCount,
			TaskIDs:      taskIDs,
			StartedAt:    *exec.StartedAt,
		}
		return svc.store.InsertAuditLog(ctx, tx, "executions", exec.ID, "create", nil, exec, actorFromContext(ctx))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// nodeResult is one entry of the aggregated per-node results map (§4.6).
type nodeResult struct {
	Status    store.OutputStatus `json:"status"`
	Result    json.RawMessage    `json:"result"`
	Error     *string            `json:"error"`
	Timestamp *time.Time         `json:"timestamp"`
}

// CancelExecution implements §4.1's cancel_execution and is idempotent at
// this layer (§8 property 6): cancelling an already-terminal execution is a
// successful no-op rather than an error, even though the store layer's
// conditional UPDATE alone would reject a second call.
func (svc *Service) CancelExecution(ctx context.Context, executionID string) error {
	exec, err := svc.store.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	if !canCancel(exec.Status) {
		return nil
	}

	nodes, err := svc.store.ListNodesByWorkflow(ctx, exec.WorkflowID)
	if err != nil {
		return err
	}
	outputs, err := svc.store.ListOutputsByExecution(ctx, executionID)
	if err != nil {
		return err
	}
	byNode := make(map[string]*store.ExecutionOutput, len(outputs))
	for _, o := range outputs {
		byNode[o.NodeID] = o
	}

	now := time.Now().UTC()
	results := make(map[string]nodeResult, len(nodes))
	for _, n := range nodes {
		if o, ok := byNode[n.ID]; ok {
			results[n.ID] = nodeResult{Status: o.Status, Result: o.Result, Error: o.ErrorMessage, Timestamp: o.EndedAt}
		} else {
			results[n.ID] = nodeResult{Status: store.OutputCancelled, Result: nil, Error: nil, Timestamp: &now}
		}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return apperr.Validation("marshal cancelled results: %v", err)
	}

	return svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := svc.store.DeleteTasksByExecution(ctx, tx, executionID); err != nil {
			return err
		}
		if err := svc.store.CancelExecution(ctx, tx, executionID, resultsJSON); err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "executions", executionID, "update", exec, resultsJSON, actorFromContext(ctx))
	})
}

// GetExecution is a read-through to the store.
func (svc *Service) GetExecution(ctx context.Context, id string) (*store.Execution, error) {
	return svc.store.GetExecution(ctx, id)
}

// ListExecutions returns every execution across all workflows.
func (svc *Service) ListExecutions(ctx context.Context) ([]*store.Execution, error) {
	return svc.store.ListExecutions(ctx)
}

// ListExecutionsByWorkflow returns every execution of workflowID.
func (svc *Service) ListExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*store.Execution, error) {
	return svc.store.ListExecutionsByWorkflow(ctx, workflowID)
}
