package httpapi

import (
	"github.com/fluxorio/orchestrator/pkg/web"
)

// CreateExecution handles POST /executions/create/{workflow_id} (§4.2, §6).
func (a *API) CreateExecution(ctx *web.FastRequestContext) error {
	result, err := a.svc.TriggerWorkflow(ctx.Context(), ctx.Param("workflow_id"))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(201, map[string]interface{}{
		"execution_id":      result.ExecutionID,
		"pending_nodes":     result.PendingCount,
		"pending_nodes_ids": result.TaskIDs,
		"started_at":        result.StartedAt,
	})
}

// CancelExecution handles POST /executions/cancel/{id}.
func (a *API) CancelExecution(ctx *web.FastRequestContext) error {
	id := ctx.Param("id")
	if err := a.svc.CancelExecution(ctx.Context(), id); err != nil {
		return writeError(ctx, err)
	}
	exec, err := a.svc.GetExecution(ctx.Context(), id)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, map[string]interface{}{
		"execution_id":    exec.ID,
		"pending_nodes":   exec.PendingCount,
		"executed_nodes":  exec.ExecutedCount,
		"results":         exec.Results,
		"started_at":      exec.StartedAt,
	})
}

// ListExecutions handles GET /executions/list.
func (a *API) ListExecutions(ctx *web.FastRequestContext) error {
	executions, err := a.svc.ListExecutions(ctx.Context())
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, map[string]interface{}{"executions": executions})
}

// GetExecution handles GET /executions/{id}.
func (a *API) GetExecution(ctx *web.FastRequestContext) error {
	exec, err := a.svc.GetExecution(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, exec)
}
