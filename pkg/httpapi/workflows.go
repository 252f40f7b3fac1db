package httpapi

import (
	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/orchestration"
	"github.com/fluxorio/orchestrator/pkg/web"
)

// CreateWorkflow handles POST /workflows/create (§6).
func (a *API) CreateWorkflow(ctx *web.FastRequestContext) error {
	var req workflowRequest
	if err := ctx.BindJSON(&req); err != nil {
		return writeError(ctx, apperr.Validation("decode request: %v", err))
	}
	spec, active, err := req.toSpec()
	if err != nil {
		return writeError(ctx, err)
	}

	result, err := a.svc.CreateWorkflow(ctx.Context(), spec)
	if err != nil {
		return writeError(ctx, err)
	}
	if err := a.applyTriggerActivation(ctx, result, active); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(201, newWorkflowResponse(result))
}

// applyTriggerActivation pauses any trigger whose wire payload set
// is_active=false; CreateTrigger itself has no is_active parameter, so
// this is a second pass over the freshly created trigger ids.
func (a *API) applyTriggerActivation(ctx *web.FastRequestContext, result *orchestration.WorkflowResult, active []bool) error {
	for i, id := range result.TriggerIDs {
		if i < len(active) && !active[i] {
			if _, err := a.svc.SetTriggerActive(ctx.Context(), id, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListWorkflows handles GET /workflows/list.
func (a *API) ListWorkflows(ctx *web.FastRequestContext) error {
	workflows, err := a.svc.ListWorkflows(ctx.Context())
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, map[string]interface{}{"workflows": workflows})
}

// GetWorkflow handles GET /workflows/{id}.
func (a *API) GetWorkflow(ctx *web.FastRequestContext) error {
	w, err := a.svc.GetWorkflow(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, w)
}

// UpdateWorkflow handles PUT /workflows/update/{id} (§4.1's
// delete-then-recreate semantics under a fresh id).
func (a *API) UpdateWorkflow(ctx *web.FastRequestContext) error {
	var req workflowRequest
	if err := ctx.BindJSON(&req); err != nil {
		return writeError(ctx, apperr.Validation("decode request: %v", err))
	}
	spec, _, err := req.toSpec()
	if err != nil {
		return writeError(ctx, err)
	}

	result, err := a.svc.UpdateWorkflow(ctx.Context(), ctx.Param("id"), spec)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, newWorkflowResponse(result))
}

// DeleteWorkflow handles DELETE /workflows/delete/{id}.
func (a *API) DeleteWorkflow(ctx *web.FastRequestContext) error {
	id := ctx.Param("id")
	if err := a.svc.DeleteWorkflow(ctx.Context(), id); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, map[string]string{"workflow_id": id})
}
