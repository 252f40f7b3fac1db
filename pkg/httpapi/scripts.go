package httpapi

import (
	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/web"
)

// CreateScript handles POST /scripts/create (§6).
func (a *API) CreateScript(ctx *web.FastRequestContext) error {
	var req scriptCreateRequest
	if err := ctx.BindJSON(&req); err != nil {
		return writeError(ctx, apperr.Validation("decode request: %v", err))
	}

	sc, err := a.svc.CreateScript(ctx.Context(), req.Name, req.Path, req.Language, req.InputSchema, req.OutputSchema)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(201, map[string]interface{}{
		"script_id":      sc.ID,
		"absolute_path":  sc.Path,
		"created_at":     sc.CreatedAt,
	})
}

// ListScripts handles GET /scripts/list.
func (a *API) ListScripts(ctx *web.FastRequestContext) error {
	scripts, err := a.svc.ListScripts(ctx.Context())
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, map[string]interface{}{"scripts": scripts})
}

// GetScript handles GET /scripts/{id}.
func (a *API) GetScript(ctx *web.FastRequestContext) error {
	// include_content is accepted for wire compatibility but unused: script
	// file contents are managed on disk by the caller, out of scope (§1).
	sc, err := a.svc.GetScript(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, sc)
}

// DeleteScript handles POST /scripts/delete/{id}.
func (a *API) DeleteScript(ctx *web.FastRequestContext) error {
	id := ctx.Param("id")
	sc, err := a.svc.GetScript(ctx.Context(), id)
	if err != nil {
		return writeError(ctx, err)
	}
	if err := a.svc.DeleteScript(ctx.Context(), id); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(202, map[string]string{"script_id": id, "script_name": sc.Name})
}
