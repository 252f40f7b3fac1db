package httpapi

import (
	"github.com/fluxorio/orchestrator/pkg/web"
)

// ListAudit handles GET /audit?table=&record_id=, enriching the
// illustrative §6 table per SPEC_FULL.md's supplemented features.
func (a *API) ListAudit(ctx *web.FastRequestContext) error {
	logs, err := a.svc.ListAuditLog(ctx.Context(), ctx.Query("table"), ctx.Query("record_id"))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(200, map[string]interface{}{"audit_log": logs})
}
