package httpapi

import (
	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/web"
)

// writeError maps an apperr.Kind to the HTTP status codes in §6/§7 and
// writes a JSON error body.
func writeError(ctx *web.FastRequestContext, err error) error {
	status := 500
	if e, ok := err.(*apperr.Error); ok {
		switch e.Kind {
		case apperr.ValidationError:
			status = 400
		case apperr.BusinessLogicError:
			status = 409
		case apperr.ResourceError:
			status = 404
		case apperr.DatabaseError, apperr.SchedulerError, apperr.EngineError:
			status = 500
		}
	}
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}
