package httpapi

import (
	"net/http"

	"github.com/fluxorio/orchestrator/pkg/web"
)

// toStdRequest builds a minimal net/http.Request carrying ctx's method and
// path, used only to drive the handful of handlers (the /metrics exporter)
// that are only available as net/http.Handler in the dependency set.
func toStdRequest(ctx *web.FastRequestContext) (*http.Request, error) {
	return http.NewRequest(string(ctx.Method()), string(ctx.Path()), nil)
}
