// Package httpapi exposes the orchestrator's external interfaces (§6) on
// top of pkg/web's fasthttp router: script/workflow/execution CRUD, the
// audit log query surface and worker status, adapted from the teacher's
// server wiring conventions.
package httpapi

import (
	"net/http/httptest"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/observability/prometheus"
	"github.com/fluxorio/orchestrator/pkg/orchestration"
	"github.com/fluxorio/orchestrator/pkg/web"
	"github.com/fluxorio/orchestrator/pkg/web/health"
	"github.com/fluxorio/orchestrator/pkg/web/middleware"
	"github.com/fluxorio/orchestrator/pkg/web/middleware/auth"
	"github.com/fluxorio/orchestrator/pkg/workerpool"
)

// Config controls middleware wiring for NewRouter.
type Config struct {
	JWTSecret    string
	AuthSkipList []string
}

// API groups the dependencies every handler needs.
type API struct {
	svc    *orchestration.Service
	pool   *workerpool.Pool
	logger core.Logger
}

// New builds an API. pool may be nil if worker status reporting is not
// wired in this process (e.g. a pure orchestration-only deployment).
func New(svc *orchestration.Service, pool *workerpool.Pool, logger core.Logger) *API {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &API{svc: svc, pool: pool, logger: logger}
}

// NewRouter builds the full route table behind the teacher's middleware
// stack: recovery, logging, compression, JWT auth, then the handlers.
func NewRouter(api *API, cfg Config) *web.Router {
	r := web.NewRouter()

	skip := append([]string{"/health", "/ready", "/metrics"}, cfg.AuthSkipList...)

	r.Use(
		middleware.Recovery(middleware.DefaultRecoveryConfig()),
		middleware.Logging(middleware.DefaultLoggingConfig()),
		middleware.Compression(middleware.DefaultCompressionConfig()),
	)
	if cfg.JWTSecret != "" {
		jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
		jwtCfg.SkipPaths = skip
		r.Use(auth.JWTAuth(jwtCfg))
	}

	r.GETFast("/health", health.Handler())
	r.GETFast("/ready", health.ReadyHandler())
	r.GETFast("/metrics", prometheusHandler())

	r.POSTFast("/scripts/create", api.CreateScript)
	r.GETFast("/scripts/list", api.ListScripts)
	r.GETFast("/scripts/{id}", api.GetScript)
	r.POSTFast("/scripts/delete/{id}", api.DeleteScript)

	r.POSTFast("/workflows/create", api.CreateWorkflow)
	r.GETFast("/workflows/list", api.ListWorkflows)
	r.GETFast("/workflows/{id}", api.GetWorkflow)
	r.PUTFast("/workflows/update/{id}", api.UpdateWorkflow)
	r.DELETEFast("/workflows/delete/{id}", api.DeleteWorkflow)

	r.POSTFast("/executions/create/{workflow_id}", api.CreateExecution)
	r.POSTFast("/executions/cancel/{id}", api.CancelExecution)
	r.GETFast("/executions/list", api.ListExecutions)
	r.GETFast("/executions/{id}", api.GetExecution)

	r.GETFast("/audit", api.ListAudit)
	r.GETFast("/workers/status", api.WorkersStatus)

	return r
}

// prometheusHandler adapts promhttp's standard net/http handler to the
// fasthttp router by running it against an httptest.ResponseRecorder and
// copying the result through; the teacher's web.Router speaks fasthttp
// only, and client_golang only ships a net/http handler.
func prometheusHandler() web.FastRequestHandler {
	h := promclient.HandlerFor(prometheus.DefaultRegistry, promclient.HandlerOpts{})
	return func(ctx *web.FastRequestContext) error {
		req, err := toStdRequest(ctx)
		if err != nil {
			return ctx.JSON(500, map[string]string{"error": err.Error()})
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		ctx.RequestCtx.SetStatusCode(rec.Code)
		for k, vs := range rec.Header() {
			for _, v := range vs {
				ctx.RequestCtx.Response.Header.Add(k, v)
			}
		}
		ctx.RequestCtx.Write(rec.Body.Bytes())
		return nil
	}
}
