package httpapi

import (
	"github.com/fluxorio/orchestrator/pkg/web"
)

// workerStatus is one worker's reported load, grounded in §4.5.3's
// sampling design (SPEC_FULL.md supplemented features).
type workerStatus struct {
	WorkerIndex  int   `json:"worker_index"`
	ThreadCount  int64 `json:"thread_count"`
}

// WorkersStatus handles GET /workers/status.
func (a *API) WorkersStatus(ctx *web.FastRequestContext) error {
	if a.pool == nil {
		return ctx.JSON(200, map[string]interface{}{"workers": []workerStatus{}, "worker_count": 0})
	}
	counts := a.pool.ThreadCounts()
	workers := make([]workerStatus, len(counts))
	for i, c := range counts {
		workers[i] = workerStatus{WorkerIndex: i, ThreadCount: c}
	}
	return ctx.JSON(200, map[string]interface{}{"workers": workers, "worker_count": len(counts)})
}
