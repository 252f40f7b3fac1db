// Package orchestration composes the atomic pkg/store operations into the
// validated, audit-logged workflow operations described in §4.1: every
// mutating call here runs inside a single store.Store.WithTx and writes an
// AuditLog row with before/after snapshots.
package orchestration

import (
	"context"

	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// Service is the orchestration layer's entry point, holding the store and
// logger every operation needs.
type Service struct {
	store *store.Store
	log   core.Logger
}

// New builds a Service backed by s, logging through log.
func New(s *store.Store, log core.Logger) *Service {
	if log == nil {
		log = core.NewDefaultLogger()
	}
	return &Service{store: s, log: log}
}

type actorKey struct{}

// WithActor attaches the identity performing the next orchestration call to
// ctx, recorded verbatim on every AuditLog row written during that call.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// actorFromContext returns the actor set by WithActor, or "system" if none
// was attached (background callers: the input/output monitors, the
// scheduler supervisor).
func actorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return "system"
}
