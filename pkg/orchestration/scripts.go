package orchestration

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// CreateScript registers a script name/path/language mapping. The file
// itself is managed by the caller (§1); this only tracks the catalog entry
// nodes bind to by name.
func (svc *Service) CreateScript(ctx context.Context, name, path, language string, inputSchema, outputSchema json.RawMessage) (*store.Script, error) {
	if err := core.ValidateIdentifier(name); err != nil {
		return nil, apperr.Validation("script name: %v", err)
	}
	if _, err := svc.store.GetScriptByName(ctx, name); err == nil {
		return nil, apperr.Validation("script name %q already exists", name)
	} else if !apperr.Is(err, apperr.ResourceError) {
		return nil, err
	}

	var sc *store.Script
	err := svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		sc, err = svc.store.CreateScript(ctx, tx, name, path, language, inputSchema, outputSchema)
		if err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "scripts", sc.ID, "create", nil, sc, actorFromContext(ctx))
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// DeleteScript refuses to remove a script still referenced by a node (§3
// invariant 7).
func (svc *Service) DeleteScript(ctx context.Context, id string) error {
	old, err := svc.store.GetScript(ctx, id)
	if err != nil {
		return err
	}
	return svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := svc.store.DeleteScript(ctx, tx, id); err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "scripts", id, "delete", old, nil, actorFromContext(ctx))
	})
}

// GetScript is a read-through to the store.
func (svc *Service) GetScript(ctx context.Context, id string) (*store.Script, error) {
	return svc.store.GetScript(ctx, id)
}

// ListScripts returns every registered script.
func (svc *Service) ListScripts(ctx context.Context) ([]*store.Script, error) {
	return svc.store.ListScripts(ctx)
}
