package orchestration

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// CreateTrigger adds a trigger to an existing workflow outside of the
// create_workflow bulk spec (e.g. attaching a webhook to a workflow that
// already has a schedule trigger).
func (svc *Service) CreateTrigger(ctx context.Context, workflowID, name, triggerType string, config json.RawMessage) (*store.Trigger, error) {
	if err := core.ValidateIdentifier(name); err != nil {
		return nil, apperr.Validation("trigger name: %v", err)
	}
	if _, err := svc.store.GetWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	var t *store.Trigger
	err := svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = svc.store.CreateTrigger(ctx, tx, workflowID, name, triggerType, config)
		if err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "triggers", t.ID, "create", nil, t, actorFromContext(ctx))
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SetTriggerActive pauses or resumes a trigger without deleting it.
func (svc *Service) SetTriggerActive(ctx context.Context, id string, active bool) (*store.Trigger, error) {
	old, err := svc.store.GetTrigger(ctx, id)
	if err != nil {
		return nil, err
	}

	var t *store.Trigger
	err = svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = svc.store.SetTriggerActive(ctx, tx, id, active)
		if err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "triggers", id, "update", old, t, actorFromContext(ctx))
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTrigger removes a trigger.
func (svc *Service) DeleteTrigger(ctx context.Context, id string) error {
	old, err := svc.store.GetTrigger(ctx, id)
	if err != nil {
		return err
	}
	return svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := svc.store.DeleteTrigger(ctx, tx, id); err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "triggers", id, "delete", old, nil, actorFromContext(ctx))
	})
}

// ListTriggers returns every trigger bound to workflowID.
func (svc *Service) ListTriggers(ctx context.Context, workflowID string) ([]*store.Trigger, error) {
	return svc.store.ListTriggersByWorkflow(ctx, workflowID)
}
