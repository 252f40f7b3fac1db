package orchestration

import (
	"context"

	"github.com/fluxorio/orchestrator/pkg/store"
)

// ListAuditLog is a read-through to the audit log, optionally filtered by
// table name and/or record id (§6 `GET /audit?table=&record_id=`).
func (svc *Service) ListAuditLog(ctx context.Context, tableName, recordID string) ([]*store.AuditLog, error) {
	return svc.store.ListAuditLog(ctx, tableName, recordID)
}
