package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// InsertAuditLog records a before/after snapshot for a mutating call
// (§4.1). before is nil on create, after is nil on delete.
func (s *Store) InsertAuditLog(ctx context.Context, tx *sql.Tx, tableName, recordID, action string, before, after interface{}, actor string) error {
	var beforeJSON, afterJSON []byte
	var err error
	if before != nil {
		if beforeJSON, err = json.Marshal(before); err != nil {
			return apperr.Validation("marshal audit before snapshot: %v", err)
		}
	}
	if after != nil {
		if afterJSON, err = json.Marshal(after); err != nil {
			return apperr.Validation("marshal audit after snapshot: %v", err)
		}
	}

	exec := execer(s, tx)
	_, err = exec(ctx,
		`INSERT INTO audit_log (id, table_name, record_id, action, before, after, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), tableName, recordID, action, nullableString(beforeJSON), nullableString(afterJSON), actor, time.Now().UTC())
	if err != nil {
		return apperr.Database(err, "insert audit log for %s %q", tableName, recordID)
	}
	return nil
}

func nullableString(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

// ListAuditLog returns audit rows, optionally filtered by table and record
// id (§6 `GET /audit?table=&record_id=`).
func (s *Store) ListAuditLog(ctx context.Context, tableName, recordID string) ([]*AuditLog, error) {
	query := `SELECT id, table_name, record_id, action, before, after, actor, created_at FROM audit_log WHERE 1=1`
	var args []interface{}
	argN := 1

	if tableName != "" {
		query += placeholderClause(" AND table_name = $", argN)
		args = append(args, tableName)
		argN++
	}
	if recordID != "" {
		query += placeholderClause(" AND record_id = $", argN)
		args = append(args, recordID)
		argN++
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Database(err, "list audit log")
	}
	defer rows.Close()

	var out []*AuditLog
	for rows.Next() {
		var a AuditLog
		var before, after sql.NullString
		if err := rows.Scan(&a.ID, &a.TableName, &a.RecordID, &a.Action, &before, &after, &a.Actor, &a.CreatedAt); err != nil {
			return nil, apperr.Database(err, "scan audit log row")
		}
		if before.Valid {
			a.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			a.After = json.RawMessage(after.String)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func placeholderClause(prefix string, n int) string {
	return prefix + strconv.Itoa(n)
}
