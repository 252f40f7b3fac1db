package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// CreateScript inserts a script record. The script's file contents are
// managed by the caller (§1: disk I/O is out of scope here); this tracks
// the name/path/language mapping and its declared schemas. tx is optional;
// pass nil to run outside a transaction.
func (s *Store) CreateScript(ctx context.Context, tx *sql.Tx, name, path, language string, inputSchema, outputSchema json.RawMessage) (*Script, error) {
	if len(inputSchema) == 0 {
		inputSchema = json.RawMessage("{}")
	}
	if len(outputSchema) == 0 {
		outputSchema = json.RawMessage("{}")
	}
	now := time.Now().UTC()
	sc := &Script{
		ID: uuid.NewString(), Name: name, Path: path, Language: language,
		InputSchema: inputSchema, OutputSchema: outputSchema, TestStatus: "untested",
		CreatedAt: now, UpdatedAt: now,
	}

	exec := execer(s, tx)
	_, err := exec(ctx,
		`INSERT INTO scripts (id, name, path, language, input_schema, output_schema, test_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sc.ID, sc.Name, sc.Path, sc.Language, string(sc.InputSchema), string(sc.OutputSchema), sc.TestStatus, sc.CreatedAt, sc.UpdatedAt)
	if err != nil {
		return nil, apperr.Database(err, "insert script %q", name)
	}
	return sc, nil
}

// GetScript loads a script by id.
func (s *Store) GetScript(ctx context.Context, id string) (*Script, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, path, language, input_schema, output_schema, test_status, created_at, updated_at FROM scripts WHERE id = $1`, id)
	return scanScript(row)
}

// GetScriptByName loads a script by its unique name.
func (s *Store) GetScriptByName(ctx context.Context, name string) (*Script, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, path, language, input_schema, output_schema, test_status, created_at, updated_at FROM scripts WHERE name = $1`, name)
	return scanScript(row)
}

func scanScript(row *sql.Row) (*Script, error) {
	var sc Script
	var inputSchema, outputSchema string
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Path, &sc.Language, &inputSchema, &outputSchema, &sc.TestStatus, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Resource("script not found")
		}
		return nil, apperr.Database(err, "scan script")
	}
	sc.InputSchema = json.RawMessage(inputSchema)
	sc.OutputSchema = json.RawMessage(outputSchema)
	return &sc, nil
}

// ListScripts returns every script.
func (s *Store) ListScripts(ctx context.Context) ([]*Script, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, path, language, input_schema, output_schema, test_status, created_at, updated_at FROM scripts ORDER BY name ASC`)
	if err != nil {
		return nil, apperr.Database(err, "list scripts")
	}
	defer rows.Close()

	var out []*Script
	for rows.Next() {
		var sc Script
		var inputSchema, outputSchema string
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Path, &sc.Language, &inputSchema, &outputSchema, &sc.TestStatus, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, apperr.Database(err, "scan script row")
		}
		sc.InputSchema = json.RawMessage(inputSchema)
		sc.OutputSchema = json.RawMessage(outputSchema)
		out = append(out, &sc)
	}
	return out, rows.Err()
}

// IsScriptReferenced reports whether any node still points at scriptID,
// used to block deletion (§3 invariant 7, §6 delete-blocked-while-referenced).
func (s *Store) IsScriptReferenced(ctx context.Context, scriptID string) (bool, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE script_id = $1`, scriptID).Scan(&count)
	if err != nil {
		return false, apperr.Database(err, "count nodes referencing script %q", scriptID)
	}
	return count > 0, nil
}

// DeleteScript removes a script, refusing if any node still references it.
// tx is optional; pass nil to run outside a transaction.
func (s *Store) DeleteScript(ctx context.Context, tx *sql.Tx, id string) error {
	referenced, err := s.IsScriptReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return apperr.BusinessLogic("script %q is referenced by one or more nodes", id)
	}

	exec := execer(s, tx)
	res, err := exec(ctx, `DELETE FROM scripts WHERE id = $1`, id)
	if err != nil {
		return apperr.Database(err, "delete script %q", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Resource("script %q not found", id)
	}
	return nil
}
