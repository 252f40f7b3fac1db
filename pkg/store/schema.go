package store

// Schema DDL is kept in two dialects: Postgres (production) and SQLite
// (TEST_MODE, §6). Column types differ (jsonb vs text, timestamptz vs
// timestamp) but table/column names and index names and columns match, so
// the rest of the package never needs a dialect switch. The one index
// difference: the Postgres ready-queue index is partial (WHERE
// dependency_count = 0) and the SQLite one is not.

const postgresSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'draft',
	priority    INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scripts (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	path          TEXT NOT NULL,
	language      TEXT NOT NULL,
	input_schema  JSONB NOT NULL DEFAULT '{}',
	output_schema JSONB NOT NULL DEFAULT '{}',
	test_status   TEXT NOT NULL DEFAULT 'untested',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS nodes (
	id              TEXT PRIMARY KEY,
	workflow_id     TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	node_type       TEXT NOT NULL,
	script_id       TEXT REFERENCES scripts(id),
	config          JSONB NOT NULL DEFAULT '{}',
	max_retries     INTEGER NOT NULL DEFAULT 0,
	timeout_seconds INTEGER NOT NULL DEFAULT 300,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(workflow_id, name)
);
CREATE INDEX IF NOT EXISTS idx_nodes_workflow_id ON nodes(workflow_id);

CREATE TABLE IF NOT EXISTS edges (
	id           TEXT PRIMARY KEY,
	workflow_id  TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	from_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	to_node_id   TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	condition    TEXT NOT NULL DEFAULT 'success',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(from_node_id, to_node_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_workflow_id ON edges(workflow_id);
CREATE INDEX IF NOT EXISTS idx_edges_from_node_id ON edges(from_node_id);
CREATE INDEX IF NOT EXISTS idx_edges_to_node_id ON edges(to_node_id);

CREATE TABLE IF NOT EXISTS triggers (
	id           TEXT PRIMARY KEY,
	workflow_id  TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	config       JSONB NOT NULL DEFAULT '{}',
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(workflow_id, name)
);
CREATE INDEX IF NOT EXISTS idx_triggers_workflow_id ON triggers(workflow_id);

CREATE TABLE IF NOT EXISTS executions (
	id             TEXT PRIMARY KEY,
	workflow_id    TEXT NOT NULL REFERENCES workflows(id),
	status         TEXT NOT NULL,
	pending_count  INTEGER NOT NULL DEFAULT 0,
	executed_count INTEGER NOT NULL DEFAULT 0,
	results        JSONB,
	started_at     TIMESTAMPTZ,
	finished_at    TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON executions(workflow_id);
CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);

CREATE TABLE IF NOT EXISTS execution_queue (
	id               TEXT PRIMARY KEY,
	execution_id     TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	node_id          TEXT NOT NULL REFERENCES nodes(id),
	dependency_count INTEGER NOT NULL DEFAULT 0,
	priority         INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	payload          JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	dispatched_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_execution_queue_ready
	ON execution_queue(status, priority, created_at) WHERE dependency_count = 0;
CREATE INDEX IF NOT EXISTS idx_execution_queue_execution_id ON execution_queue(execution_id);

CREATE TABLE IF NOT EXISTS execution_outputs (
	id            TEXT PRIMARY KEY,
	execution_id  TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	node_id       TEXT NOT NULL REFERENCES nodes(id),
	task_id       TEXT NOT NULL,
	status        TEXT NOT NULL,
	result        JSONB NOT NULL DEFAULT '{}',
	error_message TEXT,
	started_at    TIMESTAMPTZ,
	ended_at      TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(execution_id, node_id)
);
CREATE INDEX IF NOT EXISTS idx_execution_outputs_execution_id ON execution_outputs(execution_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	before     JSONB,
	after      JSONB,
	actor      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_log_table_record ON audit_log(table_name, record_id);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'draft',
	priority    INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scripts (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	path          TEXT NOT NULL,
	language      TEXT NOT NULL,
	input_schema  TEXT NOT NULL DEFAULT '{}',
	output_schema TEXT NOT NULL DEFAULT '{}',
	test_status   TEXT NOT NULL DEFAULT 'untested',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS nodes (
	id              TEXT PRIMARY KEY,
	workflow_id     TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	node_type       TEXT NOT NULL,
	script_id       TEXT REFERENCES scripts(id),
	config          TEXT NOT NULL DEFAULT '{}',
	max_retries     INTEGER NOT NULL DEFAULT 0,
	timeout_seconds INTEGER NOT NULL DEFAULT 300,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(workflow_id, name)
);
CREATE INDEX IF NOT EXISTS idx_nodes_workflow_id ON nodes(workflow_id);

CREATE TABLE IF NOT EXISTS edges (
	id           TEXT PRIMARY KEY,
	workflow_id  TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	from_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	to_node_id   TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	condition    TEXT NOT NULL DEFAULT 'success',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(from_node_id, to_node_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_workflow_id ON edges(workflow_id);
CREATE INDEX IF NOT EXISTS idx_edges_from_node_id ON edges(from_node_id);
CREATE INDEX IF NOT EXISTS idx_edges_to_node_id ON edges(to_node_id);

CREATE TABLE IF NOT EXISTS triggers (
	id           TEXT PRIMARY KEY,
	workflow_id  TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	config       TEXT NOT NULL DEFAULT '{}',
	is_active    INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(workflow_id, name)
);
CREATE INDEX IF NOT EXISTS idx_triggers_workflow_id ON triggers(workflow_id);

CREATE TABLE IF NOT EXISTS executions (
	id             TEXT PRIMARY KEY,
	workflow_id    TEXT NOT NULL REFERENCES workflows(id),
	status         TEXT NOT NULL,
	pending_count  INTEGER NOT NULL DEFAULT 0,
	executed_count INTEGER NOT NULL DEFAULT 0,
	results        TEXT,
	started_at     DATETIME,
	finished_at    DATETIME,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON executions(workflow_id);
CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);

CREATE TABLE IF NOT EXISTS execution_queue (
	id               TEXT PRIMARY KEY,
	execution_id     TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	node_id          TEXT NOT NULL REFERENCES nodes(id),
	dependency_count INTEGER NOT NULL DEFAULT 0,
	priority         INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	payload          TEXT NOT NULL DEFAULT '{}',
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	dispatched_at    DATETIME
);
CREATE INDEX IF NOT EXISTS idx_execution_queue_ready ON execution_queue(status, priority, created_at);
CREATE INDEX IF NOT EXISTS idx_execution_queue_execution_id ON execution_queue(execution_id);

CREATE TABLE IF NOT EXISTS execution_outputs (
	id            TEXT PRIMARY KEY,
	execution_id  TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	node_id       TEXT NOT NULL REFERENCES nodes(id),
	task_id       TEXT NOT NULL,
	status        TEXT NOT NULL,
	result        TEXT NOT NULL DEFAULT '{}',
	error_message TEXT,
	started_at    DATETIME,
	ended_at      DATETIME,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(execution_id, node_id)
);
CREATE INDEX IF NOT EXISTS idx_execution_outputs_execution_id ON execution_outputs(execution_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	before     TEXT,
	after      TEXT,
	actor      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_audit_log_table_record ON audit_log(table_name, record_id);
`
