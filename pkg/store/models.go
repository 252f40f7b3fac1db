// Package store implements the orchestrator's persisted state (§3, §6): the
// workflow/node/edge/script/trigger catalog, the execution_queue dispatch
// table, execution outputs and the audit log, against either Postgres
// (jackc/pgx/v5) or an isolated SQLite database (mattn/go-sqlite3) for
// TEST_MODE.
package store

import (
	"encoding/json"
	"time"
)

// WorkflowStatus is a workflow's lifecycle state (§3).
type WorkflowStatus string

const (
	WorkflowDraft    WorkflowStatus = "draft"
	WorkflowActive   WorkflowStatus = "active"
	WorkflowInactive WorkflowStatus = "inactive"
	WorkflowArchived WorkflowStatus = "archived"
)

// ExecutionStatus is an execution's lifecycle state (§3).
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// TaskStatus is a queue row's in-flight state (§3 invariant 3). A task row
// is deleted once dispatched; status never reaches a terminal value here —
// terminal outcomes live on ExecutionOutput.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskReady   TaskStatus = "ready"
	TaskRunning TaskStatus = "running"
)

// OutputStatus is a completed/failed node's terminal outcome (§3, §4.6).
type OutputStatus string

const (
	OutputSuccess   OutputStatus = "success"
	OutputFailed    OutputStatus = "failed"
	OutputCancelled OutputStatus = "cancelled"
	OutputTimeout   OutputStatus = "timeout"
)

// EdgeCondition selects when a downstream node becomes eligible (§3). Only
// "success" drives dependency-count decrements (§4.6); the other two are
// accepted on create for schema completeness per the workflow JSON contract
// (§6) but are not evaluated by the scheduler (§1 scope: request/response
// task graphs, no branching engine).
type EdgeCondition string

const (
	EdgeOnSuccess EdgeCondition = "success"
	EdgeOnFailure EdgeCondition = "failure"
	EdgeAlways    EdgeCondition = "always"
)

// Workflow is a named DAG of nodes and edges.
type Workflow struct {
	ID          string
	Name        string
	Description string
	Status      WorkflowStatus
	Priority    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Node is a unit of work inside a workflow, optionally bound to a script.
type Node struct {
	ID             string
	WorkflowID     string
	Name           string
	NodeType       string
	ScriptID       *string
	Config         json.RawMessage
	MaxRetries     int
	TimeoutSeconds int
	CreatedAt      time.Time
}

// Edge is a directed dependency: ToNode becomes eligible once FromNode
// reaches the state named by Condition.
type Edge struct {
	ID         string
	WorkflowID string
	FromNodeID string
	ToNodeID   string
	Condition  EdgeCondition
	CreatedAt  time.Time
}

// Script is a named, versioned unit of executable code on disk (§6).
type Script struct {
	ID           string
	Name         string
	Path         string
	Language     string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage
	TestStatus   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Trigger fires TriggerWorkflow for its workflow (§4.2).
type Trigger struct {
	ID          string
	WorkflowID  string
	Name        string
	TriggerType string
	Config      json.RawMessage
	IsActive    bool
	CreatedAt   time.Time
}

// Execution is one run of a workflow. PendingCount/ExecutedCount implement
// the counter variant of the schema (Open Question #1 in SPEC_FULL.md):
// finalize_execution fires once ExecutedCount reaches the node count.
// Results holds the aggregated per-node map built at finalization (§4.6).
type Execution struct {
	ID            string
	WorkflowID    string
	Status        ExecutionStatus
	PendingCount  int
	ExecutedCount int
	Results       json.RawMessage
	StartedAt     *time.Time
	FinishedAt    *time.Time
	CreatedAt     time.Time
}

// Task is a row in execution_queue: one node instance within an execution,
// gated by DependencyCount (§3 invariants, §4.2-§4.4). Rows are deleted once
// dispatched to a worker; their outcome is recorded as an ExecutionOutput.
type Task struct {
	ID              string
	ExecutionID     string
	NodeID          string
	DependencyCount int
	Priority        int
	Status          TaskStatus
	Payload         json.RawMessage
	CreatedAt       time.Time
	DispatchedAt    *time.Time
}

// ExecutionOutput is the recorded terminal result of one node within an
// execution (§3, §4.6).
type ExecutionOutput struct {
	ID           string
	ExecutionID  string
	NodeID       string
	TaskID       string
	Status       OutputStatus
	Result       json.RawMessage
	ErrorMessage *string
	StartedAt    *time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
}

// AuditLog records a before/after snapshot for every mutating orchestration
// call (§4.1).
type AuditLog struct {
	ID        string
	TableName string
	RecordID  string
	Action    string
	Before    json.RawMessage
	After     json.RawMessage
	Actor     string
	CreatedAt time.Time
}
