// Package scheduler runs the input and output monitor loops that drive
// tasks from the execution_queue through a worker pool and back into
// recorded outputs (§4.4, §4.6, §4.7).
package scheduler

import (
	"context"
	"encoding/json"
	"time"
)

// Payload is what the input monitor hands to the worker pool for one task
// (§4.4 step 2).
type Payload struct {
	TaskID          string          `json:"task_id"`
	ExecutionID     string          `json:"execution_id"`
	WorkflowID      string          `json:"workflow_id"`
	NodeID          string          `json:"node_id"`
	ScriptPath      string          `json:"script_path"`
	ResolvedContext json.RawMessage `json:"resolved_context"`
	NodeName        string          `json:"node_name"`
	NodeType        string          `json:"node_type"`
}

// OutputMessage is a worker's reported result, read back by the output
// monitor (§4.5.1 step 4, §4.6 step 2).
type OutputMessage struct {
	TaskID       string          `json:"task_id"`
	ExecutionID  string          `json:"execution_id"`
	NodeID       string          `json:"node_id"`
	Status       string          `json:"status"` // success|failed
	ResultData   json.RawMessage `json:"result_data"`
	ErrorMessage string          `json:"error_message"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
}

// WorkerPool is the contract the input/output monitors drive. pkg/workerpool
// provides the concrete implementation (process pool + NATS IPC); tests use
// an in-memory fake.
type WorkerPool interface {
	SubmitBulk(ctx context.Context, payloads []Payload) error
	PopOutputBulk(ctx context.Context, max int, timeout time.Duration) []OutputMessage
}
