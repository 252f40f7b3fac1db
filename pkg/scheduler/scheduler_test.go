package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fluxorio/orchestrator/pkg/store"
)

// fakePool is an in-memory WorkerPool used by scheduler tests: SubmitBulk
// just records payloads (optionally failing), PopOutputBulk drains a
// manually-seeded queue.
type fakePool struct {
	mu           sync.Mutex
	submitted    []Payload
	rejectSubmit bool
	outputs      []OutputMessage
}

func (p *fakePool) SubmitBulk(ctx context.Context, payloads []Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejectSubmit {
		return context.DeadlineExceeded
	}
	p.submitted = append(p.submitted, payloads...)
	return nil
}

func (p *fakePool) PopOutputBulk(ctx context.Context, max int, timeout time.Duration) []OutputMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outputs) == 0 {
		return nil
	}
	n := max
	if n > len(p.outputs) {
		n = len(p.outputs)
	}
	out := p.outputs[:n]
	p.outputs = p.outputs[n:]
	return out
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenTestDB(t.Name(), nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedLinearWorkflow(t *testing.T, s *store.Store) (workflowID string, extractID, loadID string) {
	t.Helper()
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "pipeline", "", 5)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	n1, err := s.CreateNode(ctx, nil, w.ID, "extract", "script", nil, json.RawMessage(`{}`), 0, 30)
	if err != nil {
		t.Fatalf("create node extract: %v", err)
	}
	n2, err := s.CreateNode(ctx, nil, w.ID, "load", "script", nil, json.RawMessage(`{}`), 0, 30)
	if err != nil {
		t.Fatalf("create node load: %v", err)
	}
	if _, err := s.CreateEdge(ctx, nil, w.ID, n1.ID, n2.ID, store.EdgeOnSuccess); err != nil {
		t.Fatalf("create edge: %v", err)
	}
	return w.ID, n1.ID, n2.ID
}

func enqueueExecution(t *testing.T, s *store.Store, workflowID, extractID, loadID string) *store.Execution {
	t.Helper()
	ctx := context.Background()

	exec, err := s.CreateExecution(ctx, nil, workflowID, 2)
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}
	if _, err := s.CreateTask(ctx, nil, exec.ID, extractID, 0, 5, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("create task extract: %v", err)
	}
	if _, err := s.CreateTask(ctx, nil, exec.ID, loadID, 1, 5, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("create task load: %v", err)
	}
	return exec
}

func TestInputMonitorCycleDispatchesReadyTasksOnly(t *testing.T) {
	s := newTestStore(t)
	workflowID, extractID, loadID := seedLinearWorkflow(t, s)
	enqueueExecution(t, s, workflowID, extractID, loadID)

	pool := &fakePool{}
	mon := NewInputMonitor(s, pool, InputMonitorConfig{PollInterval: time.Hour, BatchSize: 10, Workers: 2}, nil)

	if err := mon.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()
	if len(pool.submitted) != 1 {
		t.Fatalf("len(submitted) = %d, want 1 (only extract is dependency-free)", len(pool.submitted))
	}
	if pool.submitted[0].NodeName != "extract" {
		t.Fatalf("submitted node = %q, want extract", pool.submitted[0].NodeName)
	}
}

func TestInputMonitorReenqueuesOnRejectedSubmit(t *testing.T) {
	s := newTestStore(t)
	workflowID, extractID, loadID := seedLinearWorkflow(t, s)
	enqueueExecution(t, s, workflowID, extractID, loadID)

	pool := &fakePool{rejectSubmit: true}
	mon := NewInputMonitor(s, pool, InputMonitorConfig{PollInterval: time.Hour, BatchSize: 10, Workers: 2}, nil)

	if err := mon.cycle(context.Background()); err == nil {
		t.Fatal("expected cycle to report the rejected submission")
	}

	ready, err := s.PopReadyTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("pop ready tasks: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("len(ready) = %d, want 1 (re-enqueued extract task)", len(ready))
	}
}

func TestOutputMonitorProcessSuccessPromotesDependent(t *testing.T) {
	s := newTestStore(t)
	workflowID, extractID, loadID := seedLinearWorkflow(t, s)
	exec := enqueueExecution(t, s, workflowID, extractID, loadID)

	ready, err := s.PopReadyTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("pop ready tasks: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("len(ready) = %d, want 1", len(ready))
	}
	extractTask := ready[0]

	pool := &fakePool{outputs: []OutputMessage{
		{TaskID: extractTask.ID, ExecutionID: exec.ID, NodeID: extractID, Status: "success", ResultData: json.RawMessage(`{"rows":3}`)},
	}}
	mon := NewOutputMonitor(s, nil, pool, DefaultOutputMonitorConfig(), nil)

	n, err := mon.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	updatedExec, err := s.GetExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if updatedExec.ExecutedCount != 1 {
		t.Fatalf("executed_count = %d, want 1", updatedExec.ExecutedCount)
	}
	if updatedExec.PendingCount != 1 {
		t.Fatalf("pending_count = %d, want 1", updatedExec.PendingCount)
	}

	tasks, err := s.ListTasksByExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1 (load still queued)", len(tasks))
	}
	if tasks[0].Status != store.TaskReady {
		t.Fatalf("load status = %s, want ready", tasks[0].Status)
	}
}

func TestOutputMonitorProcessFailureFinalizesExecution(t *testing.T) {
	s := newTestStore(t)
	workflowID, extractID, loadID := seedLinearWorkflow(t, s)
	exec := enqueueExecution(t, s, workflowID, extractID, loadID)

	ready, err := s.PopReadyTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("pop ready tasks: %v", err)
	}
	extractTask := ready[0]

	pool := &fakePool{outputs: []OutputMessage{
		{TaskID: extractTask.ID, ExecutionID: exec.ID, NodeID: extractID, Status: "failed", ErrorMessage: "boom"},
	}}
	mon := NewOutputMonitor(s, nil, pool, DefaultOutputMonitorConfig(), nil)

	if _, err := mon.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	updatedExec, err := s.GetExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if updatedExec.Status != store.ExecutionCompleted {
		t.Fatalf("status = %s, want completed (Open Question #2)", updatedExec.Status)
	}
	if updatedExec.PendingCount != 0 {
		t.Fatalf("pending_count = %d, want 0 once a node failure finalizes the execution", updatedExec.PendingCount)
	}

	var results map[string]nodeResultEntry
	if err := json.Unmarshal(updatedExec.Results, &results); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if results[extractID].Status != store.OutputFailed {
		t.Fatalf("extract result status = %s, want failed", results[extractID].Status)
	}
	if results[loadID].Status != "skipped" {
		t.Fatalf("load result status = %s, want skipped", results[loadID].Status)
	}

	remaining, err := s.ListTasksByExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("len(remaining) = %d, want 0", len(remaining))
	}
}

func TestOutputMonitorDropsInvalidResult(t *testing.T) {
	s := newTestStore(t)
	workflowID, extractID, loadID := seedLinearWorkflow(t, s)
	exec := enqueueExecution(t, s, workflowID, extractID, loadID)

	pool := &fakePool{outputs: []OutputMessage{
		{TaskID: "bogus", ExecutionID: exec.ID, NodeID: extractID, Status: "unknown"},
	}}
	mon := NewOutputMonitor(s, nil, pool, DefaultOutputMonitorConfig(), nil)

	n, err := mon.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if n != 0 {
		t.Fatalf("processed = %d, want 0 (invalid result dropped)", n)
	}
}
