package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fluxorio/orchestrator/pkg/store"
)

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

func TestWorkflowCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "daily-report", "runs every morning", 10)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if w.ID == "" {
		t.Fatal("expected generated id")
	}
	if w.Status != store.WorkflowDraft {
		t.Fatalf("status = %s, want draft", w.Status)
	}

	got, err := s.GetWorkflow(ctx, w.ID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	if got.Name != "daily-report" {
		t.Fatalf("name = %q, want daily-report", got.Name)
	}

	byName, err := s.GetWorkflowByName(ctx, "daily-report")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if byName.ID != w.ID {
		t.Fatal("get by name returned a different row")
	}

	updated, err := s.UpdateWorkflow(ctx, w.ID, "daily-report-v2", "updated", store.WorkflowActive, 20)
	if err != nil {
		t.Fatalf("update workflow: %v", err)
	}
	if updated.Name != "daily-report-v2" || updated.Status != store.WorkflowActive || updated.Priority != 20 {
		t.Fatalf("update did not persist: %+v", updated)
	}

	list, err := s.ListWorkflows(ctx)
	if err != nil {
		t.Fatalf("list workflows: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	active, err := s.HasActiveExecutions(ctx, w.ID)
	if err != nil {
		t.Fatalf("has active executions: %v", err)
	}
	if active {
		t.Fatal("expected no active executions yet")
	}

	if err := s.DeleteWorkflow(ctx, nil, w.ID); err != nil {
		t.Fatalf("delete workflow: %v", err)
	}
	if _, err := s.GetWorkflow(ctx, w.ID); err == nil {
		t.Fatal("expected error fetching deleted workflow")
	}
}

func TestDeleteWorkflowNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteWorkflow(context.Background(), nil, "missing"); err == nil {
		t.Fatal("expected error deleting unknown workflow")
	}
}

func TestNodeAndEdgeCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "pipeline", "", 0)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	n1, err := s.CreateNode(ctx, nil, w.ID, "extract", "script", nil, nil, 0, 30)
	if err != nil {
		t.Fatalf("create node 1: %v", err)
	}
	n2, err := s.CreateNode(ctx, nil, w.ID, "load", "script", nil, nil, 2, 30)
	if err != nil {
		t.Fatalf("create node 2: %v", err)
	}

	edge, err := s.CreateEdge(ctx, nil, w.ID, n1.ID, n2.ID, store.EdgeOnSuccess)
	if err != nil {
		t.Fatalf("create edge: %v", err)
	}

	if _, err := s.CreateEdge(ctx, nil, w.ID, n1.ID, n1.ID, store.EdgeOnSuccess); err == nil {
		t.Fatal("expected self-loop edge to be rejected")
	}

	count, err := s.CountIncomingEdges(ctx, n2.ID)
	if err != nil {
		t.Fatalf("count incoming edges: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	count, err = s.CountIncomingEdges(ctx, n1.ID)
	if err != nil {
		t.Fatalf("count incoming edges: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}

	byName, err := s.GetNodeByName(ctx, w.ID, "load")
	if err != nil {
		t.Fatalf("get node by name: %v", err)
	}
	if byName.ID != n2.ID || byName.MaxRetries != 2 {
		t.Fatalf("unexpected node: %+v", byName)
	}

	nodes, err := s.ListNodesByWorkflow(ctx, w.ID)
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}

	edges, err := s.ListEdgesByWorkflow(ctx, w.ID)
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("len(edges) = %d, want 1", len(edges))
	}

	fromN1, err := s.ListEdgesFrom(ctx, n1.ID)
	if err != nil {
		t.Fatalf("list edges from: %v", err)
	}
	if len(fromN1) != 1 || fromN1[0].ToNodeID != n2.ID {
		t.Fatalf("unexpected edges from n1: %+v", fromN1)
	}

	if err := s.DeleteEdge(ctx, edge.ID); err != nil {
		t.Fatalf("delete edge: %v", err)
	}
	if err := s.DeleteNode(ctx, n1.ID); err != nil {
		t.Fatalf("delete node: %v", err)
	}
}

func TestScriptReferenceBlocksDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sc, err := s.CreateScript(ctx, nil, "transform", "/scripts/transform.py", "python", nil, nil)
	if err != nil {
		t.Fatalf("create script: %v", err)
	}

	w, err := s.CreateWorkflow(ctx, nil, "wf", "", 0)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if _, err := s.CreateNode(ctx, nil, w.ID, "transform-node", "script", &sc.ID, nil, 0, 10); err != nil {
		t.Fatalf("create node: %v", err)
	}

	referenced, err := s.IsScriptReferenced(ctx, sc.ID)
	if err != nil {
		t.Fatalf("is referenced: %v", err)
	}
	if !referenced {
		t.Fatal("expected script to be referenced")
	}

	if err := s.DeleteScript(ctx, nil, sc.ID); err == nil {
		t.Fatal("expected delete to be refused while referenced")
	}

	byName, err := s.GetScriptByName(ctx, "transform")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if byName.ID != sc.ID {
		t.Fatal("get by name returned a different row")
	}

	list, err := s.ListScripts(ctx)
	if err != nil {
		t.Fatalf("list scripts: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
}

func TestTriggerCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "wf", "", 0)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	tr, err := s.CreateTrigger(ctx, nil, w.ID, "every-morning", "schedule", json.RawMessage(`{"expr":"0 9 * * *"}`))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if !tr.IsActive {
		t.Fatal("expected trigger to be active by default")
	}

	got, err := s.GetTrigger(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get trigger: %v", err)
	}
	if got.TriggerType != "schedule" {
		t.Fatalf("trigger type = %q, want schedule", got.TriggerType)
	}

	list, err := s.ListTriggersByWorkflow(ctx, w.ID)
	if err != nil {
		t.Fatalf("list triggers: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	if err := s.DeleteTrigger(ctx, nil, tr.ID); err != nil {
		t.Fatalf("delete trigger: %v", err)
	}
}

func TestExecutionLifecycleCounterVariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "wf", "", 0)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	exec, err := s.CreateExecution(ctx, nil, w.ID, 2)
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}
	if exec.Status != store.ExecutionPending {
		t.Fatalf("status = %s, want pending", exec.Status)
	}
	if exec.PendingCount != 2 {
		t.Fatalf("pending_count = %d, want 2", exec.PendingCount)
	}

	if err := s.MarkExecutionRunning(ctx, exec.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := s.MarkExecutionRunning(ctx, exec.ID); err == nil {
		t.Fatal("expected second MarkExecutionRunning to fail, execution already running")
	}

	done, err := s.IncrementExecutedCount(ctx, nil, exec.ID)
	if err != nil {
		t.Fatalf("increment executed count: %v", err)
	}
	if done {
		t.Fatal("expected not done after first increment of 2")
	}

	done, err = s.IncrementExecutedCount(ctx, nil, exec.ID)
	if err != nil {
		t.Fatalf("increment executed count: %v", err)
	}
	if !done {
		t.Fatal("expected done after second increment of 2")
	}

	results := json.RawMessage(`{"n1":{"status":"success","result":{"v":1}}}`)
	if err := s.FinalizeExecution(ctx, nil, exec.ID, results); err != nil {
		t.Fatalf("finalize execution: %v", err)
	}

	got, err := s.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if got.Status != store.ExecutionCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
	if got.PendingCount != 0 {
		t.Fatalf("pending_count = %d, want 0 at finalization (count conservation, §8.2)", got.PendingCount)
	}
	if string(got.Results) != string(results) {
		t.Fatalf("results = %s, want %s", got.Results, results)
	}
}

func TestFinalizeExecutionCompletesEvenOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "wf", "", 0)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	exec, err := s.CreateExecution(ctx, nil, w.ID, 1)
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}

	results := json.RawMessage(`{"n1":{"status":"failed","error":"boom"}}`)
	if err := s.FinalizeExecution(ctx, nil, exec.ID, results); err != nil {
		t.Fatalf("finalize execution: %v", err)
	}

	got, err := s.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if got.Status != store.ExecutionCompleted {
		t.Fatalf("status = %s, want completed even when a task failed", got.Status)
	}
	if got.PendingCount != 0 {
		t.Fatalf("pending_count = %d, want 0 after finalize on the failure path", got.PendingCount)
	}
}

func TestCancelExecution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "wf", "", 0)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	exec, err := s.CreateExecution(ctx, nil, w.ID, 1)
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}

	if err := s.CancelExecution(ctx, nil, exec.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("cancel execution: %v", err)
	}
	if err := s.CancelExecution(ctx, nil, exec.ID, json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected second cancel to fail at the store layer (idempotence is enforced by pkg/orchestration)")
	}
}

func TestTaskDependencyGatingAndPop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "wf", "", 5)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	exec, err := s.CreateExecution(ctx, nil, w.ID, 2)
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}

	n1, err := s.CreateNode(ctx, nil, w.ID, "a", "script", nil, nil, 0, 10)
	if err != nil {
		t.Fatalf("create node a: %v", err)
	}
	n2, err := s.CreateNode(ctx, nil, w.ID, "b", "script", nil, nil, 0, 10)
	if err != nil {
		t.Fatalf("create node b: %v", err)
	}
	if _, err := s.CreateEdge(ctx, nil, w.ID, n1.ID, n2.ID, store.EdgeOnSuccess); err != nil {
		t.Fatalf("create edge: %v", err)
	}

	readyTask, err := s.CreateTask(ctx, nil, exec.ID, n1.ID, 0, w.Priority, nil)
	if err != nil {
		t.Fatalf("create task a: %v", err)
	}
	if readyTask.Status != store.TaskReady {
		t.Fatalf("status = %s, want ready", readyTask.Status)
	}
	gatedTask, err := s.CreateTask(ctx, nil, exec.ID, n2.ID, 1, w.Priority, nil)
	if err != nil {
		t.Fatalf("create task b: %v", err)
	}
	if gatedTask.Status != store.TaskPending {
		t.Fatalf("status = %s, want pending", gatedTask.Status)
	}

	ready, err := s.PopReadyTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pop ready tasks: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != readyTask.ID {
		t.Fatalf("expected only task a ready, got %+v", ready)
	}

	if _, err := s.GetTask(ctx, readyTask.ID); err == nil {
		t.Fatal("expected dispatched task row to be deleted")
	}

	becameReady, err := s.DecrementDependencyCount(ctx, nil, gatedTask.ID)
	if err != nil {
		t.Fatalf("decrement dependency count: %v", err)
	}
	if !becameReady {
		t.Fatal("expected task b to become ready after decrement")
	}

	got, err := s.GetTask(ctx, gatedTask.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != store.TaskReady {
		t.Fatalf("status = %s, want ready", got.Status)
	}

	ready, err = s.PopReadyTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pop ready tasks second round: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != gatedTask.ID {
		t.Fatalf("expected only task b ready, got %+v", ready)
	}

	dependents, err := s.FindDependentTaskIDs(ctx, exec.ID, n1.ID)
	if err != nil {
		t.Fatalf("find dependent tasks: %v", err)
	}
	if len(dependents) != 0 {
		t.Fatalf("expected no remaining dependents once dispatched, got %v", dependents)
	}
}

func TestDeleteTasksByExecution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "wf", "", 0)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	exec, err := s.CreateExecution(ctx, nil, w.ID, 1)
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}
	n, err := s.CreateNode(ctx, nil, w.ID, "a", "script", nil, nil, 0, 10)
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	if _, err := s.CreateTask(ctx, nil, exec.ID, n.ID, 0, 0, nil); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.DeleteTasksByExecution(ctx, nil, exec.ID); err != nil {
		t.Fatalf("delete tasks by execution: %v", err)
	}
	tasks, err := s.ListTasksByExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("len(tasks) = %d, want 0", len(tasks))
	}
}

func TestOutputsAndPlaceholderLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.CreateWorkflow(ctx, nil, "wf", "", 0)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	exec, err := s.CreateExecution(ctx, nil, w.ID, 1)
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}
	n, err := s.CreateNode(ctx, nil, w.ID, "fetch", "script", nil, nil, 0, 10)
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	task, err := s.CreateTask(ctx, nil, exec.ID, n.ID, 0, 0, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if _, err := s.InsertOutput(ctx, nil, exec.ID, n.ID, task.ID, store.OutputSuccess, json.RawMessage(`{"status_code":200}`), nil, nil, nil); err != nil {
		t.Fatalf("insert output: %v", err)
	}

	out, err := s.GetOutputByNode(ctx, exec.ID, n.ID)
	if err != nil {
		t.Fatalf("get output by node: %v", err)
	}
	if out.Status != store.OutputSuccess {
		t.Fatalf("status = %s, want success", out.Status)
	}
	if out.ErrorMessage != nil {
		t.Fatalf("expected no error on output, got %v", *out.ErrorMessage)
	}

	all, err := s.ListOutputsByExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("list outputs: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(all) = %d, want 1", len(all))
	}

	byNodes, err := s.ListOutputsByNodes(ctx, exec.ID, []string{n.ID, "unknown-node"})
	if err != nil {
		t.Fatalf("list outputs by nodes: %v", err)
	}
	if len(byNodes) != 1 {
		t.Fatalf("len(byNodes) = %d, want 1", len(byNodes))
	}
}

func TestOutputByNodeNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetOutputByNode(context.Background(), "missing-exec", "missing-node"); err == nil {
		t.Fatal("expected error for missing output")
	}
}

func TestAuditLogFiltering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := map[string]string{"name": "old"}
	after := map[string]string{"name": "new"}
	if err := s.InsertAuditLog(ctx, nil, "workflows", "wf-1", "update", before, after, "alice"); err != nil {
		t.Fatalf("insert audit log: %v", err)
	}
	if err := s.InsertAuditLog(ctx, nil, "workflows", "wf-2", "create", nil, after, "bob"); err != nil {
		t.Fatalf("insert audit log: %v", err)
	}
	if err := s.InsertAuditLog(ctx, nil, "scripts", "sc-1", "delete", before, nil, "alice"); err != nil {
		t.Fatalf("insert audit log: %v", err)
	}

	byTable, err := s.ListAuditLog(ctx, "workflows", "")
	if err != nil {
		t.Fatalf("list by table: %v", err)
	}
	if len(byTable) != 2 {
		t.Fatalf("len(byTable) = %d, want 2", len(byTable))
	}

	byRecord, err := s.ListAuditLog(ctx, "workflows", "wf-1")
	if err != nil {
		t.Fatalf("list by table+record: %v", err)
	}
	if len(byRecord) != 1 {
		t.Fatalf("len(byRecord) = %d, want 1", len(byRecord))
	}
	if byRecord[0].Before == nil || byRecord[0].After == nil {
		t.Fatal("expected both before/after snapshots on the update row")
	}

	all, err := s.ListAuditLog(ctx, "", "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
}

func TestNotifierDisabledUnderSQLite(t *testing.T) {
	s := newTestStore(t)
	n := store.NewNotifier("file::memory:", s.Dialect, nil)
	if err := n.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	woke, err := n.Wait(context.Background(), 0)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if woke {
		t.Fatal("expected disabled notifier to never report a wake")
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Emit(context.Background(), store.OutputChannel, "{}"); err != nil {
		t.Fatalf("emit should be a no-op under sqlite: %v", err)
	}
}
