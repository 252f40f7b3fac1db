package orchestration_test

import (
	"context"
	"testing"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/store"
)

func TestTriggerWorkflowEnqueuesDependencyGatedTasks(t *testing.T) {
	svc, s := newTestServiceAndStore(t)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	result, err := svc.TriggerWorkflow(ctx, created.Workflow.ID)
	if err != nil {
		t.Fatalf("trigger workflow: %v", err)
	}
	if len(result.TaskIDs) != 2 {
		t.Fatalf("len(TaskIDs) = %d, want 2", len(result.TaskIDs))
	}
	if result.PendingCount != 2 {
		t.Fatalf("PendingCount = %d, want 2", result.PendingCount)
	}

	tasks, err := s.ListTasksByExecution(ctx, result.ExecutionID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	var readyCount, pendingCount int
	for _, task := range tasks {
		switch task.Status {
		case store.TaskReady:
			readyCount++
		case store.TaskPending:
			pendingCount++
		}
	}
	if readyCount != 1 {
		t.Fatalf("ready tasks = %d, want 1 (extract has no dependencies)", readyCount)
	}
	if pendingCount != 1 {
		t.Fatalf("pending tasks = %d, want 1 (load depends on extract)", pendingCount)
	}
}

func TestTriggerWorkflowRejectsWorkflowWithNoNodes(t *testing.T) {
	svc, s := newTestServiceAndStore(t)
	ctx := context.Background()

	spec := simplePipelineSpec()
	spec.Nodes = nil
	spec.Edges = nil
	if _, err := svc.CreateWorkflow(ctx, spec); err == nil {
		t.Fatal("expected workflow with no nodes to be rejected at create time already")
	}

	// The store layer has no node-count check, so an empty workflow can
	// still exist; triggering it must fail with a business-logic error.
	empty, err := s.CreateWorkflow(ctx, nil, "empty_pipeline", "", 5)
	if err != nil {
		t.Fatalf("create empty workflow: %v", err)
	}
	if _, err := svc.TriggerWorkflow(ctx, empty.ID); !apperr.Is(err, apperr.BusinessLogicError) {
		t.Fatalf("trigger empty workflow: err = %v, want BusinessLogicError", err)
	}
}

func TestCancelExecutionSynthesizesCancelledEntriesAndDeletesTasks(t *testing.T) {
	svc, s := newTestServiceAndStore(t)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	result, err := svc.TriggerWorkflow(ctx, created.Workflow.ID)
	if err != nil {
		t.Fatalf("trigger workflow: %v", err)
	}

	extractNodeID := created.NodeIDs[0]
	extractTaskID := result.TaskIDs[0]
	if _, err := s.InsertOutput(ctx, nil, result.ExecutionID, extractNodeID, extractTaskID, store.OutputSuccess,
		nil, nil, nil, nil); err != nil {
		t.Fatalf("insert output: %v", err)
	}

	if err := svc.CancelExecution(ctx, result.ExecutionID); err != nil {
		t.Fatalf("cancel execution: %v", err)
	}

	exec, err := svc.GetExecution(ctx, result.ExecutionID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if exec.Status != store.ExecutionCancelled {
		t.Fatalf("status = %s, want cancelled", exec.Status)
	}

	remaining, err := s.ListTasksByExecution(ctx, result.ExecutionID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("len(remaining tasks) = %d, want 0", len(remaining))
	}
}

func TestCancelExecutionIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	result, err := svc.TriggerWorkflow(ctx, created.Workflow.ID)
	if err != nil {
		t.Fatalf("trigger workflow: %v", err)
	}

	if err := svc.CancelExecution(ctx, result.ExecutionID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := svc.CancelExecution(ctx, result.ExecutionID); err != nil {
		t.Fatalf("second cancel should be a no-op, got error: %v", err)
	}
}

func TestListExecutionsByWorkflow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if _, err := svc.TriggerWorkflow(ctx, created.Workflow.ID); err != nil {
		t.Fatalf("trigger workflow: %v", err)
	}

	list, err := svc.ListExecutionsByWorkflow(ctx, created.Workflow.ID)
	if err != nil {
		t.Fatalf("list executions by workflow: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
}
