package orchestration_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fluxorio/orchestrator/pkg/orchestration"
	"github.com/fluxorio/orchestrator/pkg/store"
)

func simplePipelineSpec() orchestration.WorkflowSpec {
	return orchestration.WorkflowSpec{
		Name:        "pipeline",
		Description: "extract then load",
		Priority:    10,
		Nodes: []orchestration.NodeSpec{
			{Name: "extract", Type: "script", TimeoutSeconds: 30},
			{Name: "load", Type: "script", TimeoutSeconds: 30},
		},
		Edges: []orchestration.EdgeSpec{
			{FromIndex: 0, ToIndex: 1, Condition: store.EdgeOnSuccess},
		},
		Triggers: []orchestration.TriggerSpec{
			{Name: "manual", TriggerType: "webhook", Config: json.RawMessage(`{}`)},
		},
	}
}

func TestCreateWorkflowPersistsFullDAG(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if len(result.NodeIDs) != 2 {
		t.Fatalf("len(NodeIDs) = %d, want 2", len(result.NodeIDs))
	}
	if len(result.EdgeIDs) != 1 {
		t.Fatalf("len(EdgeIDs) = %d, want 1", len(result.EdgeIDs))
	}
	if len(result.TriggerIDs) != 1 {
		t.Fatalf("len(TriggerIDs) = %d, want 1", len(result.TriggerIDs))
	}
	if result.Workflow.Status != store.WorkflowDraft {
		t.Fatalf("status = %s, want draft", result.Workflow.Status)
	}
}

func TestCreateWorkflowRejectsDuplicateName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateWorkflow(ctx, simplePipelineSpec()); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if _, err := svc.CreateWorkflow(ctx, simplePipelineSpec()); err == nil {
		t.Fatal("expected duplicate workflow name to be rejected")
	}
}

func TestCreateWorkflowRejectsSelfLoopEdge(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	spec := simplePipelineSpec()
	spec.Edges = []orchestration.EdgeSpec{{FromIndex: 0, ToIndex: 0, Condition: store.EdgeOnSuccess}}
	if _, err := svc.CreateWorkflow(ctx, spec); err == nil {
		t.Fatal("expected self-loop edge to be rejected")
	}
}

func TestCreateWorkflowRejectsUnknownScript(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	spec := simplePipelineSpec()
	spec.Nodes[0].ScriptName = "does-not-exist"
	if _, err := svc.CreateWorkflow(ctx, spec); err == nil {
		t.Fatal("expected unknown script reference to be rejected")
	}
}

func TestCreateWorkflowResolvesScriptByName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sc, err := svc.CreateScript(ctx, "transform", "/scripts/transform.py", "python", nil, nil)
	if err != nil {
		t.Fatalf("create script: %v", err)
	}

	spec := simplePipelineSpec()
	spec.Nodes[0].ScriptName = sc.Name

	result, err := svc.CreateWorkflow(ctx, spec)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if len(result.NodeIDs) != 2 {
		t.Fatalf("len(NodeIDs) = %d, want 2", len(result.NodeIDs))
	}
}

func TestUpdateWorkflowReplacesWithFreshID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	updatedSpec := simplePipelineSpec()
	updatedSpec.Description = "updated description"
	updatedSpec.Nodes = append(updatedSpec.Nodes, orchestration.NodeSpec{Name: "notify", Type: "script", TimeoutSeconds: 10})

	updated, err := svc.UpdateWorkflow(ctx, created.Workflow.ID, updatedSpec)
	if err != nil {
		t.Fatalf("update workflow: %v", err)
	}
	if updated.Workflow.ID == created.Workflow.ID {
		t.Fatal("expected update_workflow to issue a fresh id")
	}
	if len(updated.NodeIDs) != 3 {
		t.Fatalf("len(NodeIDs) = %d, want 3", len(updated.NodeIDs))
	}

	if _, err := svc.GetWorkflow(ctx, created.Workflow.ID); err == nil {
		t.Fatal("expected old workflow id to be gone after update")
	}
}

func TestUpdateWorkflowRejectedWhileExecutionActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if _, err := svc.TriggerWorkflow(ctx, created.Workflow.ID); err != nil {
		t.Fatalf("trigger workflow: %v", err)
	}

	if _, err := svc.UpdateWorkflow(ctx, created.Workflow.ID, simplePipelineSpec()); err == nil {
		t.Fatal("expected update to be rejected while an execution is active")
	}
}

func TestDeleteWorkflowRejectedWhileExecutionActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if _, err := svc.TriggerWorkflow(ctx, created.Workflow.ID); err != nil {
		t.Fatalf("trigger workflow: %v", err)
	}

	if err := svc.DeleteWorkflow(ctx, created.Workflow.ID); err == nil {
		t.Fatal("expected delete to be rejected while an execution is active")
	}
}

func TestDeleteWorkflowSucceedsWithoutActiveExecutions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkflow(ctx, simplePipelineSpec())
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if err := svc.DeleteWorkflow(ctx, created.Workflow.ID); err != nil {
		t.Fatalf("delete workflow: %v", err)
	}
	if _, err := svc.GetWorkflow(ctx, created.Workflow.ID); err == nil {
		t.Fatal("expected workflow to be gone")
	}
}

func TestListWorkflows(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateWorkflow(ctx, simplePipelineSpec()); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	list, err := svc.ListWorkflows(ctx)
	if err != nil {
		t.Fatalf("list workflows: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
}
