package orchestration_test

import (
	"context"
	"testing"
)

func TestCreateScriptSucceeds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sc, err := svc.CreateScript(ctx, "transform", "/scripts/transform.py", "python", nil, nil)
	if err != nil {
		t.Fatalf("create script: %v", err)
	}
	if sc.Name != "transform" {
		t.Fatalf("name = %q, want transform", sc.Name)
	}
}

func TestCreateScriptRejectsDuplicateName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateScript(ctx, "transform", "/scripts/transform.py", "python", nil, nil); err != nil {
		t.Fatalf("create script: %v", err)
	}
	if _, err := svc.CreateScript(ctx, "transform", "/other/path.py", "python", nil, nil); err == nil {
		t.Fatal("expected duplicate script name to be rejected")
	}
}

func TestDeleteScriptBlockedWhileReferenced(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sc, err := svc.CreateScript(ctx, "transform", "/scripts/transform.py", "python", nil, nil)
	if err != nil {
		t.Fatalf("create script: %v", err)
	}

	spec := simplePipelineSpec()
	spec.Nodes[0].ScriptName = sc.Name
	if _, err := svc.CreateWorkflow(ctx, spec); err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	if err := svc.DeleteScript(ctx, sc.ID); err == nil {
		t.Fatal("expected delete to be blocked while script is referenced by a node")
	}
}

func TestDeleteScriptSucceedsOnceUnreferenced(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sc, err := svc.CreateScript(ctx, "transform", "/scripts/transform.py", "python", nil, nil)
	if err != nil {
		t.Fatalf("create script: %v", err)
	}
	if err := svc.DeleteScript(ctx, sc.ID); err != nil {
		t.Fatalf("delete script: %v", err)
	}
	if _, err := svc.GetScript(ctx, sc.ID); err == nil {
		t.Fatal("expected script to be gone")
	}
}

func TestListScripts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateScript(ctx, "transform", "/scripts/transform.py", "python", nil, nil); err != nil {
		t.Fatalf("create script: %v", err)
	}
	list, err := svc.ListScripts(ctx)
	if err != nil {
		t.Fatalf("list scripts: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
}
