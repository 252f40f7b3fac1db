package orchestration

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// NodeSpec describes one node of a workflow submitted for create/update.
type NodeSpec struct {
	Name           string
	Type           string
	ScriptName     string // empty if the node runs without a bound script
	Params         json.RawMessage
	MaxRetries     int
	TimeoutSeconds int
}

// EdgeSpec references its endpoints by position within the submitted
// Nodes slice, matching the "indices resolved to node ids" wording of §4.1.
type EdgeSpec struct {
	FromIndex int
	ToIndex   int
	Condition store.EdgeCondition
}

// TriggerSpec describes one trigger bound to the workflow being created.
type TriggerSpec struct {
	Name        string
	TriggerType string
	Config      json.RawMessage
}

// WorkflowSpec is the full DAG submitted to create_workflow/update_workflow.
type WorkflowSpec struct {
	Name        string
	Description string
	Priority    int
	Nodes       []NodeSpec
	Edges       []EdgeSpec
	Triggers    []TriggerSpec
}

// WorkflowResult is what create_workflow/update_workflow return: the
// persisted workflow plus the ids it was resolved into.
type WorkflowResult struct {
	Workflow   *store.Workflow
	NodeIDs    []string
	EdgeIDs    []string
	TriggerIDs []string
}

func validateWorkflowSpec(spec WorkflowSpec) error {
	if err := core.ValidateIdentifier(spec.Name); err != nil {
		return apperr.Validation("workflow name: %v", err)
	}
	if spec.Priority < 0 || spec.Priority > 100 {
		return apperr.Validation("priority %d out of range [0,100]", spec.Priority)
	}
	if len(spec.Nodes) == 0 {
		return apperr.Validation("workflow must declare at least one node")
	}

	seen := make(map[string]bool, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if err := core.ValidateIdentifier(n.Name); err != nil {
			return apperr.Validation("node name: %v", err)
		}
		if seen[n.Name] {
			return apperr.Validation("duplicate node name %q", n.Name)
		}
		seen[n.Name] = true
		if n.TimeoutSeconds > 0 {
			if err := core.ValidateTimeout(time.Duration(n.TimeoutSeconds) * time.Second); err != nil {
				return apperr.Validation("node %q timeout: %v", n.Name, err)
			}
		}
		if n.MaxRetries < 0 {
			return apperr.Validation("node %q max_retries cannot be negative", n.Name)
		}
	}

	for _, e := range spec.Edges {
		if e.FromIndex < 0 || e.FromIndex >= len(spec.Nodes) || e.ToIndex < 0 || e.ToIndex >= len(spec.Nodes) {
			return apperr.Validation("edge references an out-of-range node index")
		}
		if e.FromIndex == e.ToIndex {
			return apperr.Validation("edge cannot connect node %q to itself", spec.Nodes[e.FromIndex].Name)
		}
	}

	for _, t := range spec.Triggers {
		if err := core.ValidateIdentifier(t.Name); err != nil {
			return apperr.Validation("trigger name: %v", err)
		}
	}
	return nil
}

// createWorkflowTx persists spec inside tx, leaving audit logging to the
// caller (both CreateWorkflow and UpdateWorkflow share this).
func (svc *Service) createWorkflowTx(ctx context.Context, tx *sql.Tx, spec WorkflowSpec) (*WorkflowResult, error) {
	w, err := svc.store.CreateWorkflow(ctx, tx, spec.Name, spec.Description, spec.Priority)
	if err != nil {
		return nil, err
	}

	result := &WorkflowResult{Workflow: w}
	nodeIDs := make([]string, len(spec.Nodes))
	for i, n := range spec.Nodes {
		var scriptID *string
		if n.ScriptName != "" {
			sc, err := svc.store.GetScriptByName(ctx, n.ScriptName)
			if err != nil {
				return nil, apperr.BusinessLogic("node %q references unknown script %q", n.Name, n.ScriptName)
			}
			scriptID = &sc.ID
		}
		node, err := svc.store.CreateNode(ctx, tx, w.ID, n.Name, n.Type, scriptID, n.Params, n.MaxRetries, n.TimeoutSeconds)
		if err != nil {
			return nil, err
		}
		nodeIDs[i] = node.ID
		result.NodeIDs = append(result.NodeIDs, node.ID)
	}

	for _, e := range spec.Edges {
		edge, err := svc.store.CreateEdge(ctx, tx, w.ID, nodeIDs[e.FromIndex], nodeIDs[e.ToIndex], e.Condition)
		if err != nil {
			return nil, err
		}
		result.EdgeIDs = append(result.EdgeIDs, edge.ID)
	}

	for _, t := range spec.Triggers {
		trig, err := svc.store.CreateTrigger(ctx, tx, w.ID, t.Name, t.TriggerType, t.Config)
		if err != nil {
			return nil, err
		}
		result.TriggerIDs = append(result.TriggerIDs, trig.ID)
	}

	return result, nil
}

// CreateWorkflow validates and persists a new workflow, its nodes, edges
// and triggers in one transaction (§4.1). Node script references are
// resolved by name; edge endpoints are resolved from their index within
// spec.Nodes.
func (svc *Service) CreateWorkflow(ctx context.Context, spec WorkflowSpec) (*WorkflowResult, error) {
	if err := validateWorkflowSpec(spec); err != nil {
		return nil, err
	}
	if _, err := svc.store.GetWorkflowByName(ctx, spec.Name); err == nil {
		return nil, apperr.Validation("workflow name %q already exists", spec.Name)
	} else if !apperr.Is(err, apperr.ResourceError) {
		return nil, err
	}

	var result *WorkflowResult
	err := svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = svc.createWorkflowTx(ctx, tx, spec)
		if err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "workflows", result.Workflow.ID, "create", nil, result.Workflow, actorFromContext(ctx))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateWorkflow implements §4.1's delete-then-recreate semantics: the
// existing workflow (and, via cascade, its nodes/edges/triggers) is torn
// down and a new one is created from spec under a fresh id, inside the
// same transaction. Rejected while any execution of id is active.
func (svc *Service) UpdateWorkflow(ctx context.Context, id string, spec WorkflowSpec) (*WorkflowResult, error) {
	if err := validateWorkflowSpec(spec); err != nil {
		return nil, err
	}

	old, err := svc.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	active, err := svc.store.HasActiveExecutions(ctx, id)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.BusinessLogic("workflow %q has active executions and cannot be updated", id)
	}

	var result *WorkflowResult
	err = svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := svc.store.DeleteWorkflow(ctx, tx, id); err != nil {
			return err
		}
		var err error
		result, err = svc.createWorkflowTx(ctx, tx, spec)
		if err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "workflows", id, "update", old, result.Workflow, actorFromContext(ctx))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteWorkflow rejects deletion while any execution of id is pending or
// running (§3 invariant 6), otherwise removes it and everything it cascades
// to, inside one audit-logged transaction.
func (svc *Service) DeleteWorkflow(ctx context.Context, id string) error {
	old, err := svc.store.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	active, err := svc.store.HasActiveExecutions(ctx, id)
	if err != nil {
		return err
	}
	if active {
		return apperr.BusinessLogic("workflow %q has active executions and cannot be deleted", id)
	}

	return svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := svc.store.DeleteWorkflow(ctx, tx, id); err != nil {
			return err
		}
		return svc.store.InsertAuditLog(ctx, tx, "workflows", id, "delete", old, nil, actorFromContext(ctx))
	})
}

// GetWorkflow is a read-through to the store; no audit entry (§4.1 only
// requires logging for mutating calls).
func (svc *Service) GetWorkflow(ctx context.Context, id string) (*store.Workflow, error) {
	return svc.store.GetWorkflow(ctx, id)
}

// ListWorkflows returns every workflow.
func (svc *Service) ListWorkflows(ctx context.Context) ([]*store.Workflow, error) {
	return svc.store.ListWorkflows(ctx)
}
