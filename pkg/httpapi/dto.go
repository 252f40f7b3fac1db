package httpapi

import (
	"encoding/json"
	"time"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/orchestration"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// workflowNodeJSON mirrors one entry of the workflow JSON's "nodes" array
// (§6).
type workflowNodeJSON struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	ScriptName     string          `json:"script_name"`
	Params         json.RawMessage `json:"params"`
	MaxRetries     int             `json:"max_retries"`
	TimeoutSeconds int             `json:"timeout_seconds"`
}

// workflowEdgeJSON mirrors one entry of the workflow JSON's "edges" array;
// endpoints are named, not indexed, on the wire (§6).
type workflowEdgeJSON struct {
	FromNode      string `json:"from_node"`
	ToNode        string `json:"to_node"`
	ConditionType string `json:"condition_type"`
}

// workflowTriggerJSON mirrors one entry of the workflow JSON's "triggers"
// array.
type workflowTriggerJSON struct {
	Name        string          `json:"name"`
	TriggerType string          `json:"trigger_type"`
	Config      json.RawMessage `json:"config"`
	IsActive    *bool           `json:"is_active"`
}

// workflowRequest is the full create/update body (§6).
type workflowRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Priority    int                   `json:"priority"`
	Nodes       []workflowNodeJSON    `json:"nodes"`
	Edges       []workflowEdgeJSON    `json:"edges"`
	Triggers    []workflowTriggerJSON `json:"triggers"`
}

// toSpec translates the wire format's named edge endpoints into the
// by-index form orchestration.WorkflowSpec expects. A pending-is_active
// list is returned alongside so the caller can apply SetTriggerActive
// after creation, since TriggerSpec itself carries no is_active field.
func (w workflowRequest) toSpec() (orchestration.WorkflowSpec, []bool, error) {
	index := make(map[string]int, len(w.Nodes))
	nodes := make([]orchestration.NodeSpec, len(w.Nodes))
	for i, n := range w.Nodes {
		if _, dup := index[n.Name]; dup {
			return orchestration.WorkflowSpec{}, nil, apperr.Validation("duplicate node name %q", n.Name)
		}
		index[n.Name] = i
		nodes[i] = orchestration.NodeSpec{
			Name:           n.Name,
			Type:           n.Type,
			ScriptName:     n.ScriptName,
			Params:         n.Params,
			MaxRetries:     n.MaxRetries,
			TimeoutSeconds: n.TimeoutSeconds,
		}
	}

	edges := make([]orchestration.EdgeSpec, len(w.Edges))
	for i, e := range w.Edges {
		fromIdx, ok := index[e.FromNode]
		if !ok {
			return orchestration.WorkflowSpec{}, nil, apperr.Validation("edge references unknown node %q", e.FromNode)
		}
		toIdx, ok := index[e.ToNode]
		if !ok {
			return orchestration.WorkflowSpec{}, nil, apperr.Validation("edge references unknown node %q", e.ToNode)
		}
		condition := store.EdgeCondition(e.ConditionType)
		if condition == "" {
			condition = store.EdgeOnSuccess
		}
		edges[i] = orchestration.EdgeSpec{FromIndex: fromIdx, ToIndex: toIdx, Condition: condition}
	}

	triggers := make([]orchestration.TriggerSpec, len(w.Triggers))
	active := make([]bool, len(w.Triggers))
	for i, t := range w.Triggers {
		triggers[i] = orchestration.TriggerSpec{Name: t.Name, TriggerType: t.TriggerType, Config: t.Config}
		active[i] = t.IsActive == nil || *t.IsActive
	}

	return orchestration.WorkflowSpec{
		Name:        w.Name,
		Description: w.Description,
		Priority:    w.Priority,
		Nodes:       nodes,
		Edges:       edges,
		Triggers:    triggers,
	}, active, nil
}

// scriptCreateRequest is POST /scripts/create's body (§6).
type scriptCreateRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Language     string          `json:"language"`
	Path         string          `json:"path"`
	InputSchema  json.RawMessage `json:"input_params"`
	OutputSchema json.RawMessage `json:"output_params"`
}

// workflowResponse is the body for create (201) and update (200) (§6).
type workflowResponse struct {
	WorkflowID string    `json:"workflow_id"`
	Nodes      []string  `json:"nodes"`
	Edges      []string  `json:"edges"`
	Triggers   []string  `json:"triggers"`
	CreatedAt  time.Time `json:"created_at"`
}

func newWorkflowResponse(r *orchestration.WorkflowResult) workflowResponse {
	return workflowResponse{
		WorkflowID: r.Workflow.ID,
		Nodes:      r.NodeIDs,
		Edges:      r.EdgeIDs,
		Triggers:   r.TriggerIDs,
		CreatedAt:  r.Workflow.CreatedAt,
	}
}
