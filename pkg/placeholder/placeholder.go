// Package placeholder resolves {{ node_name.field }} tokens in a task's
// parameter map against prior execution outputs (§4.3).
package placeholder

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/fluxorio/orchestrator/pkg/store"
)

// tokenPattern matches `{{ node_name.field }}`, outer whitespace ignored.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\.([^\s}]+)\s*\}\}`)

// Resolver substitutes tokens in a node's params using the ExecutionOutput
// rows recorded so far for the same execution.
type Resolver struct {
	store *store.Store
}

// New returns a Resolver backed by s.
func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// outputLookup maps a node name to its most recent successful output's
// result_data, the only shape the substitution rule reads from (§4.3).
type outputLookup map[string]map[string]interface{}

// Resolve substitutes every token in params for a single task. workflowID
// scopes the node-name lookup; executionID scopes the output lookup.
func (r *Resolver) Resolve(ctx context.Context, workflowID, executionID string, params json.RawMessage) (json.RawMessage, error) {
	if !tokenPattern.Match(params) {
		return params, nil
	}

	nodes, err := r.store.ListNodesByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	nameToID := make(map[string]string, len(nodes))
	idToName := make(map[string]string, len(nodes))
	for _, n := range nodes {
		nameToID[n.Name] = n.ID
		idToName[n.ID] = n.Name
	}

	nodeIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		nodeIDs = append(nodeIDs, n.ID)
	}
	outputs, err := r.store.ListOutputsByNodes(ctx, executionID, nodeIDs)
	if err != nil {
		return nil, err
	}

	lookup := buildLookup(outputs, idToName)

	var tree interface{}
	if err := json.Unmarshal(params, &tree); err != nil {
		return params, nil
	}
	resolved := substitute(tree, lookup)

	out, err := json.Marshal(resolved)
	if err != nil {
		return params, nil
	}
	return out, nil
}

// BatchItem is one task's parameters awaiting bulk resolution.
type BatchItem struct {
	TaskID string
	Params json.RawMessage
}

// ResolveBatch resolves every item's params for the same execution in at
// most two store queries total (§4.3 bulk mode), regardless of batch size.
func (r *Resolver) ResolveBatch(ctx context.Context, workflowID, executionID string, items []BatchItem) (map[string]json.RawMessage, error) {
	nodes, err := r.store.ListNodesByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	idToName := make(map[string]string, len(nodes))
	nodeIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		idToName[n.ID] = n.Name
		nodeIDs = append(nodeIDs, n.ID)
	}

	outputs, err := r.store.ListOutputsByNodes(ctx, executionID, nodeIDs)
	if err != nil {
		return nil, err
	}
	lookup := buildLookup(outputs, idToName)

	out := make(map[string]json.RawMessage, len(items))
	for _, item := range items {
		var tree interface{}
		if err := json.Unmarshal(item.Params, &tree); err != nil {
			out[item.TaskID] = item.Params
			continue
		}
		resolved := substitute(tree, lookup)
		b, err := json.Marshal(resolved)
		if err != nil {
			out[item.TaskID] = item.Params
			continue
		}
		out[item.TaskID] = b
	}
	return out, nil
}

func buildLookup(outputs []*store.ExecutionOutput, idToName map[string]string) outputLookup {
	lookup := make(outputLookup, len(outputs))
	for _, o := range outputs {
		if o.Status != store.OutputSuccess {
			continue
		}
		name, ok := idToName[o.NodeID]
		if !ok {
			continue
		}
		var result map[string]interface{}
		if err := json.Unmarshal(o.Result, &result); err != nil {
			continue
		}
		lookup[name] = result
	}
	return lookup
}

// substitute walks tree recursively, replacing every string scalar that
// matches tokenPattern. Non-string values pass through unchanged (§4.3).
func substitute(node interface{}, lookup outputLookup) interface{} {
	switch v := node.(type) {
	case string:
		// A string that is exactly one token round-trips the field's native
		// JSON type (number/bool/object), not its stringified form — the
		// round-trip property in §8 (property 7).
		if m := tokenPattern.FindStringSubmatch(strings.TrimSpace(v)); m != nil && strings.TrimSpace(v) == m[0] {
			if val, ok := lookupField(lookup, m[1], m[2]); ok {
				return val
			}
			return v
		}
		return substituteString(v, lookup)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = substitute(elem, lookup)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			out[k] = substitute(elem, lookup)
		}
		return out
	default:
		return v
	}
}

// substituteString resolves every token embedded in a larger string s (s is
// not itself a single bare token — that case is handled in substitute so the
// field's native JSON type is preserved). A token whose node is unknown, or
// whose node has not (yet) succeeded, or whose field is absent, is left
// verbatim — not an error (§4.3).
func substituteString(s string, lookup outputLookup) string {
	if !tokenPattern.MatchString(s) {
		return s
	}

	return tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := tokenPattern.FindStringSubmatch(match)
		val, ok := lookupField(lookup, sub[1], sub[2])
		if !ok {
			return match
		}
		if str, isStr := val.(string); isStr {
			return str
		}
		b, err := json.Marshal(val)
		if err != nil {
			return match
		}
		return string(b)
	})
}

func lookupField(lookup outputLookup, nodeName, field string) (interface{}, bool) {
	result, ok := lookup[nodeName]
	if !ok {
		return nil, false
	}
	val, ok := result[field]
	return val, ok
}
