// Package validation performs structural and configuration checks on a
// workflow definition before any execution is attempted.
package validation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowmesh/flowmesh/pkg/catalog"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/registry"
)

const (
	minNodeCount = 2
	maxNodeCount = 1000
)

// Issue is one validation finding tied to a node when applicable.
type Issue struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

// Result aggregates findings. A workflow with a non-empty error list must
// never be executed; warnings do not block execution.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Result) addError(code, nodeID, message string) {
	r.Errors = append(r.Errors, Issue{Code: code, NodeID: nodeID, Message: message})
}

func (r *Result) addWarning(code, nodeID, message string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, NodeID: nodeID, Message: message})
}

// Validator checks workflows against the node-type catalog and the handler
// registry.
type Validator struct {
	catalog  *catalog.Catalog
	registry *registry.Registry
	logger   *slog.Logger
}

func NewValidator(cat *catalog.Catalog, reg *registry.Registry, logger *slog.Logger) *Validator {
	return &Validator{
		catalog:  cat,
		registry: reg,
		logger:   logger.With("module", "validation"),
	}
}

// Validate runs every structural and configuration check and collects all
// findings rather than stopping at the first.
func (v *Validator) Validate(workflow *models.Workflow) *Result {
	result := &Result{Errors: []Issue{}, Warnings: []Issue{}}

	v.checkNodeCount(workflow, result)
	v.checkBoundaries(workflow, result)
	v.checkNodes(workflow, result)
	v.checkEdges(workflow, result)
	v.checkOrphans(workflow, result)
	v.checkCycles(workflow, result)

	result.Valid = len(result.Errors) == 0

	return result
}

func (v *Validator) checkNodeCount(workflow *models.Workflow, result *Result) {
	count := len(workflow.Nodes)
	if count < minNodeCount || count > maxNodeCount {
		result.addError("node_count", "",
			fmt.Sprintf("workflow must have between %d and %d nodes, has %d", minNodeCount, maxNodeCount, count))
	}
}

func (v *Validator) checkBoundaries(workflow *models.Workflow, result *Result) {
	hasStart, hasEnd := false, false

	for _, node := range workflow.Nodes {
		if v.catalog.IsStart(node.Type) {
			hasStart = true
		}

		if v.catalog.IsEnd(node.Type) {
			hasEnd = true
		}
	}

	if !hasStart {
		result.addError("missing_start", "", "workflow must have at least one start-type node")
	}

	if !hasEnd {
		result.addError("missing_end", "", "workflow must have at least one end-type node")
	}
}

func (v *Validator) checkNodes(workflow *models.Workflow, result *Result) {
	seen := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if seen[node.ID] {
			result.addError("duplicate_node", node.ID, fmt.Sprintf("node id %q is not unique", node.ID))
		}

		seen[node.ID] = true

		// Handler presence is checked independently of config validity.
		if !v.registry.Has(node.Type) {
			result.addError("unknown_node_type", node.ID,
				fmt.Sprintf("node %s has type %q with no registered handler", node.ID, node.Type))
		}

		nodeType, ok := v.catalog.Get(node.Type)
		if !ok || nodeType.ConfigSchema == nil {
			continue
		}

		v.checkConfigSchema(node, nodeType, result)
	}
}

func (v *Validator) checkConfigSchema(node *models.Node, nodeType catalog.NodeType, result *Result) {
	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(nodeType.ConfigSchema)
	dataLoader := gojsonschema.NewGoLoader(config)

	schemaResult, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		result.addError("invalid_schema", node.ID,
			fmt.Sprintf("config schema check failed for node %s: %v", node.ID, err))

		return
	}

	for _, schemaError := range schemaResult.Errors() {
		result.addError("invalid_config", node.ID,
			fmt.Sprintf("node %s config: %s", node.ID, schemaError.String()))
	}
}

func (v *Validator) checkEdges(workflow *models.Workflow, result *Result) {
	for _, edge := range workflow.Edges {
		if _, ok := workflow.NodeByID(edge.Source); !ok {
			result.addError("unknown_edge_source", edge.Source,
				fmt.Sprintf("edge references unknown source node %q", edge.Source))
		}

		if _, ok := workflow.NodeByID(edge.Target); !ok {
			result.addError("unknown_edge_target", edge.Target,
				fmt.Sprintf("edge references unknown target node %q", edge.Target))
		}
	}
}

// Orphan nodes, unreferenced by any edge and not flow boundaries, are
// warnings, not errors.
func (v *Validator) checkOrphans(workflow *models.Workflow, result *Result) {
	referenced := make(map[string]bool)
	for _, edge := range workflow.Edges {
		referenced[edge.Source] = true
		referenced[edge.Target] = true
	}

	for _, node := range workflow.Nodes {
		if referenced[node.ID] || v.catalog.IsStart(node.Type) || v.catalog.IsEnd(node.Type) {
			continue
		}

		result.addWarning("orphan_node", node.ID,
			fmt.Sprintf("node %s is not connected to any edge", node.ID))
	}
}

// checkCycles runs a depth-first traversal with an explicit recursion
// stack. Any node revisited while still on the stack yields a reported
// cycle chain; all chains are collected, not just the first.
func (v *Validator) checkCycles(workflow *models.Workflow, result *Result) {
	adjacency := make(map[string][]string)
	for _, edge := range workflow.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	stack := make([]string, 0, len(workflow.Nodes))

	var chains [][]string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, next := range adjacency[id] {
			if onStack[next] {
				chains = append(chains, extractChain(stack, next))

				continue
			}

			if !visited[next] {
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	ids := make([]string, 0, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		ids = append(ids, node.ID)
	}

	sort.Strings(ids)

	for _, id := range ids {
		if !visited[id] {
			visit(id)
		}
	}

	for _, chain := range chains {
		result.addError("cycle", chain[0],
			fmt.Sprintf("cycle detected: %s", strings.Join(chain, " -> ")))
	}
}

// extractChain returns the portion of the stack from the revisited node to
// the top, closed back onto the revisited node.
func extractChain(stack []string, start string) []string {
	for i, id := range stack {
		if id == start {
			chain := make([]string, 0, len(stack)-i+1)
			chain = append(chain, stack[i:]...)
			chain = append(chain, start)

			return chain
		}
	}

	return []string{start, start}
}
