package validation

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/catalog"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/registry"
)

type noopHandler struct{ nodeType string }

func (h *noopHandler) Type() string { return h.nodeType }

func (h *noopHandler) Execute(_ context.Context, _ *models.Node, _ *models.ExecutionContext) (any, error) {
	return nil, nil
}

func newValidator(types ...string) *Validator {
	reg := registry.NewRegistry(slog.Default())
	for _, nodeType := range types {
		reg.Register(&noopHandler{nodeType: nodeType})
	}

	return NewValidator(catalog.Default(), reg, slog.Default())
}

func simpleWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:   "wf-1",
		Name: "simple",
		Nodes: []*models.Node{
			{ID: "a", Type: "start"},
			{ID: "b", Type: "end"},
		},
		Edges: []*models.Edge{{Source: "a", Target: "b"}},
	}
}

func TestValidateAcceptsSimpleWorkflow(t *testing.T) {
	v := newValidator("start", "end")

	result := v.Validate(simpleWorkflow())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateUnregisteredTypeNamesNode(t *testing.T) {
	v := newValidator("start", "end")

	wf := simpleWorkflow()
	wf.Nodes = append(wf.Nodes, &models.Node{ID: "c", Type: "teleport"})
	wf.Edges = append(wf.Edges, &models.Edge{Source: "a", Target: "c"})

	result := v.Validate(wf)
	require.False(t, result.Valid)

	found := false
	for _, issue := range result.Errors {
		if issue.Code == "unknown_node_type" && issue.NodeID == "c" {
			found = true
		}
	}

	assert.True(t, found, "error list must name node c: %+v", result.Errors)
}

func TestValidateNodeCountBounds(t *testing.T) {
	v := newValidator("start", "end")

	wf := &models.Workflow{
		ID:    "wf-1",
		Nodes: []*models.Node{{ID: "only", Type: "start"}},
	}

	result := v.Validate(wf)
	require.False(t, result.Valid)

	codes := make([]string, 0, len(result.Errors))
	for _, issue := range result.Errors {
		codes = append(codes, issue.Code)
	}

	assert.Contains(t, codes, "node_count")
	assert.Contains(t, codes, "missing_end")
}

func TestValidateEdgeReferences(t *testing.T) {
	v := newValidator("start", "end")

	wf := simpleWorkflow()
	wf.Edges = append(wf.Edges, &models.Edge{Source: "a", Target: "ghost"})

	result := v.Validate(wf)
	require.False(t, result.Valid)
	assert.Equal(t, "unknown_edge_target", result.Errors[0].Code)
}

func TestValidateOrphanIsWarning(t *testing.T) {
	v := newValidator("start", "end", "merge")

	wf := simpleWorkflow()
	wf.Nodes = append(wf.Nodes, &models.Node{ID: "island", Type: "merge"})

	result := v.Validate(wf)
	assert.True(t, result.Valid, "orphans do not block execution")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "orphan_node", result.Warnings[0].Code)
	assert.Equal(t, "island", result.Warnings[0].NodeID)
}

func TestValidateReportsCycleChain(t *testing.T) {
	v := newValidator("start", "end", "transform")

	wf := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.Node{
			{ID: "s", Type: "start"},
			{ID: "a", Type: "transform", Config: map[string]any{"expression": "x"}},
			{ID: "b", Type: "transform", Config: map[string]any{"expression": "x"}},
			{ID: "c", Type: "transform", Config: map[string]any{"expression": "x"}},
			{ID: "z", Type: "end"},
		},
		Edges: []*models.Edge{
			{Source: "s", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "a"},
			{Source: "c", Target: "z"},
		},
	}

	result := v.Validate(wf)
	require.False(t, result.Valid)

	var cycleMessage string
	for _, issue := range result.Errors {
		if issue.Code == "cycle" {
			cycleMessage = issue.Message
		}
	}

	require.NotEmpty(t, cycleMessage)

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, strings.Contains(cycleMessage, id), "chain must contain %s: %s", id, cycleMessage)
	}
}

func TestValidateConfigSchema(t *testing.T) {
	v := newValidator("start", "end", "httprequest")

	wf := simpleWorkflow()
	wf.Nodes = append(wf.Nodes, &models.Node{
		ID:     "call",
		Type:   "httprequest",
		Config: map[string]any{"method": "YEET"},
	})
	wf.Edges = append(wf.Edges, &models.Edge{Source: "a", Target: "call"})

	result := v.Validate(wf)
	require.False(t, result.Valid)

	var configIssues []Issue
	for _, issue := range result.Errors {
		if issue.Code == "invalid_config" {
			configIssues = append(configIssues, issue)
		}
	}

	// Missing required url plus enum violation on method.
	require.Len(t, configIssues, 2)
	for _, issue := range configIssues {
		assert.Equal(t, "call", issue.NodeID)
	}
}

func TestValidateDuplicateNodeIDs(t *testing.T) {
	v := newValidator("start", "end")

	wf := simpleWorkflow()
	wf.Nodes = append(wf.Nodes, &models.Node{ID: "a", Type: "end"})

	result := v.Validate(wf)
	require.False(t, result.Valid)
	assert.Equal(t, "duplicate_node", result.Errors[0].Code)
}
