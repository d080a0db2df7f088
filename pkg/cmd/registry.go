package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/flowmesh/flowmesh/pkg/nodes/conditional"
	"github.com/flowmesh/flowmesh/pkg/nodes/flow"
	"github.com/flowmesh/flowmesh/pkg/nodes/httprequest"
	"github.com/flowmesh/flowmesh/pkg/nodes/merge"
	"github.com/flowmesh/flowmesh/pkg/nodes/model"
	"github.com/flowmesh/flowmesh/pkg/nodes/retrieval"
	"github.com/flowmesh/flowmesh/pkg/nodes/transform"
	"github.com/flowmesh/flowmesh/pkg/registry"
)

// NodeBackends carries the optional external collaborators node handlers
// depend on. Handlers whose backend is unset are not registered; workflows
// referencing them fail validation instead of failing mid-run.
type NodeBackends struct {
	ModelClient     model.Client
	ModelCandidates []model.Candidate
	KnowledgeStore  retrieval.KnowledgeStore
}

// NewRegistry builds the node handler registry. Core handlers are always
// present; model and retrieval handlers join only when their backend is
// configured.
func NewRegistry(logger *slog.Logger, backends NodeBackends) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(flow.NewStartHandler())
	reg.Register(flow.NewTriggerHandler())
	reg.Register(flow.NewEndHandler())
	reg.Register(conditional.NewHandler())
	reg.Register(merge.NewHandler())
	reg.Register(transform.NewHandler())
	reg.Register(httprequest.NewHandler())

	if backends.ModelClient != nil {
		reg.Register(model.NewHandler(backends.ModelClient, backends.ModelCandidates, logger))
	} else {
		logger.Warn("model endpoint not configured, model nodes unavailable")
	}

	if backends.KnowledgeStore != nil {
		reg.Register(retrieval.NewHandler(backends.KnowledgeStore, logger))
	} else {
		logger.Warn("retrieval endpoint not configured, retrieval nodes unavailable")
	}

	return reg
}

// LoadModelCandidates reads the candidate pool from a JSON file. An empty
// path yields a small default pool so model nodes stay usable.
func LoadModelCandidates(path string) ([]model.Candidate, error) {
	if path == "" {
		return []model.Candidate{
			{Name: "standard", Quality: 0.9, CostPerToken: 0.00003, AvgLatencyMs: 1200},
			{Name: "fast", Quality: 0.7, CostPerToken: 0.000005, AvgLatencyMs: 350},
			{Name: "premium", Quality: 0.97, CostPerToken: 0.00008, AvgLatencyMs: 2500},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model candidates: %w", err)
	}

	var candidates []model.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("parsing model candidates: %w", err)
	}

	return candidates, nil
}
