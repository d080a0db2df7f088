// Package model provides the model-invocation node handler. The concrete
// inference backend is an external collaborator behind the Client interface.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/template"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

// Response carries the model output plus cost/latency/usage metrics.
type Response struct {
	Content          string  `json:"content"`
	Model            string  `json:"model"`
	CostUSD          float64 `json:"cost_usd"`
	LatencyMs        int64   `json:"latency_ms"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
}

// Client invokes a concrete model by name.
type Client interface {
	Invoke(ctx context.Context, model, prompt string, maxTokens int) (*Response, error)
}

// Candidate describes one selectable model.
type Candidate struct {
	Name         string  `json:"name"`
	Quality      float64 `json:"quality"`
	CostPerToken float64 `json:"cost_per_token"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Weights bias the selection scoring.
type Weights struct {
	Quality float64 `json:"quality"`
	Cost    float64 `json:"cost"`
	Latency float64 `json:"latency"`
}

// Strategy selects a target model from the candidate pool.
type Strategy interface {
	Select(candidates []Candidate, weights Weights) (Candidate, error)
}

var ErrNoCandidates = errors.New("no candidate models configured")

// WeightedStrategy scores candidates by quality minus weighted cost and
// latency penalties.
type WeightedStrategy struct{}

func (WeightedStrategy) Select(candidates []Candidate, weights Weights) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoCandidates
	}

	if weights.Quality == 0 && weights.Cost == 0 && weights.Latency == 0 {
		weights = Weights{Quality: 1, Cost: 0.5, Latency: 0.25}
	}

	best := candidates[0]
	bestScore := score(best, weights)

	for _, candidate := range candidates[1:] {
		if s := score(candidate, weights); s > bestScore {
			best, bestScore = candidate, s
		}
	}

	return best, nil
}

func score(c Candidate, w Weights) float64 {
	// Latency normalized to seconds so the penalty is comparable to the
	// quality score's 0..1 range.
	return w.Quality*c.Quality - w.Cost*c.CostPerToken*1000 - w.Latency*c.AvgLatencyMs/1000
}

// CheapestStrategy picks the lowest cost-per-token candidate.
type CheapestStrategy struct{}

func (CheapestStrategy) Select(candidates []Candidate, _ Weights) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoCandidates
	}

	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.CostPerToken < best.CostPerToken {
			best = candidate
		}
	}

	return best, nil
}

// FastestStrategy picks the lowest average-latency candidate.
type FastestStrategy struct{}

func (FastestStrategy) Select(candidates []Candidate, _ Weights) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoCandidates
	}

	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.AvgLatencyMs < best.AvgLatencyMs {
			best = candidate
		}
	}

	return best, nil
}

// Handler executes "model" nodes: selects a target model via the configured
// strategy, invokes it with the interpolated prompt and returns content plus
// metrics.
type Handler struct {
	client     Client
	candidates []Candidate
	logger     *slog.Logger
}

func NewHandler(client Client, candidates []Candidate, logger *slog.Logger) *Handler {
	return &Handler{
		client:     client,
		candidates: candidates,
		logger:     logger.With("module", "model_node"),
	}
}

func (h *Handler) Type() string { return "model" }

func (h *Handler) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error) {
	prompt, ok := node.Config["prompt"].(string)
	if !ok || prompt == "" {
		return nil, workflow.NewConfigurationError(node.ID, errors.New("missing required field 'prompt'"))
	}

	strategy, err := strategyFor(node.Config)
	if err != nil {
		return nil, workflow.NewConfigurationError(node.ID, err)
	}

	weights := parseWeights(node.Config)

	candidate, err := strategy.Select(h.candidates, weights)
	if err != nil {
		return nil, workflow.NewConfigurationError(node.ID, err)
	}

	maxTokens := 1024
	if v, ok := node.Config["max_tokens"].(float64); ok {
		maxTokens = int(v)
	}

	rendered := template.Resolve(prompt, execCtx)

	h.logger.Debug("Invoking model", "node_id", node.ID, "model", candidate.Name)

	response, err := h.client.Invoke(ctx, candidate.Name, rendered, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("model %s invocation failed: %w", candidate.Name, err)
	}

	return map[string]any{
		"content":           response.Content,
		"model":             response.Model,
		"cost_usd":          response.CostUSD,
		"latency_ms":        response.LatencyMs,
		"prompt_tokens":     response.PromptTokens,
		"completion_tokens": response.CompletionTokens,
	}, nil
}

func strategyFor(config map[string]any) (Strategy, error) {
	name, _ := config["strategy"].(string)

	switch name {
	case "", "weighted":
		return WeightedStrategy{}, nil
	case "cheapest":
		return CheapestStrategy{}, nil
	case "fastest":
		return FastestStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", name)
	}
}

func parseWeights(config map[string]any) Weights {
	weights := Weights{}

	raw, ok := config["weights"].(map[string]any)
	if !ok {
		return weights
	}

	if v, ok := raw["quality"].(float64); ok {
		weights.Quality = v
	}

	if v, ok := raw["cost"].(float64); ok {
		weights.Cost = v
	}

	if v, ok := raw["latency"].(float64); ok {
		weights.Latency = v
	}

	return weights
}
