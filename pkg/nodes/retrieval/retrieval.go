// Package retrieval provides the knowledge-store lookup node handler. The
// store itself is an external collaborator behind the KnowledgeStore
// interface.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/template"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

// Document is one retrieved item with its similarity score.
type Document struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeStore searches an external embedding/vector store.
type KnowledgeStore interface {
	Search(ctx context.Context, query string, topK int) ([]Document, error)
}

const defaultTopK = 5

// Handler executes "retrieval" nodes.
type Handler struct {
	store  KnowledgeStore
	logger *slog.Logger
}

func NewHandler(store KnowledgeStore, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("module", "retrieval_node"),
	}
}

func (h *Handler) Type() string { return "retrieval" }

func (h *Handler) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error) {
	query, ok := node.Config["query"].(string)
	if !ok || query == "" {
		return nil, workflow.NewConfigurationError(node.ID, errors.New("missing required field 'query'"))
	}

	topK := defaultTopK
	if v, ok := node.Config["top_k"].(float64); ok {
		topK = int(v)
	}

	rendered := template.Resolve(query, execCtx)

	documents, err := h.store.Search(ctx, rendered, topK)
	if err != nil {
		return nil, fmt.Errorf("knowledge store search failed: %w", err)
	}

	results := make([]any, 0, len(documents))
	for _, document := range documents {
		results = append(results, map[string]any{
			"id":      document.ID,
			"content": document.Content,
			"score":   document.Score,
		})
	}

	return map[string]any{
		"query":     rendered,
		"documents": results,
		"count":     len(results),
	}, nil
}
