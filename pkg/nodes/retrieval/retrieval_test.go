package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

type fakeStore struct {
	lastQuery string
	lastTopK  int
	err       error
}

func (s *fakeStore) Search(_ context.Context, query string, topK int) ([]Document, error) {
	s.lastQuery = query
	s.lastTopK = topK

	if s.err != nil {
		return nil, s.err
	}

	return []Document{{ID: "doc-1", Content: "text", Score: 0.91}}, nil
}

func TestExecuteSearch(t *testing.T) {
	store := &fakeStore{}
	handler := NewHandler(store, slog.Default())

	execCtx := models.NewExecutionContext("exec-1", "wf-1", map[string]any{"topic": "billing"}, nil)

	node := &models.Node{
		ID:     "lookup",
		Type:   "retrieval",
		Config: map[string]any{"query": "docs about {{input}}", "top_k": float64(3)},
	}

	result, err := handler.Execute(context.Background(), node, execCtx)
	if err != nil {
		t.Fatal(err)
	}

	if store.lastTopK != 3 {
		t.Errorf("expected top_k 3, got %d", store.lastTopK)
	}

	data := result.(map[string]any)
	if data["count"] != 1 {
		t.Errorf("unexpected count: %v", data["count"])
	}
}

func TestExecuteMissingQuery(t *testing.T) {
	handler := NewHandler(&fakeStore{}, slog.Default())
	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	_, err := handler.Execute(context.Background(), &models.Node{ID: "lookup", Type: "retrieval", Config: map[string]any{}}, execCtx)
	if !workflow.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestExecuteStoreFailure(t *testing.T) {
	handler := NewHandler(&fakeStore{err: errors.New("store offline")}, slog.Default())
	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	node := &models.Node{ID: "lookup", Type: "retrieval", Config: map[string]any{"query": "q"}}

	_, err := handler.Execute(context.Background(), node, execCtx)
	if err == nil || workflow.IsConfigurationError(err) {
		t.Fatalf("expected runtime error, got %v", err)
	}
}
