package httprequest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

func TestExecuteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "ok"}`))
	}))
	defer server.Close()

	handler := NewHandler()
	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	node := &models.Node{
		ID:     "call",
		Type:   "httprequest",
		Config: map[string]any{"url": server.URL, "method": "GET"},
	}

	result, err := handler.Execute(context.Background(), node, execCtx)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	data, ok := result.(map[string]any)
	if !ok {
		t.Fatal("expected map result")
	}

	if data["status_code"] != http.StatusOK {
		t.Errorf("expected 200, got %v", data["status_code"])
	}

	parsed, ok := data["json"].(map[string]any)
	if !ok || parsed["message"] != "ok" {
		t.Errorf("expected parsed json body, got %v", data["json"])
	}
}

func TestExecuteTemplatedURL(t *testing.T) {
	var requestedPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	handler := NewHandler()
	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)
	execCtx.SetResult("lookup", map[string]any{"id": "42"})

	node := &models.Node{
		ID:     "call",
		Type:   "httprequest",
		Config: map[string]any{"url": server.URL + "/items/{{lookup.id}}"},
	}

	if _, err := handler.Execute(context.Background(), node, execCtx); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if requestedPath != "/items/42" {
		t.Errorf("URL not interpolated, requested %s", requestedPath)
	}
}

func TestExecuteErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	handler := NewHandler()
	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	node := &models.Node{ID: "call", Type: "httprequest", Config: map[string]any{"url": server.URL}}

	_, err := handler.Execute(context.Background(), node, execCtx)
	if err == nil {
		t.Fatal("expected error for 5xx response")
	}

	if workflow.IsConfigurationError(err) {
		t.Fatal("transport failure must be a runtime error")
	}
}

func TestExecuteMissingURL(t *testing.T) {
	handler := NewHandler()
	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	_, err := handler.Execute(context.Background(), &models.Node{ID: "call", Type: "httprequest", Config: map[string]any{}}, execCtx)
	if !workflow.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
