// Package httprequest provides the bounded-timeout HTTP call node handler.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/template"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20 // 4 MiB
)

// Handler executes "httprequest" nodes. Each call carries its own
// call-level timeout independent of the run's wall-clock budget.
type Handler struct {
	client *http.Client
}

func NewHandler() *Handler {
	return &Handler{client: &http.Client{}}
}

func (h *Handler) Type() string { return "httprequest" }

func (h *Handler) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error) {
	url, ok := node.Config["url"].(string)
	if !ok || url == "" {
		return nil, workflow.NewConfigurationError(node.ID, errors.New("missing required field 'url'"))
	}

	method := "GET"
	if m, ok := node.Config["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	timeout := defaultTimeout
	if v, ok := node.Config["timeout_seconds"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	renderedURL := template.Resolve(url, execCtx)

	var body io.Reader
	if rawBody, ok := node.Config["body"].(string); ok && rawBody != "" {
		body = strings.NewReader(template.Resolve(rawBody, execCtx))
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(callCtx, method, renderedURL, body)
	if err != nil {
		return nil, workflow.NewConfigurationError(node.ID, fmt.Errorf("invalid request: %w", err))
	}

	if headers, ok := node.Config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if header, ok := value.(string); ok {
				request.Header.Set(key, template.Resolve(header, execCtx))
			}
		}
	}

	response, err := h.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("http request to %s failed: %w", renderedURL, err)
	}
	defer func() { _ = response.Body.Close() }()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := map[string]any{
		"status_code": response.StatusCode,
		"body":        string(responseBody),
		"url":         renderedURL,
	}

	var parsed any
	if json.Unmarshal(responseBody, &parsed) == nil {
		result["json"] = parsed
	}

	if response.StatusCode >= http.StatusBadRequest {
		return result, fmt.Errorf("http request to %s returned status %d", renderedURL, response.StatusCode)
	}

	return result, nil
}
