package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/flowmesh/flowmesh/pkg/nodes/model"
	"github.com/flowmesh/flowmesh/pkg/nodes/retrieval"
	"github.com/flowmesh/flowmesh/pkg/triggers/calendar"
	"github.com/flowmesh/flowmesh/pkg/triggers/conditional"
)

const collaboratorTimeout = 30 * time.Second

// httpModelClient invokes a model-serving endpoint that accepts
// {"model","prompt","max_tokens"} and answers with a model.Response body.
type httpModelClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPModelClient builds a model.Client backed by an HTTP endpoint.
func NewHTTPModelClient(endpoint string) model.Client {
	return &httpModelClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: collaboratorTimeout},
	}
}

func (c *httpModelClient) Invoke(ctx context.Context, modelName, prompt string, maxTokens int) (*model.Response, error) {
	body := map[string]any{
		"model":      modelName,
		"prompt":     prompt,
		"max_tokens": maxTokens,
	}

	var response model.Response
	if err := postJSON(ctx, c.client, c.endpoint, body, &response); err != nil {
		return nil, fmt.Errorf("invoking model %s: %w", modelName, err)
	}

	return &response, nil
}

// httpKnowledgeStore searches a retrieval endpoint that accepts
// {"query","top_k"} and answers with {"documents":[...]}.
type httpKnowledgeStore struct {
	endpoint string
	client   *http.Client
}

// NewHTTPKnowledgeStore builds a retrieval.KnowledgeStore backed by an
// HTTP endpoint.
func NewHTTPKnowledgeStore(endpoint string) retrieval.KnowledgeStore {
	return &httpKnowledgeStore{
		endpoint: endpoint,
		client:   &http.Client{Timeout: collaboratorTimeout},
	}
}

func (s *httpKnowledgeStore) Search(ctx context.Context, query string, topK int) ([]retrieval.Document, error) {
	body := map[string]any{"query": query, "top_k": topK}

	var response struct {
		Documents []retrieval.Document `json:"documents"`
	}

	if err := postJSON(ctx, s.client, s.endpoint, body, &response); err != nil {
		return nil, fmt.Errorf("searching knowledge store: %w", err)
	}

	return response.Documents, nil
}

// httpQueryEvaluator asks a query endpoint whether a condition holds. The
// endpoint accepts {"query","params"} and answers {"result":bool}.
type httpQueryEvaluator struct {
	endpoint string
	client   *http.Client
}

// NewHTTPQueryEvaluator builds a conditional trigger query evaluator
// backed by an HTTP endpoint.
func NewHTTPQueryEvaluator(endpoint string) conditional.QueryEvaluator {
	return &httpQueryEvaluator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: collaboratorTimeout},
	}
}

func (e *httpQueryEvaluator) Query(ctx context.Context, query string, params map[string]any) (bool, error) {
	body := map[string]any{"query": query, "params": params}

	var response struct {
		Result bool `json:"result"`
	}

	if err := postJSON(ctx, e.client, e.endpoint, body, &response); err != nil {
		return false, fmt.Errorf("evaluating query: %w", err)
	}

	return response.Result, nil
}

// httpCalendarSource lists upcoming events from a calendar endpoint:
// GET <endpoint>?calendar_id=...&window_minutes=... answering
// {"events":[{"id","title","start","metadata"}]}.
type httpCalendarSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCalendarSource builds a calendar.Source backed by an HTTP
// endpoint.
func NewHTTPCalendarSource(endpoint string) calendar.Source {
	return &httpCalendarSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: collaboratorTimeout},
	}
}

func (s *httpCalendarSource) UpcomingEvents(ctx context.Context, calendarID string, window time.Duration) ([]calendar.Event, error) {
	query := url.Values{}
	query.Set("calendar_id", calendarID)
	query.Set("window_minutes", fmt.Sprintf("%d", int(window.Minutes())))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing calendar events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar endpoint returned status %d", resp.StatusCode)
	}

	var response struct {
		Events []struct {
			ID       string         `json:"id"`
			Title    string         `json:"title"`
			Start    time.Time      `json:"start"`
			Metadata map[string]any `json:"metadata"`
		} `json:"events"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding calendar events: %w", err)
	}

	events := make([]calendar.Event, 0, len(response.Events))
	for _, event := range response.Events {
		events = append(events, calendar.Event{
			ID:       event.ID,
			Title:    event.Title,
			Start:    event.Start,
			Metadata: event.Metadata,
		})
	}

	return events, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
