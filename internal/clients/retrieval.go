package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetrievalClient talks to the retrieval service that indexes extracted
// material text and returns the chunks most relevant to a query.
type RetrievalClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRetrievalClient creates a retrieval service client
func NewRetrievalClient(baseURL string) *RetrievalClient {
	return &RetrievalClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether a retrieval endpoint is configured
func (c *RetrievalClient) Enabled() bool {
	return c.baseURL != ""
}

type indexRequest struct {
	ScopeID   string `json:"scope_id"`
	ObjectKey string `json:"object_key"`
	Text      string `json:"text"`
}

// Index submits extracted text for one material into the given scope
func (c *RetrievalClient) Index(ctx context.Context, scopeID, objectKey, text string) error {
	body, err := json.Marshal(indexRequest{ScopeID: scopeID, ObjectKey: objectKey, Text: text})
	if err != nil {
		return fmt.Errorf("marshal index request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/index", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("retrieval service call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("retrieval service returned %d: %s", resp.StatusCode, string(payload))
	}

	return nil
}

type queryRequest struct {
	ScopeID    string   `json:"scope_id"`
	Query      string   `json:"query"`
	TopK       int      `json:"top_k"`
	ObjectKeys []string `json:"object_keys,omitempty"`
}

type queryResponse struct {
	Chunks []string `json:"chunks"`
}

// Query returns the chunks most relevant to the query within one scope,
// optionally restricted to the given object keys
func (c *RetrievalClient) Query(ctx context.Context, scopeID, query string, topK int, objectKeys []string) ([]string, error) {
	body, err := json.Marshal(queryRequest{ScopeID: scopeID, Query: query, TopK: topK, ObjectKeys: objectKeys})
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval service call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("retrieval service returned %d: %s", resp.StatusCode, string(payload))
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	return out.Chunks, nil
}
