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

// ExtractionClient calls the text extraction service that turns uploaded
// documents into plain text for indexing.
type ExtractionClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewExtractionClient creates an extraction service client
func NewExtractionClient(baseURL string) *ExtractionClient {
	return &ExtractionClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Enabled reports whether an extraction endpoint is configured
func (c *ExtractionClient) Enabled() bool {
	return c.baseURL != ""
}

type extractRequest struct {
	ObjectKey string `json:"object_key"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// ExtractText asks the extraction service for the plain text of one stored
// object
func (c *ExtractionClient) ExtractText(ctx context.Context, objectKey string) (string, error) {
	body, err := json.Marshal(extractRequest{ObjectKey: objectKey})
	if err != nil {
		return "", fmt.Errorf("marshal extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extraction service call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, string(payload))
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode extraction response: %w", err)
	}

	return out.Text, nil
}
