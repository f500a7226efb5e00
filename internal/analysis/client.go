// Package analysis submits captured frames to the perspective-analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tetra360/bolt-test/pkg/types"
)

// TimestampLayout renders ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Client talks to {API_URL}/analyze.
type Client struct {
	endpoint string
	http     *http.Client
	now      func() time.Time
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/analyze",
		http:     httpClient,
		now:      time.Now,
	}
}

// Analyze posts frame and returns the decoded result.
func (c *Client) Analyze(ctx context.Context, frame *types.Frame) (*types.AnalysisResult, error) {
	body, err := json.Marshal(types.AnalyzeRequest{
		Image:     frame.Base64Payload(),
		Timestamp: c.now().UTC().Format(TimestampLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: http.MethodPost, URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ServerError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var result types.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analysis result: %w", err)
	}
	return &result, nil
}
