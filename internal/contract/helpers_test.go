package contract

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const (
	defaultBaseURL        = "http://localhost:8080"
	defaultRequestTimeout = 2 * time.Second
)

// consoleClient talks to a running console named by CONSOLE_BASE_URL.
type consoleClient struct {
	baseURL string
	client  *http.Client
}

func newConsoleClient(t *testing.T) *consoleClient {
	t.Helper()
	baseURL := os.Getenv("CONSOLE_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := &http.Client{Timeout: defaultRequestTimeout}

	if !isReachable(client, baseURL+"/api/status") {
		t.Skipf("console not reachable at %s (set CONSOLE_BASE_URL to run)", baseURL)
	}
	return &consoleClient{baseURL: baseURL, client: client}
}

func isReachable(client *http.Client, url string) bool {
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func (c *consoleClient) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, body
}

func (c *consoleClient) get(t *testing.T, path string) (*http.Response, []byte) {
	return c.do(t, http.MethodGet, path)
}

func (c *consoleClient) post(t *testing.T, path string) (*http.Response, []byte) {
	return c.do(t, http.MethodPost, path)
}

// firstSSEData returns the data line of the first event on url.
func firstSSEData(url string, timeout time.Duration) (string, http.Header, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", nil, fmt.Errorf("read sse: %w", err)
		}
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			return strings.TrimSpace(data), resp.Header, nil
		}
	}
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode json: %v\nbody=%s", err, string(body))
	}
	return payload
}

func requireString(t *testing.T, value any, field string) string {
	t.Helper()
	str, ok := value.(string)
	if !ok {
		t.Fatalf("expected %s to be string, got %T", field, value)
	}
	return str
}

func requireBool(t *testing.T, value any, field string) bool {
	t.Helper()
	b, ok := value.(bool)
	if !ok {
		t.Fatalf("expected %s to be bool, got %T", field, value)
	}
	return b
}

func requireNumber(t *testing.T, value any, field string) float64 {
	t.Helper()
	num, ok := value.(float64)
	if !ok {
		t.Fatalf("expected %s to be number, got %T", field, value)
	}
	return num
}

func requireMap(t *testing.T, value any, field string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be object, got %T", field, value)
	}
	return m
}

func assertConsoleState(t *testing.T, state map[string]any) {
	t.Helper()
	conn := requireMap(t, state["connectivity"], "connectivity")
	switch status := requireString(t, conn["status"], "connectivity.status"); status {
	case "connecting", "connected", "disconnected":
	default:
		t.Fatalf("unexpected connectivity.status %q", status)
	}

	cam := requireMap(t, state["camera"], "camera")
	requireBool(t, cam["streaming"], "camera.streaming")
	requireNumber(t, cam["width"], "camera.width")
	requireNumber(t, cam["height"], "camera.height")
	requireBool(t, state["analyzing"], "analyzing")

	if state["analysis"] != nil {
		assertAnalysis(t, requireMap(t, state["analysis"], "analysis"))
	}
}

func assertAnalysis(t *testing.T, a map[string]any) {
	t.Helper()
	p := requireMap(t, a["perspective"], "analysis.perspective")
	for _, k := range []string{"attention", "focus", "engagement", "direction"} {
		v := requireNumber(t, p[k], "analysis.perspective."+k)
		if v < 0 || v > 100 {
			t.Fatalf("analysis.perspective.%s out of range: %v", k, v)
		}
	}
	requireNumber(t, a["personsDetected"], "analysis.personsDetected")
	requireNumber(t, a["confidence"], "analysis.confidence")
	requireNumber(t, a["processingTime"], "analysis.processingTime")
	requireString(t, a["timestamp"], "analysis.timestamp")
	requireString(t, a["summary"], "analysis.summary")
}
