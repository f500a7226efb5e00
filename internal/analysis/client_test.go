package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Tetra360/bolt-test/pkg/types"
)

const scenarioBody = `{"perspective":{"attention":80,"focus":60,"engagement":45,"direction":90},
"personsDetected":2,"confidence":92.3,"processingTime":150.2,
"timestamp":"2024-01-01T00:00:00Z","summary":"Engaged viewer"}`

func testFrame() *types.Frame {
	return &types.Frame{DataURI: types.DataURIPrefix + "SGVsbG8=", Width: 2, Height: 2}
}

func TestClientAnalyzeSendsContract(t *testing.T) {
	var got types.AnalyzeRequest
	var headers http.Header
	var method, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, headers = r.Method, r.URL.Path, r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(scenarioBody))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", srv.Client())
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.FixedZone("JST", 9*3600))
	client.now = func() time.Time { return fixed }

	result, err := client.Analyze(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if method != http.MethodPost || path != "/analyze" {
		t.Fatalf("request = %s %s", method, path)
	}
	if ct := headers.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if headers.Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
	if got.Image != "SGVsbG8=" {
		t.Fatalf("image = %q, want prefix stripped", got.Image)
	}
	if got.Timestamp != "2024-05-05T22:08:09.123Z" {
		t.Fatalf("timestamp = %q", got.Timestamp)
	}

	if result.PersonsDetected != 2 || result.Confidence != 92.3 || result.ProcessingTime != 150.2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Perspective.Attention != 80 || result.Summary != "Engaged viewer" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClientAnalyzeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Analyze(context.Background(), testFrame())
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serverErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", serverErr.StatusCode)
	}
	if serverErr.Error() != "Server responded with 503" {
		t.Fatalf("message = %q", serverErr.Error())
	}
}

func TestClientAnalyzeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Analyze(context.Background(), testFrame())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.Unwrap() == nil {
		t.Fatalf("NetworkError should wrap the transport error")
	}
}

func TestClientAnalyzeBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Analyze(context.Background(), testFrame())
	if err == nil {
		t.Fatalf("expected decode error")
	}
	var serverErr *ServerError
	var netErr *NetworkError
	if errors.As(err, &serverErr) || errors.As(err, &netErr) {
		t.Fatalf("decode failure misclassified: %v", err)
	}
}
