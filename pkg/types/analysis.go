package types

import (
	"fmt"
	"time"
)

// Bounds of every percentage-style metric.
const (
	MetricMin = 0.0
	MetricMax = 100.0
)

// PerspectiveData holds the four bounded metrics describing inferred viewer attention.
type PerspectiveData struct {
	Attention  float64 `json:"attention"`
	Focus      float64 `json:"focus"`
	Engagement float64 `json:"engagement"`
	Direction  float64 `json:"direction"`
}

// Metric is a named perspective value.
type Metric struct {
	Name  string
	Value float64
}

// Fields returns the perspective values in display order.
func (p PerspectiveData) Fields() []Metric {
	return []Metric{
		{Name: "Attention", Value: p.Attention},
		{Name: "Focus", Value: p.Focus},
		{Name: "Engagement", Value: p.Engagement},
		{Name: "Direction", Value: p.Direction},
	}
}

// Validate reports the first field outside [0, 100].
func (p PerspectiveData) Validate() error {
	for _, m := range p.Fields() {
		if m.Value < MetricMin || m.Value > MetricMax {
			return fmt.Errorf("%s out of range: %v", m.Name, m.Value)
		}
	}
	return nil
}

// AnalysisResult is the response body of {API_URL}/analyze.
type AnalysisResult struct {
	Perspective     PerspectiveData `json:"perspective"`
	PersonsDetected int             `json:"personsDetected"`
	Confidence      float64         `json:"confidence"`     // 0-100
	ProcessingTime  float64         `json:"processingTime"` // milliseconds
	Timestamp       string          `json:"timestamp"`      // ISO-8601
	Summary         string          `json:"summary"`
}

// Validate checks the documented ranges. The console itself trusts the
// server; this is used by the stand-in analyzer and tests.
func (r AnalysisResult) Validate() error {
	if err := r.Perspective.Validate(); err != nil {
		return fmt.Errorf("perspective: %w", err)
	}
	if r.PersonsDetected < 0 {
		return fmt.Errorf("personsDetected negative: %d", r.PersonsDetected)
	}
	if r.Confidence < MetricMin || r.Confidence > MetricMax {
		return fmt.Errorf("confidence out of range: %v", r.Confidence)
	}
	if r.ProcessingTime < 0 {
		return fmt.Errorf("processingTime negative: %v", r.ProcessingTime)
	}
	return nil
}

// ConnectivityStatus is the tri-state reachability of the analysis service.
type ConnectivityStatus string

const (
	StatusConnecting   ConnectivityStatus = "connecting"
	StatusConnected    ConnectivityStatus = "connected"
	StatusDisconnected ConnectivityStatus = "disconnected"
)

// ConnectivityState is the most recent health probe outcome.
type ConnectivityState struct {
	Status        ConnectivityStatus `json:"status"`
	LastCheckedAt *time.Time         `json:"lastCheckedAt"`
	LastError     string             `json:"lastError,omitempty"`
}

// HealthResponse mirrors the JSON served by {API_URL}/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
