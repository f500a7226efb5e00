package types

import (
	"encoding/json"
	"testing"
)

func TestFrameBase64Payload(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{DataURIPrefix + "QUJD", "QUJD"},
		{"data:image/png;base64,eHl6", "eHl6"},
		{"QUJD", "QUJD"},
		{"data:,", ""},
	}
	for _, tc := range cases {
		f := &Frame{DataURI: tc.uri}
		if got := f.Base64Payload(); got != tc.want {
			t.Fatalf("Base64Payload(%q) = %q, want %q", tc.uri, got, tc.want)
		}
	}
}

func TestAnalysisResultJSONFieldNames(t *testing.T) {
	body := []byte(`{"perspective":{"attention":80,"focus":60,"engagement":45,"direction":90},
		"personsDetected":2,"confidence":92.3,"processingTime":150.2,
		"timestamp":"2024-01-01T00:00:00Z","summary":"Engaged viewer"}`)

	var result AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.PersonsDetected != 2 || result.Confidence != 92.3 || result.ProcessingTime != 150.2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Perspective.Direction != 90 || result.Summary != "Engaged viewer" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if err := result.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAnalysisResultValidateRanges(t *testing.T) {
	base := AnalysisResult{
		Perspective: PerspectiveData{Attention: 10, Focus: 20, Engagement: 30, Direction: 40},
		Confidence:  50,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid result rejected: %v", err)
	}

	bad := base
	bad.Perspective.Focus = 100.5
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected focus out of range")
	}

	bad = base
	bad.Confidence = -1
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected confidence out of range")
	}

	bad = base
	bad.PersonsDetected = -1
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected negative persons rejected")
	}

	bad = base
	bad.ProcessingTime = -0.1
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected negative processing time rejected")
	}
}

func TestPerspectiveFieldsOrder(t *testing.T) {
	fields := PerspectiveData{Attention: 1, Focus: 2, Engagement: 3, Direction: 4}.Fields()
	want := []string{"Attention", "Focus", "Engagement", "Direction"}
	for i, m := range fields {
		if m.Name != want[i] || m.Value != float64(i+1) {
			t.Fatalf("fields[%d] = %+v", i, m)
		}
	}
}
