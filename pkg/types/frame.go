package types

import (
	"strings"
	"time"
)

// DataURIPrefix is the prefix of every captured frame's data URI.
const DataURIPrefix = "data:image/jpeg;base64,"

// Frame represents a single still captured from a live camera stream
type Frame struct {
	DataURI    string    // data:image/jpeg;base64,<payload>
	JPEG       []byte    // Encoded JPEG bytes
	Width      int       // Frame width (stream intrinsic width)
	Height     int       // Frame height (stream intrinsic height)
	CapturedAt time.Time // Capture timestamp
	Sequence   uint64    // Sequential capture number
}

// Base64Payload returns the data URI without its "data:...;base64," prefix.
// A URI without a comma is returned unchanged.
func (f *Frame) Base64Payload() string {
	if i := strings.IndexByte(f.DataURI, ','); i >= 0 {
		return f.DataURI[i+1:]
	}
	return f.DataURI
}

// AnalyzeRequest is the body POSTed to {API_URL}/analyze.
type AnalyzeRequest struct {
	Image     string `json:"image"`     // base64 JPEG, no data URI prefix
	Timestamp string `json:"timestamp"` // ISO-8601
}
