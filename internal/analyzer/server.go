// Package analyzer is a stand-in analysis service for local development.
// It produces synthetic perspective metrics seeded by a face detector.
package analyzer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/Tetra360/bolt-test/internal/logger"
	"github.com/Tetra360/bolt-test/internal/middleware"
	"github.com/Tetra360/bolt-test/pkg/types"
)

// Summaries returned with synthetic results.
const (
	SummaryHigh     = "High level of attention and engagement detected. Subject is fully focused."
	SummaryModerate = "Moderate attention levels detected. Subject appears engaged but with occasional distractions."
	SummaryLow      = "Low attention detected. Subject appears distracted or disinterested."
	SummaryNoFaces  = "No faces detected in the frame."
)

// Detector finds faces in JPEG images.
type Detector interface {
	DetectFaces(jpegData []byte) ([]image.Rectangle, error)
	Annotate(jpegData []byte, faces []image.Rectangle) ([]byte, error)
}

// FaceBox is one detected face in pixel coordinates.
type FaceBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectResponse is the body of POST /detect.
type DetectResponse struct {
	Image string    `json:"image"`
	Faces []FaceBox `json:"faces"`
	Count int       `json:"count"`
	Error string    `json:"error,omitempty"`
}

type imageRequest struct {
	Image string `json:"image"`
}

// span is a closed range for a uniform draw.
type span struct{ lo, hi float64 }

var (
	presentRanges = [4]span{{60, 95}, {65, 98}, {70, 90}, {75, 95}}
	absentRanges  = [4]span{{0, 20}, {0, 15}, {0, 25}, {0, 10}}
)

// Server serves /health, /analyze and /detect.
type Server struct {
	detector Detector // /detect
	counter  Detector // /analyze
	now      func() time.Time

	mu  sync.Mutex // Protects rng
	rng *rand.Rand
}

// NewServer returns a server that outlines faces with detector and counts
// faces for /analyze with counter. A nil counter reuses detector; a nil rng
// is seeded randomly.
func NewServer(detector, counter Detector, rng *rand.Rand) *Server {
	if counter == nil {
		counter = detector
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Server{detector: detector, counter: counter, rng: rng, now: time.Now}
}

// Handler returns the analyzer routes with CORS enabled for any origin.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /detect", s.handleDetect)

	return middleware.Chain(
		middleware.Recovery,
		middleware.Logging,
		middleware.CORS,
	)(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, types.HealthResponse{
		Status:    "ok",
		Timestamp: s.now().Format(time.RFC3339Nano),
	}, http.StatusOK)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	jpegData, err := decodeImage(r)
	if err != nil {
		writeJSON(w, map[string]string{"detail": err.Error()}, http.StatusBadRequest)
		return
	}

	result, err := s.Analyze(jpegData)
	if err != nil {
		logger.Error("Analyzer", "Analyze: %v", err)
		writeJSON(w, map[string]string{"detail": err.Error()}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, result, http.StatusOK)
}

// Analyze produces a synthetic result for one JPEG frame.
func (s *Server) Analyze(jpegData []byte) (types.AnalysisResult, error) {
	start := s.now()
	faces, err := s.counter.DetectFaces(jpegData)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("detect faces: %w", err)
	}

	ranges, confidence := absentRanges, span{90, 99}
	if len(faces) > 0 {
		ranges, confidence = presentRanges, span{75, 95}
	}

	s.mu.Lock()
	var v [4]float64
	for i, rg := range ranges {
		v[i] = s.uniform(rg)
	}
	conf := s.uniform(confidence)
	s.mu.Unlock()

	summary := SummaryNoFaces
	if len(faces) > 0 {
		summary = summarize((v[0] + v[1] + v[2] + v[3]) / 4)
	}

	return types.AnalysisResult{
		Perspective: types.PerspectiveData{
			Attention:  v[0],
			Focus:      v[1],
			Engagement: v[2],
			Direction:  v[3],
		},
		PersonsDetected: len(faces),
		Confidence:      conf,
		ProcessingTime:  float64(s.now().Sub(start).Microseconds()) / 1000,
		Timestamp:       s.now().Format(time.RFC3339Nano),
		Summary:         summary,
	}, nil
}

func (s *Server) uniform(rg span) float64 {
	return rg.lo + s.rng.Float64()*(rg.hi-rg.lo)
}

func summarize(avg float64) string {
	switch {
	case avg > 80:
		return SummaryHigh
	case avg > 60:
		return SummaryModerate
	default:
		return SummaryLow
	}
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeJSON(w, map[string]string{"detail": err.Error()}, http.StatusBadRequest)
		return
	}
	jpegData, err := decodeBase64(req.Image)
	if err != nil {
		logger.Warn("Analyzer", "Face detection failed: %v", err)
		writeJSON(w, DetectResponse{Faces: []FaceBox{}, Error: err.Error()}, http.StatusOK)
		return
	}
	writeJSON(w, s.Detect(jpegData), http.StatusOK)
}

// Detect finds and outlines faces. Failures are reported in the response.
func (s *Server) Detect(jpegData []byte) DetectResponse {
	faces, err := s.detector.DetectFaces(jpegData)
	if err != nil {
		logger.Warn("Analyzer", "Face detection failed: %v", err)
		return DetectResponse{Faces: []FaceBox{}, Error: err.Error()}
	}
	logger.Debug("Analyzer", "Detected %d faces", len(faces))

	annotated, err := s.detector.Annotate(jpegData, faces)
	if err != nil {
		return DetectResponse{Faces: []FaceBox{}, Error: err.Error()}
	}

	boxes := make([]FaceBox, 0, len(faces))
	for _, f := range faces {
		boxes = append(boxes, FaceBox{X: f.Min.X, Y: f.Min.Y, Width: f.Dx(), Height: f.Dy()})
	}
	return DetectResponse{
		Image: base64.StdEncoding.EncodeToString(annotated),
		Faces: boxes,
		Count: len(boxes),
	}
}

func decodeImage(r *http.Request) ([]byte, error) {
	req, err := decodeRequest(r)
	if err != nil {
		return nil, err
	}
	return decodeBase64(req.Image)
}

func decodeRequest(r *http.Request) (imageRequest, error) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}

func decodeBase64(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid image encoding: %w", err)
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
