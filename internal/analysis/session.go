package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tetra360/bolt-test/internal/camera"
	"github.com/Tetra360/bolt-test/internal/logger"
	"github.com/Tetra360/bolt-test/pkg/types"
)

// Outcome labels for completed analyses.
const (
	OutcomeSuccess      = "success"
	OutcomeServerError  = "server_error"
	OutcomeNetworkError = "network_error"
	OutcomeError        = "error"
)

// Toast texts shown when an analysis resolves.
const (
	SuccessTitle       = "Analysis Complete"
	SuccessDescription = "Perspective analysis data received"
	FailureTitle       = "Analysis Failed"
	FailureDescription = "Failed to analyze webcam frame. Check server connection."
)

// FrameSource captures the frame to analyze. A nil frame means no active stream.
type FrameSource interface {
	CaptureFrame() (*types.Frame, error)
}

// Analyzer submits a frame for analysis.
type Analyzer interface {
	Analyze(ctx context.Context, frame *types.Frame) (*types.AnalysisResult, error)
}

// Notifier receives user-visible toasts.
type Notifier interface {
	Notify(toast types.Toast)
}

// Recorder observes analysis outcomes, typically for metrics.
type Recorder interface {
	ObserveAnalysis(outcome string, elapsed time.Duration)
	SetAnalyzing(active bool)
}

// Session runs capture+analyze cycles, at most one at a time.
type Session struct {
	frames   FrameSource
	analyzer Analyzer
	notifier Notifier
	recorder Recorder

	// OnAnalyzing is called when the session enters or leaves the analyzing state.
	OnAnalyzing func(analyzing bool)
	// OnResult receives every successful result.
	OnResult func(result *types.AnalysisResult)

	inFlight atomic.Bool
	now      func() time.Time
}

// NewSession wires a session. notifier and recorder may be nil.
func NewSession(frames FrameSource, analyzer Analyzer, notifier Notifier, recorder Recorder) *Session {
	return &Session{
		frames:   frames,
		analyzer: analyzer,
		notifier: notifier,
		recorder: recorder,
		now:      time.Now,
	}
}

// Analyzing reports whether an analysis is in flight.
func (s *Session) Analyzing() bool {
	return s.inFlight.Load()
}

// AnalyzeFrame captures one frame and submits it. A call made while another
// is outstanding returns ErrBusy; without an active stream it returns
// camera.ErrCaptureUnavailable. Neither case notifies the user.
func (s *Session) AnalyzeFrame(ctx context.Context) (*types.AnalysisResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	frame, err := s.frames.CaptureFrame()
	if err == nil && frame == nil {
		s.inFlight.Store(false)
		return nil, camera.ErrCaptureUnavailable
	}

	s.setAnalyzing(true)
	defer s.setAnalyzing(false)

	if err != nil {
		s.finish(OutcomeError, 0, fmt.Errorf("capture frame: %w", err))
		return nil, fmt.Errorf("capture frame: %w", err)
	}

	// The in-flight request outlives a caller that goes away.
	ctx = context.WithoutCancel(ctx)

	start := s.now()
	result, err := s.analyzer.Analyze(ctx, frame)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.finish(outcomeOf(err), elapsed, err)
		return nil, err
	}

	logger.Info("Analysis", "Frame #%d analyzed in %v (persons=%d, confidence=%.1f)",
		frame.Sequence, elapsed, result.PersonsDetected, result.Confidence)

	if s.OnResult != nil {
		s.OnResult(result)
	}
	s.finish(OutcomeSuccess, elapsed, nil)
	return result, nil
}

func (s *Session) setAnalyzing(active bool) {
	if !active {
		s.inFlight.Store(false)
	}
	if s.recorder != nil {
		s.recorder.SetAnalyzing(active)
	}
	if s.OnAnalyzing != nil {
		s.OnAnalyzing(active)
	}
}

func (s *Session) finish(outcome string, elapsed time.Duration, err error) {
	if s.recorder != nil {
		s.recorder.ObserveAnalysis(outcome, elapsed)
	}

	toast := types.Toast{
		ID:          uuid.NewString(),
		Variant:     types.ToastDefault,
		Title:       SuccessTitle,
		Description: SuccessDescription,
		CreatedAt:   s.now(),
	}
	if err != nil {
		logger.Error("Analysis", "Error analyzing frame: %v", err)
		toast.Variant = types.ToastDestructive
		toast.Title = FailureTitle
		toast.Description = FailureDescription
	}

	if s.notifier != nil {
		s.notifier.Notify(toast)
	}
}

func outcomeOf(err error) string {
	var serverErr *ServerError
	var netErr *NetworkError
	switch {
	case errors.As(err, &serverErr):
		return OutcomeServerError
	case errors.As(err, &netErr):
		return OutcomeNetworkError
	default:
		return OutcomeError
	}
}
