package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Tetra360/bolt-test/internal/logger"
	"github.com/Tetra360/bolt-test/pkg/types"
)

// PermissionMessage is the inline message shown after a failed start.
const PermissionMessage = "Could not access webcam. Please check permissions."

// Webcam owns at most one live stream and captures frames from it.
type Webcam struct {
	devices     MediaDevices
	constraints Constraints
	now         func() time.Time

	mu       sync.Mutex
	stream   Stream
	lastErr  string
	sequence uint64
}

// NewWebcam creates a Webcam acquiring streams from devices.
func NewWebcam(devices MediaDevices, constraints Constraints) *Webcam {
	if constraints.FacingMode == "" {
		constraints.FacingMode = FacingUser
	}
	return &Webcam{
		devices:     devices,
		constraints: constraints,
		now:         time.Now,
	}
}

// Start acquires the camera. It is a no-op while a stream is held.
func (w *Webcam) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stream != nil {
		return nil
	}

	stream, err := w.devices.GetUserMedia(ctx, w.constraints)
	if err != nil {
		w.lastErr = PermissionMessage
		logger.Warn("Webcam", "Error accessing webcam: %v", err)
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	w.stream = stream
	w.lastErr = ""
	width, height := stream.VideoSize()
	logger.Info("Webcam", "Stream started (%dx%d, %d tracks)", width, height, len(stream.Tracks()))
	return nil
}

// Stop releases every track of the current stream.
func (w *Webcam) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.releaseLocked()
}

// Close is the teardown path; it releases the camera like Stop.
func (w *Webcam) Close() error {
	return w.Stop()
}

func (w *Webcam) releaseLocked() error {
	if w.stream == nil {
		return nil
	}

	var errs []error
	tracks := w.stream.Tracks()
	for _, track := range tracks {
		if err := track.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s track %s: %w", track.Kind(), track.ID(), err))
		}
	}
	w.stream = nil

	logger.Info("Webcam", "Stream stopped (%d tracks released)", len(tracks))
	return errors.Join(errs...)
}

// Streaming reports whether a stream is held.
func (w *Webcam) Streaming() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stream != nil
}

// State returns the camera state for dashboard clients.
func (w *Webcam) State() types.CameraState {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := types.CameraState{
		Streaming: w.stream != nil,
		Error:     w.lastErr,
	}
	if w.stream != nil {
		state.Width, state.Height = w.stream.VideoSize()
	}
	return state
}

// CaptureFrame renders the current frame at the stream's intrinsic size and
// encodes it as a JPEG data URI. It returns (nil, nil) without an active stream.
func (w *Webcam) CaptureFrame() (*types.Frame, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stream == nil {
		return nil, nil
	}

	width, height := w.stream.VideoSize()
	if width <= 0 || height <= 0 {
		// Stream not producing video yet
		return nil, nil
	}

	src, err := w.stream.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	buf := RenderFrame(src, width, height)
	data, err := EncodeJPEG(buf, JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	w.sequence++
	return &types.Frame{
		DataURI:    DataURI(data),
		JPEG:       data,
		Width:      buf.Bounds().Dx(),
		Height:     buf.Bounds().Dy(),
		CapturedAt: w.now(),
		Sequence:   w.sequence,
	}, nil
}

// Preview returns a downscaled JPEG of the current frame for the live view.
func (w *Webcam) Preview(maxWidth, quality int) ([]byte, bool) {
	w.mu.Lock()
	stream := w.stream
	w.mu.Unlock()

	if stream == nil {
		return nil, false
	}

	src, err := stream.Snapshot()
	if err != nil {
		logger.Debug("Webcam", "Preview snapshot failed: %v", err)
		return nil, false
	}

	data, err := EncodeJPEG(ScaleToWidth(src, maxWidth), quality)
	if err != nil {
		return nil, false
	}
	return data, true
}
