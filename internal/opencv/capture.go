// Package opencv provides gocv-backed camera devices and face detection.
package opencv

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/Tetra360/bolt-test/internal/camera"
)

// Devices opens local cameras through OpenCV.
// gocv cannot query facing direction, so each facing mode maps to a device index.
type Devices struct {
	UserDevice        int
	EnvironmentDevice int
}

// NewDevices returns Devices with the user-facing camera at index userDevice.
func NewDevices(userDevice int) *Devices {
	return &Devices{UserDevice: userDevice, EnvironmentDevice: userDevice + 1}
}

// GetUserMedia opens the device matching the requested facing mode.
func (d *Devices) GetUserMedia(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := d.UserDevice
	if c.FacingMode == camera.FacingEnvironment {
		id = d.EnvironmentDevice
	}

	vc, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", camera.ErrPermissionDenied, id, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: device %d not opened", camera.ErrPermissionDenied, id)
	}

	if c.Width > 0 && c.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	s := &captureStream{
		id:     id,
		vc:     vc,
		mat:    gocv.NewMat(),
		width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
	return s, nil
}

// captureStream is a single-track stream over one VideoCapture.
type captureStream struct {
	id     int
	width  int
	height int

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

func (s *captureStream) Tracks() []camera.Track { return []camera.Track{(*captureTrack)(s)} }

func (s *captureStream) VideoSize() (int, int) { return s.width, s.height }

func (s *captureStream) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, camera.ErrTrackEnded
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, fmt.Errorf("read device %d: no frame", s.id)
	}
	return s.mat.ToImage()
}

// captureTrack is the video track view of a captureStream.
type captureTrack captureStream

func (t *captureTrack) ID() string   { return "opencv-" + strconv.Itoa(t.id) }
func (t *captureTrack) Kind() string { return "video" }

// Stop closes the VideoCapture and releases the frame buffer.
func (t *captureTrack) Stop() error {
	s := (*captureStream)(t)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.mat.Close()
	return s.vc.Close()
}
