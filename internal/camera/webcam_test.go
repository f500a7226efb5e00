package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"
	"testing"

	"github.com/Tetra360/bolt-test/pkg/types"
)

type fakeTrack struct {
	id      string
	kind    string
	mu      sync.Mutex
	stopped int
}

func (t *fakeTrack) ID() string   { return t.id }
func (t *fakeTrack) Kind() string { return t.kind }
func (t *fakeTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped++
	return nil
}
func (t *fakeTrack) stopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	width, height int
	tracks        []*fakeTrack
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}
func (s *fakeStream) VideoSize() (int, int) { return s.width, s.height }
func (s *fakeStream) Snapshot() (image.Image, error) {
	return ColorBars(s.width, s.height, 0), nil
}

type fakeDevices struct {
	mu          sync.Mutex
	err         error
	calls       int
	constraints []Constraints
	streams     []*fakeStream
	width       int
	height      int
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.constraints = append(d.constraints, c)
	if d.err != nil {
		return nil, d.err
	}
	n := len(d.streams)
	s := &fakeStream{
		width:  d.width,
		height: d.height,
		tracks: []*fakeTrack{
			{id: fmt.Sprintf("video-%d", n), kind: "video"},
			{id: fmt.Sprintf("audio-%d", n), kind: "audio"},
		},
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func TestCaptureFrameWithoutStreamReturnsNil(t *testing.T) {
	cam := NewWebcam(&fakeDevices{width: 64, height: 48}, DefaultConstraints())

	frame, err := cam.CaptureFrame()
	if err != nil {
		t.Fatalf("CaptureFrame error: %v", err)
	}
	if frame != nil {
		t.Fatalf("expected nil frame without stream, got %+v", frame)
	}

	// Still nil after a start/stop cycle
	if err := cam.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := cam.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	frame, err = cam.CaptureFrame()
	if err != nil || frame != nil {
		t.Fatalf("expected (nil, nil) after stop, got (%v, %v)", frame, err)
	}
}

func TestCaptureFrameMatchesStreamDimensions(t *testing.T) {
	sizes := [][2]int{{1, 1}, {16, 9}, {320, 240}, {641, 479}, {1280, 720}}
	for _, size := range sizes {
		t.Run(fmt.Sprintf("%dx%d", size[0], size[1]), func(t *testing.T) {
			cam := NewWebcam(&fakeDevices{width: size[0], height: size[1]}, DefaultConstraints())
			if err := cam.Start(context.Background()); err != nil {
				t.Fatalf("Start: %v", err)
			}
			defer cam.Close()

			frame, err := cam.CaptureFrame()
			if err != nil {
				t.Fatalf("CaptureFrame: %v", err)
			}
			if frame.Width != size[0] || frame.Height != size[1] {
				t.Fatalf("frame size = %dx%d, want %dx%d", frame.Width, frame.Height, size[0], size[1])
			}

			if !strings.HasPrefix(frame.DataURI, types.DataURIPrefix) {
				t.Fatalf("unexpected data URI prefix: %.40s", frame.DataURI)
			}
			raw, err := base64.StdEncoding.DecodeString(frame.Base64Payload())
			if err != nil {
				t.Fatalf("payload not base64: %v", err)
			}
			img, err := jpeg.Decode(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("payload not JPEG: %v", err)
			}
			if b := img.Bounds(); b.Dx() != size[0] || b.Dy() != size[1] {
				t.Fatalf("decoded size = %dx%d", b.Dx(), b.Dy())
			}
		})
	}
}

func TestRenderFrameScalesToBuffer(t *testing.T) {
	src := ColorBars(100, 50, 0)
	dst := RenderFrame(src, 40, 30)
	if b := dst.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Fatalf("buffer size = %dx%d", b.Dx(), b.Dy())
	}
}

func TestStartIsIdempotentAndRequestsUserFacingCamera(t *testing.T) {
	devices := &fakeDevices{width: 32, height: 24}
	cam := NewWebcam(devices, Constraints{})

	for range 3 {
		if err := cam.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	if devices.calls != 1 {
		t.Fatalf("GetUserMedia called %d times, want 1", devices.calls)
	}
	if devices.constraints[0].FacingMode != FacingUser {
		t.Fatalf("facing mode = %q", devices.constraints[0].FacingMode)
	}
	if !cam.Streaming() {
		t.Fatalf("expected streaming")
	}
}

func TestStopReleasesEveryTrackOfLatestStart(t *testing.T) {
	devices := &fakeDevices{width: 32, height: 24}
	cam := NewWebcam(devices, DefaultConstraints())

	for cycle := range 3 {
		if err := cam.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := cam.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		latest := devices.streams[cycle]
		for _, track := range latest.tracks {
			if track.stopCount() != 1 {
				t.Fatalf("cycle %d: track %s stopped %d times", cycle, track.id, track.stopCount())
			}
		}
	}

	// Stop without a stream is a no-op
	if err := cam.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if cam.Streaming() {
		t.Fatalf("expected not streaming")
	}
}

func TestCloseReleasesTracks(t *testing.T) {
	devices := &fakeDevices{width: 8, height: 8}
	cam := NewWebcam(devices, DefaultConstraints())
	if err := cam.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := cam.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, track := range devices.streams[0].tracks {
		if track.stopCount() != 1 {
			t.Fatalf("track %s not released", track.id)
		}
	}
}

func TestStartFailureIsPermissionDeniedAndRecoverable(t *testing.T) {
	devices := &fakeDevices{width: 8, height: 8, err: errors.New("NotAllowedError")}
	cam := NewWebcam(devices, DefaultConstraints())

	err := cam.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if state := cam.State(); state.Streaming || state.Error != PermissionMessage {
		t.Fatalf("unexpected state %+v", state)
	}

	devices.mu.Lock()
	devices.err = nil
	devices.mu.Unlock()

	if err := cam.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if state := cam.State(); !state.Streaming || state.Error != "" || state.Width != 8 {
		t.Fatalf("unexpected state after retry %+v", state)
	}
}

func TestTestPatternStopEndsTrack(t *testing.T) {
	cam := NewWebcam(NewTestPattern(64, 48), DefaultConstraints())
	if err := cam.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := cam.Preview(32, 70); !ok {
		t.Fatalf("expected preview while streaming")
	}
	frame, err := cam.CaptureFrame()
	if err != nil || frame == nil {
		t.Fatalf("CaptureFrame = (%v, %v)", frame, err)
	}
	if frame.Width != 64 || frame.Height != 48 || frame.Sequence != 1 {
		t.Fatalf("unexpected frame %dx%d #%d", frame.Width, frame.Height, frame.Sequence)
	}

	if err := cam.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, ok := cam.Preview(32, 70); ok {
		t.Fatalf("expected no preview after stop")
	}
}
