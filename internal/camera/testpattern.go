package camera

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/google/uuid"
)

// Default test pattern size.
const (
	DefaultPatternWidth  = 640
	DefaultPatternHeight = 480
)

// Color bars: White, Yellow, Cyan, Green, Magenta, Red, Blue, Black
var barColors = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
	{R: 0, G: 0, B: 0, A: 255},
}

// ColorBars renders the standard bar pattern. offset shifts the bars right,
// wrapping around, so consecutive frames are distinguishable.
func ColorBars(width, height, offset int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	barWidth := width / len(barColors)
	if barWidth == 0 {
		barWidth = 1
	}
	for y := range height {
		for x := range width {
			barIndex := ((x + offset) % width) / barWidth
			if barIndex >= len(barColors) {
				barIndex = len(barColors) - 1
			}
			img.SetRGBA(x, y, barColors[barIndex])
		}
	}
	return img
}

// TestPattern is a MediaDevices that synthesizes a colour-bar camera.
// It is used when no physical camera is available.
type TestPattern struct {
	Width  int
	Height int
}

// NewTestPattern creates a test pattern camera of the given default size.
func NewTestPattern(width, height int) *TestPattern {
	if width <= 0 {
		width = DefaultPatternWidth
	}
	if height <= 0 {
		height = DefaultPatternHeight
	}
	return &TestPattern{Width: width, Height: height}
}

// GetUserMedia returns a new synthetic stream. Constraint sizes override the default.
func (p *TestPattern) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := p.Width, p.Height
	if c.Width > 0 && c.Height > 0 {
		width, height = c.Width, c.Height
	}
	return &patternStream{
		width:  width,
		height: height,
		track:  &patternTrack{id: uuid.NewString()},
	}, nil
}

type patternTrack struct {
	id      string
	mu      sync.Mutex
	stopped bool
}

func (t *patternTrack) ID() string   { return t.id }
func (t *patternTrack) Kind() string { return "video" }

func (t *patternTrack) Stop() error {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return nil
}

func (t *patternTrack) live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

type patternStream struct {
	width  int
	height int
	track  *patternTrack

	mu    sync.Mutex
	frame int
}

func (s *patternStream) Tracks() []Track { return []Track{s.track} }

func (s *patternStream) VideoSize() (int, int) { return s.width, s.height }

func (s *patternStream) Snapshot() (image.Image, error) {
	if !s.track.live() {
		return nil, ErrTrackEnded
	}
	s.mu.Lock()
	s.frame++
	offset := (s.frame * 4) % s.width
	s.mu.Unlock()
	return ColorBars(s.width, s.height, offset), nil
}
