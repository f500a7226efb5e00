package opencv

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// CascadeParams tunes Haar cascade detection.
type CascadeParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      image.Point
}

// DefaultCascadeParams are the frontal face settings used to outline faces.
func DefaultCascadeParams() CascadeParams {
	return CascadeParams{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      image.Pt(30, 30),
	}
}

// CountingCascadeParams are the coarser settings used to count faces for
// synthetic analysis. No minimum face size.
func CountingCascadeParams() CascadeParams {
	return CascadeParams{
		ScaleFactor:  1.3,
		MinNeighbors: 5,
	}
}

// CascadeDetector finds faces with an OpenCV Haar cascade.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	params     CascadeParams
	mu         sync.Mutex // Protects the classifier
}

// NewCascadeDetector loads the cascade XML at path.
func NewCascadeDetector(path string, params CascadeParams) (*CascadeDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cascade file not found: %s", path)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, fmt.Errorf("load cascade: %s", path)
	}

	if params.ScaleFactor <= 1 {
		params = DefaultCascadeParams()
	}
	return &CascadeDetector{classifier: classifier, params: params}, nil
}

// DetectFaces returns face rectangles found in a JPEG image.
func (d *CascadeDetector) DetectFaces(jpegData []byte) ([]image.Rectangle, error) {
	img, err := gocv.IMDecode(jpegData, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("Failed to decode image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	defer d.mu.Unlock()

	faces := d.classifier.DetectMultiScaleWithParams(
		gray,
		d.params.ScaleFactor,
		d.params.MinNeighbors,
		0,
		d.params.MinSize,
		image.Point{},
	)
	return faces, nil
}

// Annotate draws a green box around each face and re-encodes the image as JPEG.
func (d *CascadeDetector) Annotate(jpegData []byte, faces []image.Rectangle) ([]byte, error) {
	img, err := gocv.IMDecode(jpegData, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	green := color.RGBA{G: 255, A: 255}
	for _, r := range faces {
		gocv.Rectangle(&img, r, green, 2)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
