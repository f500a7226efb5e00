package camera

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"

	"github.com/Tetra360/bolt-test/pkg/types"
)

// JPEGQuality matches a 0.8 encoder quality.
const JPEGQuality = 80

// RenderFrame draws src into a new off-screen buffer of exactly width x height.
// Sources of a different size are scaled to fill the buffer.
func RenderFrame(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	sb := src.Bounds()
	if sb.Dx() == width && sb.Dy() == height {
		xdraw.Copy(dst, image.Point{}, src, sb, xdraw.Src, nil)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	return dst
}

// ScaleToWidth returns src scaled down to maxWidth, keeping the aspect ratio.
// Images already narrower are returned as-is.
func ScaleToWidth(src image.Image, maxWidth int) image.Image {
	sb := src.Bounds()
	if maxWidth <= 0 || sb.Dx() <= maxWidth {
		return src
	}
	height := sb.Dy() * maxWidth / sb.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	return dst
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURI wraps JPEG bytes in a data URI.
func DataURI(jpegData []byte) string {
	return types.DataURIPrefix + base64.StdEncoding.EncodeToString(jpegData)
}
