package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
)

// Region represents a screen region in logical coordinates
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect converts the region to an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the region has no area
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Capture captures the entire primary display
func Capture() (*image.RGBA, error) {
	return screenshot.CaptureDisplay(0)
}

// CaptureRegion captures a specific region of the screen
func CaptureRegion(region Region) (*image.RGBA, error) {
	if region.Empty() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}
	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %v", err)
	}
	return img, nil
}

// EncodePNG encodes an already-captured image as PNG bytes
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %v", err)
	}
	return buf.Bytes(), nil
}

// Crop returns the sub-image of img covered by region, clamped to the image
// bounds. Region coordinates are relative to the bounds origin of img.
func Crop(img image.Image, region Region) image.Image {
	b := img.Bounds()
	r := image.Rect(
		b.Min.X+region.X,
		b.Min.Y+region.Y,
		b.Min.X+region.X+region.Width,
		b.Min.Y+region.Y+region.Height,
	).Intersect(b)
	if r.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}
