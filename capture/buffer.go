package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// ErrOutOfBounds is returned when a crop region is not fully contained in
// the frame. Cropping never clamps or wraps; callers validate first.
var ErrOutOfBounds = errors.New("region out of bounds")

// PixelBuffer is an immutable RGBA frame. Pix holds 4 bytes per pixel,
// row-major, with no per-row padding. Only the capture port builds full
// frames; cropped views are derived via CaptureBuffer.Crop.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// NewPixelBuffer wraps raw RGBA data. The data length must match the
// declared dimensions.
func NewPixelBuffer(width, height int, pix []byte) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer dimensions: %dx%d", width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel data length %d does not match %dx%d frame", len(pix), width, height)
	}
	return &PixelBuffer{Width: width, Height: height, Pix: pix}, nil
}

// FromImage copies an *image.RGBA into a PixelBuffer, dropping any row
// padding the source stride may carry.
func FromImage(img *image.RGBA) *PixelBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		copy(pix[y*w*4:], src)
	}
	return &PixelBuffer{Width: w, Height: h, Pix: pix}
}

// Image returns an *image.RGBA view over the buffer's pixels.
func (p *PixelBuffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    p.Pix,
		Stride: p.Width * 4,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// EncodePNG encodes the buffer as PNG bytes for upload and OCR payloads.
func (p *PixelBuffer) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode frame as PNG: %v", err)
	}
	return buf.Bytes(), nil
}

// Region is a rectangle in the captured frame's coordinate space.
// All fields are non-negative; a usable region has Width>0 and Height>0.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Validate rejects degenerate regions before any downstream call.
func (r Region) Validate() error {
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("region origin must be non-negative: (%d, %d)", r.X, r.Y)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region dimensions must be positive: %dx%d", r.Width, r.Height)
	}
	return nil
}

// Within reports whether the region is fully contained in a frame of the
// given dimensions.
func (r Region) Within(frameWidth, frameHeight int) bool {
	return r.X >= 0 && r.Y >= 0 &&
		r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= frameWidth &&
		r.Y+r.Height <= frameHeight
}

// CaptureBuffer pairs a full frame with the zero-or-one pending selection.
type CaptureBuffer struct {
	Frame   *PixelBuffer
	Pending *Region
}

// Crop returns a new PixelBuffer restricted to the region. The region must
// be fully contained in the frame; anything else fails with ErrOutOfBounds.
func (c *CaptureBuffer) Crop(r Region) (*PixelBuffer, error) {
	if c.Frame == nil {
		return nil, errors.New("no frame held")
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, err)
	}
	if !r.Within(c.Frame.Width, c.Frame.Height) {
		return nil, fmt.Errorf("%w: %dx%d at (%d, %d) exceeds %dx%d frame",
			ErrOutOfBounds, r.Width, r.Height, r.X, r.Y, c.Frame.Width, c.Frame.Height)
	}

	pix := make([]byte, r.Width*r.Height*4)
	srcStride := c.Frame.Width * 4
	for row := 0; row < r.Height; row++ {
		srcStart := (r.Y+row)*srcStride + r.X*4
		copy(pix[row*r.Width*4:], c.Frame.Pix[srcStart:srcStart+r.Width*4])
	}
	return &PixelBuffer{Width: r.Width, Height: r.Height, Pix: pix}, nil
}

// Release drops the held frame and selection.
func (c *CaptureBuffer) Release() {
	c.Frame = nil
	c.Pending = nil
}
