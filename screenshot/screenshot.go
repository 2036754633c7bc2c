package screenshot

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/nkasozi/circle-to-search-pc/capture"
)

// Capturer implements the screen capture port over the OS screenshot APIs.
// It holds no state between calls and is safe to call repeatedly.
type Capturer struct{}

func New() *Capturer { return &Capturer{} }

// CaptureFullFrame captures the entire virtual screen across all active
// displays as one frame. Region coordinates downstream are relative to this
// frame, never to a window.
func (c *Capturer) CaptureFullFrame(ctx context.Context) (*capture.PixelBuffer, error) {
	type res struct {
		img *image.RGBA
		err error
	}
	resCh := make(chan res, 1)
	go func() {
		img, err := captureVirtualScreen()
		resCh <- res{img: img, err: err}
	}()

	select {
	case r := <-resCh:
		if r.err != nil {
			return nil, r.err
		}
		return capture.FromImage(r.img), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func captureVirtualScreen() (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	// Union of all display bounds
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	img, err := screenshot.CaptureRect(union)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %v", err)
	}
	return img, nil
}

// DisplayBounds returns the bounds of the primary display.
func DisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}
