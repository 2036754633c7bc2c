package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var iconOnce struct {
	sync.Once
	data []byte
}

// iconBytes renders the tray icon at runtime: a dashed selection rectangle
// on a transparent 16x16 canvas, PNG-encoded as systray expects.
func iconBytes() []byte {
	iconOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 16, 16))
		frame := color.RGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}

		for x := 2; x <= 13; x++ {
			if x%3 != 0 {
				img.SetRGBA(x, 3, frame)
				img.SetRGBA(x, 12, frame)
			}
		}
		for y := 3; y <= 12; y++ {
			if y%3 != 0 {
				img.SetRGBA(2, y, frame)
				img.SetRGBA(13, y, frame)
			}
		}
		// Lens dot in the lower-right corner
		dot := color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
		for y := 9; y <= 11; y++ {
			for x := 9; x <= 11; x++ {
				img.SetRGBA(x, y, dot)
			}
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return
		}
		iconOnce.data = buf.Bytes()
	})
	return iconOnce.data
}
