package workflow

import (
	"context"

	"github.com/nkasozi/circle-to-search-pc/capture"
)

// ScreenCapturer produces a full virtual-screen frame on demand. Safe to
// call repeatedly; no handle is held between calls.
type ScreenCapturer interface {
	CaptureFullFrame(ctx context.Context) (*capture.PixelBuffer, error)
}

// OcrEngine extracts text from a cropped region. A pure function of its
// input buffer; the orchestrator assumes no shared state across calls.
type OcrEngine interface {
	Recognize(ctx context.Context, buf *capture.PixelBuffer) (OcrResult, error)
}

// ImageHost uploads a cropped region and returns a retrievable URL.
type ImageHost interface {
	Upload(ctx context.Context, buf *capture.PixelBuffer) (string, error)
}

// SearchProvider turns a hosted-image URL into a launched search target.
type SearchProvider interface {
	Search(ctx context.Context, imageURL string) (SearchOutcome, error)
}

// OcrWord is one recognized word with its confidence in [0,1] and bounding
// box in the cropped region's local coordinate space.
type OcrWord struct {
	Text       string
	Confidence float64
	// Box coordinates relative to the cropped region.
	X, Y, Width, Height int
}

// OcrResult preserves the engine's reading order. An empty Words slice is a
// valid result (no text found), distinct from a failure.
type OcrResult struct {
	Words []OcrWord
}

// FullText joins the recognized words in reading order.
func (r OcrResult) FullText() string {
	out := ""
	for i, w := range r.Words {
		if i > 0 {
			out += " "
		}
		out += w.Text
	}
	return out
}

// SearchOutcome is the launchable target produced by a successful search.
type SearchOutcome struct {
	SearchURL string
	Launched  bool
}
