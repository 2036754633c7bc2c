package ocr

import (
	"context"
	"fmt"
	"log"

	"github.com/otiai10/gosseract/v2"

	"github.com/nkasozi/circle-to-search-pc/capture"
	"github.com/nkasozi/circle-to-search-pc/workflow"
)

// Engine performs text extraction with Tesseract. Each Recognize call uses
// its own client, so there is no shared state across calls.
type Engine struct {
	languages []string
}

// NewEngine creates an engine for the given Tesseract languages. An empty
// list falls back to "eng".
func NewEngine(languages []string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{languages: languages}
}

// Recognize extracts words from the cropped region. An empty result is
// valid (no text found) and distinct from a failure. The bounding boxes are
// relative to the provided buffer, which is already the cropped region.
func (e *Engine) Recognize(ctx context.Context, buf *capture.PixelBuffer) (workflow.OcrResult, error) {
	type res struct {
		result workflow.OcrResult
		err    error
	}
	resCh := make(chan res, 1)
	go func() {
		r, err := e.recognize(buf)
		resCh <- res{result: r, err: err}
	}()

	select {
	case r := <-resCh:
		return r.result, r.err
	case <-ctx.Done():
		// Tesseract keeps running in the background; its result is dropped.
		return workflow.OcrResult{}, ctx.Err()
	}
}

func (e *Engine) recognize(buf *capture.PixelBuffer) (workflow.OcrResult, error) {
	data, err := buf.EncodePNG()
	if err != nil {
		return workflow.OcrResult{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return workflow.OcrResult{}, fmt.Errorf("failed to set OCR languages %v: %v", e.languages, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return workflow.OcrResult{}, fmt.Errorf("failed to load image into OCR engine: %v", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return workflow.OcrResult{}, fmt.Errorf("text recognition failed: %v", err)
	}

	result := workflow.OcrResult{Words: wordsFromBoxes(boxes)}
	log.Printf("OCR: recognized %d words in %dx%d region", len(result.Words), buf.Width, buf.Height)
	return result, nil
}

// wordsFromBoxes converts Tesseract word boxes, preserving reading order and
// normalizing confidence from [0,100] to [0,1].
func wordsFromBoxes(boxes []gosseract.BoundingBox) []workflow.OcrWord {
	words := make([]workflow.OcrWord, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		words = append(words, workflow.OcrWord{
			Text:       b.Word,
			Confidence: normalizeConfidence(b.Confidence),
			X:          b.Box.Min.X,
			Y:          b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
		})
	}
	return words
}

func normalizeConfidence(c float64) float64 {
	c = c / 100.0
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
