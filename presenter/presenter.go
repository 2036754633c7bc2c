// Package presenter is the built-in presentation consumer of the workflow.
// It drives the select→act steps for the headless binary: the selection is
// a fixed-size box centered on the cursor, the action comes from whichever
// entry point triggered the session, and OCR text is delivered to a sink
// (the clipboard in the default wiring).
package presenter

import (
	"log"
	"sync"

	"github.com/nkasozi/circle-to-search-pc/capture"
	"github.com/nkasozi/circle-to-search-pc/workflow"
)

const (
	// Default selection box, centered on the cursor and clamped to the frame.
	DefaultBoxWidth  = 600
	DefaultBoxHeight = 400
)

// Commands is the orchestrator's command surface as seen from presentation.
type Commands interface {
	Trigger()
	Cancel()
	UpdateRegion(capture.Region)
	ConfirmRegion(capture.Region)
	Choose(workflow.Action)
	Dismiss()
}

// CursorProvider is the synchronous mouse-position port.
type CursorProvider interface {
	Position() (x, y int)
}

// TextSink receives recognized text from a finished OCR session.
type TextSink interface {
	DeliverText(text string) error
}

type Presenter struct {
	cmds   Commands
	cursor CursorProvider
	sink   TextSink
	boxW   int
	boxH   int

	mu     sync.Mutex
	action workflow.Action
}

func New(cmds Commands, cursor CursorProvider, sink TextSink) *Presenter {
	return &Presenter{
		cmds:   cmds,
		cursor: cursor,
		sink:   sink,
		boxW:   DefaultBoxWidth,
		boxH:   DefaultBoxHeight,
	}
}

// SetBoxSize overrides the selection box dimensions.
func (p *Presenter) SetBoxSize(w, h int) {
	if w > 0 {
		p.boxW = w
	}
	if h > 0 {
		p.boxH = h
	}
}

// TriggerExtract starts a session that will run OCR on the selection.
func (p *Presenter) TriggerExtract() {
	p.setAction(workflow.ActionOcr)
	p.cmds.Trigger()
}

// TriggerSearch starts a session that will reverse-image-search the
// selection.
func (p *Presenter) TriggerSearch() {
	p.setAction(workflow.ActionSearch)
	p.cmds.Trigger()
}

// Cancel forwards a user cancel into the workflow.
func (p *Presenter) Cancel() { p.cmds.Cancel() }

func (p *Presenter) setAction(a workflow.Action) {
	p.mu.Lock()
	p.action = a
	p.mu.Unlock()
}

func (p *Presenter) currentAction() workflow.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.action
}

// OnTransition renders each published workflow state. Registered as a
// workflow listener; runs on the orchestrator loop goroutine, so it only
// posts commands and never blocks.
func (p *Presenter) OnTransition(s workflow.Snapshot) {
	if s.Notice != "" {
		log.Printf("Presenter: %s", s.Notice)
	}

	switch s.State {
	case workflow.Selecting:
		if s.Frame == nil {
			return
		}
		cx, cy := p.cursor.Position()
		r := regionAround(cx, cy, p.boxW, p.boxH, s.Frame.Width, s.Frame.Height)
		p.cmds.UpdateRegion(r)
		p.cmds.ConfirmRegion(r)

	case workflow.RegionConfirmed:
		p.cmds.Choose(p.currentAction())

	case workflow.ResultReady:
		p.deliver(s)
		p.cmds.Dismiss()

	case workflow.Failed:
		if s.Err != nil {
			log.Printf("Presenter: %s step failed: %v", s.Err.Step, s.Err.Err)
		}
		p.cmds.Dismiss()
	}
}

func (p *Presenter) deliver(s workflow.Snapshot) {
	if s.Ocr != nil {
		text := s.Ocr.FullText()
		log.Printf("Presenter: OCR produced %d words", len(s.Ocr.Words))
		if text == "" {
			return
		}
		if p.sink != nil {
			if err := p.sink.DeliverText(text); err != nil {
				log.Printf("Presenter: failed to deliver text: %v", err)
			}
		}
		return
	}
	if s.Search != nil {
		log.Printf("Presenter: search opened %s", s.Search.SearchURL)
	}
}

// regionAround centers a w×h box on (cx, cy) and clamps it inside the
// frame, shrinking the box when the frame itself is smaller.
func regionAround(cx, cy, w, h, frameW, frameH int) capture.Region {
	if w > frameW {
		w = frameW
	}
	if h > frameH {
		h = frameH
	}
	x := cx - w/2
	if x < 0 {
		x = 0
	}
	if x+w > frameW {
		x = frameW - w
	}
	y := cy - h/2
	if y < 0 {
		y = 0
	}
	if y+h > frameH {
		y = frameH - h
	}
	return capture.Region{X: x, Y: y, Width: w, Height: h}
}
