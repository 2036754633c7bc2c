package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nkasozi/circle-to-search-pc/capture"
	"github.com/nkasozi/circle-to-search-pc/hosting"
)

func testFrame(t *testing.T, w, h int) *capture.PixelBuffer {
	t.Helper()
	buf, err := capture.NewPixelBuffer(w, h, make([]byte, w*h*4))
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}
	return buf
}

type mockCapturer struct {
	frame *capture.PixelBuffer
	err   error
	calls int32
	gate  chan struct{} // when set, capture blocks until the gate closes
}

func (m *mockCapturer) CaptureFullFrame(ctx context.Context) (*capture.PixelBuffer, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.frame, m.err
}

type mockOcr struct {
	res   OcrResult
	err   error
	calls int32
	got   atomic.Pointer[capture.PixelBuffer]
	gate  chan struct{}
}

func (m *mockOcr) Recognize(ctx context.Context, buf *capture.PixelBuffer) (OcrResult, error) {
	atomic.AddInt32(&m.calls, 1)
	m.got.Store(buf)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return OcrResult{}, ctx.Err()
		}
	}
	return m.res, m.err
}

type mockHost struct {
	url   string
	err   error
	calls int32
}

func (m *mockHost) Upload(ctx context.Context, buf *capture.PixelBuffer) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.url, m.err
}

type mockSearch struct {
	out   SearchOutcome
	err   error
	calls int32
}

func (m *mockSearch) Search(ctx context.Context, imageURL string) (SearchOutcome, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.out, m.err
}

type harness struct {
	o     *Orchestrator
	snaps chan Snapshot
}

func newHarness(t *testing.T, deps Deps) *harness {
	t.Helper()
	if deps.Capturer == nil {
		deps.Capturer = &mockCapturer{frame: testFrame(t, 200, 200)}
	}
	if deps.Ocr == nil {
		deps.Ocr = &mockOcr{}
	}
	if deps.Host == nil {
		deps.Host = &mockHost{url: "https://img.example/abc.png"}
	}
	if deps.Search == nil {
		deps.Search = &mockSearch{out: SearchOutcome{SearchURL: "https://s.example", Launched: true}}
	}

	o := New(deps)
	snaps := make(chan Snapshot, 128)
	o.AddListener(func(s Snapshot) { snaps <- s })

	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	t.Cleanup(cancel)

	return &harness{o: o, snaps: snaps}
}

// waitState consumes snapshots until the wanted state appears.
func (h *harness) waitState(t *testing.T, want State) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.snaps:
			if s.State == want {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

// expectQuiet asserts no snapshot arrives within the window.
func (h *harness) expectQuiet(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case s := <-h.snaps:
		t.Fatalf("unexpected transition to %s", s.State)
	case <-time.After(window):
	}
}

func TestEndToEndOcrScenario(t *testing.T) {
	engine := &mockOcr{res: OcrResult{Words: []OcrWord{
		{Text: "Hello", Confidence: 0.98, X: 0, Y: 0, Width: 50, Height: 30},
	}}}
	h := newHarness(t, Deps{Ocr: engine})

	h.o.Trigger()
	h.waitState(t, AwaitingFrame)
	sel := h.waitState(t, Selecting)
	if sel.Frame == nil || sel.Frame.Width != 200 || sel.Frame.Height != 200 {
		t.Fatalf("Selecting snapshot frame = %+v, want 200x200", sel.Frame)
	}

	h.o.ConfirmRegion(capture.Region{X: 10, Y: 10, Width: 50, Height: 30})
	conf := h.waitState(t, RegionConfirmed)
	if conf.Region == nil || *conf.Region != (capture.Region{X: 10, Y: 10, Width: 50, Height: 30}) {
		t.Fatalf("Confirmed region = %+v", conf.Region)
	}

	h.o.Choose(ActionOcr)
	h.waitState(t, RunningOcr)
	res := h.waitState(t, ResultReady)

	if res.Ocr == nil || len(res.Ocr.Words) != 1 {
		t.Fatalf("ResultReady Ocr = %+v, want one word", res.Ocr)
	}
	w := res.Ocr.Words[0]
	if w.Text != "Hello" || w.Confidence != 0.98 || w.X != 0 || w.Y != 0 || w.Width != 50 || w.Height != 30 {
		t.Errorf("Word = %+v, want Hello@0.98 box {0,0,50,30}", w)
	}
	// The frame is released once the crop exists
	if res.Frame != nil {
		t.Error("ResultReady must not hold the full frame")
	}
	// The engine saw the cropped region, not the full frame
	if got := engine.got.Load(); got == nil || got.Width != 50 || got.Height != 30 {
		t.Errorf("OCR engine received %+v, want 50x30 crop", got)
	}
}

func TestEndToEndSearchFailureScenario(t *testing.T) {
	host := &mockHost{err: hosting.ErrNetworkUnavailable}
	searcher := &mockSearch{}
	h := newHarness(t, Deps{Host: host, Search: searcher})

	h.o.Trigger()
	h.waitState(t, Selecting)
	h.o.ConfirmRegion(capture.Region{X: 0, Y: 0, Width: 100, Height: 100})
	h.waitState(t, RegionConfirmed)
	h.o.Choose(ActionSearch)
	h.waitState(t, RunningSearch)

	failed := h.waitState(t, Failed)
	if failed.Err == nil {
		t.Fatal("Failed snapshot missing error")
	}
	if failed.Err.Step != StepUpload {
		t.Errorf("Failure step = %s, want upload", failed.Err.Step)
	}
	if !errors.Is(failed.Err, hosting.ErrNetworkUnavailable) {
		t.Errorf("Failure cause = %v, want network unavailable", failed.Err)
	}
	if atomic.LoadInt32(&searcher.calls) != 0 {
		t.Error("Search adapter must never run after a failed upload")
	}
	if failed.Frame != nil {
		t.Error("Failed must not hold the frame")
	}
}

func TestSearchSuccessLaunchesAfterUpload(t *testing.T) {
	host := &mockHost{url: "https://img.example/abc.png"}
	searcher := &mockSearch{out: SearchOutcome{SearchURL: "https://lens.google.com/uploadbyurl?url=https://img.example/abc.png", Launched: true}}
	h := newHarness(t, Deps{Host: host, Search: searcher})

	h.o.Trigger()
	h.waitState(t, Selecting)
	h.o.ConfirmRegion(capture.Region{X: 5, Y: 5, Width: 20, Height: 20})
	h.waitState(t, RegionConfirmed)
	h.o.Choose(ActionSearch)

	res := h.waitState(t, ResultReady)
	if res.Search == nil || !res.Search.Launched {
		t.Fatalf("ResultReady Search = %+v, want launched outcome", res.Search)
	}
	if atomic.LoadInt32(&host.calls) != 1 || atomic.LoadInt32(&searcher.calls) != 1 {
		t.Errorf("Upload/search calls = %d/%d, want 1/1", host.calls, searcher.calls)
	}
}

func TestSearchStepFailureIsClassified(t *testing.T) {
	searchErr := errors.New("lens rejected the request")
	h := newHarness(t, Deps{Search: &mockSearch{err: searchErr}})

	h.o.Trigger()
	h.waitState(t, Selecting)
	h.o.ConfirmRegion(capture.Region{X: 0, Y: 0, Width: 10, Height: 10})
	h.waitState(t, RegionConfirmed)
	h.o.Choose(ActionSearch)

	failed := h.waitState(t, Failed)
	if failed.Err.Step != StepSearch {
		t.Errorf("Failure step = %s, want search", failed.Err.Step)
	}
	if !errors.Is(failed.Err, searchErr) {
		t.Errorf("Failure cause = %v, want the search error", failed.Err)
	}
}

func TestAtMostOneSession(t *testing.T) {
	gate := make(chan struct{})
	capturer := &mockCapturer{frame: testFrame(t, 200, 200), gate: gate}
	h := newHarness(t, Deps{Capturer: capturer})

	for i := 0; i < 5; i++ {
		h.o.Trigger()
	}
	close(gate)
	h.waitState(t, Selecting)

	// Exactly one capture was issued despite five triggers
	if calls := atomic.LoadInt32(&capturer.calls); calls != 1 {
		t.Errorf("Capture port called %d times, want 1", calls)
	}

	// More triggers while Selecting are equally ignored
	h.o.Trigger()
	h.o.Trigger()
	time.Sleep(50 * time.Millisecond)
	if calls := atomic.LoadInt32(&capturer.calls); calls != 1 {
		t.Errorf("Capture port called %d times after busy triggers, want 1", calls)
	}
}

func TestBusyTriggerPublishesNotice(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	h := newHarness(t, Deps{Capturer: &mockCapturer{frame: testFrame(t, 10, 10), gate: gate}})

	h.o.Trigger()
	h.waitState(t, AwaitingFrame)
	h.o.Trigger()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.snaps:
			if s.Notice != "" {
				if s.State != AwaitingFrame {
					t.Errorf("Busy notice published in state %s, want AwaitingFrame", s.State)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for busy notice")
		}
	}
}

func TestRegionValidationKeepsSelecting(t *testing.T) {
	engine := &mockOcr{}
	host := &mockHost{}
	h := newHarness(t, Deps{Ocr: engine, Host: host})

	h.o.Trigger()
	h.waitState(t, Selecting)

	invalid := []capture.Region{
		{X: 0, Y: 0, Width: 0, Height: 10},
		{X: 0, Y: 0, Width: 10, Height: 0},
		{X: 190, Y: 190, Width: 20, Height: 20},
		{X: 0, Y: 0, Width: 201, Height: 10},
	}
	for _, r := range invalid {
		h.o.ConfirmRegion(r)
		s := h.waitState(t, Selecting)
		if s.Notice == "" {
			t.Errorf("ConfirmRegion(%+v) published no validation notice", r)
		}
	}

	if atomic.LoadInt32(&engine.calls) != 0 || atomic.LoadInt32(&host.calls) != 0 {
		t.Error("Invalid regions must never reach crop or adapters")
	}

	// The user can still redraw and proceed
	h.o.ConfirmRegion(capture.Region{X: 10, Y: 10, Width: 50, Height: 30})
	h.waitState(t, RegionConfirmed)
}

func TestCancelReleasesFrameAndAllowsFreshSession(t *testing.T) {
	h := newHarness(t, Deps{})

	h.o.Trigger()
	h.waitState(t, Selecting)
	h.o.UpdateRegion(capture.Region{X: 1, Y: 1, Width: 5, Height: 5})
	h.waitState(t, Selecting)

	h.o.Cancel()
	idle := h.waitState(t, Idle)
	if idle.Frame != nil || idle.Region != nil {
		t.Error("Cancel must release the frame and selection")
	}

	// Next trigger starts a fresh session with no residue
	h.o.Trigger()
	h.waitState(t, AwaitingFrame)
	sel := h.waitState(t, Selecting)
	if sel.Region != nil {
		t.Errorf("Fresh session carries residual region %+v", sel.Region)
	}
}

func TestDismissFromTerminalStates(t *testing.T) {
	h := newHarness(t, Deps{Ocr: &mockOcr{res: OcrResult{}}})

	h.o.Trigger()
	h.waitState(t, Selecting)
	h.o.ConfirmRegion(capture.Region{X: 0, Y: 0, Width: 10, Height: 10})
	h.waitState(t, RegionConfirmed)
	h.o.Choose(ActionOcr)
	res := h.waitState(t, ResultReady)
	if res.Ocr == nil || len(res.Ocr.Words) != 0 {
		t.Fatalf("Expected empty OCR result, got %+v", res.Ocr)
	}

	h.o.Dismiss()
	idle := h.waitState(t, Idle)
	if idle.Ocr != nil || idle.Err != nil {
		t.Error("Dismiss must clear the session result")
	}
}

func TestCaptureFailureReachesFailed(t *testing.T) {
	captureErr := errors.New("display server unavailable")
	h := newHarness(t, Deps{Capturer: &mockCapturer{err: captureErr}})

	h.o.Trigger()
	failed := h.waitState(t, Failed)
	if failed.Err.Step != StepCapture {
		t.Errorf("Failure step = %s, want capture", failed.Err.Step)
	}
	if !errors.Is(failed.Err, captureErr) {
		t.Errorf("Failure cause = %v", failed.Err)
	}

	h.o.Dismiss()
	h.waitState(t, Idle)
}

func TestOcrFailureReachesFailed(t *testing.T) {
	ocrErr := errors.New("engine crashed")
	h := newHarness(t, Deps{Ocr: &mockOcr{err: ocrErr}})

	h.o.Trigger()
	h.waitState(t, Selecting)
	h.o.ConfirmRegion(capture.Region{X: 0, Y: 0, Width: 10, Height: 10})
	h.waitState(t, RegionConfirmed)
	h.o.Choose(ActionOcr)

	failed := h.waitState(t, Failed)
	if failed.Err.Step != StepOcr {
		t.Errorf("Failure step = %s, want ocr", failed.Err.Step)
	}
}

func TestCancelDuringOcrDiscardsResult(t *testing.T) {
	gate := make(chan struct{})
	engine := &mockOcr{res: OcrResult{Words: []OcrWord{{Text: "stale"}}}, gate: gate}
	h := newHarness(t, Deps{Ocr: engine})

	h.o.Trigger()
	h.waitState(t, Selecting)
	h.o.ConfirmRegion(capture.Region{X: 0, Y: 0, Width: 10, Height: 10})
	h.waitState(t, RegionConfirmed)
	h.o.Choose(ActionOcr)
	h.waitState(t, RunningOcr)

	h.o.Cancel()
	h.waitState(t, Idle)

	// Let the in-flight call finish; its result belongs to a dead session
	close(gate)
	h.expectQuiet(t, 100*time.Millisecond)

	// A fresh session is unaffected
	h.o.Trigger()
	h.waitState(t, Selecting)
}

func TestDragUpdateOnlyAppliesWhileSelecting(t *testing.T) {
	h := newHarness(t, Deps{})

	// Idle: silently ignored, no transition published
	h.o.UpdateRegion(capture.Region{X: 1, Y: 1, Width: 2, Height: 2})
	h.expectQuiet(t, 50*time.Millisecond)

	h.o.Trigger()
	h.waitState(t, Selecting)

	// Selecting: replaces the pending region with no side effects
	h.o.UpdateRegion(capture.Region{X: 3, Y: 4, Width: 5, Height: 6})
	s := h.waitState(t, Selecting)
	if s.Region == nil || *s.Region != (capture.Region{X: 3, Y: 4, Width: 5, Height: 6}) {
		t.Errorf("Pending region = %+v", s.Region)
	}

	h.o.ConfirmRegion(capture.Region{X: 0, Y: 0, Width: 10, Height: 10})
	h.waitState(t, RegionConfirmed)

	// RegionConfirmed: ignored again
	h.o.UpdateRegion(capture.Region{X: 9, Y: 9, Width: 1, Height: 1})
	h.expectQuiet(t, 50*time.Millisecond)
}

func TestCommandsInWrongStatesAreNoOps(t *testing.T) {
	engine := &mockOcr{}
	h := newHarness(t, Deps{Ocr: engine})

	// Nothing to confirm, choose, or dismiss while Idle
	h.o.ConfirmRegion(capture.Region{X: 0, Y: 0, Width: 10, Height: 10})
	h.o.Choose(ActionOcr)
	h.o.Dismiss()
	h.o.Cancel()
	h.expectQuiet(t, 50*time.Millisecond)

	if atomic.LoadInt32(&engine.calls) != 0 {
		t.Error("No adapter call may happen outside a session")
	}
}
