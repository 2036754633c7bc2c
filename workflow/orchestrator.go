package workflow

import (
	"context"
	"errors"
	"log"

	"github.com/nkasozi/circle-to-search-pc/capture"
	"github.com/nkasozi/circle-to-search-pc/worker"
)

// Orchestrator owns the capture workflow state machine. Commands arrive from
// any goroutine (hotkey listener, tray, UI) and are serialized through one
// buffered channel into the Run loop, so the state machine itself is
// single-threaded. Port and adapter I/O runs on the worker pool; at most one
// call is in flight per session, and completions for a session that has
// already ended are discarded by generation check.
type Orchestrator struct {
	capturer ScreenCapturer
	engine   OcrEngine
	host     ImageHost
	searcher SearchProvider
	pool     *worker.Pool

	cmds      chan command
	done      chan struct{}
	listeners []Listener

	// Everything below is owned by the Run goroutine.
	state         State
	buf           capture.CaptureBuffer
	session       uint64
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	ocrRes        *OcrResult
	searchRes     *SearchOutcome
	failure       *StepError
	runCtx        context.Context
}

// Deps are the collaborators injected at process start. Tests substitute
// mocks without touching orchestrator logic.
type Deps struct {
	Capturer ScreenCapturer
	Ocr      OcrEngine
	Host     ImageHost
	Search   SearchProvider
}

type cmdKind int

const (
	cmdTrigger cmdKind = iota
	cmdCancel
	cmdDrag
	cmdConfirm
	cmdChoose
	cmdDismiss
	cmdFrameDone
	cmdOcrDone
	cmdSearchDone
)

type command struct {
	kind    cmdKind
	region  capture.Region
	action  Action
	session uint64
	frame   *capture.PixelBuffer
	ocr     OcrResult
	outcome SearchOutcome
	err     error
	stepErr *StepError
}

// New creates an orchestrator around the given collaborators.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		capturer: deps.Capturer,
		engine:   deps.Ocr,
		host:     deps.Host,
		searcher: deps.Search,
		pool:     worker.New(1),
		cmds:     make(chan command, 64),
		done:     make(chan struct{}),
		state:    Idle,
	}
}

// AddListener registers a transition observer. Must be called before Run.
func (o *Orchestrator) AddListener(l Listener) {
	o.listeners = append(o.listeners, l)
}

// Run processes commands until ctx is cancelled. It owns all state mutation;
// no port or adapter result touches the state fields directly.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runCtx = ctx
	// done must close before the pool drains so a task blocked on posting
	// its completion can bail out.
	defer o.pool.Close()
	defer close(o.done)

	for {
		select {
		case <-ctx.Done():
			o.endSession()
			return ctx.Err()
		case c := <-o.cmds:
			o.dispatch(c)
		}
	}
}

// Trigger starts a new session. Ignored (with a notice) while one is active.
func (o *Orchestrator) Trigger() { o.send(command{kind: cmdTrigger}) }

// Cancel aborts the active session from any non-Idle state.
func (o *Orchestrator) Cancel() { o.send(command{kind: cmdCancel}) }

// UpdateRegion replaces the pending selection while Selecting. A no-op in
// any other state.
func (o *Orchestrator) UpdateRegion(r capture.Region) {
	o.send(command{kind: cmdDrag, region: r})
}

// ConfirmRegion commits a selection. Invalid regions keep the state in
// Selecting and surface a notice so the user can redraw.
func (o *Orchestrator) ConfirmRegion(r capture.Region) {
	o.send(command{kind: cmdConfirm, region: r})
}

// Choose dispatches the confirmed region to OCR or reverse image search.
func (o *Orchestrator) Choose(a Action) { o.send(command{kind: cmdChoose, action: a}) }

// Dismiss returns to Idle from a terminal ResultReady or Failed state.
func (o *Orchestrator) Dismiss() { o.send(command{kind: cmdDismiss}) }

func (o *Orchestrator) send(c command) {
	select {
	case o.cmds <- c:
	case <-o.done:
		log.Printf("Orchestrator: dropping command after shutdown")
	}
}

func (o *Orchestrator) dispatch(c command) {
	switch c.kind {
	case cmdTrigger:
		o.handleTrigger()
	case cmdCancel:
		o.handleCancel()
	case cmdDrag:
		o.handleDrag(c.region)
	case cmdConfirm:
		o.handleConfirm(c.region)
	case cmdChoose:
		o.handleChoose(c.action)
	case cmdDismiss:
		o.handleDismiss()
	case cmdFrameDone:
		o.handleFrameDone(c)
	case cmdOcrDone:
		o.handleOcrDone(c)
	case cmdSearchDone:
		o.handleSearchDone(c)
	}
}

func (o *Orchestrator) handleTrigger() {
	if o.state != Idle {
		// At most one active capture session, process-wide. A second hotkey
		// press or tray click while busy is a no-op.
		log.Printf("Orchestrator: trigger ignored in state %s", o.state)
		o.publish(ErrBusy.Error())
		return
	}

	o.session++
	jobCtx, cancel := context.WithCancel(o.runCtx)
	o.sessionCtx = jobCtx
	o.sessionCancel = cancel
	o.state = AwaitingFrame
	o.publish("")

	session := o.session
	submitted := o.pool.Submit(jobCtx, func(ctx context.Context) {
		frame, err := o.capturer.CaptureFullFrame(ctx)
		o.post(command{kind: cmdFrameDone, session: session, frame: frame, err: err})
	})
	if !submitted {
		o.fail(StepCapture, errors.New("capture task rejected: queue full"))
	}
}

func (o *Orchestrator) handleFrameDone(c command) {
	if c.session != o.session || o.state != AwaitingFrame {
		log.Printf("Orchestrator: discarding stale frame for session %d", c.session)
		return
	}
	if c.err != nil {
		o.fail(StepCapture, c.err)
		return
	}
	o.buf.Frame = c.frame
	o.buf.Pending = nil
	o.state = Selecting
	o.publish("")
}

func (o *Orchestrator) handleDrag(r capture.Region) {
	if o.state != Selecting {
		// Drag updates outside Selecting are silently ignored.
		return
	}
	o.buf.Pending = &r
	o.publish("")
}

func (o *Orchestrator) handleConfirm(r capture.Region) {
	if o.state != Selecting {
		log.Printf("Orchestrator: region confirm ignored in state %s", o.state)
		return
	}
	if err := r.Validate(); err != nil {
		o.publish("invalid selection: " + err.Error())
		return
	}
	if !r.Within(o.buf.Frame.Width, o.buf.Frame.Height) {
		o.publish("selection exceeds the captured frame")
		return
	}
	o.buf.Pending = &r
	o.state = RegionConfirmed
	o.publish("")
}

func (o *Orchestrator) handleChoose(a Action) {
	if o.state != RegionConfirmed {
		log.Printf("Orchestrator: action choice ignored in state %s", o.state)
		return
	}

	// Unreachable given confirm-time validation, but crop failures must
	// still land in Failed rather than panic.
	cropped, err := o.buf.Crop(*o.buf.Pending)
	if err != nil {
		o.fail(StepCrop, err)
		return
	}
	// The full frame is released as soon as the cropped view exists; no
	// frame buffer outlives its session.
	o.buf.Release()

	jobCtx := o.sessionCtx
	if jobCtx == nil {
		jobCtx, o.sessionCancel = context.WithCancel(o.runCtx)
		o.sessionCtx = jobCtx
	}

	session := o.session
	switch a {
	case ActionSearch:
		o.state = RunningSearch
		o.publish("")
		submitted := o.pool.Submit(jobCtx, func(ctx context.Context) {
			o.runSearch(ctx, session, cropped)
		})
		if !submitted {
			o.fail(StepUpload, errors.New("search task rejected: queue full"))
		}
	default:
		o.state = RunningOcr
		o.publish("")
		submitted := o.pool.Submit(jobCtx, func(ctx context.Context) {
			res, err := o.engine.Recognize(ctx, cropped)
			o.post(command{kind: cmdOcrDone, session: session, ocr: res, err: err})
		})
		if !submitted {
			o.fail(StepOcr, errors.New("ocr task rejected: queue full"))
		}
	}
}

// runSearch performs upload-then-search as two sequential adapter calls.
// If the upload fails, search is never attempted.
func (o *Orchestrator) runSearch(ctx context.Context, session uint64, cropped *capture.PixelBuffer) {
	imageURL, err := o.host.Upload(ctx, cropped)
	if err != nil {
		o.post(command{kind: cmdSearchDone, session: session, stepErr: &StepError{Step: StepUpload, Err: err}})
		return
	}
	outcome, err := o.searcher.Search(ctx, imageURL)
	if err != nil {
		o.post(command{kind: cmdSearchDone, session: session, stepErr: &StepError{Step: StepSearch, Err: err}})
		return
	}
	o.post(command{kind: cmdSearchDone, session: session, outcome: outcome})
}

func (o *Orchestrator) handleOcrDone(c command) {
	if c.session != o.session || o.state != RunningOcr {
		log.Printf("Orchestrator: discarding stale OCR result for session %d", c.session)
		return
	}
	if c.err != nil {
		o.fail(StepOcr, c.err)
		return
	}
	res := c.ocr
	o.ocrRes = &res
	o.state = ResultReady
	o.publish("")
}

func (o *Orchestrator) handleSearchDone(c command) {
	if c.session != o.session || o.state != RunningSearch {
		log.Printf("Orchestrator: discarding stale search result for session %d", c.session)
		return
	}
	if c.stepErr != nil {
		o.failWith(c.stepErr)
		return
	}
	out := c.outcome
	o.searchRes = &out
	o.state = ResultReady
	o.publish("")
}

func (o *Orchestrator) handleCancel() {
	if o.state == Idle {
		return
	}
	log.Printf("Orchestrator: session cancelled in state %s", o.state)
	o.endSession()
	o.state = Idle
	o.publish("")
}

func (o *Orchestrator) handleDismiss() {
	if o.state != ResultReady && o.state != Failed {
		log.Printf("Orchestrator: dismiss ignored in state %s", o.state)
		return
	}
	o.endSession()
	o.state = Idle
	o.publish("")
}

// fail terminates the session into Failed with a classified reason. The
// orchestrator never retries; retry policy belongs to the adapters.
func (o *Orchestrator) fail(step Step, err error) {
	o.failWith(&StepError{Step: step, Err: err})
}

func (o *Orchestrator) failWith(stepErr *StepError) {
	log.Printf("Orchestrator: session failed: %v", stepErr)
	o.endSession()
	o.failure = stepErr
	o.state = Failed
	o.publish("")
}

// endSession releases the held frame and all per-session results, cancels
// any in-flight adapter call, and bumps the generation so a completion for
// the old session is discarded.
func (o *Orchestrator) endSession() {
	if o.sessionCancel != nil {
		o.sessionCancel()
		o.sessionCancel = nil
	}
	o.sessionCtx = nil
	o.buf.Release()
	o.ocrRes = nil
	o.searchRes = nil
	o.failure = nil
	o.session++
}

func (o *Orchestrator) post(c command) {
	select {
	case o.cmds <- c:
	case <-o.done:
	}
}

func (o *Orchestrator) publish(notice string) {
	snap := Snapshot{
		State:  o.state,
		Frame:  o.buf.Frame,
		Notice: notice,
		Ocr:    o.ocrRes,
		Search: o.searchRes,
		Err:    o.failure,
	}
	if o.buf.Pending != nil {
		r := *o.buf.Pending
		snap.Region = &r
	}
	for _, l := range o.listeners {
		l(snap)
	}
}
