package workflow

import "github.com/nkasozi/circle-to-search-pc/capture"

// State is where the user currently is in the capture→select→act→result
// cycle. Exactly one session is active between Idle→...→Idle.
type State int

const (
	Idle State = iota
	AwaitingFrame
	Selecting
	RegionConfirmed
	RunningOcr
	RunningSearch
	ResultReady
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingFrame:
		return "AwaitingFrame"
	case Selecting:
		return "Selecting"
	case RegionConfirmed:
		return "RegionConfirmed"
	case RunningOcr:
		return "RunningOcr"
	case RunningSearch:
		return "RunningSearch"
	case ResultReady:
		return "ResultReady"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Action is the user's choice for a confirmed region.
type Action int

const (
	ActionOcr Action = iota
	ActionSearch
)

func (a Action) String() string {
	if a == ActionSearch {
		return "Search"
	}
	return "OCR"
}

// Snapshot is the published view of the orchestrator after a transition.
// Listeners receive it from the command-loop goroutine and must not block.
type Snapshot struct {
	State  State
	Frame  *capture.PixelBuffer // held frame (Selecting, RegionConfirmed)
	Region *capture.Region      // pending selection, if any
	Notice string               // non-fatal notice (validation, busy trigger)
	Ocr    *OcrResult           // set in ResultReady after an OCR session
	Search *SearchOutcome       // set in ResultReady after a search session
	Err    *StepError           // set in Failed
}

// Listener observes every applied state transition, push-based.
type Listener func(Snapshot)
