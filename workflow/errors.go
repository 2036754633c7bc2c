package workflow

import (
	"errors"
	"fmt"
)

// Step names the workflow stage a failure belongs to, so presentation can
// give an actionable message instead of a generic error.
type Step int

const (
	StepCapture Step = iota
	StepCrop
	StepOcr
	StepUpload
	StepSearch
)

func (s Step) String() string {
	switch s {
	case StepCapture:
		return "capture"
	case StepCrop:
		return "crop"
	case StepOcr:
		return "ocr"
	case StepUpload:
		return "upload"
	case StepSearch:
		return "search"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// ErrBusy is surfaced when a trigger arrives while a session is active.
var ErrBusy = errors.New("capture session already in progress")

// StepError classifies a session-fatal failure by the step that produced it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
