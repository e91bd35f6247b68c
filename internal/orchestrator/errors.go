package orchestrator

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by admission when the active registry is at capacity.
var ErrBusy = errors.New("service busy: maximum concurrent jobs reached")

const busyMessage = "Service busy. Maximum concurrent jobs reached."

// ValidationError is a user-correctable problem with a request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Pipeline stages.
const (
	StageFetch     = "fetch"
	StageSynthesis = "synthesis"
	StageRender    = "render"
	StagePublish   = "publish"
	StageTavus     = "tavus"
)

// PipelineError reports a fatal stage failure. Message is safe to show to
// callers; Err carries the underlying cause for logs.
type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// PublicMessage returns the text of err that may be shown to a caller.
// Messages of unknown errors are replaced so paths and secrets stay in logs.
func PublicMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	if errors.Is(err, ErrBusy) {
		return busyMessage
	}
	return "Internal server error"
}
