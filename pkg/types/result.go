package types

import (
	"context"
	"errors"
	"fmt"
)

// Status is the outcome of a command or history operation.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result reports the outcome of a mutation. Cancellation is a distinct
// status so callers can tell "the user cancelled" from a broken operation.
type Result struct {
	Status  Status
	Message string
	// Context names what the operation was acting on, e.g. "scheme Items".
	Context string
	Err     error
}

// Passed returns a successful Result.
func Passed(message string) Result {
	return Result{Status: StatusPassed, Message: message}
}

// Failed returns a failed Result carrying err. The message is err's text.
func Failed(err error, subject string) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{Status: StatusFailed, Message: msg, Context: subject, Err: err}
}

// Failure returns a failed Result with a fixed message.
func Failure(message, subject string) Result {
	return Result{Status: StatusFailed, Message: message, Context: subject, Err: errors.New(message)}
}

// Cancelled returns a cancelled Result.
func Cancelled(subject string) Result {
	return Result{Status: StatusCancelled, Message: "operation cancelled", Context: subject, Err: context.Canceled}
}

// ResultFromError maps err to a Result. A nil error is a pass; context
// cancellation and deadline errors map to StatusCancelled.
func ResultFromError(err error, subject string) Result {
	switch {
	case err == nil:
		return Passed("")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r := Cancelled(subject)
		r.Err = err
		return r
	default:
		return Failed(err, subject)
	}
}

// OK reports whether the Result passed.
func (r Result) OK() bool { return r.Status == StatusPassed }

// IsCancelled reports whether the Result was cancelled.
func (r Result) IsCancelled() bool { return r.Status == StatusCancelled }

func (r Result) String() string {
	if r.Context == "" {
		return fmt.Sprintf("%s: %s", r.Status, r.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", r.Status, r.Message, r.Context)
}
