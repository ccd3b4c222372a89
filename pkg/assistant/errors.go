package assistant

import (
	"errors"
	"fmt"
)

// ErrNoReply is returned when a thread holds no assistant-authored message
// with a text content block.
var ErrNoReply = errors.New("assistant: no reply message in thread")

// ThreadCreateError wraps a failure to create a thread.
type ThreadCreateError struct {
	Err error
}

func (e *ThreadCreateError) Error() string {
	return fmt.Sprintf("assistant: create thread: %v", e.Err)
}

func (e *ThreadCreateError) Unwrap() error { return e.Err }

// MessageAppendError wraps a failure to append a message to a thread.
type MessageAppendError struct {
	ThreadID string
	Err      error
}

func (e *MessageAppendError) Error() string {
	return fmt.Sprintf("assistant: append message to thread %s: %v", e.ThreadID, e.Err)
}

func (e *MessageAppendError) Unwrap() error { return e.Err }

// RunCreateError wraps a failure to start a run.
type RunCreateError struct {
	ThreadID string
	Err      error
}

func (e *RunCreateError) Error() string {
	return fmt.Sprintf("assistant: start run on thread %s: %v", e.ThreadID, e.Err)
}

func (e *RunCreateError) Unwrap() error { return e.Err }

// RunStatusError wraps a failure to fetch a run's status.
type RunStatusError struct {
	ThreadID string
	RunID    string
	Err      error
}

func (e *RunStatusError) Error() string {
	return fmt.Sprintf("assistant: get run %s on thread %s: %v", e.RunID, e.ThreadID, e.Err)
}

func (e *RunStatusError) Unwrap() error { return e.Err }

// ReplyFetchError wraps a failure to list a thread's messages.
type ReplyFetchError struct {
	ThreadID string
	Err      error
}

func (e *ReplyFetchError) Error() string {
	return fmt.Sprintf("assistant: fetch reply from thread %s: %v", e.ThreadID, e.Err)
}

func (e *ReplyFetchError) Unwrap() error { return e.Err }

// RunFailedError reports a run that reached a terminal failure state
// (failed, cancelled, or expired).
type RunFailedError struct {
	ThreadID string
	RunID    string
	Status   RunStatus
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("assistant: run %s on thread %s ended with status %q", e.RunID, e.ThreadID, e.Status)
}

// RunTimeoutError reports a run that never reached a terminal state within
// the poll policy's attempt budget.
type RunTimeoutError struct {
	ThreadID   string
	RunID      string
	Attempts   int
	LastStatus RunStatus
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("assistant: run %s on thread %s still %q after %d status checks",
		e.RunID, e.ThreadID, e.LastStatus, e.Attempts)
}
