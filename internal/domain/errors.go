package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrInvalidPose        = errors.New("invalid pose snapshot")
	ErrDuplicateID        = errors.New("duplicate job id")
	ErrTerminalRegression = errors.New("terminal job regression")
	ErrJobDropped         = errors.New("job dropped from store")
	ErrSubmissionRejected = errors.New("submission rejected")
	ErrSubmissionFailed   = errors.New("submission failed")
	ErrPollTransient      = errors.New("poll transient error")
)

// RejectReasonMaxGenerations is reported once a session used all of its generations.
const RejectReasonMaxGenerations = "max-generations-reached"

// SubmissionRejectedError is returned when the admission gate refuses a submission.
type SubmissionRejectedError struct {
	Reason string
	Max    int
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s (max %d)", e.Reason, e.Max)
}

func (e *SubmissionRejectedError) Is(target error) bool {
	return target == ErrSubmissionRejected
}

// SubmissionFailedError wraps a transport or server failure from the generation service.
type SubmissionFailedError struct {
	Cause error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Cause)
}

func (e *SubmissionFailedError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Cause
}

// PollTransientError marks a status query that will be retried on the next tick.
type PollTransientError struct {
	JobID string
	Cause error
}

func (e *PollTransientError) Error() string {
	return fmt.Sprintf("poll %s: %v", e.JobID, e.Cause)
}

func (e *PollTransientError) Is(target error) bool {
	return target == ErrPollTransient
}

func (e *PollTransientError) Unwrap() error {
	return e.Cause
}

// InvariantViolationError reports a rejected store mutation.
type InvariantViolationError struct {
	JobID string
	Err   error
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation on job %s: %v", e.JobID, e.Err)
}

func (e *InvariantViolationError) Unwrap() error {
	return e.Err
}
