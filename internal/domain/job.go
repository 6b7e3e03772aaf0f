package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions may occur from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job tracks one submitted pose generation request.
type Job struct {
	ID          string
	Status      JobStatus
	Prompt      string
	SubmittedAt time.Time
	CompletedAt time.Time
	Outputs     []string
}

// NewPendingJob builds the record created right after a successful submission.
func NewPendingJob(id, prompt string, now time.Time) Job {
	return Job{
		ID:          id,
		Status:      JobStatusPending,
		Prompt:      prompt,
		SubmittedAt: now,
		Outputs:     []string{},
	}
}

// IsTerminal reports whether the job reached succeeded or failed.
func (j Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Clone returns a copy that does not share the outputs slice.
func (j Job) Clone() Job {
	out := j
	out.Outputs = append([]string{}, j.Outputs...)
	return out
}

// Elapsed returns the time spent waiting. Terminal jobs stop the clock at CompletedAt.
func (j Job) Elapsed(now time.Time) time.Duration {
	end := now
	if j.IsTerminal() && !j.CompletedAt.IsZero() {
		end = j.CompletedAt
	}
	if end.Before(j.SubmittedAt) {
		return 0
	}
	return end.Sub(j.SubmittedAt)
}

// Succeed transitions a pending job to succeeded.
func (j Job) Succeed(outputs []string, now time.Time) Job {
	out := j.Clone()
	out.Status = JobStatusSucceeded
	out.CompletedAt = now
	out.Outputs = append([]string{}, outputs...)
	return out
}

// Fail transitions a pending job to failed.
func (j Job) Fail(now time.Time) Job {
	out := j.Clone()
	out.Status = JobStatusFailed
	out.CompletedAt = now
	return out
}
