package domain

// JobStore is the in-memory, ordered collection of jobs for one session.
type JobStore interface {
	Snapshot() []Job
	Append(job Job) error
	ReplaceAll(jobs []Job) error
	Merge(updates map[string]Job) error
	Len() int
}
