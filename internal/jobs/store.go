package jobs

import (
	"slices"
	"sync"

	"posegen/internal/domain"
)

// Store holds the ordered jobs of one session. Every mutation is atomic with
// respect to the others; reads return deep copies.
type Store struct {
	mu       sync.RWMutex
	jobs     []domain.Job
	index    map[string]int
	onChange func()
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// OnChange registers a hook invoked after every successful mutation.
// The hook runs outside the store lock and may call Snapshot.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Snapshot returns the jobs in insertion order.
func (s *Store) Snapshot() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Job, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = j.Clone()
	}
	return out
}

// Len returns the number of jobs ever created in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Get returns the job with the given id.
func (s *Store) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[id]
	if !ok {
		return domain.Job{}, false
	}
	return s.jobs[idx].Clone(), true
}

// CountByStatus tallies jobs per status.
func (s *Store) CountByStatus() map[domain.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.JobStatus]int, 3)
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts
}

// Append adds job at the end of the sequence.
func (s *Store) Append(job domain.Job) error {
	s.mu.Lock()
	if _, exists := s.index[job.ID]; exists {
		s.mu.Unlock()
		return &domain.InvariantViolationError{JobID: job.ID, Err: domain.ErrDuplicateID}
	}
	s.index[job.ID] = len(s.jobs)
	s.jobs = append(s.jobs, job.Clone())
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// ReplaceAll swaps the stored sequence for jobs. The call is rejected, leaving
// the store untouched, if it would drop a job, repeat an id, or change a job
// that is already terminal.
func (s *Store) ReplaceAll(jobs []domain.Job) error {
	s.mu.Lock()
	err := s.replaceLocked(jobs)
	hook := s.onChange
	s.mu.Unlock()

	if err == nil && hook != nil {
		hook()
	}
	return err
}

// Merge applies updates keyed by job id over the store's current contents.
// Jobs appended after the updates were computed keep their position and value;
// updates targeting jobs that are no longer pending are ignored.
func (s *Store) Merge(updates map[string]domain.Job) error {
	if len(updates) == 0 {
		return nil
	}
	s.mu.Lock()
	next := make([]domain.Job, len(s.jobs))
	changed := false
	for i, current := range s.jobs {
		next[i] = current
		update, ok := updates[current.ID]
		if !ok || current.IsTerminal() {
			continue
		}
		next[i] = update.Clone()
		changed = true
	}
	var err error
	if changed {
		err = s.replaceLocked(next)
	}
	hook := s.onChange
	s.mu.Unlock()

	if changed && err == nil && hook != nil {
		hook()
	}
	return err
}

func (s *Store) replaceLocked(jobs []domain.Job) error {
	index := make(map[string]int, len(jobs))
	for i, j := range jobs {
		if _, dup := index[j.ID]; dup {
			return &domain.InvariantViolationError{JobID: j.ID, Err: domain.ErrDuplicateID}
		}
		index[j.ID] = i
	}
	for _, existing := range s.jobs {
		idx, ok := index[existing.ID]
		if !ok {
			return &domain.InvariantViolationError{JobID: existing.ID, Err: domain.ErrJobDropped}
		}
		if err := checkTransition(existing, jobs[idx]); err != nil {
			return err
		}
	}
	next := make([]domain.Job, len(jobs))
	for i, j := range jobs {
		next[i] = j.Clone()
	}
	s.jobs = next
	s.index = index
	return nil
}

func checkTransition(from, to domain.Job) error {
	if !from.IsTerminal() {
		return nil
	}
	if to.Status != from.Status || !slices.Equal(to.Outputs, from.Outputs) || !to.CompletedAt.Equal(from.CompletedAt) {
		return &domain.InvariantViolationError{JobID: from.ID, Err: domain.ErrTerminalRegression}
	}
	return nil
}

var _ domain.JobStore = (*Store)(nil)
