package jobs

import (
	"context"
	"time"

	"posegen/internal/domain"
	"posegen/internal/infra"
	"posegen/internal/providers/prediction"
)

// Options configures a Tracker.
type Options struct {
	Service         prediction.Service
	MaxGenerations  int
	PollTimeout     time.Duration
	PollConcurrency int
	QualitySuffix   string
	Logger          *infra.Logger
	Now             func() time.Time
}

// Tracker owns the jobs of one session: the store, the admission gate, the
// submission pipeline and the reconciliation loop.
type Tracker struct {
	store      *Store
	pipeline   *Pipeline
	reconciler *Reconciler
	now        func() time.Time
}

// NewTracker wires the components of a session around a fresh store.
func NewTracker(opts Options) *Tracker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	store := NewStore()
	gate := NewGate(opts.MaxGenerations)
	// A session never holds more than gate.Max jobs, so this lets every pending
	// query run without waiting behind a slow one.
	concurrency := max(opts.PollConcurrency, gate.Max)
	return &Tracker{
		store: store,
		pipeline: NewPipeline(PipelineOptions{
			Store:         store,
			Service:       opts.Service,
			Gate:          gate,
			QualitySuffix: opts.QualitySuffix,
			Logger:        opts.Logger,
			Now:           now,
		}),
		reconciler: NewReconciler(ReconcilerOptions{
			Store:       store,
			Service:     opts.Service,
			PollTimeout: opts.PollTimeout,
			Concurrency: concurrency,
			Logger:      opts.Logger,
			Now:         now,
		}),
		now: now,
	}
}

// Store exposes the underlying job store.
func (t *Tracker) Store() *Store {
	return t.store
}

// Submit forwards to the submission pipeline.
func (t *Tracker) Submit(ctx context.Context, prompt string, pose []byte) (domain.Job, error) {
	return t.pipeline.Submit(ctx, prompt, pose)
}

// Tick runs one reconciliation pass.
func (t *Tracker) Tick(ctx context.Context) TickResult {
	return t.reconciler.Tick(ctx)
}

// Snapshot returns every job in insertion order.
func (t *Tracker) Snapshot() []domain.Job {
	return t.store.Snapshot()
}

// Job returns a single job by id.
func (t *Tracker) Job(id string) (domain.Job, error) {
	job, ok := t.store.Get(id)
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return job, nil
}

// Gallery partitions the current jobs for display.
func (t *Tracker) Gallery() Gallery {
	return Partition(t.store.Snapshot(), t.now())
}

// Remaining returns how many more submissions the session admits.
func (t *Tracker) Remaining() int {
	return t.pipeline.Remaining()
}

// Max returns the session's admission cap.
func (t *Tracker) Max() int {
	return t.pipeline.Max()
}

// Settled reports whether no job is pending.
func (t *Tracker) Settled() bool {
	return t.store.CountByStatus()[domain.JobStatusPending] == 0
}
