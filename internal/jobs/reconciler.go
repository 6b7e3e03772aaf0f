package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"posegen/internal/domain"
	"posegen/internal/infra"
	"posegen/internal/providers/prediction"
)

const (
	// DefaultPollTimeout bounds a single status query.
	DefaultPollTimeout = 15 * time.Second
	// DefaultPollConcurrency bounds the status queries in flight during a tick.
	// It matches the default admission cap so every pending job is polled at once.
	DefaultPollConcurrency = DefaultMaxGenerations
	// ExpectedOutputs is the number of references a succeeded pose generation yields.
	ExpectedOutputs = 2
)

// ReconcilerOptions wires a Reconciler.
type ReconcilerOptions struct {
	Store       domain.JobStore
	Service     prediction.Service
	PollTimeout time.Duration
	Concurrency int
	Logger      *infra.Logger
	Now         func() time.Time
}

// TickResult summarizes one reconciliation pass.
type TickResult struct {
	Skipped   bool
	Polled    int
	Succeeded int
	Failed    int
	Transient int
}

// Reconciler moves pending jobs toward a terminal status by polling the
// generation service.
type Reconciler struct {
	store       domain.JobStore
	service     prediction.Service
	timeout     time.Duration
	concurrency int
	logger      *infra.Logger
	now         func() time.Time

	running sync.Mutex
}

// NewReconciler constructs a Reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	timeout := opts.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultPollConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		store:       opts.Store,
		service:     opts.Service,
		timeout:     timeout,
		concurrency: concurrency,
		logger:      logger,
		now:         now,
	}
}

type pollOutcome struct {
	update    *domain.Job
	transient bool
}

// Tick runs one reconciliation pass. A call made while another pass is still
// running returns immediately with Skipped set.
func (r *Reconciler) Tick(ctx context.Context) TickResult {
	if !r.running.TryLock() {
		r.logger.Debug().Msg("jobs: tick skipped, previous tick still running")
		return TickResult{Skipped: true}
	}
	defer r.running.Unlock()

	var pending []domain.Job
	for _, job := range r.store.Snapshot() {
		if job.Status == domain.JobStatusPending {
			pending = append(pending, job)
		}
	}
	if len(pending) == 0 {
		return TickResult{}
	}

	outcomes := make([]pollOutcome, len(pending))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, job := range pending {
		g.Go(func() error {
			outcomes[i] = r.poll(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	result := TickResult{Polled: len(pending)}
	updates := make(map[string]domain.Job)
	for _, o := range outcomes {
		if o.transient {
			result.Transient++
			continue
		}
		if o.update == nil {
			continue
		}
		updates[o.update.ID] = *o.update
		switch o.update.Status {
		case domain.JobStatusSucceeded:
			result.Succeeded++
		case domain.JobStatusFailed:
			result.Failed++
		}
	}
	if err := r.store.Merge(updates); err != nil {
		r.logger.Error().Err(err).Msg("jobs: merge rejected")
		result.Succeeded, result.Failed = 0, 0
	}
	return result
}

func (r *Reconciler) poll(ctx context.Context, job domain.Job) pollOutcome {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.service.Status(queryCtx, job.ID)
	if err == nil && p == nil {
		err = fmt.Errorf("empty status payload")
	}
	if err != nil {
		transient := &domain.PollTransientError{JobID: job.ID, Cause: err}
		r.logger.Debug().Err(transient).Str("job_id", job.ID).Msg("jobs: status query failed, retrying next tick")
		return pollOutcome{transient: true}
	}

	switch p.Normalize() {
	case prediction.StatusSucceeded:
		if len(p.Outputs) != ExpectedOutputs {
			r.logger.Warn().Str("job_id", job.ID).Int("outputs", len(p.Outputs)).Msg("jobs: unexpected output count")
		}
		updated := job.Succeed(p.Outputs, r.now())
		r.logger.Info().Str("job_id", job.ID).Msg("jobs: succeeded")
		return pollOutcome{update: &updated}
	case prediction.StatusFailed:
		updated := job.Fail(r.now())
		r.logger.Info().Str("job_id", job.ID).Str("reason", p.Error).Msg("jobs: failed")
		return pollOutcome{update: &updated}
	default:
		return pollOutcome{}
	}
}
