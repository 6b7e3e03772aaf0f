package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"posegen/internal/domain"
	"posegen/internal/infra"
	"posegen/internal/jobs"
	"posegen/internal/providers/prediction"
)

const (
	// DefaultPollInterval is the period between reconciliation ticks.
	DefaultPollInterval = 10 * time.Second
	// DefaultIdleTTL is how long a session survives without requests.
	DefaultIdleTTL = time.Hour

	sweepSpec = "@every 1m"
)

// Options configures a Registry.
type Options struct {
	Service         prediction.Service
	MaxGenerations  int
	PollInterval    time.Duration
	PollTimeout     time.Duration
	PollConcurrency int
	QualitySuffix   string
	IdleTTL         time.Duration
	Logger          *infra.Logger
	Now             func() time.Time
}

// Registry keeps the live sessions and drives their reconciliation ticks.
type Registry struct {
	opts   Options
	logger *infra.Logger
	now    func() time.Time
	cron   *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds a registry. Call Start to begin polling.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Service == nil {
		return nil, errors.New("session: prediction service is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		opts:     opts,
		logger:   logger,
		now:      now,
		cron:     cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	if _, err := r.cron.AddFunc(sweepSpec, func() { r.Sweep() }); err != nil {
		cancel()
		return nil, fmt.Errorf("session: schedule sweep: %w", err)
	}
	return r, nil
}

// Start begins running scheduled ticks in the background.
func (r *Registry) Start() {
	r.cron.Start()
	r.logger.Info().Dur("poll_interval", r.opts.PollInterval).Msg("session: scheduler started")
}

// Close stops the scheduler and waits for running ticks to return.
func (r *Registry) Close(ctx context.Context) error {
	r.cancel()
	stopped := r.cron.Stop()
	r.mu.Lock()
	for id, s := range r.sessions {
		s.close()
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	select {
	case <-stopped.Done():
		r.logger.Info().Msg("session: scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MaxGenerations returns the admission cap applied to new sessions.
func (r *Registry) MaxGenerations() int {
	return jobs.NewGate(r.opts.MaxGenerations).Max
}

// PollInterval returns the tick period.
func (r *Registry) PollInterval() time.Duration {
	return r.opts.PollInterval
}

// Create opens a new session and schedules its ticks.
func (r *Registry) Create() (*Session, error) {
	id := uuid.NewString()
	tracker := jobs.NewTracker(jobs.Options{
		Service:         r.opts.Service,
		MaxGenerations:  r.opts.MaxGenerations,
		PollTimeout:     r.opts.PollTimeout,
		PollConcurrency: r.opts.PollConcurrency,
		QualitySuffix:   r.opts.QualitySuffix,
		Logger:          r.sessionLogger(id),
		Now:             r.now,
	})
	s := newSession(id, tracker, r.now())

	entry, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.opts.PollInterval), func() {
		res := tracker.Tick(r.ctx)
		if res.Polled > 0 {
			r.logger.Debug().
				Str("session_id", id).
				Int("polled", res.Polled).
				Int("succeeded", res.Succeeded).
				Int("failed", res.Failed).
				Int("transient", res.Transient).
				Msg("session: tick")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("session: schedule ticks: %w", err)
	}
	s.entry = entry

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	r.logger.Info().Str("session_id", id).Msg("session: created")
	return s, nil
}

// Get returns a live session and records activity on it.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.Touch(r.now())
	return s, nil
}

// Delete removes a session and stops its ticks.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	r.cron.Remove(s.entry)
	s.close()
	r.logger.Info().Str("session_id", id).Msg("session: closed")
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the configured TTL and returns
// how many were removed. Sessions with an open stream are kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.opts.IdleTTL)
	var stale []string
	r.mu.RLock()
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) && s.Subscribers() == 0 {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if err := r.Delete(id); err == nil {
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("session: swept idle sessions")
	}
	return removed
}

func (r *Registry) sessionLogger(id string) *infra.Logger {
	l := r.logger.With().Str("session_id", id).Logger()
	return &l
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	logger *infra.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
