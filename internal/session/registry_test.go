package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"posegen/internal/domain"
	"posegen/internal/providers/synthetic"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	if opts.Service == nil {
		opts.Service = synthetic.NewService(synthetic.Options{})
	}
	r, err := NewRegistry(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Close(ctx)
	})
	return r
}

func TestRegistryRequiresService(t *testing.T) {
	_, err := NewRegistry(Options{})
	require.Error(t, err)
}

func TestRegistryCreateGetDelete(t *testing.T) {
	r := newTestRegistry(t, Options{MaxGenerations: 3})

	s, err := r.Create()
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.Equal(t, 3, s.Tracker.Max())
	require.Equal(t, 1, r.Len())

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	require.Same(t, s, got)

	require.NoError(t, r.Delete(s.ID))
	_, err = r.Get(s.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	require.ErrorIs(t, r.Delete(s.ID), domain.ErrSessionNotFound)

	select {
	case <-s.Done():
	default:
		t.Fatalf("deleted session should be done")
	}
}

func TestRegistrySessionsHaveIndependentCaps(t *testing.T) {
	r := newTestRegistry(t, Options{MaxGenerations: 1})
	ctx := context.Background()

	a, err := r.Create()
	require.NoError(t, err)
	b, err := r.Create()
	require.NoError(t, err)

	_, err = a.Tracker.Submit(ctx, "first", []byte{1})
	require.NoError(t, err)
	_, err = a.Tracker.Submit(ctx, "second", []byte{1})
	require.ErrorIs(t, err, domain.ErrSubmissionRejected)

	_, err = b.Tracker.Submit(ctx, "first", []byte{1})
	require.NoError(t, err)
}

func TestRegistrySweepEvictsIdleSessions(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := newTestRegistry(t, Options{IdleTTL: 10 * time.Minute, Now: clock.Now})

	idle, err := r.Create()
	require.NoError(t, err)
	active, err := r.Create()
	require.NoError(t, err)
	watched, err := r.Create()
	require.NoError(t, err)
	_, unsubscribe := watched.Subscribe()
	defer unsubscribe()

	clock.Advance(8 * time.Minute)
	_, err = r.Get(active.ID)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)

	require.Equal(t, 1, r.Sweep())
	_, err = r.Get(idle.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = r.Get(active.ID)
	require.NoError(t, err)
	_, err = r.Get(watched.ID)
	require.NoError(t, err)
}

func TestRegistryScheduledTicksResolveJobs(t *testing.T) {
	r := newTestRegistry(t, Options{
		Service:      synthetic.NewService(synthetic.Options{PollsToComplete: 0}),
		PollInterval: time.Second,
	})
	r.Start()

	s, err := r.Create()
	require.NoError(t, err)
	changes, unsubscribe := s.Subscribe()
	defer unsubscribe()

	job, err := s.Tracker.Submit(context.Background(), "astronaut", []byte{1})
	require.NoError(t, err)
	<-changes

	require.Eventually(t, func() bool {
		got, err := s.Tracker.Job(job.ID)
		return err == nil && got.Status == domain.JobStatusSucceeded
	}, 5*time.Second, 50*time.Millisecond)

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatalf("expected change notification after reconciliation")
	}
	got, _ := s.Tracker.Job(job.ID)
	require.Len(t, got.Outputs, 2)
}
