package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"posegen/internal/jobs"
)

// Session is one user's in-memory workspace: its jobs and their poll schedule.
type Session struct {
	ID        string
	CreatedAt time.Time
	Tracker   *jobs.Tracker

	lastSeen atomic.Int64
	entry    cron.EntryID

	mu          sync.Mutex
	nextSub     int
	subscribers map[int]chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

func newSession(id string, tracker *jobs.Tracker, now time.Time) *Session {
	s := &Session{
		ID:          id,
		CreatedAt:   now,
		Tracker:     tracker,
		subscribers: make(map[int]chan struct{}),
		done:        make(chan struct{}),
	}
	s.lastSeen.Store(now.UnixNano())
	tracker.Store().OnChange(s.notify)
	return s
}

// Touch records activity on the session.
func (s *Session) Touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the time of the latest recorded activity.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Subscribe returns a channel signalled after every change to the session's
// jobs. Signals coalesce; receivers should read the latest snapshot.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Session) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Done is closed once the session is removed from its registry.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
