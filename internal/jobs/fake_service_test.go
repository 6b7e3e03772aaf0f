package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"posegen/internal/providers/prediction"
)

// fakeService is a controllable prediction.Service.
type fakeService struct {
	mu          sync.Mutex
	nextID      int
	ids         []string
	submitErr   error
	submits     int
	statusCalls int
	prompts     []string
	statuses    map[string]*prediction.Prediction
	statusErrs  map[string]error
	gates       map[string]chan struct{}
	started     chan string
}

func newFakeService() *fakeService {
	return &fakeService{
		statuses:   make(map[string]*prediction.Prediction),
		statusErrs: make(map[string]error),
		gates:      make(map[string]chan struct{}),
		started:    make(chan string, 64),
	}
}

func (f *fakeService) Submit(ctx context.Context, req prediction.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.prompts = append(f.prompts, req.Prompt)
	if len(f.ids) > 0 {
		id := f.ids[0]
		f.ids = f.ids[1:]
		return id, nil
	}
	f.nextID++
	return fmt.Sprintf("J%d", f.nextID), nil
}

func (f *fakeService) Status(ctx context.Context, id string) (*prediction.Prediction, error) {
	f.mu.Lock()
	f.statusCalls++
	gate := f.gates[id]
	f.mu.Unlock()

	select {
	case f.started <- id:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusErrs[id]; err != nil {
		return nil, err
	}
	if p, ok := f.statuses[id]; ok {
		cp := *p
		cp.Outputs = append([]string(nil), p.Outputs...)
		return &cp, nil
	}
	return &prediction.Prediction{ID: id, Status: prediction.StatusStarting}, nil
}

func (f *fakeService) setStatus(id string, status prediction.Status, outputs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = &prediction.Prediction{ID: id, Status: status, Outputs: outputs}
}

func (f *fakeService) setStatusErr(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErrs[id] = err
}

// hold makes status queries for id block until the returned func is called.
func (f *fakeService) hold(id string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[id] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeService) counts() (submits, statusCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.statusCalls
}

// waitStarted blocks until n status queries have begun.
func (f *fakeService) waitStarted(n int) error {
	timeout := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-f.started:
		case <-timeout:
			return fmt.Errorf("only %d of %d status queries started", i, n)
		}
	}
	return nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
