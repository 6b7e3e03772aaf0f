package synthetic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"posegen/internal/providers/prediction"
)

// FailMarker makes a synthetic prediction end in the failed state when present in the prompt.
const FailMarker = "[fail]"

// Options configures the offline service.
type Options struct {
	// PollsToComplete is the number of status calls answered with "starting"
	// before a prediction resolves.
	PollsToComplete int
	BaseURL         string
}

type entry struct {
	prompt string
	polls  int
}

// Service emulates the generation backend for development without an API token.
type Service struct {
	mu      sync.Mutex
	entries map[string]*entry
	polls   int
	baseURL string
}

// NewService constructs a synthetic service.
func NewService(opts Options) *Service {
	polls := opts.PollsToComplete
	if polls < 0 {
		polls = 0
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://cdn.example.com/synthetic"
	}
	return &Service{entries: make(map[string]*entry), polls: polls, baseURL: base}
}

func (s *Service) Submit(ctx context.Context, req prediction.SubmitRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("synthetic: prompt is required")
	}
	if len(req.Image) == 0 {
		return "", errors.New("synthetic: image is required")
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &entry{prompt: req.Prompt}
	s.mu.Unlock()
	return id, nil
}

func (s *Service) Status(ctx context.Context, predictionID string) (*prediction.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[predictionID]
	if !ok {
		return nil, fmt.Errorf("synthetic: prediction %s not found", predictionID)
	}
	e.polls++
	if e.polls <= s.polls {
		return &prediction.Prediction{ID: predictionID, Status: prediction.StatusStarting}, nil
	}
	if strings.Contains(strings.ToLower(e.prompt), FailMarker) {
		return &prediction.Prediction{ID: predictionID, Status: prediction.StatusFailed, Error: "synthetic failure requested"}, nil
	}
	return &prediction.Prediction{
		ID:     predictionID,
		Status: prediction.StatusSucceeded,
		Outputs: []string{
			fmt.Sprintf("%s/%s/1.png", s.baseURL, predictionID),
			fmt.Sprintf("%s/%s/2.png", s.baseURL, predictionID),
		},
	}, nil
}

var _ prediction.Service = (*Service)(nil)
