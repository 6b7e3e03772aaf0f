package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"posegen/internal/domain"
	"posegen/internal/imagegen"
	"posegen/internal/infra"
	"posegen/internal/providers/prediction"
)

// PipelineOptions wires a Pipeline.
type PipelineOptions struct {
	Store         domain.JobStore
	Service       prediction.Service
	Gate          Gate
	QualitySuffix string
	Logger        *infra.Logger
	Now           func() time.Time
}

// Pipeline turns a prompt and a pose snapshot into a pending job.
type Pipeline struct {
	store   domain.JobStore
	service prediction.Service
	gate    Gate
	suffix  string
	logger  *infra.Logger
	now     func() time.Time

	// mu serializes admission so that concurrent submissions cannot both take
	// the last slot while their upstream calls are in flight.
	mu       sync.Mutex
	reserved int
}

// NewPipeline constructs a Pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	gate := opts.Gate
	if gate.Max <= 0 {
		gate = NewGate(0)
	}
	return &Pipeline{
		store:   opts.Store,
		service: opts.Service,
		gate:    gate,
		suffix:  opts.QualitySuffix,
		logger:  logger,
		now:     now,
	}
}

// Remaining returns how many submissions the gate still admits.
func (p *Pipeline) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gate.Remaining(p.store.Len() + p.reserved)
}

// Max returns the admission cap.
func (p *Pipeline) Max() int {
	return p.gate.Max
}

// Submit issues exactly one submission call and records the resulting job.
// A rejected or failed submission leaves the store untouched.
func (p *Pipeline) Submit(ctx context.Context, prompt string, pose []byte) (domain.Job, error) {
	text := imagegen.NormalizePrompt(prompt)
	if text == "" {
		return domain.Job{}, domain.ErrInvalidPrompt
	}
	if imagegen.PromptTooLong(text) {
		return domain.Job{}, fmt.Errorf("%w: longer than %d characters", domain.ErrInvalidPrompt, imagegen.MaxPromptRunes)
	}
	if len(pose) == 0 {
		return domain.Job{}, domain.ErrInvalidPose
	}

	p.mu.Lock()
	created := p.store.Len() + p.reserved
	if !p.gate.Allow(created) {
		p.mu.Unlock()
		p.logger.Info().Int("created", created).Int("max", p.gate.Max).Msg("jobs: submission rejected")
		return domain.Job{}, &domain.SubmissionRejectedError{Reason: domain.RejectReasonMaxGenerations, Max: p.gate.Max}
	}
	p.reserved++
	p.mu.Unlock()

	requestID := uuid.NewString()
	id, err := p.service.Submit(ctx, prediction.SubmitRequest{
		Prompt:    imagegen.BuildInstruction(text, p.suffix),
		Image:     pose,
		RequestID: requestID,
	})
	if err == nil && id == "" {
		err = errors.New("empty prediction id")
	}
	if err != nil {
		p.release()
		p.logger.Warn().Err(err).Str("request_id", requestID).Msg("jobs: submission failed")
		return domain.Job{}, &domain.SubmissionFailedError{Cause: err}
	}

	job := domain.NewPendingJob(id, text, p.now())
	p.mu.Lock()
	p.reserved--
	appendErr := p.store.Append(job)
	p.mu.Unlock()
	if appendErr != nil {
		p.logger.Error().Err(appendErr).Str("job_id", id).Msg("jobs: append rejected")
		return domain.Job{}, appendErr
	}
	p.logger.Info().Str("job_id", id).Str("request_id", requestID).Msg("jobs: submitted")
	return job, nil
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.reserved--
	p.mu.Unlock()
}
