package prediction

import (
	"context"
	"errors"
	"strings"
)

// Status mirrors the lifecycle reported by the generation service.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// ErrMissingCredentials indicates that a service was configured without an API token.
var ErrMissingCredentials = errors.New("prediction: credentials are required")

// SubmitRequest carries the inputs of one pose-conditioned generation.
type SubmitRequest struct {
	Prompt    string
	Image     []byte
	MIMEType  string
	RequestID string
}

// Prediction is the normalized status payload of a submitted generation.
type Prediction struct {
	ID      string
	Status  Status
	Outputs []string
	Error   string
}

// Normalize folds upstream states into starting, succeeded or failed.
func (p *Prediction) Normalize() Status {
	if p == nil {
		return StatusStarting
	}
	switch Status(strings.ToLower(strings.TrimSpace(string(p.Status)))) {
	case StatusSucceeded:
		return StatusSucceeded
	case StatusFailed, StatusCanceled:
		return StatusFailed
	default:
		return StatusStarting
	}
}

// Service is the contract implemented by every generation backend.
type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Status(ctx context.Context, predictionID string) (*Prediction, error)
}

// CredentialedService is implemented by services that need an API token.
type CredentialedService interface {
	Service
	HasCredentials() bool
}

// WithFallback returns primary when it can perform remote calls and fallback otherwise.
func WithFallback(primary CredentialedService, fallback Service) Service {
	if primary != nil && primary.HasCredentials() {
		return primary
	}
	return fallback
}
