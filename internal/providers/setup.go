package providers

import (
	"fmt"

	"posegen/internal/infra"
	"posegen/internal/providers/prediction"
	"posegen/internal/providers/replicate"
	"posegen/internal/providers/synthetic"
)

// NewPredictionService returns the Replicate client when a token is
// configured and the offline synthetic service otherwise.
func NewPredictionService(cfg *infra.Config, logger *infra.Logger) (prediction.Service, error) {
	client, err := replicate.NewClient(replicate.Options{
		APIToken:          cfg.ReplicateToken,
		BaseURL:           cfg.ReplicateBaseURL,
		ModelVersion:      cfg.ModelVersion,
		Logger:            infra.Component(logger, "replicate"),
		RequestsPerSecond: cfg.UpstreamRPS,
	})
	if err != nil {
		return nil, fmt.Errorf("providers: replicate client: %w", err)
	}
	svc := prediction.WithFallback(client, synthetic.NewService(synthetic.Options{PollsToComplete: 2}))
	if !client.HasCredentials() {
		logger.Warn().Msg("REPLICATE_API_TOKEN not set; using synthetic generation service")
	} else {
		logger.Info().Str("model_version", client.ModelVersion()).Msg("using Replicate generation service")
	}
	return svc, nil
}
