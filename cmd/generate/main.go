package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"posegen/internal/domain"
	"posegen/internal/infra"
	"posegen/internal/jobs"
	"posegen/internal/providers"
	"posegen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	prompt := pflag.StringP("prompt", "p", "", "text prompt describing the subject")
	imagePath := pflag.StringP("image", "i", "", "path to the pose snapshot (PNG)")
	timeout := pflag.Duration("timeout", 10*time.Minute, "give up waiting after this long")
	outDir := pflag.StringP("out", "o", "", "directory for downloaded outputs (default STORAGE_PATH)")
	pflag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if *prompt == "" || *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: generate --prompt TEXT --image FILE")
		pflag.PrintDefaults()
		os.Exit(2)
	}
	if *outDir == "" {
		*outDir = cfg.StoragePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	saved, err := run(ctx, cfg, &logger, *prompt, *imagePath, *outDir)
	if err != nil {
		logger.Error().Err(err).Msg("generate: failed")
		os.Exit(1)
	}
	for _, path := range saved {
		fmt.Println(path)
	}
}

func run(ctx context.Context, cfg *infra.Config, logger *infra.Logger, prompt, imagePath, outDir string) ([]string, error) {
	pose, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read pose: %w", err)
	}
	store, err := storage.NewFileStore(outDir)
	if err != nil {
		return nil, err
	}
	svc, err := providers.NewPredictionService(cfg, logger)
	if err != nil {
		return nil, err
	}

	tracker := jobs.NewTracker(jobs.Options{
		Service:         svc,
		MaxGenerations:  cfg.MaxGenerations,
		PollTimeout:     cfg.PollTimeout,
		PollConcurrency: cfg.PollConcurrency,
		QualitySuffix:   cfg.PromptSuffix,
		Logger:          logger,
	})
	job, err := tracker.Submit(ctx, prompt, pose)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("prediction_id", job.ID).Msg("generate: submitted")

	if err := waitSettled(ctx, tracker, cfg.PollInterval); err != nil {
		return nil, err
	}

	job, err = tracker.Job(job.ID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusSucceeded {
		return nil, fmt.Errorf("prediction %s %s", job.ID, job.Status)
	}
	return saveOutputs(ctx, store, storage.NewFetcher(storage.FetcherOptions{Logger: logger}), job)
}

// waitSettled ticks the tracker until no job is pending.
func waitSettled(ctx context.Context, tracker *jobs.Tracker, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errors.New("timed out waiting for the generation")
			}
			return ctx.Err()
		case <-ticker.C:
			tracker.Tick(ctx)
			if tracker.Settled() {
				return nil
			}
		}
	}
}

func saveOutputs(ctx context.Context, store *storage.FileStore, fetcher *storage.Fetcher, job domain.Job) ([]string, error) {
	downloads, err := fetcher.FetchAll(ctx, job.Outputs)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(downloads))
	for i, d := range downloads {
		key, err := store.Write(ctx, storage.OutputKey(job.CompletedAt, i, d.Extension), d.Data)
		if err != nil {
			return paths, err
		}
		paths = append(paths, filepath.Join(store.BasePath(), filepath.FromSlash(key)))
	}
	return paths, nil
}
