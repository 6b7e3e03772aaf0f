package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"posegen/internal/domain"
	"posegen/internal/jobs"
	"posegen/internal/providers/synthetic"
	"posegen/internal/storage"
)

func TestWaitSettledAndSaveOutputs(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer cdn.Close()

	tracker := jobs.NewTracker(jobs.Options{
		Service: synthetic.NewService(synthetic.Options{PollsToComplete: 1, BaseURL: cdn.URL}),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := tracker.Submit(ctx, "warrior stance", []byte("pose"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := waitSettled(ctx, tracker, 10*time.Millisecond); err != nil {
		t.Fatalf("waitSettled: %v", err)
	}
	job, err = tracker.Job(job.ID)
	if err != nil || job.Status != domain.JobStatusSucceeded {
		t.Fatalf("job = %+v, err = %v", job, err)
	}

	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	paths, err := saveOutputs(ctx, store, storage.NewFetcher(storage.FetcherOptions{}), job)
	if err != nil {
		t.Fatalf("saveOutputs: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("saved %d files, want 2", len(paths))
	}
	want := filepath.Join(dir, storage.OutputKey(job.CompletedAt, 0, ".png"))
	if paths[0] != want {
		t.Fatalf("path = %q, want %q", paths[0], want)
	}
	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "/"+job.ID+"/2.png" {
		t.Fatalf("output content = %q", data)
	}
}

func TestWaitSettledTimesOut(t *testing.T) {
	tracker := jobs.NewTracker(jobs.Options{
		Service: synthetic.NewService(synthetic.Options{PollsToComplete: 1000}),
	})
	if _, err := tracker.Submit(context.Background(), "slow", []byte("pose")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := waitSettled(ctx, tracker, 5*time.Millisecond); err == nil {
		t.Fatalf("expected timeout")
	}
}
