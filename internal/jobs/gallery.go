package jobs

import (
	"time"

	"posegen/internal/domain"
)

// GalleryItem is the display form of a job.
type GalleryItem struct {
	PredictionID   string     `json:"prediction_id"`
	Prompt         string     `json:"prompt"`
	Status         string     `json:"status"`
	Outputs        []string   `json:"outputs"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedMinutes int        `json:"elapsed_minutes"`
}

// Gallery groups jobs by status, each group in insertion order.
type Gallery struct {
	Succeeded []GalleryItem `json:"succeeded"`
	Waiting   []GalleryItem `json:"waiting"`
	Failed    []GalleryItem `json:"failed"`
}

// NewGalleryItem renders a job relative to now.
func NewGalleryItem(job domain.Job, now time.Time) GalleryItem {
	item := GalleryItem{
		PredictionID:   job.ID,
		Prompt:         job.Prompt,
		Status:         string(job.Status),
		Outputs:        append([]string{}, job.Outputs...),
		SubmittedAt:    job.SubmittedAt,
		ElapsedMinutes: int(job.Elapsed(now) / time.Minute),
	}
	if !job.CompletedAt.IsZero() {
		completed := job.CompletedAt
		item.CompletedAt = &completed
	}
	return item
}

// Partition splits jobs into succeeded, waiting and failed groups.
func Partition(jobs []domain.Job, now time.Time) Gallery {
	g := Gallery{
		Succeeded: []GalleryItem{},
		Waiting:   []GalleryItem{},
		Failed:    []GalleryItem{},
	}
	for _, job := range jobs {
		item := NewGalleryItem(job, now)
		switch job.Status {
		case domain.JobStatusSucceeded:
			g.Succeeded = append(g.Succeeded, item)
		case domain.JobStatusFailed:
			g.Failed = append(g.Failed, item)
		default:
			g.Waiting = append(g.Waiting, item)
		}
	}
	return g
}
