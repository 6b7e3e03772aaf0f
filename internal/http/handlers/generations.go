package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"posegen/internal/domain"
	"posegen/internal/jobs"
	"posegen/internal/middleware"
	"posegen/internal/session"
	"posegen/pkg/zip"
)

const multipartOverhead = 1 << 20

type submitResponse struct {
	PredictionID string           `json:"prediction_id"`
	Status       domain.JobStatus `json:"status"`
	Remaining    int              `json:"remaining"`
}

func (a *App) SubmitGeneration(w http.ResponseWriter, r *http.Request) {
	s, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	a.submit(w, r, s)
}

func (a *App) submit(w http.ResponseWriter, r *http.Request, s *session.Session) {
	prompt, pose, ok := a.readSubmission(w, r)
	if !ok {
		return
	}
	job, err := s.Tracker.Submit(r.Context(), prompt, pose)
	if err != nil {
		a.Logger.Warn().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("session_id", s.ID).
			Msg("handlers: submission not accepted")
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{
		PredictionID: job.ID,
		Status:       job.Status,
		Remaining:    s.Tracker.Remaining(),
	})
}

// readSubmission parses the multipart form carrying the prompt text and the
// pose snapshot. Validation of the values themselves happens in the pipeline.
func (a *App) readSubmission(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxPoseBytes+multipartOverhead)
	if err := r.ParseMultipartForm(a.MaxPoseBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "pose_too_large", "pose image is too large")
			return "", nil, false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "expected multipart form with prompt and image")
		return "", nil, false
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	prompt := r.FormValue("prompt")
	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return prompt, nil, true
		}
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable image part")
		return "", nil, false
	}
	defer file.Close()

	pose, err := io.ReadAll(io.LimitReader(file, a.MaxPoseBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable image part")
		return "", nil, false
	}
	if int64(len(pose)) > a.MaxPoseBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "pose_too_large", "pose image is too large")
		return "", nil, false
	}
	return prompt, pose, true
}

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	s, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, s.Tracker.Gallery())
}

func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	s, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	job, err := s.Tracker.Job(chi.URLParam(r, "prediction_id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, jobs.NewGalleryItem(job, a.Now()))
}

func (a *App) GenerationZip(w http.ResponseWriter, r *http.Request) {
	s, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	job, err := s.Tracker.Job(chi.URLParam(r, "prediction_id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if job.Status != domain.JobStatusSucceeded || len(job.Outputs) == 0 {
		a.error(w, http.StatusConflict, "not_ready", "generation has no outputs yet")
		return
	}
	downloads, err := a.Fetcher.FetchAll(r.Context(), job.Outputs)
	if err != nil {
		a.Logger.Warn().Err(err).Str("prediction_id", job.ID).Msg("handlers: fetch outputs")
		a.error(w, http.StatusBadGateway, "fetch_failed", "could not download outputs")
		return
	}
	assets := make([]zip.Asset, 0, len(downloads))
	for i, d := range downloads {
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%s-%d%s", job.ID, i+1, d.Extension),
			MIME:     d.MIMEType,
			Data:     d.Data,
		})
	}
	modified := job.CompletedAt
	if modified.IsZero() {
		modified = a.Now()
	}
	archive, err := zip.ArchiveAssets(assets, modified.Truncate(time.Second))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=generation-%s.zip", job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
