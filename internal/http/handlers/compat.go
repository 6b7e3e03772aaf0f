package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"posegen/internal/domain"
	"posegen/internal/providers/prediction"
	"posegen/internal/session"
)

const (
	// sessionHeader identifies the caller's session on the flat routes.
	sessionHeader = "X-Session-ID"
	// sessionCookie carries the same id for clients that never read the header.
	sessionCookie = "posegen_session"
)

type statusResponse struct {
	PredictionID string            `json:"prediction_id"`
	Status       prediction.Status `json:"status"`
	Outputs      []string          `json:"outputs"`
}

// Generate serves POST /generate. The session comes from X-Session-ID, or the
// session cookie when the header is absent, and is created when neither names
// a live session. The id is returned in both the header and the cookie.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	s, err := a.headerSession(r, true)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	w.Header().Set(sessionHeader, s.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	a.submit(w, r, s)
}

// Status serves GET /status/{id} with the service's status vocabulary, so a
// pending job reads as "starting".
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	s, err := a.headerSession(r, false)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	w.Header().Set(sessionHeader, s.ID)
	job, err := s.Tracker.Job(chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, statusResponse{
		PredictionID: job.ID,
		Status:       wireStatus(job.Status),
		Outputs:      job.Outputs,
	})
}

func (a *App) headerSession(r *http.Request, create bool) (*session.Session, error) {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = strings.TrimSpace(c.Value)
		}
	}
	if id != "" {
		s, err := a.Sessions.Get(id)
		if err == nil || !create || !errors.Is(err, domain.ErrSessionNotFound) {
			return s, err
		}
	}
	if !create {
		return nil, domain.ErrSessionNotFound
	}
	return a.Sessions.Create()
}

func wireStatus(s domain.JobStatus) prediction.Status {
	switch s {
	case domain.JobStatusSucceeded:
		return prediction.StatusSucceeded
	case domain.JobStatusFailed:
		return prediction.StatusFailed
	default:
		return prediction.StatusStarting
	}
}
