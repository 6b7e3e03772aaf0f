package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"posegen/internal/session"
)

type sessionResponse struct {
	SessionID           string    `json:"session_id"`
	CreatedAt           time.Time `json:"created_at"`
	MaxGenerations      int       `json:"max_generations"`
	Submitted           int       `json:"submitted"`
	Remaining           int       `json:"remaining"`
	PollIntervalSeconds int       `json:"poll_interval_seconds"`
}

func (a *App) sessionBody(s *session.Session) sessionResponse {
	return sessionResponse{
		SessionID:           s.ID,
		CreatedAt:           s.CreatedAt,
		MaxGenerations:      s.Tracker.Max(),
		Submitted:           s.Tracker.Store().Len(),
		Remaining:           s.Tracker.Remaining(),
		PollIntervalSeconds: int(a.Sessions.PollInterval() / time.Second),
	}
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.Sessions.Create()
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	w.Header().Set(sessionHeader, s.ID)
	a.json(w, http.StatusCreated, a.sessionBody(s))
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, a.sessionBody(s))
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Delete(chi.URLParam(r, "session_id")); err != nil {
		a.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadSession resolves the {session_id} path parameter and writes the error
// response when it is unknown.
func (a *App) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := a.Sessions.Get(chi.URLParam(r, "session_id"))
	if err != nil {
		a.domainError(w, r, err)
		return nil, false
	}
	return s, true
}
