package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"posegen/internal/domain"
	"posegen/internal/infra"
	"posegen/internal/middleware"
	"posegen/internal/session"
	"posegen/internal/storage"
)

const defaultMaxPoseBytes = 8 << 20

// Options wires the HTTP handlers to their collaborators.
type Options struct {
	Sessions       *session.Registry
	Fetcher        *storage.Fetcher
	Logger         *infra.Logger
	MaxPoseBytes   int64
	AllowedOrigins []string
	Now            func() time.Time
}

type App struct {
	Sessions     *session.Registry
	Fetcher      *storage.Fetcher
	Logger       *infra.Logger
	MaxPoseBytes int64
	Now          func() time.Time

	upgrader websocket.Upgrader
}

func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = storage.NewFetcher(storage.FetcherOptions{Logger: logger})
	}
	maxPose := opts.MaxPoseBytes
	if maxPose <= 0 {
		maxPose = defaultMaxPoseBytes
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		Sessions:     opts.Sessions,
		Fetcher:      fetcher,
		Logger:       logger,
		MaxPoseBytes: maxPose,
		Now:          now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

// domainError maps the job lifecycle errors onto HTTP responses.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *domain.SubmissionRejectedError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		a.error(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusBadRequest, "invalid_prompt", "prompt is required")
	case errors.Is(err, domain.ErrInvalidPose):
		a.error(w, http.StatusBadRequest, "invalid_pose", "pose image is required")
	case errors.As(err, &rejected):
		a.error(w, http.StatusForbidden, "max_generations_reached", "only allowing a maximum of generations per session")
	case errors.Is(err, domain.ErrSubmissionFailed):
		a.error(w, http.StatusBadGateway, "submission_failed", "generation service unavailable")
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("handlers: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
