package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"posegen/internal/jobs"
	"posegen/internal/session"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// Stream upgrades to a WebSocket and pushes the gallery on connect and after
// every change to the session's jobs.
func (a *App) Stream(w http.ResponseWriter, r *http.Request) {
	s, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debug().Err(err).Str("session_id", s.ID).Msg("handlers: websocket upgrade")
		return
	}
	changes, unsubscribe := s.Subscribe()
	defer unsubscribe()
	defer conn.Close()

	a.Logger.Info().Str("session_id", s.ID).Msg("handlers: stream client connected")
	defer a.Logger.Info().Str("session_id", s.ID).Msg("handlers: stream client disconnected")

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	if err := a.pushGallery(conn, s); err != nil {
		return
	}
	for {
		select {
		case <-changes:
			if err := a.pushGallery(conn, s); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
				time.Now().Add(streamWriteWait))
			return
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (a *App) pushGallery(conn *websocket.Conn, s *session.Session) error {
	s.Touch(a.Now())
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(streamMessage{
		SessionID: s.ID,
		Remaining: s.Tracker.Remaining(),
		Gallery:   s.Tracker.Gallery(),
	})
}

type streamMessage struct {
	SessionID string       `json:"session_id"`
	Remaining int          `json:"remaining"`
	Gallery   jobs.Gallery `json:"gallery"`
}

// readUntilClosed drains client frames so control messages are processed and
// signals when the peer goes away.
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
