package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

// handleTableStream pushes table changes to a websocket client as JSON
// text messages until either side closes.
func (s *Server) handleTableStream(w http.ResponseWriter, r *http.Request) {
	if s.c.Feed == nil {
		writeError(w, fmt.Errorf("table stream %w", errUnavailable))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sub := s.c.Feed.Subscribe(r.RemoteAddr)
	defer sub.Close()

	s.logger.Debug("table stream opened", "remote", r.RemoteAddr)

	// Clients only send control frames; a read error means they are gone.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	// Pings go out as control frames, which may be written concurrently
	// with WriteJSON.
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(streamWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		change, ok := sub.Receive()
		if !ok {
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			break
		}

		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(change); err != nil {
			s.logger.Debug("table stream write failed", "remote", r.RemoteAddr, "error", err)
			break
		}
	}

	s.logger.Debug("table stream closed", "remote", r.RemoteAddr, "dropped", sub.Stats().Dropped)
}
