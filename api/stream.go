package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// stream upgrades to a websocket and pushes the current snapshot followed
// by one snapshot per session operation. Client messages are ignored.
func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	snaps, cancel := s.ctrl.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.log.Debug().Str("remote", c.Request.RemoteAddr).Msg("stream opened")
	if err := s.write(conn, s.ctrl.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-done:
			s.log.Debug().Str("remote", c.Request.RemoteAddr).Msg("stream closed")
			return
		case snap, open := <-snaps:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.write(conn, snap); err != nil {
				s.log.Debug().Err(err).Msg("stream write")
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
