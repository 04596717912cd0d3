// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dungeonbuilder/backend/internal/lobby"
	"github.com/dungeonbuilder/backend/internal/middleware"
	"github.com/dungeonbuilder/backend/internal/notify"
)

// LobbyWSHandler streams lobby change events to the client over a
// websocket. Events originate from the Redis pub/sub channel the
// notifier publishes to, so every connected client of a lobby observes
// the same sequence of status and membership updates.
func LobbyWSHandler(logger *logrus.Logger, m *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/lobby/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing lobby_id", http.StatusBadRequest)
			return
		}
		lobbyID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid lobby_id", http.StatusBadRequest)
			return
		}

		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		l, err := m.Get(r.Context(), lobbyID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		if !l.IsPublic && !l.HasMember(userID) {
			http.Error(w, "not a member of this lobby", http.StatusForbidden)
			return
		}

		if notify.Rdb == nil {
			http.Error(w, "event streaming unavailable", http.StatusServiceUnavailable)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby" {
			c.Close(websocket.StatusPolicyViolation, "client must speak the lobby subprotocol")
			return
		}

		middleware.LogWebSocketConnect(logger, remoteAddr, lobbyID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sub := notify.Rdb.Subscribe(ctx, notify.ChannelFor(lobbyID))
		defer sub.Close()

		// Drain client frames so we notice the peer closing; inbound
		// payloads carry no meaning on this channel.
		go func() {
			defer cancel()
			for {
				if _, _, err := c.Read(ctx); err != nil {
					return
				}
			}
		}()

		var closeErr error
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case msg, ok := <-sub.Channel():
				if !ok {
					break loop
				}
				writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
				err := c.Write(writeCtx, websocket.MessageText, []byte(msg.Payload))
				writeCancel()
				if err != nil {
					closeErr = err
					break loop
				}
			}
		}

		middleware.LogWebSocketDisconnect(logger, remoteAddr, lobbyID, closeErr)
		c.Close(websocket.StatusNormalClosure, "stream ended")
	}
}
