// Package ws serves the read-only spectator feed over websocket. Players use
// the framed TCP transport; this surface only mirrors state.
package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/hub"
	"github.com/pathwars/duel-backend/internal/session"
	"github.com/pathwars/duel-backend/internal/types"
)

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.GetMatch{Code: code, Reply: reply}
		sess := <-reply
		if sess == nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, 8)
		watcherID := randID(6)

		sess.Inbox() <- session.Watch{ID: watcherID, Outbox: out}
		defer func() { sess.Inbox() <- session.Unwatch{ID: watcherID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.SpectatorMessage{Type: "StateSnapshot", Version: snap.Version, State: &snap.State}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop. Spectators send nothing meaningful; reads exist to
		// notice the close and to keep ping/pong flowing.
		for {
			ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
			_, _, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				log.Debug("spectator read ended", zap.Error(err))
				return
			}
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
