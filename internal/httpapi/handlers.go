package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/engine"
	"github.com/pathwars/duel-backend/internal/hub"
	"github.com/pathwars/duel-backend/internal/session"
)

// createMatchRequest carries the optional match settings the host picked.
// Anything invalid or omitted falls back to the defaults.
type createMatchRequest struct {
	MaxRounds     int `json:"max_rounds"`
	StartingMoney int `json:"starting_money"`
}

func CreateMatch(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := engine.DefaultConfig()
		var req createMatchRequest
		if r.Body != nil {
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				if req.MaxRounds != 0 {
					cfg.MaxRounds = req.MaxRounds
				}
				if req.StartingMoney != 0 {
					cfg.StartingMoney = req.StartingMoney
				}
			}
		}
		if !cfg.Valid() {
			http.Error(w, "invalid match settings", http.StatusBadRequest)
			return
		}

		reply := make(chan hub.CreateResult, 1)
		h.Inbox() <- hub.CreateMatch{Config: cfg, Reply: reply}
		res := <-reply
		if res.Session == nil {
			http.Error(w, "failed to create match", http.StatusInternalServerError)
			return
		}
		log.Info("match created via api", zap.String("code", res.Code))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: res.Code})
	}
}

// MatchInfo returns a point-in-time snapshot of a running match. Spectators
// wanting live updates use the websocket route instead.
func MatchInfo(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.GetMatch{Code: code, Reply: reply}
		sess := <-reply
		if sess == nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}

		viewReply := make(chan session.View, 1)
		sess.Inbox() <- session.GetState{Reply: viewReply}
		view := <-viewReply

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Code       string            `json:"code"`
			Started    bool              `json:"started"`
			Players    int               `json:"players"`
			Spectators int               `json:"spectators"`
			Version    int               `json:"version"`
			State      engine.MatchState `json:"state"`
		}{code, view.Started, view.NumPlayers, view.NumWatchers, view.Version, view.State})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
