package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/hub"
	"github.com/pathwars/duel-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/matches", CreateMatch(h, log))
	r.Get("/matches/{code}", MatchInfo(h))
	r.Get("/healthz", Healthz)
	r.Get("/spectate", ws.Handler(h, log))
	return r
}
