package types

import "github.com/pathwars/duel-backend/internal/engine"

// SpectatorMessage is what the websocket spectator feed emits. Spectators
// never issue commands; the feed is one-way state snapshots.
type SpectatorMessage struct {
	Type    string             `json:"type"` // "StateSnapshot" | "Error"
	Version int                `json:"version,omitempty"`
	State   *engine.MatchState `json:"state,omitempty"`
	Error   string             `json:"error,omitempty"`
}
