package protocol

import "github.com/pathwars/duel-backend/internal/engine"

// Hello is the first frame a player sends after connecting.
type Hello struct {
	MatchCode string `json:"match_code"`
	PlayerID  string `json:"player_id"`
}

// Welcome answers a successful Hello with the full authoritative snapshot.
type Welcome struct {
	PlayerID string            `json:"player_id"`
	Role     string            `json:"role"` // "host" | "client"
	Version  int               `json:"version"`
	State    engine.MatchState `json:"state"`
}

// CommandEnvelope carries a player command with a client-chosen sequence
// number so rejections can be matched to the speculative local action.
type CommandEnvelope struct {
	Seq     int            `json:"seq"`
	Command engine.Command `json:"command"`
}

// CommandAccepted echoes an applied command to both peers. The issuer treats
// it as confirmation; the opponent re-applies the command through its own
// engine to converge.
type CommandAccepted struct {
	Seq     int            `json:"seq,omitempty"`
	Version int            `json:"version"`
	Command engine.Command `json:"command"`
}

// CommandRejected goes back to the issuing player only.
type CommandRejected struct {
	Seq     int              `json:"seq"`
	Kind    engine.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// StateSync re-seeds a peer with the full authoritative state. The command
// stream is the normal sync path; this is the recovery escape hatch.
type StateSync struct {
	Version int               `json:"version"`
	State   engine.MatchState `json:"state"`
}

type PhaseChanged struct {
	Version int          `json:"version"`
	Phase   engine.Phase `json:"phase"`
	Round   int          `json:"round"`
}

type MatchOver struct {
	Version  int    `json:"version"`
	WinnerID string `json:"winner_id,omitempty"`
	Reason   string `json:"reason"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
