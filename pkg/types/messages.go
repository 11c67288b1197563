package types

// Every frame on the player TCP transport is a 4-byte big-endian length
// prefix followed by one JSON envelope:
//   type: string
//   payload: object (shape depends on type)
//   sender_id: string (optional)

// Client -> Server
// Hello (first frame, required):
//   match_code: string
//   player_id: string
//
// Command:
//   seq: number (client-chosen, echoed on accept/reject)
//   command:
//     command_type: "PlaceTower" | "ModifyControlPoint" | "SendMercenary" |
//                   "Research" | "SetInterpolation" | "Ready"
//     player_id: string (overwritten server-side from the connection)
//     timestamp: number (diagnostic only; ordering is server arrival order)
//     place_tower:       { tower_type, x, y }
//     modify_point:      { action: "add"|"move"|"remove", x, y, index }
//     send_mercenary:    { mercenary_type, quantity, target_player }
//     research:          { research_type }
//     set_interpolation: { method: "linear"|"lagrange"|"spline" }
//     ready:             { ready: boolean }
//
// Ping: {}

// Server -> Client
// Welcome:
//   player_id: string
//   role: "host" | "client"
//   version: number
//   state: full match state
//
// CommandAccepted (both peers; issuer matches on seq, opponent re-applies):
//   seq: number (0 for server-issued implicit commands)
//   version: number
//   command: as above
//
// CommandRejected (issuer only):
//   seq: number
//   kind: validation error kind
//   message: string
//
// PhaseChanged:
//   version: number
//   phase: string
//   round: number
//
// CombatCheckpoint:
//   sim_time: number
//   player_id: string
//   base_hp_delta: number
//   money_delta: number
//   units_killed: number
//   units_leaked: number
//
// MatchOver:
//   version: number
//   winner_id: string (absent on draw)
//   reason: string
//
// Pong: {}
// Error (fatal): { code, message }
