package engine

// MatchConfig is the immutable per-match configuration agreed at session
// start. It rides along in every full state sync so both peers share it.
type MatchConfig struct {
	MaxRounds       int     `json:"max_rounds"`
	GridWidth       int     `json:"grid_width"`
	GridHeight      int     `json:"grid_height"`
	StartingMoney   int     `json:"starting_money"`
	BaseHP          int     `json:"base_hp"`
	PathResolution  int     `json:"path_resolution"`
	CombatTimeScale float64 `json:"combat_time_scale"` // sim seconds per wall second
}

// DefaultConfig is the standard medium-length 5-round setup.
func DefaultConfig() MatchConfig {
	return MatchConfig{
		MaxRounds:       5,
		GridWidth:       20,
		GridHeight:      20,
		StartingMoney:   500,
		BaseHP:          10,
		PathResolution:  100,
		CombatTimeScale: 1.0,
	}
}

// Valid checks the configuration against the supported bounds.
func (c MatchConfig) Valid() bool {
	switch c.MaxRounds {
	case 3, 5, 7, 10:
	default:
		return false
	}
	if c.StartingMoney < 100 || c.StartingMoney > 5000 {
		return false
	}
	return c.GridWidth > 1 && c.GridHeight > 0 && c.PathResolution >= 2
}

// Tower is a placed tower on a player's own field.
type Tower struct {
	Type TowerType `json:"type"`
	X    int       `json:"x"`
	Y    int       `json:"y"`
}

// QueuedMercenary is an attacker-purchased unit joining the target's next
// incoming wave.
type QueuedMercenary struct {
	Type     MercenaryType `json:"type"`
	Quantity int           `json:"quantity"`
}

// PlayerState is the canonical per-player state. The route is the path
// *incoming* attackers follow across this player's field; it is edited by
// the opponent (asymmetric model). IncomingMercenaries are queued against
// this player for the next combat.
type PlayerState struct {
	ID                  string                `json:"id"`
	BaseHP              int                   `json:"base_hp"`
	Money               int                   `json:"money"`
	Towers              []Tower               `json:"towers"`
	Route               Route                 `json:"route"`
	Research            map[ResearchType]bool `json:"research"`
	IncomingMercenaries []QueuedMercenary     `json:"incoming_mercenaries"`
	Ready               bool                  `json:"ready"`
	InitialPointsPlaced int                   `json:"initial_points_placed"`
	LastSyncRound       int                   `json:"last_sync_round"`
}

func (p *PlayerState) hasTowerAt(x, y int) bool {
	for _, t := range p.Towers {
		if t.X == x && t.Y == y {
			return true
		}
	}
	return false
}

func (p *PlayerState) clone() *PlayerState {
	out := *p
	out.Towers = append([]Tower(nil), p.Towers...)
	out.Route = p.Route.clone()
	out.Research = make(map[ResearchType]bool, len(p.Research))
	for k, v := range p.Research {
		out.Research[k] = v
	}
	out.IncomingMercenaries = append([]QueuedMercenary(nil), p.IncomingMercenaries...)
	return &out
}

// MatchOutcome records how a finished match ended.
type MatchOutcome struct {
	WinnerID string `json:"winner_id,omitempty"`
	Reason   string `json:"reason,omitempty"` // "victory" | "rounds_complete" | "forfeit"
}

// MatchState is the authoritative state of one duel. The host session owns
// the only mutable copy; clients hold read-mostly mirrors updated by applying
// server-accepted commands. Order fixes player iteration so both peers walk
// the same sequence everywhere (host first).
type MatchState struct {
	Phase    Phase                   `json:"phase"`
	Round    int                     `json:"round"`
	Seed     int64                   `json:"seed"`
	Config   MatchConfig             `json:"config"`
	Order    []string                `json:"order"`
	Players  map[string]*PlayerState `json:"players"`
	Outcome  MatchOutcome            `json:"outcome"`
}

// NewMatchState creates a fresh match in Preparation. hostID comes first in
// iteration order.
func NewMatchState(cfg MatchConfig, seed int64, hostID, clientID string) MatchState {
	mk := func(id string) *PlayerState {
		return &PlayerState{
			ID:       id,
			BaseHP:   cfg.BaseHP,
			Money:    cfg.StartingMoney,
			Research: make(map[ResearchType]bool),
			Route: Route{
				Method:     InterpLinear,
				Resolution: cfg.PathResolution,
			},
		}
	}
	return MatchState{
		Phase:  PhasePreparation,
		Round:  1,
		Seed:   seed,
		Config: cfg,
		Order:  []string{hostID, clientID},
		Players: map[string]*PlayerState{
			hostID:   mk(hostID),
			clientID: mk(clientID),
		},
	}
}

// Clone deep-copies the state. Apply works on a clone so a rejected command
// can never leave a partially-applied state behind, and snapshots handed to
// readers never alias the authority's copy.
func (s MatchState) Clone() MatchState {
	out := s
	out.Order = append([]string(nil), s.Order...)
	out.Players = make(map[string]*PlayerState, len(s.Players))
	for id, p := range s.Players {
		out.Players[id] = p.clone()
	}
	return out
}

// Opponent returns the other player's ID, or "" if id is unknown.
func (s *MatchState) Opponent(id string) string {
	for _, pid := range s.Order {
		if pid != id {
			return pid
		}
	}
	return ""
}

func (s *MatchState) anyBaseDestroyed() bool {
	for _, id := range s.Order {
		if s.Players[id].BaseHP <= 0 {
			return true
		}
	}
	return false
}

// AllReady reports whether every participant has signalled ready.
func (s *MatchState) AllReady() bool {
	for _, id := range s.Order {
		if !s.Players[id].Ready {
			return false
		}
	}
	return true
}
