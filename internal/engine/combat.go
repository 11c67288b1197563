package engine

import (
	"math"
	"math/rand"

	"github.com/pathwars/duel-backend/internal/interp"
)

// Combat is resolved identically and independently by both peers from
// already-synchronized inputs: the routes, their interpolation method and
// resolution, the queued waves, and the shared match seed. Only sparse
// checkpoints cross the wire, never per-frame positions.
//
// Determinism rules: fixed step dt, fields walked in state Order, towers in
// placement order, units in spawn order. No map iteration anywhere in the
// simulation path.

const (
	combatStep         = 0.05 // seconds per simulation step
	checkpointInterval = 1.0  // minimum sim seconds between checkpoints per field
	combatMaxSimTime   = 600.0
)

// Checkpoint is the critical-state delta broadcast during combat: base HP
// and money changes for one defender since the previous checkpoint.
type Checkpoint struct {
	SimTime     float64 `json:"sim_time"`
	PlayerID    string  `json:"player_id"`
	BaseHPDelta int     `json:"base_hp_delta"`
	MoneyDelta  int     `json:"money_delta"`
	UnitsKilled int     `json:"units_killed"`
	UnitsLeaked int     `json:"units_leaked"`
}

type PlayerCombatResult struct {
	BaseHPLost  int `json:"base_hp_lost"`
	MoneyEarned int `json:"money_earned"`
	UnitsKilled int `json:"units_killed"`
	UnitsLeaked int `json:"units_leaked"`
}

type CombatResult struct {
	Duration    float64                       `json:"duration"`
	Checkpoints []Checkpoint                  `json:"checkpoints"`
	PerPlayer   map[string]PlayerCombatResult `json:"per_player"`
}

type spawnEntry struct {
	health  int
	speed   float64
	reward  int
	spawnAt float64
}

type combatUnit struct {
	spawnEntry
	pathIndex float64
	alive     bool
	spawned   bool
}

type combatTower struct {
	x, y     float64
	stats    TowerStats
	cooldown float64
}

type fieldSim struct {
	defenderID string
	path       [][2]float64
	// indexPerX converts unit speed (grid X-units per second) into path
	// sample indices, so traversal time does not depend on Route.Resolution.
	indexPerX float64
	units     []combatUnit
	towers    []combatTower
	result    PlayerCombatResult

	// deltas since the last emitted checkpoint
	pendingHP, pendingMoney, pendingKilled, pendingLeaked int
	lastCheckpoint                                        float64
}

// ResolveCombat runs the full deterministic battle for the current round and
// returns the outcome without touching the state.
func ResolveCombat(s *MatchState) CombatResult {
	res := CombatResult{PerPlayer: make(map[string]PlayerCombatResult, len(s.Order))}

	fields := make([]*fieldSim, 0, len(s.Order))
	for idx, id := range s.Order {
		fields = append(fields, newFieldSim(s, idx, id))
	}

	for t := 0.0; t < combatMaxSimTime; t += combatStep {
		done := true
		for _, f := range fields {
			if !f.step(t, combatStep) {
				done = false
			}
			if cp, ok := f.checkpoint(t, false); ok {
				res.Checkpoints = append(res.Checkpoints, cp)
			}
		}
		if done {
			res.Duration = t
			break
		}
		res.Duration = t
	}

	for _, f := range fields {
		if cp, ok := f.checkpoint(res.Duration, true); ok {
			res.Checkpoints = append(res.Checkpoints, cp)
		}
		res.PerPlayer[f.defenderID] = f.result
	}
	return res
}

// applyCombatOutcome settles the resolved battle into the state. Called on
// the Combat -> RoundEnd transition, identically on both peers.
func applyCombatOutcome(s *MatchState) {
	res := ResolveCombat(s)
	for _, id := range s.Order {
		p := s.Players[id]
		r := res.PerPlayer[id]
		p.BaseHP = max(0, p.BaseHP-r.BaseHPLost)
		p.Money += r.MoneyEarned
		p.IncomingMercenaries = nil
	}
}

func newFieldSim(s *MatchState, fieldIdx int, defenderID string) *fieldSim {
	p := s.Players[defenderID]
	f := &fieldSim{defenderID: defenderID}

	path, err := interp.Interpolate(p.Route.ControlXYs(), string(p.Route.Method), p.Route.Resolution)
	if err != nil {
		// No usable route means no wave crosses this field.
		return f
	}
	f.path = path
	span := path[len(path)-1][0] - path[0][0]
	if span <= 0 {
		span = 1
	}
	f.indexPerX = float64(len(path)-1) / span

	for _, t := range p.Towers {
		f.towers = append(f.towers, combatTower{
			x:     float64(t.X),
			y:     float64(t.Y),
			stats: towerStats[t.Type],
		})
	}

	// Spawn schedule: the round's base wave first, queued mercenaries after,
	// with seed-derived jitter so identical seeds give identical schedules.
	rng := rand.New(rand.NewSource(s.Seed ^ int64(s.Round)<<16 ^ int64(fieldIdx)))
	wave := waveForRound(s.Round)
	at := 0.0
	for _, g := range wave.groups {
		st := enemyStats[g.enemyType]
		for i := 0; i < g.count; i++ {
			f.units = append(f.units, combatUnit{spawnEntry: spawnEntry{
				health:  int(math.Round(float64(st.Health) * g.healthMod)),
				speed:   st.Speed * g.speedMod,
				reward:  st.Reward,
				spawnAt: at,
			}})
			at += wave.interval + rng.Float64()*0.2*wave.interval
		}
	}
	for _, qm := range p.IncomingMercenaries {
		st := mercenaryStats[qm.Type]
		for i := 0; i < qm.Quantity; i++ {
			f.units = append(f.units, combatUnit{spawnEntry: spawnEntry{
				health:  st.Health,
				speed:   st.Speed,
				reward:  st.Reward,
				spawnAt: at,
			}})
			at += wave.interval
		}
	}
	return f
}

// step advances one simulation tick and reports whether the field is done
// (every unit dead or leaked).
func (f *fieldSim) step(now, dt float64) bool {
	if len(f.path) < 2 {
		return true
	}
	end := float64(len(f.path) - 1)

	done := true
	for i := range f.units {
		u := &f.units[i]
		if !u.spawned {
			if now >= u.spawnAt {
				u.spawned = true
				u.alive = true
			} else {
				done = false
				continue
			}
		}
		if !u.alive {
			continue
		}
		u.pathIndex += u.speed * f.indexPerX * dt
		if u.pathIndex >= end {
			u.alive = false
			f.result.BaseHPLost++
			f.result.UnitsLeaked++
			f.pendingHP++
			f.pendingLeaked++
			continue
		}
		done = false
	}

	for i := range f.towers {
		tw := &f.towers[i]
		tw.cooldown -= dt
		if tw.cooldown > 0 || tw.stats.Damage == 0 {
			continue
		}
		target := f.findTarget(tw)
		if target == nil {
			continue
		}
		tw.cooldown = tw.stats.Cooldown
		target.health -= tw.stats.Damage
		if target.health <= 0 {
			target.alive = false
			f.result.MoneyEarned += target.reward
			f.result.UnitsKilled++
			f.pendingMoney += target.reward
			f.pendingKilled++
		}
	}
	return done
}

// findTarget picks the furthest-progressed live unit in range; spawn order
// breaks exact ties by virtue of the scan order.
func (f *fieldSim) findTarget(tw *combatTower) *combatUnit {
	var best *combatUnit
	for i := range f.units {
		u := &f.units[i]
		if !u.alive {
			continue
		}
		pos := f.path[int(u.pathIndex)]
		dx, dy := pos[0]-tw.x, pos[1]-tw.y
		if dx*dx+dy*dy > tw.stats.Range*tw.stats.Range {
			continue
		}
		if best == nil || u.pathIndex > best.pathIndex {
			best = u
		}
	}
	return best
}

// checkpoint drains pending deltas if enough sim time passed (or on flush).
func (f *fieldSim) checkpoint(now float64, flush bool) (Checkpoint, bool) {
	if f.pendingHP == 0 && f.pendingMoney == 0 && f.pendingKilled == 0 && f.pendingLeaked == 0 {
		return Checkpoint{}, false
	}
	if !flush && now-f.lastCheckpoint < checkpointInterval {
		return Checkpoint{}, false
	}
	cp := Checkpoint{
		SimTime:     now,
		PlayerID:    f.defenderID,
		BaseHPDelta: -f.pendingHP,
		MoneyDelta:  f.pendingMoney,
		UnitsKilled: f.pendingKilled,
		UnitsLeaked: f.pendingLeaked,
	}
	f.pendingHP, f.pendingMoney, f.pendingKilled, f.pendingLeaked = 0, 0, 0, 0
	f.lastCheckpoint = now
	return cp, true
}
