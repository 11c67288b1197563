package engine

import (
	"math"
	"reflect"
	"testing"
)

func combatState(seed int64) MatchState {
	s := NewMatchState(DefaultConfig(), seed, hostID, clientID)
	s.Phase = PhaseCombat
	seedRoutes(&s)
	s.Players[hostID].Towers = []Tower{
		{Type: TowerCalculus, X: 5, Y: 10},
		{Type: TowerPhysics, X: 12, Y: 10},
	}
	s.Players[clientID].Towers = []Tower{
		{Type: TowerDean, X: 8, Y: 10},
	}
	return s
}

func TestResolveCombatIsDeterministic(t *testing.T) {
	s := combatState(1234)
	a := ResolveCombat(&s)
	b := ResolveCombat(&s)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different results")
	}

	// A cloned state resolves identically too, which is what the two peers
	// actually do.
	clone := s.Clone()
	c := ResolveCombat(&clone)
	if !reflect.DeepEqual(a, c) {
		t.Fatalf("clone resolved differently from the original")
	}
}

func TestResolveCombatSeedChangesSchedule(t *testing.T) {
	a := combatState(1)
	b := combatState(2)
	ra := ResolveCombat(&a)
	rb := ResolveCombat(&b)
	if reflect.DeepEqual(ra, rb) {
		t.Fatalf("different seeds should shift spawn jitter")
	}
}

func TestResolveCombatDoesNotMutateState(t *testing.T) {
	s := combatState(99)
	before := s.Clone()
	_ = ResolveCombat(&s)
	if !reflect.DeepEqual(s.Players[hostID], before.Players[hostID]) ||
		!reflect.DeepEqual(s.Players[clientID], before.Players[clientID]) {
		t.Fatalf("ResolveCombat mutated the state")
	}
}

func TestCheckpointPacing(t *testing.T) {
	s := combatState(7)
	res := ResolveCombat(&s)
	if len(res.Checkpoints) == 0 {
		t.Fatalf("expected checkpoints from a full wave")
	}

	// Per defender, non-final checkpoints keep the minimum spacing. The last
	// one per player is a flush and may come sooner.
	last := map[string]float64{}
	seen := map[string]int{}
	for _, cp := range res.Checkpoints {
		seen[cp.PlayerID]++
	}
	counted := map[string]int{}
	for _, cp := range res.Checkpoints {
		counted[cp.PlayerID]++
		if prev, ok := last[cp.PlayerID]; ok && counted[cp.PlayerID] < seen[cp.PlayerID] {
			if cp.SimTime-prev < checkpointInterval {
				t.Fatalf("checkpoints for %s only %.3fs apart", cp.PlayerID, cp.SimTime-prev)
			}
		}
		last[cp.PlayerID] = cp.SimTime
	}
}

func TestCheckpointDeltasSumToTotals(t *testing.T) {
	s := combatState(11)
	res := ResolveCombat(&s)

	sums := map[string]PlayerCombatResult{}
	for _, cp := range res.Checkpoints {
		r := sums[cp.PlayerID]
		r.BaseHPLost += -cp.BaseHPDelta
		r.MoneyEarned += cp.MoneyDelta
		r.UnitsKilled += cp.UnitsKilled
		r.UnitsLeaked += cp.UnitsLeaked
		sums[cp.PlayerID] = r
	}
	for id, want := range res.PerPlayer {
		if got := sums[id]; got != want {
			t.Fatalf("checkpoint deltas for %s sum to %+v, totals say %+v", id, got, want)
		}
	}
}

func TestMercenariesJoinTheWave(t *testing.T) {
	base := combatState(5)
	withMercs := base.Clone()
	withMercs.Players[clientID].IncomingMercenaries = []QueuedMercenary{
		{Type: MercTankPi, Quantity: 3},
	}

	rBase := ResolveCombat(&base)
	rMercs := ResolveCombat(&withMercs)

	pb := rBase.PerPlayer[clientID]
	pm := rMercs.PerPlayer[clientID]
	if pm.UnitsKilled+pm.UnitsLeaked != pb.UnitsKilled+pb.UnitsLeaked+3 {
		t.Fatalf("3 mercenaries should add 3 resolved units: base %+v, with mercs %+v", pb, pm)
	}
	// The host's own field is unaffected.
	if rMercs.PerPlayer[hostID] != rBase.PerPlayer[hostID] {
		t.Fatalf("mercenaries leaked onto the wrong field")
	}
}

func TestCombatOutcomeAppliedOnRoundEnd(t *testing.T) {
	s := combatState(9)
	expected := ResolveCombat(&s)

	_, ns := mustApply(t, s, readyCmd(hostID))
	_, ns = mustApply(t, ns, readyCmd(clientID))
	if ns.Phase != PhaseRoundEnd && ns.Phase != PhaseMatchOver {
		t.Fatalf("combat must settle into round_end, got %s", ns.Phase)
	}

	for _, id := range ns.Order {
		before := s.Players[id]
		after := ns.Players[id]
		r := expected.PerPlayer[id]
		if want := max(0, before.BaseHP-r.BaseHPLost); after.BaseHP != want {
			t.Fatalf("%s base hp: want %d, got %d", id, want, after.BaseHP)
		}
		if want := before.Money + r.MoneyEarned; after.Money != want {
			t.Fatalf("%s money: want %d, got %d", id, want, after.Money)
		}
		if len(after.IncomingMercenaries) != 0 {
			t.Fatalf("mercenary queue must clear after combat")
		}
	}
}

func TestTraversalTimeIndependentOfResolution(t *testing.T) {
	// No towers: every unit walks the full route, so timing is pinned by
	// walking speed alone.
	base := combatState(21)
	base.Players[hostID].Towers = nil
	base.Players[clientID].Towers = nil

	dense := base.Clone()
	for _, id := range dense.Order {
		dense.Players[id].Route.Resolution = 250
	}

	rBase := ResolveCombat(&base)
	rDense := ResolveCombat(&dense)

	if !reflect.DeepEqual(rBase.PerPlayer, rDense.PerPlayer) {
		t.Fatalf("route sampling density changed the outcome: %+v vs %+v", rBase.PerPlayer, rDense.PerPlayer)
	}
	if diff := math.Abs(rBase.Duration - rDense.Duration); diff > 0.2 {
		t.Fatalf("route sampling density shifted the duration by %.2fs", diff)
	}
	// Crossing a 19-unit-wide field at walking speed takes on the order of
	// 20 seconds, not one second per path sample.
	if rBase.Duration > 50 {
		t.Fatalf("wave took %.1fs to cross the field", rBase.Duration)
	}
}

func TestWaveScheduleScalesBeyondTable(t *testing.T) {
	w5 := waveForRound(5)
	w7 := waveForRound(7)
	if len(w7.groups) != len(w5.groups) {
		t.Fatalf("late rounds reuse the final wave shape")
	}
	for i := range w7.groups {
		if w7.groups[i].healthMod <= w5.groups[i].healthMod {
			t.Fatalf("round 7 wave should hit harder than round 5")
		}
	}
	if w1 := waveForRound(1); len(w1.groups) != 1 || w1.groups[0].count != 5 {
		t.Fatalf("round 1 is five base students, got %+v", w1)
	}
}
