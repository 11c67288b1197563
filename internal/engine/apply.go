package engine

type EventType string

const (
	EvtTowerPlaced      EventType = "TowerPlaced"
	EvtPointAdded       EventType = "PointAdded"
	EvtPointMoved       EventType = "PointMoved"
	EvtPointRemoved     EventType = "PointRemoved"
	EvtMercenaryQueued  EventType = "MercenaryQueued"
	EvtResearchUnlocked EventType = "ResearchUnlocked"
	EvtMethodChanged    EventType = "MethodChanged"
	EvtPlayerReady      EventType = "PlayerReady"
	EvtPhaseChanged     EventType = "PhaseChanged"
	EvtRoundStarted     EventType = "RoundStarted"
	EvtMatchOver        EventType = "MatchOver"
)

type Event struct {
	Type     EventType
	PlayerID string
	Phase    Phase
	Round    int
}

// Validate runs the fixed check order against a state without mutating it:
// phase legality, structural presence, economic checks, then domain
// invariants. The first failing check is the reported error.
func Validate(cmd Command, s *MatchState) *ValidationError {
	if !s.Phase.Permits(cmd.Type) {
		return rejectf(KindPhaseViolation, "%s is not legal during %s", cmd.Type, s.Phase)
	}
	if !cmd.wellFormed() {
		return rejectf(KindMalformedCommand, "missing or mismatched payload for %s", cmd.Type)
	}
	issuer, ok := s.Players[cmd.PlayerID]
	if !ok {
		return rejectf(KindMalformedCommand, "unknown player %q", cmd.PlayerID)
	}

	switch cmd.Type {
	case CmdPlaceTower:
		return validatePlaceTower(cmd.PlaceTower, issuer, s)
	case CmdModifyControlPoint:
		return validateModifyPoint(cmd.ModifyPoint, issuer, s)
	case CmdSendMercenary:
		return validateSendMercenary(cmd.SendMercenary, issuer, s)
	case CmdResearch:
		return validateResearch(cmd.Research, issuer)
	case CmdSetInterpolation:
		return validateSetInterpolation(cmd.SetInterpolation, issuer)
	case CmdReady:
		return nil
	default:
		return rejectf(KindMalformedCommand, "unknown command type %q", cmd.Type)
	}
}

func validatePlaceTower(d *PlaceTowerData, issuer *PlayerState, s *MatchState) *ValidationError {
	cost := TowerCost(d.TowerType)
	if cost < 0 {
		return rejectf(KindMalformedCommand, "unknown tower type %q", d.TowerType)
	}
	if issuer.Money < cost {
		return rejectf(KindInsufficientFunds, "need %d, have %d", cost, issuer.Money)
	}
	// Out of bounds counts as occupied rather than a distinct kind.
	if d.X < 0 || d.X >= s.Config.GridWidth || d.Y < 0 || d.Y >= s.Config.GridHeight {
		return rejectf(KindPositionOccupied, "cell (%d,%d) is outside the grid", d.X, d.Y)
	}
	if issuer.hasTowerAt(d.X, d.Y) {
		return rejectf(KindPositionOccupied, "cell (%d,%d) already holds a tower", d.X, d.Y)
	}
	return nil
}

func validateModifyPoint(d *ModifyPointData, issuer *PlayerState, s *MatchState) *ValidationError {
	// Asymmetric model: control points are edited on the opponent's field.
	target := s.Players[s.Opponent(issuer.ID)]
	route := &target.Route

	switch d.Action {
	case PointAdd, PointMove, PointRemove:
	default:
		return rejectf(KindMalformedCommand, "unknown point action %q", d.Action)
	}
	if d.Action != PointAdd && (d.Index < 0 || d.Index >= len(route.Points)) {
		return rejectf(KindMalformedCommand, "point index %d out of range", d.Index)
	}

	if s.Phase == PhasePreparation {
		return validatePreparationPoint(d, target, s)
	}

	switch d.Action {
	case PointAdd:
		if route.ModifiedThisRound >= 1 {
			return rejectf(KindQuotaExceeded, "only one point may be added or removed per round")
		}
		if x := d.X; x < 0 || x > float64(s.Config.GridWidth-1) {
			return rejectf(KindMalformedCommand, "point x=%v outside the grid", x)
		}
		if y := d.Y; y < 0 || y > float64(s.Config.GridHeight-1) {
			return rejectf(KindMalformedCommand, "point y=%v outside the grid", y)
		}
		if route.hasX(d.X, -1) {
			return rejectf(KindMalformedCommand, "a point already exists at x=%v", d.X)
		}
	case PointMove:
		if route.Points[d.Index].Locked {
			return rejectf(KindPointLocked, "point %d was locked in round %d", d.Index, route.Points[d.Index].RoundCreated)
		}
		if x := d.X; x < 0 || x > float64(s.Config.GridWidth-1) {
			return rejectf(KindMalformedCommand, "point x=%v outside the grid", x)
		}
		if y := d.Y; y < 0 || y > float64(s.Config.GridHeight-1) {
			return rejectf(KindMalformedCommand, "point y=%v outside the grid", y)
		}
		if route.hasX(d.X, d.Index) {
			return rejectf(KindMalformedCommand, "a point already exists at x=%v", d.X)
		}
	case PointRemove:
		if route.Points[d.Index].Locked {
			return rejectf(KindPointLocked, "point %d was locked in round %d", d.Index, route.Points[d.Index].RoundCreated)
		}
		if route.ModifiedThisRound >= 1 {
			return rejectf(KindQuotaExceeded, "only one point may be added or removed per round")
		}
		if len(route.Points) <= 2 {
			return rejectf(KindMalformedCommand, "route must keep at least two points")
		}
	}
	return nil
}

// validatePreparationPoint enforces the round-1 border rule: the first point
// pins to the left border, the second to the right border, and there are
// never more than two. The two initial points may be moved along their
// border until the phase ends.
func validatePreparationPoint(d *ModifyPointData, target *PlayerState, s *MatchState) *ValidationError {
	route := &target.Route
	rightX := float64(s.Config.GridWidth - 1)

	if d.Y < 0 || d.Y > float64(s.Config.GridHeight-1) {
		return rejectf(KindBorderViolation, "point y=%v outside the grid", d.Y)
	}

	switch d.Action {
	case PointRemove:
		return rejectf(KindPhaseViolation, "initial points cannot be removed during preparation")
	case PointAdd:
		if target.InitialPointsPlaced >= 2 {
			return rejectf(KindQuotaExceeded, "exactly two initial points are placed during preparation")
		}
		wantX := 0.0
		if target.InitialPointsPlaced == 1 {
			wantX = rightX
		}
		if d.X != wantX {
			return rejectf(KindBorderViolation, "initial point %d must sit on x=%v, got x=%v",
				target.InitialPointsPlaced+1, wantX, d.X)
		}
	case PointMove:
		// Moving an initial point may slide it along its border only.
		if cur := route.Points[d.Index].X; d.X != cur {
			return rejectf(KindBorderViolation, "initial points stay pinned to their border (x=%v)", cur)
		}
	}
	return nil
}

func validateSendMercenary(d *SendMercenaryData, issuer *PlayerState, s *MatchState) *ValidationError {
	cost := MercenaryCost(d.MercenaryType)
	if cost < 0 {
		return rejectf(KindMalformedCommand, "unknown mercenary type %q", d.MercenaryType)
	}
	if d.Quantity < 1 {
		return rejectf(KindMalformedCommand, "quantity must be at least 1")
	}
	if d.TargetPlayer != s.Opponent(issuer.ID) {
		return rejectf(KindMalformedCommand, "mercenaries can only target the opponent")
	}
	// Compared by division so a huge quantity cannot overflow the total and
	// sneak past as negative.
	if d.Quantity > issuer.Money/cost {
		return rejectf(KindInsufficientFunds, "%d units at %d each exceeds %d", d.Quantity, cost, issuer.Money)
	}
	return nil
}

func validateResearch(d *ResearchData, issuer *PlayerState) *ValidationError {
	cost := ResearchCost(d.ResearchType)
	if cost < 0 {
		return rejectf(KindMalformedCommand, "unknown research type %q", d.ResearchType)
	}
	if issuer.Money < cost {
		return rejectf(KindInsufficientFunds, "need %d, have %d", cost, issuer.Money)
	}
	if issuer.Research[d.ResearchType] {
		return rejectf(KindAlreadyResearched, "%s is already researched", d.ResearchType)
	}
	for _, prereq := range Prerequisites(d.ResearchType) {
		if !issuer.Research[prereq] {
			return rejectf(KindPrerequisiteNotMet, "%s requires %s first", d.ResearchType, prereq)
		}
	}
	return nil
}

func validateSetInterpolation(d *SetInterpolationData, issuer *PlayerState) *ValidationError {
	switch d.Method {
	case InterpLinear, InterpLagrange, InterpSpline:
	default:
		return rejectf(KindMalformedCommand, "unknown interpolation method %q", d.Method)
	}
	if !unlockedMethods(issuer)[d.Method] {
		return rejectf(KindPrerequisiteNotMet, "%s interpolation is not researched", d.Method)
	}
	return nil
}

// Apply validates cmd and produces the next authoritative state. The input
// state is never mutated; on rejection it is returned unchanged. Both peers
// run identical Apply calls in identical order, which is the whole
// convergence argument for planning phases.
func Apply(s MatchState, cmd Command) ([]Event, MatchState, error) {
	if verr := Validate(cmd, &s); verr != nil {
		return nil, s, verr
	}

	ns := s.Clone()
	issuer := ns.Players[cmd.PlayerID]
	var events []Event

	switch cmd.Type {
	case CmdPlaceTower:
		d := cmd.PlaceTower
		issuer.Money -= TowerCost(d.TowerType)
		issuer.Towers = append(issuer.Towers, Tower{Type: d.TowerType, X: d.X, Y: d.Y})
		events = append(events, Event{Type: EvtTowerPlaced, PlayerID: issuer.ID, Round: ns.Round})

	case CmdModifyControlPoint:
		d := cmd.ModifyPoint
		target := ns.Players[ns.Opponent(issuer.ID)]
		route := &target.Route
		switch d.Action {
		case PointAdd:
			route.addPoint(d.X, d.Y, ns.Round)
			if ns.Phase == PhasePreparation {
				target.InitialPointsPlaced++
			} else {
				route.ModifiedThisRound++
			}
			events = append(events, Event{Type: EvtPointAdded, PlayerID: issuer.ID, Round: ns.Round})
		case PointMove:
			route.movePoint(d.Index, d.X, d.Y)
			events = append(events, Event{Type: EvtPointMoved, PlayerID: issuer.ID, Round: ns.Round})
		case PointRemove:
			route.removePoint(d.Index)
			route.ModifiedThisRound++
			events = append(events, Event{Type: EvtPointRemoved, PlayerID: issuer.ID, Round: ns.Round})
		}

	case CmdSendMercenary:
		d := cmd.SendMercenary
		issuer.Money -= MercenaryCost(d.MercenaryType) * d.Quantity
		target := ns.Players[d.TargetPlayer]
		target.IncomingMercenaries = append(target.IncomingMercenaries,
			QueuedMercenary{Type: d.MercenaryType, Quantity: d.Quantity})
		events = append(events, Event{Type: EvtMercenaryQueued, PlayerID: issuer.ID, Round: ns.Round})

	case CmdResearch:
		d := cmd.Research
		issuer.Money -= ResearchCost(d.ResearchType)
		issuer.Research[d.ResearchType] = true
		events = append(events, Event{Type: EvtResearchUnlocked, PlayerID: issuer.ID, Round: ns.Round})

	case CmdSetInterpolation:
		target := ns.Players[ns.Opponent(issuer.ID)]
		target.Route.Method = cmd.SetInterpolation.Method
		events = append(events, Event{Type: EvtMethodChanged, PlayerID: issuer.ID, Round: ns.Round})

	case CmdReady:
		issuer.Ready = cmd.Ready.Ready
		events = append(events, Event{Type: EvtPlayerReady, PlayerID: issuer.ID, Round: ns.Round})
	}

	// The phase advances as soon as every participant is ready and the phase
	// is complete. Checking after every command (not just Ready) covers the
	// preparation case where the last border point lands after both readies.
	if ns.AllReady() && readyToAdvance(&ns) {
		events = append(events, advance(&ns)...)
	}

	return events, ns, nil
}

// readyToAdvance reports whether the current phase can be left. Preparation
// holds until both routes carry their two border points.
func readyToAdvance(s *MatchState) bool {
	if s.Phase.Terminal() {
		return false
	}
	if s.Phase == PhasePreparation {
		for _, id := range s.Order {
			if len(s.Players[id].Route.Points) != 2 {
				return false
			}
		}
	}
	return true
}

// advance moves the state machine one step, running exit and entry hooks.
func advance(s *MatchState) []Event {
	from := s.Phase
	to := nextPhase(s)
	var events []Event

	// Exit hooks: leaving an editing phase locks this round's points.
	if from == PhasePreparation || from == PhasePathModification {
		for _, id := range s.Order {
			s.Players[id].Route.lockCurrentRound(s.Round)
		}
	}
	// Leaving combat settles the deterministic battle outcome.
	if from == PhaseCombat {
		applyCombatOutcome(s)
	}

	s.Phase = to
	for _, id := range s.Order {
		s.Players[id].Ready = false
	}
	events = append(events, Event{Type: EvtPhaseChanged, Phase: to, Round: s.Round})

	switch to {
	case PhasePathModification:
		s.Round++
		for _, id := range s.Order {
			s.Players[id].LastSyncRound = s.Round
		}
		events = append(events, Event{Type: EvtRoundStarted, Round: s.Round})
	case PhaseMatchOver:
		s.Outcome = decideOutcome(s)
		events = append(events, Event{Type: EvtMatchOver, PlayerID: s.Outcome.WinnerID, Round: s.Round})
	}
	return events
}

// TransitionTo validates and performs an explicit phase transition. The
// session uses advance-on-ready; this entry point exists for the transition
// legality contract (and its tests).
func TransitionTo(s MatchState, to Phase) ([]Event, MatchState, error) {
	if !s.Phase.CanTransition(to) {
		return nil, s, rejectf(KindPhaseViolation, "cannot transition from %s to %s", s.Phase, to)
	}
	if s.Phase == PhasePreparation && !readyToAdvance(&s) {
		return nil, s, rejectf(KindBorderViolation, "both border points must be placed before leaving preparation")
	}
	ns := s.Clone()
	events := advance(&ns)
	return events, ns, nil
}

// Forfeit terminates the match in favour of the remaining player. Used for
// disconnects and concessions; it is a terminal outcome, not a command.
func Forfeit(s MatchState, leaverID string) ([]Event, MatchState) {
	ns := s.Clone()
	ns.Phase = PhaseMatchOver
	ns.Outcome = MatchOutcome{WinnerID: ns.Opponent(leaverID), Reason: "forfeit"}
	return []Event{
		{Type: EvtPhaseChanged, Phase: PhaseMatchOver, Round: ns.Round},
		{Type: EvtMatchOver, PlayerID: ns.Outcome.WinnerID, Round: ns.Round},
	}, ns
}

func decideOutcome(s *MatchState) MatchOutcome {
	a, b := s.Players[s.Order[0]], s.Players[s.Order[1]]
	switch {
	case a.BaseHP <= 0 && b.BaseHP <= 0:
		return MatchOutcome{Reason: "victory"}
	case a.BaseHP <= 0:
		return MatchOutcome{WinnerID: b.ID, Reason: "victory"}
	case b.BaseHP <= 0:
		return MatchOutcome{WinnerID: a.ID, Reason: "victory"}
	}
	// All rounds survived: higher base HP wins, money breaks ties.
	switch {
	case a.BaseHP != b.BaseHP:
		if a.BaseHP > b.BaseHP {
			return MatchOutcome{WinnerID: a.ID, Reason: "rounds_complete"}
		}
		return MatchOutcome{WinnerID: b.ID, Reason: "rounds_complete"}
	case a.Money != b.Money:
		if a.Money > b.Money {
			return MatchOutcome{WinnerID: a.ID, Reason: "rounds_complete"}
		}
		return MatchOutcome{WinnerID: b.ID, Reason: "rounds_complete"}
	default:
		return MatchOutcome{Reason: "rounds_complete"}
	}
}
