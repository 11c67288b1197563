package engine

// Phase is one stage of the round lifecycle. It gates which commands are
// legal and which phase may come next.
type Phase string

const (
	PhasePreparation      Phase = "preparation"
	PhasePathModification Phase = "path_modification"
	PhaseBuilding         Phase = "building"
	PhaseCombat           Phase = "combat"
	PhaseRoundEnd         Phase = "round_end"
	PhaseMatchOver        Phase = "match_over"
)

// phasePermits lists the command types each phase accepts. Ready is legal in
// every non-terminal phase; during Combat it doubles as the pause/concede
// gate and nothing else is accepted.
var phasePermits = map[Phase]map[CommandType]bool{
	PhasePreparation: {
		CmdModifyControlPoint: true,
		CmdResearch:           true,
		CmdReady:              true,
	},
	PhasePathModification: {
		CmdModifyControlPoint: true,
		CmdSendMercenary:      true,
		CmdResearch:           true,
		CmdSetInterpolation:   true,
		CmdReady:              true,
	},
	PhaseBuilding: {
		CmdPlaceTower: true,
		CmdReady:      true,
	},
	PhaseCombat: {
		CmdReady: true,
	},
	PhaseRoundEnd: {
		CmdReady: true,
	},
	PhaseMatchOver: {},
}

// phaseTransitions is the legal successor set for each phase. Preparation
// exists only in round 1 and skips straight to Building; later rounds cycle
// RoundEnd -> PathModification -> Building -> Combat -> RoundEnd.
var phaseTransitions = map[Phase][]Phase{
	PhasePreparation:      {PhaseBuilding},
	PhasePathModification: {PhaseBuilding},
	PhaseBuilding:         {PhaseCombat},
	PhaseCombat:           {PhaseRoundEnd},
	PhaseRoundEnd:         {PhasePathModification, PhaseMatchOver},
	PhaseMatchOver:        {},
}

// Permits reports whether a command type is legal in this phase.
func (p Phase) Permits(ct CommandType) bool {
	return phasePermits[p][ct]
}

// CanTransition reports whether a direct transition p -> next is legal.
func (p Phase) CanTransition(next Phase) bool {
	for _, t := range phaseTransitions[p] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the phase has no outgoing transitions.
func (p Phase) Terminal() bool { return p == PhaseMatchOver }

// nextPhase picks the single successor the state machine advances to when
// every participant is ready. RoundEnd resolves to MatchOver or loops back
// depending on rounds remaining and base HP.
func nextPhase(s *MatchState) Phase {
	switch s.Phase {
	case PhasePreparation, PhasePathModification:
		return PhaseBuilding
	case PhaseBuilding:
		return PhaseCombat
	case PhaseCombat:
		return PhaseRoundEnd
	case PhaseRoundEnd:
		if s.Round >= s.Config.MaxRounds || s.anyBaseDestroyed() {
			return PhaseMatchOver
		}
		return PhasePathModification
	default:
		return PhaseMatchOver
	}
}
